package query

import "time"

// ScoringPolicy is the named, versioned fusion formula. Tool responses
// carry the policy identifier so ranking changes are traceable.
type ScoringPolicy struct {
	Name    string
	Version string

	FTSWeight     float64
	VectorWeight  float64
	RecencyWeight float64
	// RecencyCutoff is the document age at which the recency boost
	// decays to zero.
	RecencyCutoff time.Duration
}

// DefaultPolicy is the v1 weighted-sum policy: 0.4 full-text, 0.4 vector,
// up to 0.2 recency with linear decay over 30 days.
func DefaultPolicy() ScoringPolicy {
	return ScoringPolicy{
		Name:          "weighted-sum",
		Version:       "1",
		FTSWeight:     0.4,
		VectorWeight:  0.4,
		RecencyWeight: 0.2,
		RecencyCutoff: 30 * 24 * time.Hour,
	}
}

// ID returns the policy identifier reported in responses.
func (p ScoringPolicy) ID() string {
	return p.Name + "/v" + p.Version
}

// RecencyBoost computes the boost for a document of the given age: the
// full recency weight at age zero, decaying linearly to zero at the cutoff.
func (p ScoringPolicy) RecencyBoost(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	if p.RecencyCutoff <= 0 || age >= p.RecencyCutoff {
		return 0
	}
	return p.RecencyWeight * (1 - float64(age)/float64(p.RecencyCutoff))
}

// Fuse combines per-modality subscores (each in [0,1]) and a recency boost
// into the final score. With both subscores and boost maxed the result is
// exactly 1.0.
func (p ScoringPolicy) Fuse(ftsScore, vectorScore, recencyBoost float64) float64 {
	return p.FTSWeight*ftsScore + p.VectorWeight*vectorScore + recencyBoost
}
