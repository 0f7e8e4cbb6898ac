package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecencyBoostLinearDecay(t *testing.T) {
	p := DefaultPolicy()

	assert.InDelta(t, 0.2, p.RecencyBoost(0), 1e-9)
	assert.InDelta(t, 0.1, p.RecencyBoost(15*24*time.Hour), 1e-9)
	assert.Equal(t, 0.0, p.RecencyBoost(30*24*time.Hour))
	assert.Equal(t, 0.0, p.RecencyBoost(365*24*time.Hour))
	// Future uploads clamp to the maximum boost, not beyond it.
	assert.InDelta(t, 0.2, p.RecencyBoost(-time.Hour), 1e-9)
}

func TestFuseBounds(t *testing.T) {
	p := DefaultPolicy()

	assert.InDelta(t, 1.0, p.Fuse(1, 1, p.RecencyBoost(0)), 1e-9)
	assert.Equal(t, 0.0, p.Fuse(0, 0, 0))

	// A document matched by one modality alone cannot outrank a perfect
	// two-modality match.
	single := p.Fuse(1, 0, p.RecencyBoost(0))
	both := p.Fuse(1, 1, 0)
	assert.Less(t, single, both+p.RecencyWeight+1e-9)
	assert.InDelta(t, 0.6, single, 1e-9)
}

func TestPolicyID(t *testing.T) {
	assert.Equal(t, "weighted-sum/v1", DefaultPolicy().ID())
}
