package types

import "errors"

// Sentinel errors for the failure modes tool callers can act on. Wrap with
// fmt.Errorf("%w: ...", Err...) so errors.Is works through call chains and
// ErrorKind can recover the machine-readable kind at the tool boundary.
var (
	// ErrConfiguration means the server or a component was constructed
	// with invalid settings (bad chunk geometry, unknown provider, ...).
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidInput means a caller-supplied parameter failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEncoding means document bytes could not be decoded as text.
	ErrEncoding = errors.New("encoding error")

	// ErrModelUnavailable means the embedding model could not be loaded
	// or reached.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrNoEmbeddings means an operation needed stored vectors that do
	// not exist, e.g. duplicate detection on an unembedded document.
	ErrNoEmbeddings = errors.New("no embeddings stored")

	// ErrIndexUnavailable means the full-text index is missing or
	// corrupt and needs a rebuild.
	ErrIndexUnavailable = errors.New("search index unavailable")

	// ErrNotFound means the referenced document or chunk does not exist
	// or is soft-deleted.
	ErrNotFound = errors.New("not found")
)

// ErrorKind maps err to the machine-readable kind string included in tool
// error responses. Unrecognized errors report as internal_error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrEncoding):
		return "encoding_error"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrNoEmbeddings):
		return "no_embeddings"
	case errors.Is(err, ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
