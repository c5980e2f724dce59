package ragErrors

import (
	"errors"
	"fmt"
)

var (
	ErrDegenerateChunkingConfig = errors.New("degenerate chunking config")
	ErrEmbeddingProvider        = errors.New("embedding provider error")
	ErrStoreUnavailable         = errors.New("vector store unavailable")
	ErrStoreWrite               = errors.New("vector store write failed")
	ErrStoreQuery               = errors.New("vector store query failed")
	ErrDimensionMismatch        = errors.New("embedding dimension mismatch")
	ErrNoEmbeddableContent      = errors.New("no embeddable content")
	ErrRetrievalFailed          = errors.New("retrieval failed")
	ErrTriageFailed             = errors.New("triage failed")
	ErrIndexBusy                = errors.New("index lock not acquired")
)

// Error ties a failure to its kind. errors.Is matches both Kind and the cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func New(kind error, op string, cause error) error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// DimensionCheck fails with kind wrapping ErrDimensionMismatch when want is set and differs from len(vector).
func DimensionCheck(kind error, op string, want int, vector []float32) error {
	if want <= 0 || len(vector) == want {
		return nil
	}
	return New(kind, op, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), want))
}
