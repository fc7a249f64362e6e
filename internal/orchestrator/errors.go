package orchestrator

import "fmt"

// ValidationError reports input rejected before any translation work starts.
// It is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// CancelError reports that the cancellation signal was observed. Index is the
// chunk that was about to be (or was being) translated; partial results up to
// it remain on the session for resume.
type CancelError struct {
	Index int
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("translation cancelled at chunk %d", e.Index)
}

// ChunkError wraps any non-cancellation failure from the translate
// collaborator. Index marks the session's resumable point.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d failed: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
