package orchestrator

import (
	"github.com/google/uuid"

	"github.com/valpere/mdtran/internal/protect"
)

// Status is the lifecycle state of a translation session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

// Session holds the chunked state of one translation request. It is created
// per Run, mutated only by the driving orchestrator loop, and replaced when a
// new non-resume request starts.
type Session struct {
	ID         string
	TargetLang string
	MaxTokens  int

	Chunks     []string
	Translated []string // same length as Chunks, sparse until filled
	Patterns   []protect.Pattern

	Current     int
	FailedIndex int // -1 when no failure has been recorded
	Status      Status

	// MissingPlaceholders counts protected patterns the model dropped;
	// restoration is best-effort, so this is observability, not an error.
	MissingPlaceholders int
}

func newSession(targetLang string, maxTokens int, chunks []string, patterns []protect.Pattern) *Session {
	return &Session{
		ID:          uuid.New().String(),
		TargetLang:  targetLang,
		MaxTokens:   maxTokens,
		Chunks:      chunks,
		Translated:  make([]string, len(chunks)),
		Patterns:    patterns,
		FailedIndex: -1,
		Status:      StatusIdle,
	}
}

// resumable reports whether the session can continue a run with the same
// target language and token budget. A changed budget invalidates the session:
// the chunk list would no longer match what re-segmentation produces.
func (s *Session) resumable(targetLang string, maxTokens int) bool {
	if s == nil {
		return false
	}
	if s.Status != StatusFailed && s.Status != StatusAborted {
		return false
	}
	return s.TargetLang == targetLang && s.MaxTokens == maxTokens && s.FailedIndex >= 0
}
