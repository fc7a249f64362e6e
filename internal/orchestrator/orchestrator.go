// Package orchestrator drives a document translation end to end: protect,
// segment, pack, then translate chunk by chunk through the external
// collaborator, normalizing each response and restoring protected content at
// the end.
//
// Exactly one translate call is in flight at a time: chunk i+1 is never
// dispatched before chunk i's result or failure is recorded, and sequential
// calls keep rate-limited backends happy. Cancellation is cooperative: the
// context is checked before each chunk and propagated into the in-flight call.
package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/valpere/mdtran/internal/chunk"
	"github.com/valpere/mdtran/internal/normalize"
	"github.com/valpere/mdtran/internal/protect"
	"github.com/valpere/mdtran/internal/segment"
	"github.com/valpere/mdtran/internal/token"
	"github.com/valpere/mdtran/internal/translator"
)

// DefaultMaxTokens is the per-chunk budget when Options leaves it unset.
const DefaultMaxTokens = 1000

// Options configures one Run call.
type Options struct {
	Service translator.TranslationService
	Config  translator.ServiceConfig

	// MaxTokens is the per-chunk translation budget; ≤ 0 uses DefaultMaxTokens.
	MaxTokens int

	// Resume continues the previous failed or aborted session from its
	// recorded failing index, reusing stored chunk results verbatim.
	Resume bool

	SourceLang    string
	GlossaryTerms map[string]string

	// OnProgress and OnChunk are fire-and-forget callbacks; they must not
	// panic and are invoked synchronously from the translation loop.
	OnProgress func(percent int, message string)
	OnChunk    func(index, total int, translatedChunk string)
}

// Orchestrator sequences chunked translations. All collaborators are injected
// once at construction; there is no package-level shared state.
type Orchestrator struct {
	est        *token.Estimator
	packer     *chunk.Packer
	protector  *protect.Protector
	normalizer *normalize.Normalizer

	session *Session
}

// New wires an Orchestrator from its collaborators. Nil arguments fall back
// to defaults.
func New(est *token.Estimator, packer *chunk.Packer, protector *protect.Protector, normalizer *normalize.Normalizer) *Orchestrator {
	if est == nil {
		est = token.NewEstimator()
	}
	if packer == nil {
		packer = chunk.NewPacker(est)
	}
	if protector == nil {
		protector = protect.NewProtector()
	}
	if normalizer == nil {
		normalizer = normalize.New(normalize.Config{})
	}
	return &Orchestrator{est: est, packer: packer, protector: protector, normalizer: normalizer}
}

// Session returns the current translation session, or nil before the first
// chunked Run. Callers may read partial results from it after a failure.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// RestoreSession installs a previously persisted session so a Run call with
// Resume set continues it from failedIndex. translated may be sparse; only
// entries below failedIndex are trusted.
func (o *Orchestrator) RestoreSession(id, targetLang string, maxTokens int, chunks, translated []string, patterns []protect.Pattern, failedIndex int) {
	s := &Session{
		ID:          id,
		TargetLang:  targetLang,
		MaxTokens:   maxTokens,
		Chunks:      chunks,
		Translated:  make([]string, len(chunks)),
		Patterns:    patterns,
		Current:     failedIndex,
		FailedIndex: failedIndex,
		Status:      StatusFailed,
	}
	for i := 0; i < len(translated) && i < len(chunks); i++ {
		s.Translated[i] = translated[i]
	}
	o.session = s
}

// Run translates text into targetLang. Input that fits the budget is sent as
// a single call; anything larger goes through the chunk pipeline. On failure
// the returned error carries the failing chunk index and the session keeps
// every result translated so far.
func (o *Orchestrator) Run(ctx context.Context, text, targetLang string, opts Options) (string, error) {
	if opts.Service == nil {
		return "", &ValidationError{Reason: "no translation service configured"}
	}
	if targetLang == "" {
		return "", &ValidationError{Reason: "target language is required"}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	if opts.Resume && o.session.resumable(targetLang, maxTokens) {
		return o.runLoop(ctx, opts, o.session.FailedIndex)
	}

	if strings.TrimSpace(text) == "" {
		return "", &ValidationError{Reason: "empty input text"}
	}

	// Small documents bypass the chunk machinery entirely.
	if o.est.EstimateFor(text, targetLang) <= maxTokens {
		raw, err := o.translateOne(ctx, opts, text, targetLang, 0)
		if err != nil {
			return "", err
		}
		return o.normalizer.Clean(raw), nil
	}

	protected, patterns := o.protector.Protect(text)
	units := segment.Segment(protected)
	chunks, err := o.packer.Pack(units, maxTokens, targetLang)
	if err != nil {
		if errors.Is(err, chunk.ErrNoUnits) {
			return "", &ValidationError{Reason: "nothing to translate after segmentation"}
		}
		return "", err
	}

	o.session = newSession(targetLang, maxTokens, chunks, patterns)
	return o.runLoop(ctx, opts, 0)
}

// runLoop iterates the session's chunks strictly in order from start,
// translating one at a time.
func (o *Orchestrator) runLoop(ctx context.Context, opts Options, start int) (string, error) {
	s := o.session
	s.Status = StatusRunning
	total := len(s.Chunks)

	for i := start; i < total; i++ {
		if err := ctx.Err(); err != nil {
			s.Status = StatusAborted
			s.FailedIndex = i
			return "", &CancelError{Index: i}
		}

		s.Current = i
		raw, err := o.translateOne(ctx, opts, s.Chunks[i], s.TargetLang, i)
		if err != nil {
			var cancelled *CancelError
			if errors.As(err, &cancelled) {
				s.Status = StatusAborted
			} else {
				s.Status = StatusFailed
			}
			s.FailedIndex = i
			return "", err
		}

		s.Translated[i] = o.normalizer.Clean(raw)
		s.Current = i + 1

		if opts.OnChunk != nil {
			opts.OnChunk(i, total, s.Translated[i])
		}
		if opts.OnProgress != nil {
			opts.OnProgress((i+1)*100/total, "translated chunk")
		}
	}

	merged := strings.Join(s.Translated, "\n\n")
	restored, count := o.protector.Restore(merged, s.Patterns)
	s.MissingPlaceholders = len(s.Patterns) - count
	s.Status = StatusCompleted
	s.FailedIndex = -1

	return restored, nil
}

// translateOne issues a single translate call and maps context errors to the
// cancellation taxonomy, all other failures to ChunkError.
func (o *Orchestrator) translateOne(ctx context.Context, opts Options, text, targetLang string, index int) (string, error) {
	req := translator.TranslateRequest{
		Text:          text,
		SourceLang:    opts.SourceLang,
		TargetLang:    targetLang,
		GlossaryTerms: opts.GlossaryTerms,
	}

	res, err := opts.Service.Translate(ctx, opts.Config, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", &CancelError{Index: index}
		}
		return "", &ChunkError{Index: index, Err: err}
	}
	return res.TranslatedText, nil
}
