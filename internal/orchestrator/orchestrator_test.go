package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/valpere/mdtran/internal/protect"
	"github.com/valpere/mdtran/internal/translator"
)

// mockService is a scriptable translate collaborator.
type mockService struct {
	name          string
	translateFunc func(req translator.TranslateRequest) (string, error)
	calls         atomic.Int32
}

func (m *mockService) Name() string { return m.name }

func (m *mockService) Translate(ctx context.Context, _ translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := m.translateFunc(req)
	if err != nil {
		return nil, err
	}
	return &translator.ServiceResult{ServiceName: m.name, TranslatedText: text}, nil
}

func (m *mockService) IsAvailable(ctx context.Context) error { return nil }

func (m *mockService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "ja", "uk"}, nil
}

func echoService() *mockService {
	return &mockService{
		name:          "echo",
		translateFunc: func(req translator.TranslateRequest) (string, error) { return req.Text, nil },
	}
}

// chunkedDoc packs into three chunks under a budget of 10 tokens.
const chunkedDoc = "Alpha paragraph content with several words inside today.\n\n" +
	"Bravo paragraph content with several words inside today.\n\n" +
	"Charlie paragraph content with several words inside today."

func TestRun_NoService(t *testing.T) {
	o := New(nil, nil, nil, nil)
	_, err := o.Run(context.Background(), "text", "uk", Options{})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRun_NoTargetLang(t *testing.T) {
	o := New(nil, nil, nil, nil)
	_, err := o.Run(context.Background(), "text", "", Options{Service: echoService()})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	o := New(nil, nil, nil, nil)
	_, err := o.Run(context.Background(), "   \n\t ", "uk", Options{Service: echoService()})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRun_SmallInputSingleCall(t *testing.T) {
	o := New(nil, nil, nil, nil)
	svc := echoService()

	got, err := o.Run(context.Background(), "A short sentence that fits one request.", "uk", Options{Service: svc})
	if err != nil {
		t.Fatal(err)
	}
	if got != "A short sentence that fits one request." {
		t.Errorf("unexpected output: %q", got)
	}
	if n := svc.calls.Load(); n != 1 {
		t.Errorf("expected exactly 1 translate call, got %d", n)
	}
	if o.Session() != nil {
		t.Error("small input should not create a chunked session")
	}
}

func TestRun_ChunkedOrderPreserved(t *testing.T) {
	o := New(nil, nil, nil, nil)
	svc := echoService()

	got, err := o.Run(context.Background(), chunkedDoc, "uk", Options{Service: svc, MaxTokens: 10})
	if err != nil {
		t.Fatal(err)
	}
	if n := svc.calls.Load(); n != 3 {
		t.Fatalf("expected 3 translate calls, got %d", n)
	}

	ia := strings.Index(got, "Alpha")
	ib := strings.Index(got, "Bravo")
	ic := strings.Index(got, "Charlie")
	if ia < 0 || ib < 0 || ic < 0 || ia > ib || ib > ic {
		t.Errorf("chunk order lost:\n%s", got)
	}

	s := o.Session()
	if s == nil || s.Status != StatusCompleted || s.FailedIndex != -1 {
		t.Errorf("unexpected session state: %+v", s)
	}
}

func TestRun_ProgressCallbacks(t *testing.T) {
	o := New(nil, nil, nil, nil)

	var percents []int
	var chunkIdx []int
	opts := Options{
		Service:    echoService(),
		MaxTokens:  10,
		OnProgress: func(p int, _ string) { percents = append(percents, p) },
		OnChunk:    func(i, total int, _ string) { chunkIdx = append(chunkIdx, i) },
	}

	if _, err := o.Run(context.Background(), chunkedDoc, "uk", opts); err != nil {
		t.Fatal(err)
	}
	if len(percents) != 3 || percents[len(percents)-1] != 100 {
		t.Errorf("progress should end at 100: %v", percents)
	}
	for i, idx := range chunkIdx {
		if idx != i {
			t.Errorf("chunk callbacks out of order: %v", chunkIdx)
			break
		}
	}
}

func TestRun_FailureKeepsPartials(t *testing.T) {
	o := New(nil, nil, nil, nil)
	svc := &mockService{name: "flaky"}
	svc.translateFunc = func(req translator.TranslateRequest) (string, error) {
		if strings.Contains(req.Text, "Bravo") {
			return "", errors.New("backend unavailable")
		}
		return "FIRST " + req.Text, nil
	}

	_, err := o.Run(context.Background(), chunkedDoc, "uk", Options{Service: svc, MaxTokens: 10})

	var cerr *ChunkError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ChunkError, got %v", err)
	}
	if cerr.Index != 1 {
		t.Errorf("expected failure at chunk 1, got %d", cerr.Index)
	}

	s := o.Session()
	if s.Status != StatusFailed || s.FailedIndex != 1 {
		t.Errorf("unexpected session state: status=%s failedIndex=%d", s.Status, s.FailedIndex)
	}
	if !strings.Contains(s.Translated[0], "FIRST") {
		t.Errorf("partial result for chunk 0 lost: %q", s.Translated[0])
	}
	if s.Translated[1] != "" || s.Translated[2] != "" {
		t.Errorf("untranslated chunks should stay empty: %v", s.Translated)
	}
}

func TestRun_ResumeSkipsDoneChunks(t *testing.T) {
	o := New(nil, nil, nil, nil)

	failing := &mockService{name: "flaky"}
	failing.translateFunc = func(req translator.TranslateRequest) (string, error) {
		if strings.Contains(req.Text, "Bravo") {
			return "", errors.New("backend unavailable")
		}
		return "FIRST " + req.Text, nil
	}
	if _, err := o.Run(context.Background(), chunkedDoc, "uk", Options{Service: failing, MaxTokens: 10}); err == nil {
		t.Fatal("expected first run to fail")
	}

	recovered := &mockService{name: "recovered"}
	recovered.translateFunc = func(req translator.TranslateRequest) (string, error) {
		return "SECOND " + req.Text, nil
	}

	got, err := o.Run(context.Background(), chunkedDoc, "uk", Options{Service: recovered, MaxTokens: 10, Resume: true})
	if err != nil {
		t.Fatal(err)
	}
	if n := recovered.calls.Load(); n != 2 {
		t.Errorf("resume should translate only chunks 1..2, got %d calls", n)
	}
	if strings.Count(got, "FIRST") != 1 {
		t.Errorf("chunk 0 result should be reused verbatim:\n%s", got)
	}
	if strings.Count(got, "SECOND") != 2 {
		t.Errorf("chunks 1..2 should be retranslated:\n%s", got)
	}
	if s := o.Session(); s.Status != StatusCompleted {
		t.Errorf("unexpected session state: %+v", s)
	}
}

func TestRun_BudgetChangeInvalidatesResume(t *testing.T) {
	o := New(nil, nil, nil, nil)

	failing := &mockService{name: "flaky"}
	failing.translateFunc = func(req translator.TranslateRequest) (string, error) {
		if strings.Contains(req.Text, "Bravo") {
			return "", errors.New("backend unavailable")
		}
		return req.Text, nil
	}
	if _, err := o.Run(context.Background(), chunkedDoc, "uk", Options{Service: failing, MaxTokens: 10}); err == nil {
		t.Fatal("expected first run to fail")
	}
	staleID := o.Session().ID

	svc := echoService()
	if _, err := o.Run(context.Background(), chunkedDoc, "uk", Options{Service: svc, MaxTokens: 15, Resume: true}); err != nil {
		t.Fatal(err)
	}
	if o.Session().ID == staleID {
		t.Error("changed budget must start a fresh session, not resume the stale one")
	}
}

func TestRun_CancelBeforeStart(t *testing.T) {
	o := New(nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, chunkedDoc, "uk", Options{Service: echoService(), MaxTokens: 10})

	var cerr *CancelError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CancelError, got %v", err)
	}
	if cerr.Index != 0 {
		t.Errorf("expected cancellation at chunk 0, got %d", cerr.Index)
	}
	if s := o.Session(); s.Status != StatusAborted {
		t.Errorf("unexpected session state: %+v", s)
	}
}

func TestRun_CancelMidRun(t *testing.T) {
	o := New(nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	svc := &mockService{name: "cancelling"}
	svc.translateFunc = func(req translator.TranslateRequest) (string, error) {
		cancel() // signal arrives while chunk 0 is in flight
		return req.Text, nil
	}

	_, err := o.Run(ctx, chunkedDoc, "uk", Options{Service: svc, MaxTokens: 10})

	var cerr *CancelError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CancelError, got %v", err)
	}
	if cerr.Index != 1 {
		t.Errorf("expected cancellation observed before chunk 1, got %d", cerr.Index)
	}

	s := o.Session()
	if s.Status != StatusAborted || s.FailedIndex != 1 {
		t.Errorf("unexpected session state: status=%s failedIndex=%d", s.Status, s.FailedIndex)
	}
	if s.Translated[0] == "" {
		t.Error("chunk 0 finished before cancellation and must be kept")
	}
}

func TestRun_ContextErrorMapsToCancel(t *testing.T) {
	o := New(nil, nil, nil, nil)
	svc := &mockService{name: "deadline"}
	svc.translateFunc = func(req translator.TranslateRequest) (string, error) {
		return "", context.DeadlineExceeded
	}

	_, err := o.Run(context.Background(), chunkedDoc, "uk", Options{Service: svc, MaxTokens: 10})

	var cerr *CancelError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CancelError for a deadline failure, got %v", err)
	}
}

func TestRun_RestoresProtectedContent(t *testing.T) {
	o := New(nil, nil, nil, nil)

	doc := chunkedDoc + "\n\n```go\nfmt.Println(\"untouched\")\n```"
	got, err := o.Run(context.Background(), doc, "uk", Options{Service: echoService(), MaxTokens: 10})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "fmt.Println(\"untouched\")") {
		t.Errorf("protected code not restored:\n%s", got)
	}
	if strings.Contains(got, "[CODEBLOCK") {
		t.Errorf("placeholder left behind:\n%s", got)
	}
	if s := o.Session(); s.MissingPlaceholders != 0 {
		t.Errorf("expected no missing placeholders, got %d", s.MissingPlaceholders)
	}
}

func TestRun_MissingPlaceholderCounted(t *testing.T) {
	o := New(nil, nil, nil, nil)

	svc := &mockService{name: "eater"}
	svc.translateFunc = func(req translator.TranslateRequest) (string, error) {
		// Simulate a model dropping protected markers.
		return strings.ReplaceAll(req.Text, "[CODEBLOCK1]", ""), nil
	}

	doc := chunkedDoc + "\n\n```go\nfmt.Println(\"gone\")\n```"
	if _, err := o.Run(context.Background(), doc, "uk", Options{Service: svc, MaxTokens: 10}); err != nil {
		t.Fatal(err)
	}
	if s := o.Session(); s.MissingPlaceholders != 1 {
		t.Errorf("expected 1 missing placeholder, got %d", s.MissingPlaceholders)
	}
}

func TestRestoreSession_Resume(t *testing.T) {
	o := New(nil, nil, nil, nil)

	chunks := []string{"first chunk text", "second chunk text", "third chunk text"}
	translated := []string{"done first chunk"}
	patterns := []protect.Pattern{
		{Type: protect.FencedCode, Original: "```\nbody\n```", Placeholder: "[CODEBLOCK1]"},
	}
	o.RestoreSession("persisted-id", "uk", 10, chunks, translated, patterns, 1)

	svc := echoService()
	got, err := o.Run(context.Background(), "", "uk", Options{Service: svc, MaxTokens: 10, Resume: true})
	if err != nil {
		t.Fatal(err)
	}
	if n := svc.calls.Load(); n != 2 {
		t.Errorf("restored session should resume at chunk 1, got %d calls", n)
	}
	if !strings.Contains(got, "done first chunk") {
		t.Errorf("persisted chunk 0 result lost:\n%s", got)
	}
	if s := o.Session(); s.ID != "persisted-id" || s.Status != StatusCompleted {
		t.Errorf("unexpected session state: %+v", s)
	}
}

func TestSessionResumable(t *testing.T) {
	tests := []struct {
		name string
		s    *Session
		lang string
		max  int
		want bool
	}{
		{"nil session", nil, "uk", 10, false},
		{"failed matches", &Session{TargetLang: "uk", MaxTokens: 10, Status: StatusFailed, FailedIndex: 1}, "uk", 10, true},
		{"aborted matches", &Session{TargetLang: "uk", MaxTokens: 10, Status: StatusAborted, FailedIndex: 0}, "uk", 10, true},
		{"completed", &Session{TargetLang: "uk", MaxTokens: 10, Status: StatusCompleted, FailedIndex: -1}, "uk", 10, false},
		{"lang mismatch", &Session{TargetLang: "uk", MaxTokens: 10, Status: StatusFailed, FailedIndex: 1}, "ja", 10, false},
		{"budget mismatch", &Session{TargetLang: "uk", MaxTokens: 10, Status: StatusFailed, FailedIndex: 1}, "uk", 20, false},
		{"no failure index", &Session{TargetLang: "uk", MaxTokens: 10, Status: StatusFailed, FailedIndex: -1}, "uk", 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.resumable(tt.lang, tt.max); got != tt.want {
				t.Errorf("resumable(%q, %d) = %v, want %v", tt.lang, tt.max, got, tt.want)
			}
		})
	}
}
