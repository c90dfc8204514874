package survey

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/civiq-care/backend/internal/catalog"
)

type fakeSink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (f *fakeSink) Store(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeSink) stored() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out
}

type fakeRetry struct {
	mu      sync.Mutex
	records []Record
}

func (f *fakeRetry) EnqueueResultPersist(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func testCatalog(t *testing.T, n int) *catalog.Catalog {
	t.Helper()
	items := make([]catalog.Item, n)
	for i := range items {
		items[i] = catalog.Item{Ordinal: i + 1, Text: "question"}
	}
	cat, err := catalog.New(items, 5)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return cat
}

func newTestEngine(t *testing.T, n int, sink ResultSink, opts ...Option) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewEngine(testCatalog(t, n), store, sink, zap.NewNop(), opts...), store
}

func mustQuestion(t *testing.T, d Directive) Question {
	t.Helper()
	q, ok := d.(Question)
	if !ok {
		t.Fatalf("expected Question directive, got %T", d)
	}
	return q
}

func TestStartCreatesSessionAtFirstQuestion(t *testing.T) {
	e, store := newTestEngine(t, 3, &fakeSink{})
	d, err := e.Start(context.Background(), "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	q := mustQuestion(t, d)
	if q.Ordinal != 1 || q.Total != 3 {
		t.Fatalf("expected question 1 of 3, got %d of %d", q.Ordinal, q.Total)
	}
	if len(q.Options) != 5 || q.Options[0] != 1 || q.Options[4] != 5 {
		t.Fatalf("unexpected options %v", q.Options)
	}
	s, ok := store.Get("u1")
	if !ok {
		t.Fatal("session not stored")
	}
	if s.CurrentOrdinal != 1 || len(s.Answers) != 0 || s.Completed {
		t.Fatalf("unexpected fresh session: %+v", s)
	}
	if s.StartedAt.IsZero() {
		t.Fatal("StartedAt not set")
	}
}

func TestStartMidSurveyReRendersCurrentQuestion(t *testing.T) {
	e, _ := newTestEngine(t, 3, &fakeSink{})
	ctx := context.Background()
	if _, err := e.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.Submit(ctx, "u1", 1, 4); err != nil {
		t.Fatalf("submit: %v", err)
	}
	d, err := e.Start(ctx, "u1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if q := mustQuestion(t, d); q.Ordinal != 2 {
		t.Fatalf("expected re-render of question 2, got %d", q.Ordinal)
	}
}

func TestSubmitMaintainsProgressInvariant(t *testing.T) {
	e, store := newTestEngine(t, 5, &fakeSink{})
	ctx := context.Background()
	if _, err := e.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 1; i <= 4; i++ {
		if _, err := e.Submit(ctx, "u1", i, 3); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		s, _ := store.Get("u1")
		if len(s.Answers) != s.CurrentOrdinal-1 {
			t.Fatalf("after submit %d: |answers|=%d, currentOrdinal=%d", i, len(s.Answers), s.CurrentOrdinal)
		}
		if s.Completed {
			t.Fatalf("completed too early at question %d", i)
		}
	}
}

func TestSubmitRejectsStaleOrdinalWithoutMutation(t *testing.T) {
	e, store := newTestEngine(t, 3, &fakeSink{})
	ctx := context.Background()
	if _, err := e.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.Submit(ctx, "u1", 1, 2); err != nil {
		t.Fatalf("submit: %v", err)
	}

	for _, stale := range []int{1, 3, 0, 99} {
		_, err := e.Submit(ctx, "u1", stale, 4)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("ordinal %d: expected ErrInvalidTransition, got %v", stale, err)
		}
	}
	s, _ := store.Get("u1")
	if s.CurrentOrdinal != 2 || len(s.Answers) != 1 || s.Answers[1] != 2 {
		t.Fatalf("session mutated by rejected submits: %+v", s)
	}
}

func TestSubmitRejectsOutOfDomainValue(t *testing.T) {
	e, store := newTestEngine(t, 3, &fakeSink{})
	ctx := context.Background()
	if _, err := e.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, v := range []int{0, -1, 6, 100} {
		_, err := e.Submit(ctx, "u1", 1, v)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("value %d: expected ErrInvalidTransition, got %v", v, err)
		}
	}
	s, _ := store.Get("u1")
	if len(s.Answers) != 0 || s.CurrentOrdinal != 1 {
		t.Fatalf("session mutated by rejected values: %+v", s)
	}
}

func TestSubmitWithoutSession(t *testing.T) {
	e, _ := newTestEngine(t, 3, &fakeSink{})
	if _, err := e.Submit(context.Background(), "ghost", 1, 3); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCompletionScenario(t *testing.T) {
	sink := &fakeSink{}
	e, store := newTestEngine(t, 3, sink)
	ctx := context.Background()

	if _, err := e.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.Submit(ctx, "u1", 1, 3); err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	if _, err := e.Submit(ctx, "u1", 2, 5); err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	d, err := e.Submit(ctx, "u1", 3, 1)
	if err != nil {
		t.Fatalf("submit 3: %v", err)
	}
	sum, ok := d.(CompletionSummary)
	if !ok {
		t.Fatalf("expected CompletionSummary, got %T", d)
	}
	if sum.Score.TotalScore != 9 || sum.Score.MaxScore != 15 {
		t.Fatalf("score = %d/%d, want 9/15", sum.Score.TotalScore, sum.Score.MaxScore)
	}
	if sum.Score.Percentage != 60.0 {
		t.Fatalf("percentage = %v, want 60.0", sum.Score.Percentage)
	}
	if sum.PersistWarning {
		t.Fatal("unexpected persist warning")
	}

	s, _ := store.Get("u1")
	if !s.Completed || s.CompletedAt.IsZero() || s.CurrentOrdinal != 0 {
		t.Fatalf("session not finalized: %+v", s)
	}
	if len(s.Answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(s.Answers))
	}

	recs := sink.stored()
	if len(recs) != 1 {
		t.Fatalf("sink invoked %d times, want 1", len(recs))
	}
	rec := recs[0]
	if rec.UserID != "u1" || rec.TotalScore != 9 || rec.MaxScore != 15 || rec.Percentage != 60.0 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.CompletedAt.Before(rec.StartedAt) {
		t.Fatal("completedAt before startedAt")
	}
}

func TestStartAfterCompletionIsSideEffectFree(t *testing.T) {
	sink := &fakeSink{}
	e, store := newTestEngine(t, 2, sink)
	ctx := context.Background()
	_, _ = e.Start(ctx, "u1")
	_, _ = e.Submit(ctx, "u1", 1, 1)
	_, _ = e.Submit(ctx, "u1", 2, 1)

	for i := 0; i < 3; i++ {
		d, err := e.Start(ctx, "u1")
		if err != nil {
			t.Fatalf("start after completion: %v", err)
		}
		if _, ok := d.(AlreadyCompleted); !ok {
			t.Fatalf("expected AlreadyCompleted, got %T", d)
		}
	}
	if len(sink.stored()) != 1 {
		t.Fatalf("sink invoked %d times, want 1", len(sink.stored()))
	}
	s, _ := store.Get("u1")
	if !s.Completed {
		t.Fatal("completion flag reset")
	}
}

func TestSubmitAfterCompletionRejected(t *testing.T) {
	e, _ := newTestEngine(t, 2, &fakeSink{})
	ctx := context.Background()
	_, _ = e.Start(ctx, "u1")
	_, _ = e.Submit(ctx, "u1", 1, 1)
	_, _ = e.Submit(ctx, "u1", 2, 1)

	if _, err := e.Submit(ctx, "u1", 2, 5); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestResetThenStartIsFresh(t *testing.T) {
	e, store := newTestEngine(t, 3, &fakeSink{})
	ctx := context.Background()
	_, _ = e.Start(ctx, "u1")
	_, _ = e.Submit(ctx, "u1", 1, 5)

	d, err := e.Reset(ctx, "u1")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok := d.(ResetConfirmation); !ok {
		t.Fatalf("expected ResetConfirmation, got %T", d)
	}
	if _, ok := store.Get("u1"); ok {
		t.Fatal("session survived reset")
	}

	d, err = e.Start(ctx, "u1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if q := mustQuestion(t, d); q.Ordinal != 1 {
		t.Fatalf("expected question 1 after reset, got %d", q.Ordinal)
	}
	s, _ := store.Get("u1")
	if len(s.Answers) != 0 || s.CurrentOrdinal != 1 {
		t.Fatalf("session not fresh after reset: %+v", s)
	}
}

func TestResetAbsentSessionIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, 3, &fakeSink{})
	if _, err := e.Reset(context.Background(), "nobody"); err != nil {
		t.Fatalf("reset absent: %v", err)
	}
}

func TestCancelTransitions(t *testing.T) {
	e, store := newTestEngine(t, 2, &fakeSink{})
	ctx := context.Background()

	if _, err := e.Cancel(ctx, "u1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("cancel absent: expected ErrSessionNotFound, got %v", err)
	}

	_, _ = e.Start(ctx, "u1")
	_, _ = e.Submit(ctx, "u1", 1, 4)
	d, err := e.Cancel(ctx, "u1")
	if err != nil {
		t.Fatalf("cancel in progress: %v", err)
	}
	if _, ok := d.(Cancelled); !ok {
		t.Fatalf("expected Cancelled, got %T", d)
	}
	if _, ok := store.Get("u1"); ok {
		t.Fatal("session survived cancel")
	}

	_, _ = e.Start(ctx, "u2")
	_, _ = e.Submit(ctx, "u2", 1, 1)
	_, _ = e.Submit(ctx, "u2", 2, 1)
	if _, err := e.Cancel(ctx, "u2"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel completed: expected ErrInvalidTransition, got %v", err)
	}
	if s, ok := store.Get("u2"); !ok || !s.Completed {
		t.Fatal("completed session affected by cancel")
	}
}

func TestCancelNeverPersists(t *testing.T) {
	sink := &fakeSink{}
	e, _ := newTestEngine(t, 3, sink)
	ctx := context.Background()
	_, _ = e.Start(ctx, "u1")
	_, _ = e.Submit(ctx, "u1", 1, 5)
	_, _ = e.Submit(ctx, "u1", 2, 5)
	if _, err := e.Cancel(ctx, "u1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(sink.stored()) != 0 {
		t.Fatal("cancel persisted a partial result")
	}
}

func TestResultsLifecycle(t *testing.T) {
	e, _ := newTestEngine(t, 2, &fakeSink{})
	ctx := context.Background()

	if _, err := e.Results(ctx, "u1"); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("results for absent: expected ErrNotCompleted, got %v", err)
	}

	_, _ = e.Start(ctx, "u1")
	_, _ = e.Submit(ctx, "u1", 1, 2)
	if _, err := e.Results(ctx, "u1"); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("results mid-survey: expected ErrNotCompleted, got %v", err)
	}

	_, _ = e.Submit(ctx, "u1", 2, 4)
	d, err := e.Results(ctx, "u1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	res, ok := d.(Results)
	if !ok {
		t.Fatalf("expected Results, got %T", d)
	}
	if res.Score.TotalScore != 6 || res.Score.MaxScore != 10 {
		t.Fatalf("score = %d/%d, want 6/10", res.Score.TotalScore, res.Score.MaxScore)
	}
	if res.Answers[1] != 2 || res.Answers[2] != 4 {
		t.Fatalf("unexpected answers %v", res.Answers)
	}
}

func TestConcurrentDuplicateSubmitExactlyOneWins(t *testing.T) {
	for i := 0; i < 50; i++ {
		e, store := newTestEngine(t, 3, &fakeSink{})
		ctx := context.Background()
		if _, err := e.Start(ctx, "u1"); err != nil {
			t.Fatalf("start: %v", err)
		}

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				_, errs[g] = e.Submit(ctx, "u1", 1, g+1)
			}(g)
		}
		wg.Wait()

		accepted, rejected := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrInvalidTransition):
				rejected++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if accepted != 1 || rejected != 1 {
			t.Fatalf("accepted=%d rejected=%d, want exactly one of each", accepted, rejected)
		}
		s, _ := store.Get("u1")
		if s.CurrentOrdinal != 2 || len(s.Answers) != 1 {
			t.Fatalf("session after race: %+v", s)
		}
	}
}

func TestIndependentUsersProgressSeparately(t *testing.T) {
	e, _ := newTestEngine(t, 3, &fakeSink{})
	ctx := context.Background()

	var wg sync.WaitGroup
	users := []string{"a", "b", "c", "d", "e"}
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if _, err := e.Start(ctx, u); err != nil {
				t.Errorf("start %s: %v", u, err)
				return
			}
			for q := 1; q <= 3; q++ {
				if _, err := e.Submit(ctx, u, q, 5); err != nil {
					t.Errorf("submit %s q%d: %v", u, q, err)
					return
				}
			}
		}(u)
	}
	wg.Wait()

	for _, u := range users {
		d, err := e.Results(ctx, u)
		if err != nil {
			t.Fatalf("results %s: %v", u, err)
		}
		if res := d.(Results); res.Score.TotalScore != 15 {
			t.Fatalf("user %s total = %d, want 15", u, res.Score.TotalScore)
		}
	}
}

func TestPersistFailureDoesNotRollBackCompletion(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk on fire")}
	retry := &fakeRetry{}
	e, store := newTestEngine(t, 2, sink, WithRetryQueue(retry))
	ctx := context.Background()

	_, _ = e.Start(ctx, "u1")
	_, _ = e.Submit(ctx, "u1", 1, 3)
	d, err := e.Submit(ctx, "u1", 2, 3)
	if err != nil {
		t.Fatalf("final submit: %v", err)
	}
	sum := d.(CompletionSummary)
	if !sum.PersistWarning {
		t.Fatal("expected persist warning")
	}
	if sum.Score.TotalScore != 6 {
		t.Fatalf("score = %d, want 6", sum.Score.TotalScore)
	}

	s, _ := store.Get("u1")
	if !s.Completed {
		t.Fatal("completion rolled back by persist failure")
	}

	if _, err := e.Results(ctx, "u1"); err != nil {
		t.Fatalf("results after persist failure: %v", err)
	}

	retry.mu.Lock()
	defer retry.mu.Unlock()
	if len(retry.records) != 1 || retry.records[0].UserID != "u1" {
		t.Fatalf("expected one retry record for u1, got %+v", retry.records)
	}
}
