// Package survey implements the per-user questionnaire state machine:
// question sequencing, exactly-once answer capture, completion detection and
// persistence triggering.
package survey

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/civiq-care/backend/internal/catalog"
	"github.com/civiq-care/backend/internal/scoring"
)

// ResultSink durably records a completed session. It is invoked once per
// completion; implementations must be idempotent per user (last write wins).
type ResultSink interface {
	Store(ctx context.Context, rec Record) error
}

// RetryQueue re-schedules a failed durable write. Optional.
type RetryQueue interface {
	EnqueueResultPersist(ctx context.Context, rec Record) error
}

// DefaultPersistTimeout bounds the synchronous sink call on completion.
const DefaultPersistTimeout = 5 * time.Second

// Engine is the survey state machine. All transitions for one user are
// serialized by a per-user lock; users never block each other. The sink call
// happens after the lock is released, on a snapshot taken under the lock.
type Engine struct {
	catalog        *catalog.Catalog
	store          Store
	sink           ResultSink
	retry          RetryQueue
	logger         *zap.Logger
	locks          *keyedMutex
	persistTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryQueue enables re-queueing of failed result persists.
func WithRetryQueue(q RetryQueue) Option {
	return func(e *Engine) { e.retry = q }
}

// WithPersistTimeout overrides the sink call timeout.
func WithPersistTimeout(d time.Duration) Option {
	return func(e *Engine) { e.persistTimeout = d }
}

// NewEngine creates the survey state machine.
func NewEngine(cat *catalog.Catalog, store Store, sink ResultSink, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		catalog:        cat,
		store:          store,
		sink:           sink,
		logger:         logger,
		locks:          newKeyedMutex(),
		persistTimeout: DefaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins the survey for userID, or re-renders the current question if
// one is already in progress. For an already completed survey it changes
// nothing and reports so.
func (e *Engine) Start(ctx context.Context, userID string) (Directive, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	s, ok := e.store.Get(userID)
	if !ok {
		s = NewSession(userID)
		e.store.Upsert(s)
		e.logger.Info("survey started", zap.String("user_id", userID))
		return e.question(s.CurrentOrdinal)
	}
	if s.Completed {
		return AlreadyCompleted{}, nil
	}
	// Resuming mid-survey re-renders the current question without penalty.
	return e.question(s.CurrentOrdinal)
}

// Submit records the answer for ordinal and advances the session. A stale or
// out-of-order ordinal, or a value outside the answer domain, is rejected
// with ErrInvalidTransition and no mutation. Answering the final question
// completes the session, scores it and triggers the persistence sink.
func (e *Engine) Submit(ctx context.Context, userID string, ordinal, value int) (Directive, error) {
	unlock := e.locks.lock(userID)

	s, ok := e.store.Get(userID)
	if !ok {
		unlock()
		return nil, ErrSessionNotFound
	}
	if s.Completed {
		unlock()
		return nil, fmt.Errorf("%w: survey already completed", ErrInvalidTransition)
	}
	if ordinal != s.CurrentOrdinal {
		unlock()
		return nil, fmt.Errorf("%w: expected question %d, got %d", ErrInvalidTransition, s.CurrentOrdinal, ordinal)
	}
	if value < 1 || value > e.catalog.MaxValue() {
		unlock()
		return nil, fmt.Errorf("%w: answer %d outside 1..%d", ErrInvalidTransition, value, e.catalog.MaxValue())
	}

	s.Answers[ordinal] = value

	if ordinal < e.catalog.Count() {
		s.CurrentOrdinal++
		next := s.CurrentOrdinal
		unlock()
		return e.question(next)
	}

	// Terminal transition: finalize in memory under the lock, persist after
	// releasing it so sink latency never holds up this user's session.
	s.Completed = true
	s.CompletedAt = time.Now()
	s.CurrentOrdinal = 0
	score := scoring.Score(s.Answers, e.catalog.Count(), e.catalog.MaxValue())
	rec := Record{
		UserID:      s.UserID,
		Answers:     s.CopyAnswers(),
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		TotalScore:  score.TotalScore,
		MaxScore:    score.MaxScore,
		Percentage:  score.Percentage,
	}
	unlock()

	warn := e.persist(ctx, rec)
	e.logger.Info("survey completed",
		zap.String("user_id", userID),
		zap.Int("total_score", score.TotalScore),
		zap.Float64("percentage", score.Percentage),
	)
	return CompletionSummary{Score: score, PersistWarning: warn}, nil
}

// Reset removes the user's session regardless of state. Resetting an absent
// session succeeds as a no-op.
func (e *Engine) Reset(ctx context.Context, userID string) (Directive, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	e.store.Delete(userID)
	e.logger.Info("survey reset", zap.String("user_id", userID))
	return ResetConfirmation{}, nil
}

// Cancel discards an in-progress session without scoring or persisting. It
// is invalid for absent or completed surveys.
func (e *Engine) Cancel(ctx context.Context, userID string) (Directive, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	s, ok := e.store.Get(userID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Completed {
		return nil, fmt.Errorf("%w: completed survey cannot be cancelled", ErrInvalidTransition)
	}
	e.store.Delete(userID)
	e.logger.Info("survey cancelled", zap.String("user_id", userID))
	return Cancelled{}, nil
}

// Results returns the answers and score of a completed survey, or
// ErrNotCompleted when the user has not finished (or not started).
func (e *Engine) Results(ctx context.Context, userID string) (Directive, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	s, ok := e.store.Get(userID)
	if !ok || !s.Completed {
		return nil, ErrNotCompleted
	}
	score := scoring.Score(s.Answers, e.catalog.Count(), e.catalog.MaxValue())
	return Results{Answers: s.CopyAnswers(), Score: score}, nil
}

func (e *Engine) question(ordinal int) (Directive, error) {
	item, err := e.catalog.Get(ordinal)
	if err != nil {
		return nil, err
	}
	return Question{
		Ordinal: item.Ordinal,
		Total:   e.catalog.Count(),
		Text:    item.Text,
		Options: e.catalog.Options(),
	}, nil
}

// persist attempts the durable write. Failure never rolls back the completed
// session: it is logged, handed to the retry queue when configured, and
// reported back as a warning.
func (e *Engine) persist(ctx context.Context, rec Record) bool {
	pctx, cancel := context.WithTimeout(ctx, e.persistTimeout)
	defer cancel()
	err := e.sink.Store(pctx, rec)
	if err == nil {
		return false
	}
	e.logger.Warn("result persist failed", zap.String("user_id", rec.UserID), zap.Error(err))
	if e.retry != nil {
		if err := e.retry.EnqueueResultPersist(context.Background(), rec); err != nil {
			e.logger.Error("result persist retry enqueue failed", zap.String("user_id", rec.UserID), zap.Error(err))
		}
	}
	return true
}
