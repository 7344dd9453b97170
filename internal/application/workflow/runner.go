// Package workflow runs the load-normalize-mutate-save cycle shared by every
// economy command and query.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/lingua-hub/internal/domain/economy"
	"github.com/alem-hub/lingua-hub/internal/domain/shared"
	"github.com/alem-hub/lingua-hub/pkg/logger"
	"github.com/alem-hub/lingua-hub/pkg/retry"
	"github.com/alem-hub/lingua-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATORS
// ══════════════════════════════════════════════════════════════════════════════

// Feature names evaluated per user.
const (
	FeatureStreakProtection = "economy.streak_protection"
	FeatureWagerSettlement  = "economy.wager_settlement"
	FeatureSuperTrial       = "economy.super_trial"
	FeatureDoubleOrNothing  = "economy.double_or_nothing"
)

// FeatureGate decides whether a feature is on for a user.
type FeatureGate interface {
	IsEnabledFor(feature, userID string) bool
}

// AllEnabled is a FeatureGate with every feature on.
type AllEnabled struct{}

// IsEnabledFor implements FeatureGate.
func (AllEnabled) IsEnabledFor(string, string) bool { return true }

// Observer receives workflow-level signals (conflicts, latencies).
type Observer interface {
	ObserveConflict(operation string)
	ObserveOperation(operation string, err error, latency time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveConflict(string)                        {}
func (nopObserver) ObserveOperation(string, error, time.Duration) {}

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// State is the working copy handed to a mutation.
type State struct {
	// Record is normalized and has hearts regenerated as of Now.
	Record economy.Record

	// Now is the single clock reading used for the whole operation.
	Now time.Time

	// Dirty marks the record for saving. Normalization and regeneration
	// set it; mutations set it when they change anything.
	Dirty bool
}

// Mutation changes the state. A returned error aborts the operation and
// nothing is written.
type Mutation func(st *State) error

// ══════════════════════════════════════════════════════════════════════════════
// RUNNER
// ══════════════════════════════════════════════════════════════════════════════

// Config configures the Runner.
type Config struct {
	Economy          economy.Config
	ConflictAttempts int
}

// Runner serializes and retries economy operations for a single user.
type Runner struct {
	repo      economy.Repository
	locker    economy.Locker
	clock     timeutil.Clock
	publisher shared.EventPublisher
	gate      FeatureGate
	observer  Observer
	log       *logger.Logger

	cfg     economy.Config
	retrier func(op string) *retry.Retrier
}

// Option customizes a Runner.
type Option func(*Runner)

// WithFeatureGate sets the feature gate (default: all features on).
func WithFeatureGate(g FeatureGate) Option {
	return func(r *Runner) {
		if g != nil {
			r.gate = g
		}
	}
}

// WithObserver sets the observer for conflicts and latencies.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(
	repo economy.Repository,
	locker economy.Locker,
	clock timeutil.Clock,
	publisher shared.EventPublisher,
	cfg Config,
	opts ...Option,
) *Runner {
	if cfg.ConflictAttempts <= 0 {
		cfg.ConflictAttempts = 5
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}

	r := &Runner{
		repo:      repo,
		locker:    locker,
		clock:     clock,
		publisher: publisher,
		gate:      AllEnabled{},
		observer:  nopObserver{},
		log:       logger.Nop(),
		cfg:       cfg.Economy.WithDefaults(),
	}
	for _, opt := range opts {
		opt(r)
	}

	attempts := cfg.ConflictAttempts
	r.retrier = func(op string) *retry.Retrier {
		return retry.ConflictRetrier(isConflict, attempts,
			retry.WithOnRetry(func(attempt int, err error, _ time.Duration) {
				r.observer.ObserveConflict(op)
				r.log.Debug("version conflict, retrying",
					logger.Operation(op), logger.Int("attempt", attempt), logger.Err(err))
			}),
		)
	}

	return r
}

// EconomyConfig returns the economy parameters the runner normalizes with.
func (r *Runner) EconomyConfig() economy.Config { return r.cfg }

// Enabled reports whether a feature is on for the user.
func (r *Runner) Enabled(feature, userID string) bool {
	return r.gate.IsEnabledFor(feature, userID)
}

// Now returns the current time from the runner's clock.
func (r *Runner) Now() time.Time { return r.clock.Now() }

// Run executes mutate under the user's lock. The record is loaded, normalized
// and regenerated; mutate runs on the working copy; the record is saved only
// if it is dirty. A version conflict on save restarts the cycle.
func (r *Runner) Run(ctx context.Context, op, userID string, mutate Mutation) (*State, error) {
	start := time.Now()
	st, err := r.run(ctx, op, userID, mutate)
	r.observer.ObserveOperation(op, err, time.Since(start))
	return st, err
}

func (r *Runner) run(ctx context.Context, op, userID string, mutate Mutation) (*State, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	unlock, err := r.locker.Lock(ctx, userID)
	if err != nil {
		return nil, lockError(op, err)
	}
	defer unlock()

	var result *State
	err = r.retrier(op).Do(ctx, func(ctx context.Context) error {
		st, err := r.load(ctx, op, userID)
		if err != nil {
			return err
		}

		if mutate != nil {
			if err := mutate(st); err != nil {
				return err
			}
		}

		if st.Dirty {
			st.Record.UpdatedAt = st.Now
			if err := r.repo.Save(ctx, &st.Record); err != nil {
				if isConflict(err) || shared.IsNotFound(err) {
					return err
				}
				return shared.Internal("economy", op, err)
			}
		}

		result = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Create provisions a default record for a new user under the user's lock.
func (r *Runner) Create(ctx context.Context, op, userID string) (*State, error) {
	start := time.Now()
	st, err := r.create(ctx, op, userID)
	r.observer.ObserveOperation(op, err, time.Since(start))
	return st, err
}

func (r *Runner) create(ctx context.Context, op, userID string) (*State, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	unlock, err := r.locker.Lock(ctx, userID)
	if err != nil {
		return nil, lockError(op, err)
	}
	defer unlock()

	now := r.clock.Now()
	rec := economy.NewRecord(userID, now, r.cfg)
	if err := r.repo.Create(ctx, &rec); err != nil {
		if shared.IsAlreadyExists(err) {
			return nil, err
		}
		return nil, shared.Internal("economy", op, err)
	}

	return &State{Record: rec, Now: now}, nil
}

func (r *Runner) load(ctx context.Context, op, userID string) (*State, error) {
	raw, err := r.repo.Get(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, err
		}
		return nil, shared.Internal("economy", op, err)
	}

	now := r.clock.Now()
	rec, changed := economy.Normalize(raw, now, r.cfg)
	if economy.RegenerateHearts(&rec, now, r.cfg.RegenInterval) {
		changed = true
	}

	return &State{Record: rec, Now: now, Dirty: changed}, nil
}

// Snapshot builds the client view of the state.
func (r *Runner) Snapshot(st *State) economy.Snapshot {
	return economy.NewSnapshot(st.Record, st.Now, r.cfg.RegenInterval)
}

// Publish sends events after a committed operation. Failures are logged:
// the record is already saved and must not be reported as failed.
func (r *Runner) Publish(ctx context.Context, events ...shared.Event) {
	for _, ev := range events {
		if err := r.publisher.Publish(ev); err != nil {
			logger.FromContext(ctx).Warn("event publish failed",
				logger.EventType(string(ev.EventType())),
				logger.UserID(ev.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// ValidateUserID checks that id is a UUID.
func ValidateUserID(id string) error {
	if id == "" {
		return shared.ErrInvalidUserID
	}
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrInvalidUserID
	}
	return nil
}

func lockError(op string, err error) error {
	if errors.Is(err, shared.ErrLockNotAcquired) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return shared.Internal("economy", op, err)
}

func isConflict(err error) bool {
	return errors.Is(err, shared.ErrConcurrentModification)
}
