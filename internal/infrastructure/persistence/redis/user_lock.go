package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/lingua-hub/internal/domain/economy"
	"github.com/alem-hub/lingua-hub/internal/domain/shared"
	"github.com/alem-hub/lingua-hub/pkg/circuitbreaker"
	"github.com/alem-hub/lingua-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER LOCKER
// ══════════════════════════════════════════════════════════════════════════════

// UserLockerConfig configures UserLocker.
type UserLockerConfig struct {
	// TTL bounds how long a crashed holder can block the user.
	TTL time.Duration

	// PollInterval is the wait between acquisition attempts.
	PollInterval time.Duration

	// WaitTimeout caps the total wait when the context has no deadline.
	WaitTimeout time.Duration

	// After BreakerThreshold consecutive Redis errors, Lock fails fast with
	// ErrLockNotAcquired for BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultUserLockerConfig returns sensible defaults.
func DefaultUserLockerConfig() UserLockerConfig {
	return UserLockerConfig{
		TTL:          TTLDistributedLock,
		PollInterval: 25 * time.Millisecond,
		WaitTimeout:  5 * time.Second,

		BreakerThreshold: 5,
		BreakerCooldown:  10 * time.Second,
	}
}

// UserLocker implements economy.Locker with SET NX locks. Each acquisition
// writes a fresh token; release deletes the key only if the token still
// matches.
type UserLocker struct {
	cache   *Cache
	config  UserLockerConfig
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewUserLocker creates a UserLocker.
func NewUserLocker(cache *Cache, config UserLockerConfig, log *logger.Logger) *UserLocker {
	def := DefaultUserLockerConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = def.WaitTimeout
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = def.BreakerThreshold
	}
	if config.BreakerCooldown <= 0 {
		config.BreakerCooldown = def.BreakerCooldown
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("user_locker"))

	breaker := circuitbreaker.New("redis-lock",
		circuitbreaker.WithFailureThreshold(config.BreakerThreshold),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithCooldown(config.BreakerCooldown),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("lock backend circuit changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	)

	return &UserLocker{cache: cache, config: config, breaker: breaker, log: log}
}

// Lock blocks until the user's lock is acquired, the context ends, or the
// wait timeout passes (ErrLockNotAcquired).
func (l *UserLocker) Lock(ctx context.Context, userID string) (economy.UnlockFunc, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.WaitTimeout)
		defer cancel()
	}

	key := l.cache.LockKey("economy:" + userID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		var ok bool
		err := l.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			ok, err = l.cache.SetNX(ctx, key, token, l.config.TTL)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, l.waitError(ctx)
			}
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				return nil, fmt.Errorf("acquire lock %s: %w: %w", key, shared.ErrLockNotAcquired, err)
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, l.waitError(ctx)
		case <-ticker.C:
		}
	}
}

// waitError keeps caller cancellation distinct from a lock that stayed busy.
func (l *UserLocker) waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return shared.ErrLockNotAcquired
}

func (l *UserLocker) unlockFunc(key, token string) economy.UnlockFunc {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, token) })
	}
}

func (l *UserLocker) release(key, token string) {
	// The caller's context may already be done; release on our own.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	released, err := l.cache.CompareAndDelete(ctx, key, token)
	if err != nil {
		l.log.Warn("lock release failed", logger.String("key", key), logger.Err(err))
		return
	}
	if !released {
		l.log.Warn("lock expired before release", logger.String("key", key))
	}
}

var _ economy.Locker = (*UserLocker)(nil)
