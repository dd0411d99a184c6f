package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the shared gorm handle plus the timeout/retry policy every
// component runs its statements under. It holds no domain state.
type Store struct {
	DB       *gorm.DB
	timeout  time.Duration
	attempts uint
	log      *zap.Logger
}

func NewStore(db *gorm.DB, timeout time.Duration, attempts uint, log *zap.Logger) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if attempts == 0 {
		attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{DB: db, timeout: timeout, attempts: attempts, log: log}
}

// read runs queries against a context-bound handle with the store timeout.
func (s *Store) read(ctx context.Context, fn func(db *gorm.DB) error) error {
	return s.withTimeout(ctx, fn)
}

// write runs one self-contained statement (an upsert, say) outside any
// transaction, with the store timeout.
func (s *Store) write(ctx context.Context, fn func(db *gorm.DB) error) error {
	return s.withTimeout(ctx, fn)
}

func (s *Store) withTimeout(ctx context.Context, fn func(db *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return classifyStoreError(fn(s.DB.WithContext(ctx)))
}

// inTx runs fn in one transaction, rolled back on any error. Transient
// failures restart the whole transaction with exponential backoff; after the
// last attempt they surface as ErrStoreUnavailable.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		err := classifyStoreError(s.DB.WithContext(attemptCtx).Transaction(fn))
		if err == nil {
			return struct{}{}, nil
		}
		if !errors.Is(err, ErrStoreUnavailable) {
			return struct{}{}, backoff.Permanent(err)
		}
		s.log.Warn("[STORE] transient failure, rolled back",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.attempts))
	return classifyStoreError(err)
}
