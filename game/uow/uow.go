// Package uow runs a command for one player as a single unit of work: the
// player's lock is held, all writes share one transaction, and side effects
// queued with AfterCommit run only once the transaction has committed.
package uow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/textrpg/cache"
	"github.com/kasuganosora/textrpg/game/goalerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrLockTimeout is wrapped in the StorageFailure returned when another
// command on the same player holds the lock for too long.
var ErrLockTimeout = errors.New("player lock timeout")

const (
	lockTTL      = 30 * time.Second
	pollInterval = 10 * time.Millisecond
)

// Runner executes units of work.
type Runner struct {
	db      *gorm.DB
	cache   cache.Cache
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a Runner. timeout bounds the wait for a player lock.
func NewRunner(db *gorm.DB, c cache.Cache, timeout time.Duration, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Runner{db: db, cache: c, timeout: timeout, logger: logger}
}

type ctxKey struct{}

type unit struct {
	tx     *gorm.DB
	locked map[int64]string // player id → lock token
	after  []func(context.Context)
}

func current(ctx context.Context) *unit {
	u, _ := ctx.Value(ctxKey{}).(*unit)
	return u
}

func lockKey(playerID int64) string {
	return fmt.Sprintf("lock:player:%d", playerID)
}

// Do runs fn under playerID's lock inside one transaction. Nested calls on a
// context that is already inside a unit join it: the transaction is shared
// and only locks not yet held are taken.
func (r *Runner) Do(ctx context.Context, playerID int64, fn func(ctx context.Context) error) error {
	if u := current(ctx); u != nil {
		if _, held := u.locked[playerID]; !held {
			token, err := r.acquire(ctx, playerID)
			if err != nil {
				return err
			}
			u.locked[playerID] = token
		}
		return fn(ctx)
	}

	token, err := r.acquire(ctx, playerID)
	if err != nil {
		return err
	}
	u := &unit{locked: map[int64]string{playerID: token}}
	defer func() {
		if u != nil {
			r.releaseAll(u)
		}
	}()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u.tx = tx
		return fn(context.WithValue(ctx, ctxKey{}, u))
	})
	if err != nil {
		var ge *goalerr.Error
		if !errors.As(err, &ge) {
			err = goalerr.Storage("transaction", err)
		}
		return err
	}

	r.releaseAll(u)
	after := u.after
	u = nil
	detached := context.WithoutCancel(ctx)
	for _, f := range after {
		r.runAfter(detached, f)
	}
	return nil
}

func (r *Runner) runAfter(ctx context.Context, f func(context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("after-commit callback panicked", zap.Any("panic", rec))
		}
	}()
	f(ctx)
}

func (r *Runner) acquire(ctx context.Context, playerID int64) (string, error) {
	key := lockKey(playerID)
	token := uuid.NewString()
	deadline := time.Now().Add(r.timeout)
	for {
		ok, err := r.cache.SetNX(ctx, key, token, lockTTL)
		if err != nil {
			return "", goalerr.Storage("acquire player lock", err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			r.logger.Warn("player lock timeout", zap.Int64("player_id", playerID))
			return "", goalerr.Storage("acquire player lock", ErrLockTimeout)
		}
		select {
		case <-ctx.Done():
			return "", goalerr.Storage("acquire player lock", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (r *Runner) releaseAll(u *unit) {
	for playerID, token := range u.locked {
		if _, err := r.cache.DelIfEqual(context.Background(), lockKey(playerID), token); err != nil {
			r.logger.Warn("release player lock", zap.Int64("player_id", playerID), zap.Error(err))
		}
	}
	u.locked = nil
}

// DB returns the transaction of the unit ctx belongs to, or fallback bound
// to ctx outside a unit. Code that may run inside a unit must read and write
// through it; a single-connection SQLite pool would otherwise block.
func DB(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if u := current(ctx); u != nil && u.tx != nil {
		return u.tx
	}
	return fallback.WithContext(ctx)
}

// InUnit reports whether ctx is inside a unit of work.
func InUnit(ctx context.Context) bool {
	return current(ctx) != nil
}

// AfterCommit queues f to run after the unit commits. Queued callbacks are
// dropped on rollback. Outside a unit f runs immediately.
func AfterCommit(ctx context.Context, f func(ctx context.Context)) {
	if u := current(ctx); u != nil {
		u.after = append(u.after, f)
		return
	}
	f(ctx)
}
