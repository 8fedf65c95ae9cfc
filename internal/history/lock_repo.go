package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	shipiterr "github.com/familyevents/shipit/errors"
)

// DefaultLockTTL is how long a lock is honoured after it was taken or
// last refreshed before another owner may reclaim it. The orchestrator
// refreshes on every state change, so it bounds a single step, not a run.
const DefaultLockTTL = time.Hour

// LockRepo implements [pipeline.Locker] with one row per locked target.
type LockRepo struct {
	DB *sql.DB
	// TTL after which a held lock is considered stale. Zero means
	// DefaultLockTTL.
	TTL time.Duration
	Now func() time.Time
}

func (l *LockRepo) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *LockRepo) ttl() time.Duration {
	if l.TTL > 0 {
		return l.TTL
	}
	return DefaultLockTTL
}

func (l *LockRepo) Lock(ctx context.Context, key, owner string) error {
	now := l.now()

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`DELETE FROM target_locks WHERE target = ? AND acquired_at < ?`,
		key, formatTime(now.Add(-l.ttl())))
	if err != nil {
		return fmt.Errorf("reclaim stale lock: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logr.FromContextOrDiscard(ctx).Info("reclaimed stale target lock", "target", key)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO target_locks (target, owner, acquired_at) VALUES (?, ?, ?)`,
		key, owner, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s held by %s", shipiterr.ErrTargetBusy, key, l.holder(ctx, tx, key))
		}
		return fmt.Errorf("insert lock: %w", err)
	}
	return tx.Commit()
}

func (l *LockRepo) holder(ctx context.Context, tx *sql.Tx, key string) string {
	var owner string
	err := tx.QueryRowContext(ctx, `SELECT owner FROM target_locks WHERE target = ?`, key).Scan(&owner)
	if err != nil {
		return "unknown run"
	}
	return owner
}

func (l *LockRepo) Refresh(ctx context.Context, key, owner string) error {
	res, err := l.DB.ExecContext(ctx,
		`UPDATE target_locks SET acquired_at = ? WHERE target = ? AND owner = ?`,
		formatTime(l.now()), key, owner)
	if err != nil {
		return fmt.Errorf("refresh lock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("lock " + key + " is not held by " + owner)
	}
	return nil
}

func (l *LockRepo) Unlock(ctx context.Context, key, owner string) error {
	res, err := l.DB.ExecContext(ctx,
		`DELETE FROM target_locks WHERE target = ? AND owner = ?`, key, owner)
	if err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("lock " + key + " is not held by " + owner)
	}
	return nil
}
