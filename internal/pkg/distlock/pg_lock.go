package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LeaseTableDDL creates the lease table used by PGLeaseLock.
const LeaseTableDDL = `CREATE TABLE IF NOT EXISTS distlock_leases (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

// PGLeaseLock implements DistLock with a row per lease name. An expired
// row is taken over by the next acquirer.
type PGLeaseLock struct {
	db    *sql.DB
	name  string
	owner string
	ttl   time.Duration
	now   func() time.Time
}

// NewPGLeaseLock creates a Postgres-backed lease.
func NewPGLeaseLock(db *sql.DB, name, owner string, ttl time.Duration) *PGLeaseLock {
	return &PGLeaseLock{db: db, name: name, owner: owner, ttl: ttl, now: time.Now}
}

// EnsureLeaseTable creates the lease table if it is missing.
func EnsureLeaseTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, LeaseTableDDL)
	return err
}

// Acquire inserts the lease or takes over an expired one.
func (l *PGLeaseLock) Acquire(ctx context.Context) (bool, error) {
	now := l.now().UTC()
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO distlock_leases (name, owner, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
			SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
			WHERE distlock_leases.expires_at < $4`,
		l.name, l.owner, now.Add(l.ttl), now)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", l.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release deletes the lease row if the owner still holds it.
func (l *PGLeaseLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM distlock_leases WHERE name = $1 AND owner = $2`, l.name, l.owner)
	return err
}
