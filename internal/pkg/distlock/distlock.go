package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking.
// A lock is bound to one owner value; Release only succeeds for that owner,
// so a lease taken by one request can be released by a later one that
// presents the same owner.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if the owner still holds it.
	Release(ctx context.Context) error
}

// Factory builds a lock for the given owner.
type Factory func(owner string) DistLock

const (
	BackendDynamo   = "dynamodb"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Backends carries the clients a Factory may need. Only the one matching
// the selected backend has to be set.
type Backends struct {
	Redis         *redis.Client
	DB            *sql.DB
	Dynamo        DynamoAPI
	SettingsTable string
}

// NewFactory returns a Factory for the named backend guarding key.
func NewFactory(backend, key string, ttl time.Duration, b Backends) (Factory, error) {
	switch backend {
	case BackendRedis:
		if b.Redis == nil {
			return nil, fmt.Errorf("distlock: redis backend selected without a client")
		}
		return b.guarded(key, func(owner string) DistLock { return NewRedisLock(b.Redis, key, owner, ttl) }), nil
	case BackendPostgres:
		if b.DB == nil {
			return nil, fmt.Errorf("distlock: postgres backend selected without a database")
		}
		return b.guarded(key, func(owner string) DistLock { return NewPGLeaseLock(b.DB, key, owner, ttl) }), nil
	case BackendDynamo, "":
		if b.Dynamo == nil || b.SettingsTable == "" {
			return nil, fmt.Errorf("distlock: dynamodb backend needs a client and settings table")
		}
		return func(owner string) DistLock { return NewDynamoLock(b.Dynamo, b.SettingsTable, key, owner, ttl) }, nil
	default:
		return nil, fmt.Errorf("distlock: unknown backend %q", backend)
	}
}

// guarded wraps f so its locks also respect the Settings flag named key
// when a DynamoDB Settings table is available.
func (b Backends) guarded(key string, f Factory) Factory {
	if b.Dynamo == nil || b.SettingsTable == "" {
		return f
	}
	return func(owner string) DistLock {
		return &flagGuard{DistLock: f(owner), client: b.Dynamo, table: b.SettingsTable, name: key}
	}
}
