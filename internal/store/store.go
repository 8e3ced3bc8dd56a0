// Package store provides the opaque string key-value store that progress records live in.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/example/vocastar/internal/database"
)

// ErrUnsupportedEngine is returned by NewByEngine for unknown engine names
var ErrUnsupportedEngine = errors.New("unsupported store engine")

// KV is a string store addressed by key
type KV interface {
	// Get returns the value at key; ok is false when the key does not exist
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// ListByPrefix returns every key that starts with prefix
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Engine names accepted by NewByEngine
const (
	EngineMemory   = "memory"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineRedis    = "redis"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewByEngine opens the named engine. The returned closer releases its connection.
func NewByEngine(ctx context.Context, engine, dsn string) (KV, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case EngineMemory, "":
		return NewMemoryStore(), nopCloser{}, nil
	case EngineSQLite, database.DriverSQLite:
		db, err := database.Connect(database.DriverSQLite, dsn)
		if err != nil {
			return nil, nil, err
		}
		return database.NewKVRepository(db), db, nil
	case EnginePostgres:
		db, err := database.Connect(database.DriverPostgres, dsn)
		if err != nil {
			return nil, nil, err
		}
		return database.NewKVRepository(db), db, nil
	case EngineRedis:
		rs, err := NewRedisStore(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedEngine, engine)
	}
}
