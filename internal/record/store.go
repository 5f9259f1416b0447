package record

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/stepd/internal/broker"
	"git.home.luguber.info/inful/stepd/internal/config"
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// Store is a durable home for one step record.
//
// Load returns (nil, nil) when no record exists and an error wrapping
// ErrCorruptRecord when one exists but cannot be decoded. Save replaces the
// whole record atomically. I/O failures are classified persist errors.
type Store interface {
	Load(ctx context.Context) (*steps.State, error)
	Save(ctx context.Context, st steps.State) error
	Backend() string
	Close() error
}

// Open builds the store selected by cfg. nc is required only for the NATS
// backend.
func Open(ctx context.Context, cfg config.StorageConfig, nc *broker.Client) (Store, error) {
	switch cfg.Backend {
	case config.StorageFile:
		return NewFileStore(cfg.Path), nil
	case config.StorageSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.StorageNATS:
		if nc == nil {
			return nil, ferrors.ConfigError("NATS storage backend requires a broker connection").Build()
		}
		kv, err := nc.KeyValue(ctx, cfg.NATSBucket, "stepd step records")
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryPersist, "open NATS KV bucket").
				WithContext("bucket", cfg.NATSBucket).
				Build()
		}
		return NewNATSStore(kv, cfg.NATSKey), nil
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return nil, ferrors.ConfigError(fmt.Sprintf("unknown storage backend %q", cfg.Backend)).Build()
	}
}

func persistErr(err error, backend, op string) error {
	return ferrors.WrapError(err, ferrors.CategoryPersist, op).
		WithContext("backend", backend).
		Warning().
		WithRetry(ferrors.RetryNextWrite).
		Build()
}
