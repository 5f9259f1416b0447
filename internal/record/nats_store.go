package record

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/stepd/internal/steps"
)

// KeyValue is the subset of jetstream.KeyValue the NATS store uses.
type KeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// NATSStore keeps the record as one JSON value in a JetStream KV bucket.
// A put replaces the value atomically.
type NATSStore struct {
	kv  KeyValue
	key string
}

func NewNATSStore(kv KeyValue, key string) *NATSStore {
	return &NATSStore{kv: kv, key: key}
}

func (s *NATSStore) Backend() string { return "nats" }

func (s *NATSStore) Load(ctx context.Context) (*steps.State, error) {
	entry, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, persistErr(err, s.Backend(), "get record")
	}
	return UnmarshalJSON(entry.Value())
}

func (s *NATSStore) Save(ctx context.Context, st steps.State) error {
	data, err := MarshalJSON(st)
	if err != nil {
		return persistErr(err, s.Backend(), "encode record")
	}
	if _, err := s.kv.Put(ctx, s.key, data); err != nil {
		return persistErr(err, s.Backend(), "put record")
	}
	return nil
}

// Close is a no-op; the broker connection is owned by the caller.
func (s *NATSStore) Close() error { return nil }
