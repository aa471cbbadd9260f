package core

import (
	"context"

	"github.com/pkg/errors"
)

// ErrKeyNotFound is returned by KeyValueStore.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

type (
	// KeyValueStore is the client-side persistent storage: flat string keys, plain string values.
	KeyValueStore interface {
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key, value string) error
		// Delete removes the given keys. Missing keys are not an error.
		Delete(ctx context.Context, keys ...string) error
	}

	// KeyValueBackend is a KeyValueStore holding resources.
	KeyValueBackend interface {
		KeyValueStore
		Close() error
	}
)

// prefixedStore scopes every key of a shared store under a prefix.
type prefixedStore struct {
	kv     KeyValueStore
	prefix string
}

var _ KeyValueStore = (*prefixedStore)(nil)

// WithPrefix returns a view of kv where every key is stored as prefix+key.
func WithPrefix(kv KeyValueStore, prefix string) KeyValueStore {
	return &prefixedStore{kv: kv, prefix: prefix}
}

func (s *prefixedStore) Get(ctx context.Context, key string) (string, error) {
	return s.kv.Get(ctx, s.prefix+key)
}

func (s *prefixedStore) Set(ctx context.Context, key, value string) error {
	return s.kv.Set(ctx, s.prefix+key, value)
}

func (s *prefixedStore) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	return s.kv.Delete(ctx, full...)
}
