package inmemkv

import (
	"context"
	"sync"

	"github.com/trezcool/masomo-portal/core"
)

type store struct {
	t     map[string]string
	mutex sync.RWMutex
}

var _ core.KeyValueBackend = (*store)(nil)

func Open() core.KeyValueBackend {
	return &store{t: make(map[string]string)}
}

func (s *store) Get(_ context.Context, key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if val, ok := s.t[key]; ok {
		return val, nil
	}
	return "", core.ErrKeyNotFound
}

func (s *store) Set(_ context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.t[key] = value
	return nil
}

func (s *store) Delete(_ context.Context, keys ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, key := range keys {
		delete(s.t, key)
	}
	return nil
}

func (s *store) Close() error {
	return nil
}
