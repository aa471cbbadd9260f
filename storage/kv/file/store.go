// Package filekv persists client storage to a JSON file, for the command-line client.
package filekv

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

const (
	DefaultDir      = "masomo"
	DefaultFileName = "storage.json"

	// FilePermissions restricts the file to its owner: it holds bearer tokens.
	FilePermissions = 0600
	DirPermissions  = 0700
)

type store struct {
	path  string
	t     map[string]string
	mutex sync.Mutex
}

var _ core.KeyValueBackend = (*store)(nil)

// DefaultPath returns $XDG_CONFIG_HOME/masomo/storage.json, falling back to ~/.config.
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "cannot determine home directory")
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, DefaultDir, DefaultFileName), nil
}

// Open loads the file at path (DefaultPath if empty). A missing file is an empty store.
func Open(path string) (core.KeyValueBackend, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	s := &store{path: path, t: make(map[string]string)}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, errors.Wrap(err, "reading storage file")
	}
	if len(data) > 0 {
		if err = json.Unmarshal(data, &s.t); err != nil {
			return nil, errors.Wrapf(err, "decoding storage file %s", path)
		}
	}
	return s, nil
}

func (s *store) Get(_ context.Context, key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if val, ok := s.t[key]; ok {
		return val, nil
	}
	return "", core.ErrKeyNotFound
}

func (s *store) Set(_ context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prev, existed := s.t[key]
	s.t[key] = value
	if err := s.save(); err != nil {
		if existed {
			s.t[key] = prev
		} else {
			delete(s.t, key)
		}
		return err
	}
	return nil
}

func (s *store) Delete(_ context.Context, keys ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var changed bool
	for _, key := range keys {
		if _, ok := s.t[key]; ok {
			delete(s.t, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save()
}

func (s *store) Close() error {
	return nil
}

// save replaces the file atomically. Must be called with the lock held.
func (s *store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return errors.Wrap(err, "cannot create storage directory")
	}

	data, err := json.MarshalIndent(s.t, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding storage")
	}

	tmp, err := os.CreateTemp(dir, ".storage-*.json")
	if err != nil {
		return errors.Wrap(err, "creating temp storage file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing temp storage file")
	}
	if err = tmp.Chmod(FilePermissions); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod temp storage file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp storage file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path), "replacing storage file")
}
