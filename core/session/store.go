package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

// Persisted keys
const (
	TokenKey    = "token"
	LanguageKey = "language"
)

// sessionKeys are removed by Clear. The language preference outlives sessions.
var sessionKeys = []string{TokenKey}

// Store is the Credential Store: the persisted token is authoritative,
// the in-memory copy only saves a storage round-trip per outbound request.
type Store struct {
	kv     core.KeyValueStore
	feed   *Feed
	logger core.Logger

	mu     sync.RWMutex
	cached Credential
}

func NewStore(kv core.KeyValueStore, logger core.Logger) *Store {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Store{
		kv:     kv,
		feed:   NewFeed(),
		logger: logger,
	}
}

// Feed is the change feed notified on every Write and Clear.
func (s *Store) Feed() *Feed {
	return s.feed
}

// Read returns the persisted credential, if present and well-formed, and syncs the in-memory copy with it.
// Storage failures and malformed or expired tokens are reported as absent.
func (s *Store) Read(ctx context.Context) (Credential, bool) {
	var cred Credential
	token, err := s.kv.Get(ctx, TokenKey)
	switch {
	case err == nil:
		if cred, err = Decode(token); err != nil {
			s.logger.Warn("session.Store.Read: discarding persisted token", err)
			cred = Credential{}
		}
	case errors.Is(err, core.ErrKeyNotFound): // absent
	default:
		s.logger.Error("session.Store.Read: reading persisted token", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(cred)
	return cred, !cred.IsZero()
}

// Write atomically replaces the persisted credential.
func (s *Store) Write(ctx context.Context, cred Credential) error {
	if cred.IsZero() {
		return errors.Wrap(ErrMalformedCredential, "writing empty credential")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, TokenKey, cred.Token); err != nil {
		return errors.Wrap(err, "persisting token")
	}
	s.replace(cred)
	return nil
}

// Clear removes the persisted credential and every related session key. It is idempotent.
// The in-memory copy is dropped even if the storage fails.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.kv.Delete(ctx, sessionKeys...)
	s.replace(Credential{})
	return errors.Wrap(err, "clearing session keys")
}

// Token returns the in-memory token without touching the storage.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached.Token
}

// Current returns the in-memory credential.
func (s *Store) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached, !s.cached.IsZero()
}

// Language returns the persisted language preference, defaulting to english.
func (s *Store) Language(ctx context.Context) string {
	lang, err := s.kv.Get(ctx, LanguageKey)
	if err != nil {
		if !errors.Is(err, core.ErrKeyNotFound) {
			s.logger.Error("session.Store.Language: reading language", err)
		}
		return user.DefaultLanguage
	}
	if !user.IsSupportedLanguage(lang) {
		return user.DefaultLanguage
	}
	return lang
}

func (s *Store) SetLanguage(ctx context.Context, lang string) error {
	if !user.IsSupportedLanguage(lang) {
		return errors.Errorf("unsupported language %q", lang)
	}
	return errors.Wrap(s.kv.Set(ctx, LanguageKey, lang), "persisting language")
}

// replace must be called with the write lock held. Subscribers are notified only when the token changes.
func (s *Store) replace(cred Credential) {
	if s.cached.Token == cred.Token {
		return
	}
	s.cached = cred
	if cred.IsZero() {
		s.feed.Publish(nil)
		return
	}
	usr := cred.User()
	s.feed.Publish(&usr)
}
