package session

import (
	"context"
	"sort"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

var errInvalidLogin = errors.New("invalid login input")

type State int

// States
const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

type (
	// Authenticator exchanges login credentials for a bearer token.
	Authenticator interface {
		Login(ctx context.Context, req user.LoginRequest) (token string, err error)
	}

	ManagerOptions struct {
		Store         *Store
		Authenticator Authenticator
		Validate      *validator.Validate
		Translator    ut.Translator
		Logger        core.Logger
	}

	// Manager is the Auth Session Manager. It is the only writer of its Store,
	// along with the session expiry path (see ExpiryHandler).
	Manager struct {
		store      *Store
		auth       Authenticator
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger

		mu    sync.RWMutex
		state State
		cred  Credential
	}
)

// NewManager restores the session from the store: a well-formed persisted credential
// authenticates the manager without any network call.
func NewManager(ctx context.Context, opts ManagerOptions) *Manager {
	m := &Manager{
		store:      opts.Store,
		auth:       opts.Authenticator,
		validate:   opts.Validate,
		translator: opts.Translator,
		logger:     opts.Logger,
	}
	if m.logger == nil {
		m.logger = core.NopLogger{}
	}
	if cred, ok := m.store.Read(ctx); ok {
		m.set(Authenticated, cred)
	}
	return m
}

// Login authenticates against the API. On failure the manager stays anonymous
// and the error from the call is returned as is.
func (m *Manager) Login(ctx context.Context, email, password string) (user.CurrentUser, error) {
	req := user.LoginRequest{Email: email, Password: password}
	if err := m.validateLogin(&req); err != nil {
		return user.CurrentUser{}, err
	}

	token, err := m.auth.Login(ctx, req)
	if err != nil {
		return user.CurrentUser{}, err
	}
	cred, err := Decode(token)
	if err != nil {
		return user.CurrentUser{}, errors.Wrap(err, "decoding login token")
	}
	// subscribers are notified by Write; State must already match when they look
	m.mu.Lock()
	err = m.store.Write(ctx, cred)
	if err == nil {
		m.state, m.cred = Authenticated, cred
	}
	m.mu.Unlock()
	if err != nil {
		return user.CurrentUser{}, errors.Wrap(err, "storing credential")
	}

	usr := cred.User()
	m.logger.Info("user logged in", usr)
	return usr, nil
}

// Logout clears the session locally. It never calls the API and never fails.
func (m *Manager) Logout(ctx context.Context) {
	m.end(ctx, "session.Manager.Logout")
}

// Expire ends a session the API no longer accepts.
func (m *Manager) Expire(ctx context.Context) {
	m.end(ctx, "session.Manager.Expire")
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) CurrentUser() (user.CurrentUser, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Authenticated {
		return user.CurrentUser{}, false
	}
	return m.cred.User(), true
}

// CachedToken is the token the manager holds in memory.
func (m *Manager) CachedToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred.Token
}

// Subscribe subscribes to the current user stream.
func (m *Manager) Subscribe() (<-chan *user.CurrentUser, func()) {
	return m.store.Feed().Subscribe()
}

func (m *Manager) end(ctx context.Context, op string) {
	m.mu.Lock()
	err := m.store.Clear(ctx)
	m.state, m.cred = Anonymous, Credential{}
	m.mu.Unlock()
	if err != nil {
		m.logger.Error(op+": clearing store", err)
	}
}

func (m *Manager) set(state State, cred Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.cred = cred
}

func (m *Manager) validateLogin(req *user.LoginRequest) error {
	err := req.Validate(m.validate)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "validating login input")
	}
	fldMap := core.TranslateErrors(verrs, m.translator)
	flds := make([]core.FieldError, 0, len(fldMap))
	for fld, msg := range fldMap {
		flds = append(flds, core.FieldError{Field: fld, Error: msg})
	}
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	return core.NewValidationError(errInvalidLogin, flds...)
}
