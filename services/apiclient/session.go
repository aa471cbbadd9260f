package apiclient

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
)

type (
	SessionOptions struct {
		Conf *core.Config
		// KV is the client storage of this session only.
		KV core.KeyValueStore
		// Base performs the round trips of the session Transport.
		Base       http.RoundTripper
		Navigator  session.Navigator
		Validate   *validator.Validate
		Translator ut.Translator
		Logger     core.Logger
		Metrics    *Metrics
	}

	// Session is the request pipeline of one client session: its credential store,
	// session manager and an API client authenticated by them.
	Session struct {
		Store   *session.Store
		Manager *session.Manager
		Client  *Client
		Expiry  *session.ExpiryHandler
	}
)

// NewSession wires a client session. The session is restored from opts.KV without any network call.
func NewSession(ctx context.Context, opts SessionOptions) *Session {
	conf := opts.Conf
	s := &Session{
		Store: session.NewStore(opts.KV, opts.Logger),
		Expiry: &session.ExpiryHandler{
			Navigator:  opts.Navigator,
			Delay:      conf.Session.RedirectDelay,
			LoginRoute: conf.Session.LoginRoute,
		},
	}

	transport := NewTransport(TransportOptions{
		Base:        opts.Base,
		BaseURL:     conf.API.BaseURL,
		AppVersion:  conf.Build,
		Environment: conf.EnvironmentTag(),
		Timeout:     conf.API.Timeout,
		// storage first, then the manager's copy
		Tokens: session.TokenChain{
			s.Store,
			session.TokenSourceFunc(func() string { return s.Manager.CachedToken() }),
		},
		OnSessionExpired: s.Expiry.Handle,
		Logger:           opts.Logger,
		Metrics:          opts.Metrics,
		Debug:            conf.Debug,
	})
	s.Client = New(conf.API.BaseURL, transport)

	s.Manager = session.NewManager(ctx, session.ManagerOptions{
		Store:         s.Store,
		Authenticator: s.Client,
		Validate:      opts.Validate,
		Translator:    opts.Translator,
		Logger:        opts.Logger,
	})
	s.Expiry.Session = s.Manager
	return s
}
