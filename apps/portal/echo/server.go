package echoportal

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/services/apiclient"
)

type (
	Options struct {
		Conf       *core.Config
		Logger     core.Logger
		KV         core.KeyValueStore
		Validate   *validator.Validate
		Translator ut.Translator
		Metrics    *apiclient.Metrics
		// APITransport performs the API round trips; http.DefaultTransport if nil.
		APITransport   http.RoundTripper
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		guards   *guard.Guards
		sessions *sessionRegistry
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	conf := opts.Conf
	s := &server{
		opts: opts,
		app:  echo.New(),
		guards: guard.New(guard.Routes{
			Login:        conf.Session.LoginRoute,
			Default:      conf.Session.DefaultRoute,
			Unauthorized: conf.Session.UnauthorizedRoute,
		}),
		sessions: newSessionRegistry(opts),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))

	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	} else {
		s.app.Logger.SetLevel(log.INFO)
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, conf)
	s.app.Renderer = newRenderer()
	s.app.Debug = conf.Debug

	s.app.Use(s.sessions.middleware, pendingNavigation)

	s.registerRoutes()
}

func (s *server) Start() {
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) Shutdown(ctx context.Context) error {
	s.sessions.stop()
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	s.sessions.stop()
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
