package echoportal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/services/apiclient"
)

const (
	contextSessionKey = "clientSession"
	sessionKeyPrefix  = "session:"
	sweepInterval     = time.Minute
)

var (
	NowFunc = time.Now // mockable

	errNoSession = errors.New("no client session in context")
)

type (
	// clientSession is the request pipeline of one browser session.
	clientSession struct {
		*apiclient.Session
		id       string
		nav      *navigator
		lastSeen time.Time
	}

	// navigator records the route the session must be sent to on its next page load.
	navigator struct {
		mu      sync.Mutex
		pending string
	}

	sessionRegistry struct {
		opts      *Options
		mu        sync.Mutex
		sessions  map[string]*clientSession
		lastSweep time.Time
	}
)

func (n *navigator) Navigate(route string) {
	n.mu.Lock()
	n.pending = route
	n.mu.Unlock()
}

func (n *navigator) take() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	route := n.pending
	n.pending = ""
	return route
}

func newSessionRegistry(opts *Options) *sessionRegistry {
	return &sessionRegistry{
		opts:      opts,
		sessions:  make(map[string]*clientSession),
		lastSweep: NowFunc(),
	}
}

// middleware attaches the browser session to the request, issuing a session cookie if needed.
func (r *sessionRegistry) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		conf := r.opts.Conf.Session

		var id string
		if cookie, err := ctx.Cookie(conf.CookieName); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			ctx.SetCookie(&http.Cookie{
				Name:     conf.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(conf.CookieMaxAge / time.Second),
				HttpOnly: true,
				Secure:   r.opts.Conf.IsProduction(),
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx.Set(contextSessionKey, r.get(ctx.Request().Context(), id))
		return next(ctx)
	}
}

// get returns the live session for id, restoring it from storage if it is not in memory.
func (r *sessionRegistry) get(ctx context.Context, id string) *clientSession {
	now := NowFunc()

	r.mu.Lock()
	r.sweep(now)
	if sess, ok := r.sessions[id]; ok {
		sess.lastSeen = now
		r.mu.Unlock()
		return sess
	}
	r.mu.Unlock()

	// restore outside of the lock: it reads the storage
	nav := new(navigator)
	sess := &clientSession{
		Session: apiclient.NewSession(ctx, apiclient.SessionOptions{
			Conf:       r.opts.Conf,
			KV:         core.WithPrefix(r.opts.KV, sessionKeyPrefix+id+":"),
			Base:       r.opts.APITransport,
			Navigator:  nav,
			Validate:   r.opts.Validate,
			Translator: r.opts.Translator,
			Logger:     r.opts.Logger,
			Metrics:    r.opts.Metrics,
		}),
		id:       id,
		nav:      nav,
		lastSeen: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok { // concurrent first requests
		existing.lastSeen = now
		return existing
	}
	r.sessions[id] = sess
	return sess
}

// sweep evicts idle sessions from memory. Caller must hold r.mu.
func (r *sessionRegistry) sweep(now time.Time) {
	idle := r.opts.Conf.Session.IdleTimeout
	if idle <= 0 || now.Sub(r.lastSweep) < sweepInterval {
		return
	}
	r.lastSweep = now
	for id, sess := range r.sessions {
		if now.Sub(sess.lastSeen) > idle {
			delete(r.sessions, id)
		}
	}
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *sessionRegistry) stop() {
	r.mu.Lock()
	r.sessions = make(map[string]*clientSession)
	r.mu.Unlock()
}

func getSession(ctx echo.Context) (*clientSession, error) {
	sess, ok := ctx.Get(contextSessionKey).(*clientSession)
	if !ok || sess == nil {
		return nil, errNoSession
	}
	return sess, nil
}
