package session

import (
	"context"
	"sync"
	"time"
)

type (
	// Navigator is the router side of the session: it receives redirect instructions.
	Navigator interface {
		Navigate(route string)
	}

	NavigatorFunc func(route string)

	// Expirer ends a session, locally.
	Expirer interface {
		Expire(ctx context.Context)
	}

	// ExpiryHandler reacts to the API rejecting the session: it clears the session right away,
	// then navigates to the login route once Delay has elapsed.
	// Expiries reported while a redirect is pending share that redirect.
	ExpiryHandler struct {
		Session    Expirer
		Navigator  Navigator
		Delay      time.Duration
		LoginRoute string

		mu      sync.Mutex
		pending bool
	}
)

var afterFunc = time.AfterFunc // mockable

func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

func (h *ExpiryHandler) Handle(ctx context.Context) {
	h.Session.Expire(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending || h.Navigator == nil {
		return
	}
	h.pending = true
	afterFunc(h.Delay, func() {
		h.mu.Lock()
		h.pending = false
		h.mu.Unlock()
		h.Navigator.Navigate(h.LoginRoute)
	})
}
