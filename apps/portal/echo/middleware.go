package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/session"
)

// pendingNavigation sends a page load to the route recorded by the session navigator, if any.
// A pending login redirect is stale once the session is authenticated again.
func pendingNavigation(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		if req.Method != http.MethodGet || wantsJSON(ctx) {
			return next(ctx)
		}
		sess, err := getSession(ctx)
		if err != nil {
			return errors.Wrap(err, "getting client session")
		}
		route := sess.nav.take()
		if route == "" || route == req.URL.Path || sess.Manager.State() == session.Authenticated {
			return next(ctx)
		}
		return ctx.Redirect(http.StatusFound, route)
	}
}

// decide executes a guard decision as a redirect.
func decide(ctx echo.Context, d guard.Decision, next echo.HandlerFunc) error {
	if d.Allow {
		return next(ctx)
	}
	return ctx.Redirect(http.StatusFound, d.RedirectTo)
}

// requireAuth only lets authenticated users through. A non-empty requirement is also checked.
func (s *server) requireAuth(req guard.Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getSession(ctx)
			if err != nil {
				return errors.Wrap(err, "getting client session")
			}
			return decide(ctx, s.guards.AuthOnly(sess.Manager, req, ctx.Request().URL.RequestURI()), next)
		}
	}
}

func (s *server) requireGuest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess, err := getSession(ctx)
		if err != nil {
			return errors.Wrap(err, "getting client session")
		}
		return decide(ctx, s.guards.GuestOnly(sess.Manager), next)
	}
}

func (s *server) requireRole(req guard.Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getSession(ctx)
			if err != nil {
				return errors.Wrap(err, "getting client session")
			}
			return decide(ctx, s.guards.RoleOnly(sess.Manager, req), next)
		}
	}
}
