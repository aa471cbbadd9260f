// Package guard decides whether a navigation may proceed, from the current user of a session.
// Denials are redirects, never errors.
package guard

import (
	"net/url"
	"strings"

	"github.com/trezcool/masomo-portal/core/user"
)

const ReturnURLParam = "returnUrl"

type (
	// UserStream is a replay-one current user stream.
	UserStream interface {
		Subscribe() (<-chan *user.CurrentUser, func())
	}

	// Requirement is the route authorization requirement: the roles allowed on a route.
	// No roles means any authenticated user.
	Requirement struct {
		Roles []user.Role
	}

	Routes struct {
		Login        string
		Default      string
		Unauthorized string
	}

	Decision struct {
		Allow      bool
		RedirectTo string
	}

	Guards struct {
		Routes Routes
	}
)

var DefaultRoutes = Routes{
	Login:        "/auth/login",
	Default:      "/dashboard",
	Unauthorized: "/unauthorized",
}

func Allow() Decision {
	return Decision{Allow: true}
}

func RedirectTo(route string) Decision {
	return Decision{RedirectTo: route}
}

// Roles builds a requirement from route metadata role names.
func Roles(names ...string) Requirement {
	return Requirement{Roles: user.ParseRoles(names...)}
}

func (r Requirement) IsEmpty() bool {
	return len(r.Roles) == 0
}

func (r Requirement) Permits(usr user.CurrentUser) bool {
	return usr.HasAnyRole(r.Roles...)
}

func New(routes Routes) *Guards {
	return &Guards{Routes: routes}
}

// TakeFirst samples the latest value of the stream, then unsubscribes.
func TakeFirst(stream UserStream) *user.CurrentUser {
	ch, cancel := stream.Subscribe()
	defer cancel()
	return <-ch
}

// AuthOnly lets any authenticated user in, unless req excludes their role, in which case they are sent home.
// Anonymous users are sent to login, with the requested URL to resume from.
func (g *Guards) AuthOnly(stream UserStream, req Requirement, requestedURL string) Decision {
	usr := TakeFirst(stream)
	if usr == nil {
		return RedirectTo(LoginURL(g.Routes.Login, requestedURL))
	}
	if !req.IsEmpty() && !req.Permits(*usr) {
		return RedirectTo(g.Routes.Default)
	}
	return Allow()
}

// GuestOnly keeps authenticated users out of the login screens.
func (g *Guards) GuestOnly(stream UserStream) Decision {
	if usr := TakeFirst(stream); usr != nil {
		return RedirectTo(g.Routes.Default)
	}
	return Allow()
}

// RoleOnly sends users whose role is not in req to the unauthorized page. A route without roles
// lets any authenticated user in. Anonymous users are sent to login without a return URL.
func (g *Guards) RoleOnly(stream UserStream, req Requirement) Decision {
	usr := TakeFirst(stream)
	if usr == nil {
		return RedirectTo(g.Routes.Login)
	}
	if !req.IsEmpty() && !req.Permits(*usr) {
		return RedirectTo(g.Routes.Unauthorized)
	}
	return Allow()
}

// LoginURL appends the return URL to the login route. Slashes are kept readable.
func LoginURL(loginRoute, returnURL string) string {
	if returnURL == "" {
		return loginRoute
	}
	escaped := strings.ReplaceAll(url.QueryEscape(returnURL), "%2F", "/")
	sep := "?"
	if strings.Contains(loginRoute, "?") {
		sep = "&"
	}
	return loginRoute + sep + ReturnURLParam + "=" + escaped
}

// SafeReturnURL only accepts local paths, falling back to fallback.
func SafeReturnURL(returnURL, fallback string) string {
	if returnURL == "" || !strings.HasPrefix(returnURL, "/") || strings.HasPrefix(returnURL, "//") || strings.HasPrefix(returnURL, "/\\") {
		return fallback
	}
	return returnURL
}
