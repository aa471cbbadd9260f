package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/apiclient"
)

// section is a resource page of the dashboard.
type section struct {
	title    string
	resource apiclient.Resource
	// req is checked by the role guard; empty means any authenticated user.
	req guard.Requirement
}

var sections = []section{
	{"Students", apiclient.Students, guard.Requirement{Roles: []user.Role{user.RoleAdmin, user.RoleTeacher}}},
	{"Teachers", apiclient.Teachers, guard.Requirement{Roles: []user.Role{user.RoleAdmin}}},
	{"Courses", apiclient.Courses, guard.Requirement{}},
	{"Assignments", apiclient.Assignments, guard.Requirement{}},
	{"Subjects", apiclient.Subjects, guard.Requirement{Roles: []user.Role{user.RoleAdmin, user.RoleTeacher}}},
	{"Groups", apiclient.Groups, guard.Requirement{Roles: []user.Role{user.RoleAdmin}}},
	{"Attendance", apiclient.Attendance, guard.Requirement{Roles: []user.Role{user.RoleAdmin, user.RoleTeacher}}},
}

func (s *server) registerRoutes() {
	routes := s.guards.Routes

	s.app.GET("/", redirectTo(routes.Default))

	// guests only
	s.app.GET("/auth", redirectTo(routes.Login), s.requireGuest)
	s.app.GET(routes.Login, s.loginPage, s.requireGuest)
	s.app.POST(routes.Login, s.login, s.requireGuest)

	s.app.POST("/auth/logout", s.logout)
	s.app.POST("/settings/language", s.setLanguage)
	s.app.GET("/session", s.sessionInfo)

	// authenticated users only
	dash := s.app.Group(routes.Default, s.requireAuth(guard.Requirement{}))
	dash.GET("", s.dashboard)
	for _, sec := range sections {
		path := "/" + string(sec.resource)
		if sec.req.IsEmpty() {
			dash.GET(path, s.resourcePage(sec))
		} else {
			dash.GET(path, s.resourcePage(sec), s.requireRole(sec.req))
		}
		// direct module access
		s.app.GET(path, redirectTo(routes.Default+path))
	}

	s.app.GET(routes.Unauthorized, s.unauthorizedPage)
}

func redirectTo(route string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.Redirect(http.StatusFound, route)
	}
}

// menu lists the dashboard pages usr may open.
func menu(usr user.CurrentUser, defaultRoute, currentPath string) []menuItem {
	items := []menuItem{{Title: "Dashboard", Path: defaultRoute}}
	for _, sec := range sections {
		if !sec.req.IsEmpty() && !sec.req.Permits(usr) {
			continue
		}
		items = append(items, menuItem{Title: sec.title, Path: defaultRoute + "/" + string(sec.resource)})
	}
	for i := range items {
		items[i].Active = items[i].Path == currentPath
	}
	return items
}
