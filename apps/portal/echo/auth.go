package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/apiclient"
)

type sessionInfo struct {
	State    string            `json:"state"`
	User     *user.CurrentUser `json:"user"`
	Language string            `json:"language"`
}

func (s *server) loginPage(ctx echo.Context) error {
	data := s.page(ctx, "Login")
	data.Data = loginData{
		ReturnURL: guard.SafeReturnURL(ctx.QueryParam(guard.ReturnURLParam), ""),
	}
	return ctx.Render(http.StatusOK, pageLogin, data)
}

// login authenticates the browser session, then sends it to the page it was coming from.
// Input and API errors re-render the form.
func (s *server) login(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting client session")
	}

	form := loginData{
		Email:     ctx.FormValue("email"),
		ReturnURL: guard.SafeReturnURL(ctx.FormValue(guard.ReturnURLParam), ""),
	}
	_, err = sess.Manager.Login(ctx.Request().Context(), form.Email, ctx.FormValue("password"))
	if err != nil {
		data := s.page(ctx, "Login")
		data.Data = form

		switch origErr := errors.Cause(err).(type) {
		case *core.ValidationError:
			data.Error = origErr.Error()
			data.Fields = origErr.FieldMap()
			return ctx.Render(http.StatusBadRequest, pageLogin, data)
		case *apiclient.Error:
			data.Error = origErr.UserMessage
			return ctx.Render(apiErrorStatus(origErr), pageLogin, data)
		default:
			return errors.Wrap(err, "logging in")
		}
	}

	return ctx.Redirect(http.StatusFound, guard.SafeReturnURL(form.ReturnURL, s.guards.Routes.Default))
}

func (s *server) logout(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting client session")
	}
	sess.Manager.Logout(ctx.Request().Context())
	return ctx.Redirect(http.StatusFound, s.guards.Routes.Login)
}

// sessionInfo reports the state of the browser session.
func (s *server) sessionInfo(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting client session")
	}
	info := sessionInfo{
		State:    session.Anonymous.String(),
		Language: sess.Store.Language(ctx.Request().Context()),
	}
	if usr, ok := sess.Manager.CurrentUser(); ok {
		info.State = session.Authenticated.String()
		info.User = &usr
	}
	return ctx.JSON(http.StatusOK, info)
}
