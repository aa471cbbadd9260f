package echoportal

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/services/apiclient"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// API errors are shown with their user message; an expired session sends the browser back to login.
func newAppHTTPErrorHandler(logger core.Logger, conf *core.Config) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code      int
			message   string
			fields    map[string]string
			page      = pageError
			refreshTo string
		)

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = fmt.Sprint(origErr.Message)
			if code == http.StatusNotFound {
				page = pageNotFound
			}
		case *apiclient.Error:
			code = apiErrorStatus(origErr)
			message = origErr.UserMessage
			if origErr.IsAuthExpired() {
				refreshTo = conf.Session.LoginRoute
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = "invalid input"
			fields = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fields[vErr.Field()] = vErr.Error()
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
			fields = origErr.FieldMap()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if sess, sErr := getSession(ctx); sErr == nil {
				if usr, ok := sess.Manager.CurrentUser(); ok {
					args = append(args, usr)
				}
			}
			logger.Error(msg, args...)

			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		// Send response
		if ctx.Response().Committed {
			return
		}
		switch {
		case ctx.Request().Method == http.MethodHead: // Issue #608
			err = ctx.NoContent(code)
		case wantsJSON(ctx):
			body := echo.Map{"error": message}
			if len(fields) > 0 {
				body["fields"] = fields
			}
			err = ctx.JSON(code, body)
		default:
			data := newPage(ctx, conf, http.StatusText(code))
			data.Error = message
			data.Fields = fields
			if refreshTo != "" {
				data.RefreshTo = refreshTo
				data.Refresh = int(math.Ceil(conf.Session.RedirectDelay.Seconds()))
			}
			err = ctx.Render(code, page, data)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

// apiErrorStatus is the portal response status of a failed API call.
func apiErrorStatus(apiErr *apiclient.Error) int {
	switch apiErr.Kind {
	case apiclient.AuthExpired:
		return http.StatusUnauthorized
	case apiclient.HTTPClientError:
		if apiErr.Status >= http.StatusBadRequest { // success:false envelopes have no status
			return apiErr.Status
		}
		return http.StatusBadRequest
	case apiclient.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func wantsJSON(ctx echo.Context) bool {
	req := ctx.Request()
	return strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) ||
		req.Header.Get(echo.HeaderXRequestedWith) == "XMLHttpRequest"
}
