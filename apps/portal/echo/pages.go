package echoportal

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/apiclient"
)

const defaultPageSize = 20

var errUnsupportedLanguage = errors.New("unsupported language")

func (s *server) page(ctx echo.Context, title string) pageData {
	return newPage(ctx, s.opts.Conf, title)
}

// newPage returns the data shared by every page of the browser session of ctx.
func newPage(ctx echo.Context, conf *core.Config, title string) pageData {
	data := pageData{
		Title:     title,
		AppName:   conf.AppName,
		Language:  user.DefaultLanguage,
		Languages: user.Languages,
	}
	sess, err := getSession(ctx)
	if err != nil {
		return data
	}
	data.Language = sess.Store.Language(ctx.Request().Context())
	if usr, ok := sess.Manager.CurrentUser(); ok {
		data.User = &usr
		data.Menu = menu(usr, conf.Session.DefaultRoute, ctx.Request().URL.Path)
	}
	return data
}

func (s *server) dashboard(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting client session")
	}
	reqCtx := ctx.Request().Context()

	var dash dashboardData
	if dash.Stats, err = sess.Client.DashboardStats(reqCtx); err != nil {
		apiErr, ok := apiclient.AsError(err)
		if !ok || apiErr.IsAuthExpired() {
			return err
		}
		dash.StatsError = apiErr.UserMessage
	}
	if dash.Unread, err = sess.Client.UnreadNotifications(reqCtx); err != nil {
		if apiErr, ok := apiclient.AsError(err); !ok || apiErr.IsAuthExpired() {
			return err
		}
	}

	data := s.page(ctx, "Dashboard")
	data.Data = dash
	return ctx.Render(http.StatusOK, pageDashboard, data)
}

func (s *server) resourcePage(sec section) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess, err := getSession(ctx)
		if err != nil {
			return errors.Wrap(err, "getting client session")
		}

		params := listParams(ctx.QueryParams())
		records, pagination, err := sess.Client.List(ctx.Request().Context(), sec.resource, params)
		if err != nil {
			return err
		}

		data := s.page(ctx, sec.title)
		data.Data = resourceData{
			Resource:   sec.resource,
			Columns:    columns(records),
			Records:    records,
			Pagination: pagination,
			Search:     params.Search,
		}
		return ctx.Render(http.StatusOK, pageResource, data)
	}
}

func listParams(q url.Values) apiclient.ListParams {
	params := apiclient.ListParams{
		Page:   1,
		Limit:  defaultPageSize,
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		params.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= 100 {
		params.Limit = limit
	}
	return params
}

func (s *server) unauthorizedPage(ctx echo.Context) error {
	return ctx.Render(http.StatusForbidden, pageUnauthorized, s.page(ctx, "Unauthorized"))
}

// setLanguage persists the language preference of the browser session, then goes back.
func (s *server) setLanguage(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting client session")
	}

	pref := user.LanguagePreference{Language: ctx.FormValue("language")}
	if err = pref.Validate(s.opts.Validate); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fldMap := core.TranslateErrors(verrs, s.opts.Translator)
			flds := make([]core.FieldError, 0, len(fldMap))
			for fld, msg := range fldMap {
				flds = append(flds, core.FieldError{Field: fld, Error: msg})
			}
			return core.NewValidationError(errUnsupportedLanguage, flds...)
		}
		return errors.Wrap(err, "validating language")
	}
	if err = sess.Store.SetLanguage(ctx.Request().Context(), pref.Language); err != nil {
		return errors.Wrap(err, "setting language")
	}

	back := s.guards.Routes.Default
	if ref, err := url.Parse(ctx.Request().Referer()); err == nil && ref.Path != "" {
		back = guard.SafeReturnURL(ref.RequestURI(), back)
	}
	return ctx.Redirect(http.StatusFound, back)
}
