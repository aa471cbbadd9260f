package echoportal

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/apiclient"
)

// Pages
const (
	pageLogin        = "login"
	pageDashboard    = "dashboard"
	pageResource     = "resource"
	pageUnauthorized = "unauthorized"
	pageNotFound     = "not_found"
	pageError        = "error"
)

var (
	//go:embed templates/*.html
	templatesFS embed.FS

	pages = []string{pageLogin, pageDashboard, pageResource, pageUnauthorized, pageNotFound, pageError}
)

type (
	// pageData is the data of every page.
	pageData struct {
		Title     string
		AppName   string
		User      *user.CurrentUser
		Language  string
		Languages []string
		Menu      []menuItem
		Error     string
		Fields    map[string]string
		// Refresh sends the browser to RefreshTo after Refresh seconds.
		Refresh   int
		RefreshTo string
		Data      interface{}
	}

	menuItem struct {
		Title  string
		Path   string
		Active bool
	}

	loginData struct {
		Email     string
		ReturnURL string
	}

	dashboardData struct {
		Stats      apiclient.Record
		Unread     int
		StatsError string
	}

	resourceData struct {
		Resource   apiclient.Resource
		Columns    []string
		Records    []apiclient.Record
		Pagination *apiclient.Pagination
		Search     string
	}

	renderer struct {
		templates map[string]*template.Template
	}
)

var _ echo.Renderer = (*renderer)(nil)

func newRenderer() *renderer {
	funcs := template.FuncMap{
		"title": title,
		"cell":  cell,
	}
	r := &renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		r.templates[name] = template.Must(
			template.New("layout.html").Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html"),
		)
	}
	return r
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout.html", data)
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func cell(rec apiclient.Record, col string) string {
	switch v := rec[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}, []interface{}:
		return "…"
	default:
		return fmt.Sprint(v)
	}
}

// columns returns the sorted scalar fields of records. Internal fields are skipped.
func columns(records []apiclient.Record) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for k, v := range rec {
			if k == "_id" || k == "__v" || k == "password" {
				continue
			}
			switch v.(type) {
			case map[string]interface{}, []interface{}:
				continue
			}
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
