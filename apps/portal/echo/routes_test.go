package echoportal

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/apiclient"
	"github.com/trezcool/masomo-portal/storage/kv/inmem"
)

func titles(items []menuItem) []string {
	res := make([]string, len(items))
	for i, item := range items {
		res[i] = item.Title
	}
	return res
}

func Test_menu(t *testing.T) {
	tests := []struct {
		role user.Role
		want []string
	}{
		{user.RoleAdmin, []string{"Dashboard", "Students", "Teachers", "Courses", "Assignments", "Subjects", "Groups", "Attendance"}},
		{user.RoleTeacher, []string{"Dashboard", "Students", "Courses", "Assignments", "Subjects", "Attendance"}},
		{user.RoleAssistant, []string{"Dashboard", "Courses", "Assignments"}},
		{user.RoleStudent, []string{"Dashboard", "Courses", "Assignments"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			items := menu(user.CurrentUser{Role: tt.role}, "/dashboard", "/dashboard/courses")
			assert.Equal(t, tt.want, titles(items))
			for _, item := range items {
				assert.Equal(t, item.Title == "Courses", item.Active, item.Title)
			}
		})
	}
}

func Test_columns(t *testing.T) {
	records := []apiclient.Record{
		{"_id": "1", "name": "Alice", "email": "alice@masomo.cd", "__v": 0, "group": map[string]interface{}{"name": "A"}},
		{"_id": "2", "name": "Bob", "age": 12, "password": "x", "tags": []interface{}{"a"}},
	}
	assert.Equal(t, []string{"age", "email", "name"}, columns(records))
	assert.Empty(t, columns(nil))
}

func Test_cell(t *testing.T) {
	rec := apiclient.Record{"name": "Alice", "age": float64(12), "group": map[string]interface{}{}, "active": true}
	assert.Equal(t, "Alice", cell(rec, "name"))
	assert.Equal(t, "12", cell(rec, "age"))
	assert.Equal(t, "…", cell(rec, "group"))
	assert.Equal(t, "true", cell(rec, "active"))
	assert.Equal(t, "", cell(rec, "missing"))
}

func Test_listParams(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  apiclient.ListParams
	}{
		{"defaults", url.Values{}, apiclient.ListParams{Page: 1, Limit: defaultPageSize}},
		{
			"all",
			url.Values{"page": {"3"}, "limit": {"50"}, "search": {"ali"}, "sort": {"-name"}},
			apiclient.ListParams{Page: 3, Limit: 50, Search: "ali", Sort: "-name"},
		},
		{"invalid numbers", url.Values{"page": {"-1"}, "limit": {"x"}}, apiclient.ListParams{Page: 1, Limit: defaultPageSize}},
		{"limit too big", url.Values{"limit": {"1000"}}, apiclient.ListParams{Page: 1, Limit: defaultPageSize}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, listParams(tt.query))
		})
	}
}

func Test_apiErrorStatus(t *testing.T) {
	tests := []struct {
		err  *apiclient.Error
		want int
	}{
		{&apiclient.Error{Kind: apiclient.AuthExpired, Status: 401}, http.StatusUnauthorized},
		{&apiclient.Error{Kind: apiclient.HTTPClientError, Status: 404}, http.StatusNotFound},
		{&apiclient.Error{Kind: apiclient.HTTPClientError}, http.StatusBadRequest},
		{&apiclient.Error{Kind: apiclient.HTTPServerError, Status: 503}, http.StatusBadGateway},
		{&apiclient.Error{Kind: apiclient.Timeout, Status: 408}, http.StatusGatewayTimeout},
		{&apiclient.Error{Kind: apiclient.NetworkError}, http.StatusBadGateway},
		{&apiclient.Error{Kind: apiclient.Unknown}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, apiErrorStatus(tt.err))
		})
	}
}

func Test_navigator(t *testing.T) {
	nav := new(navigator)
	assert.Empty(t, nav.take())

	nav.Navigate("/auth/login")
	nav.Navigate("/auth/login")
	assert.Equal(t, "/auth/login", nav.take())
	assert.Empty(t, nav.take(), "a navigation is taken once")
}

func Test_sessionRegistry(t *testing.T) {
	now := time.Now()
	NowFunc = func() time.Time { return now }
	defer func() { NowFunc = time.Now }()

	conf := &core.Config{
		API:     core.APIConfig{BaseURL: "http://api.test", Timeout: time.Second},
		Session: core.SessionConfig{LoginRoute: "/auth/login", IdleTimeout: 10 * time.Minute},
	}
	reg := newSessionRegistry(&Options{Conf: conf, KV: inmemkv.Open(), Logger: core.NopLogger{}})
	ctx := context.Background()

	a := reg.get(ctx, "a")
	assert.Same(t, a, reg.get(ctx, "a"))
	assert.NotSame(t, a, reg.get(ctx, "b"))
	assert.Equal(t, 2, reg.len())

	now = now.Add(5 * time.Minute)
	reg.get(ctx, "a")

	now = now.Add(6 * time.Minute) // b idle for 11 minutes
	reg.get(ctx, "a")
	assert.Equal(t, 1, reg.len())

	reg.stop()
	assert.Equal(t, 0, reg.len())
}
