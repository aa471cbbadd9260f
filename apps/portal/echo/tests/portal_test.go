package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/services/apiclient"
	"github.com/trezcool/masomo-portal/storage/kv/inmem"
)

type sessionJSON struct {
	State string `json:"state"`
	User  *struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
	Language string `json:"language"`
}

func getSessionInfo(t *testing.T, b *browser) sessionJSON {
	rec := b.get("/session", "Accept", "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	var info sessionJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	return info
}

func TestPortal_redirects(t *testing.T) {
	app, _ := setup(t)

	tests := []struct {
		name     string
		path     string
		wantLoc  string
		wantCode int
	}{
		{name: "root", path: "/", wantCode: http.StatusFound, wantLoc: "/dashboard"},
		{name: "auth", path: "/auth", wantCode: http.StatusFound, wantLoc: "/auth/login"},
		{name: "direct module access", path: "/students", wantCode: http.StatusFound, wantLoc: "/dashboard/students"},
		{name: "direct module access 2", path: "/groups", wantCode: http.StatusFound, wantLoc: "/dashboard/groups"},
		{name: "anonymous dashboard", path: "/dashboard", wantCode: http.StatusFound, wantLoc: "/auth/login?returnUrl=/dashboard"},
		{name: "anonymous module", path: "/dashboard/students", wantCode: http.StatusFound, wantLoc: "/auth/login?returnUrl=/dashboard/students"},
		{
			name:     "anonymous module keeps the return url",
			path:     "/dashboard/students?page=2",
			wantCode: http.StatusFound,
			wantLoc:  "/auth/login?returnUrl=/dashboard/students%3Fpage%3D2",
		},
		{name: "anonymous unknown dashboard page", path: "/dashboard/nope", wantCode: http.StatusFound, wantLoc: "/auth/login?returnUrl=/dashboard/nope"},
		{name: "login page", path: "/auth/login", wantCode: http.StatusOK},
		{name: "unauthorized page", path: "/unauthorized", wantCode: http.StatusForbidden},
		{name: "not found", path: "/nope", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newBrowser(t, app).get(tt.path)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLoc, location(rec))
		})
	}
}

func TestPortal_sessionCookie(t *testing.T) {
	app, _ := setup(t)
	b := newBrowser(t, app)

	b.get("/auth/login")
	require.NotNil(t, b.cookie)
	assert.True(t, b.cookie.HttpOnly)
	assert.Equal(t, "/", b.cookie.Path)
	first := b.cookie.Value

	b.get("/auth/login")
	assert.Equal(t, first, b.cookie.Value, "the cookie is issued once")

	b.cookie.Value = "not-a-session-id"
	b.get("/auth/login")
	assert.NotEqual(t, "not-a-session-id", b.cookie.Value)
}

func TestPortal_login(t *testing.T) {
	app, _ := setup(t)

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantLoc  string
		wantBody []string
	}{
		{
			name:     "missing fields",
			form:     url.Values{},
			wantCode: http.StatusBadRequest,
			wantBody: []string{"this field is required"},
		},
		{
			name:     "invalid email",
			form:     url.Values{"email": {"teacher"}, "password": {password}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "wrong password",
			form:     url.Values{"email": {"teacher@masomo.cd"}, "password": {"nope"}},
			wantCode: http.StatusUnauthorized,
			wantBody: []string{invalidLogin, `value="teacher@masomo.cd"`},
		},
		{
			name:     "success",
			form:     url.Values{"email": {"teacher@masomo.cd"}, "password": {password}},
			wantCode: http.StatusFound,
			wantLoc:  "/dashboard",
		},
		{
			name:     "success with return url",
			form:     url.Values{"email": {"teacher@masomo.cd"}, "password": {password}, "returnUrl": {"/dashboard/students"}},
			wantCode: http.StatusFound,
			wantLoc:  "/dashboard/students",
		},
		{
			name:     "foreign return url",
			form:     url.Values{"email": {"teacher@masomo.cd"}, "password": {password}, "returnUrl": {"//evil.example/x"}},
			wantCode: http.StatusFound,
			wantLoc:  "/dashboard",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBrowser(t, app)
			rec := b.post("/auth/login", tt.form)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLoc, location(rec))
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}

			wantState := "Anonymous"
			if tt.wantCode == http.StatusFound {
				wantState = "Authenticated"
			}
			assert.Equal(t, wantState, getSessionInfo(t, b).State)
		})
	}
}

func TestPortal_loginPageKeepsReturnURL(t *testing.T) {
	app, _ := setup(t)

	rec := newBrowser(t, app).get("/auth/login?returnUrl=/dashboard/courses")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="returnUrl" value="/dashboard/courses"`)

	rec = newBrowser(t, app).get("/auth/login?returnUrl=https://evil.example")
	assert.Contains(t, rec.Body.String(), `name="returnUrl" value=""`)
}

func TestPortal_roleAccess(t *testing.T) {
	app, _ := setup(t)

	allowed := http.StatusOK
	unauthorized := http.StatusFound
	pages := []string{"students", "teachers", "courses", "assignments", "subjects", "groups", "attendance"}

	tests := []struct {
		role string
		want map[string]int
	}{
		{
			role: "admin",
			want: map[string]int{
				"students": allowed, "teachers": allowed, "courses": allowed, "assignments": allowed,
				"subjects": allowed, "groups": allowed, "attendance": allowed,
			},
		},
		{
			role: "teacher",
			want: map[string]int{
				"students": allowed, "teachers": unauthorized, "courses": allowed, "assignments": allowed,
				"subjects": allowed, "groups": unauthorized, "attendance": allowed,
			},
		},
		{
			role: "student",
			want: map[string]int{
				"students": unauthorized, "teachers": unauthorized, "courses": allowed, "assignments": allowed,
				"subjects": unauthorized, "groups": unauthorized, "attendance": unauthorized,
			},
		},
		{
			role: "assistant",
			want: map[string]int{
				"students": unauthorized, "teachers": unauthorized, "courses": allowed, "assignments": allowed,
				"subjects": unauthorized, "groups": unauthorized, "attendance": unauthorized,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			b := newBrowser(t, app)
			b.login(tt.role)

			for _, page := range pages {
				rec := b.get("/dashboard/" + page)
				if assert.Equal(t, tt.want[page], rec.Code, page) && rec.Code == unauthorized {
					assert.Equal(t, "/unauthorized", location(rec), page)
				}
				if rec.Code == allowed {
					assert.Contains(t, rec.Body.String(), "Alice Mbuyi", page)
				}
			}
		})
	}
}

func TestPortal_authenticatedPages(t *testing.T) {
	app, _ := setup(t)
	b := newBrowser(t, app)
	b.login("teacher")

	// guests only
	rec := b.get("/auth/login")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", location(rec))

	rec = b.get("/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome, Test teacher")
	assert.Contains(t, body, "4 unread notification(s)")
	assert.Contains(t, body, "Students")
	assert.NotContains(t, body, `href="/dashboard/teachers"`, "menu only lists allowed pages")

	rec = b.get("/dashboard/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")

	info := getSessionInfo(t, b)
	assert.Equal(t, "Authenticated", info.State)
	require.NotNil(t, info.User)
	assert.Equal(t, "teacher-1", info.User.ID)
	assert.Equal(t, "teacher", info.User.Role)
}

func TestPortal_sessionsAreIsolated(t *testing.T) {
	app, _ := setup(t)
	alice := newBrowser(t, app)
	bob := newBrowser(t, app)

	alice.login("admin")
	bob.get("/auth/login")

	assert.Equal(t, "Authenticated", getSessionInfo(t, alice).State)
	assert.Equal(t, "Anonymous", getSessionInfo(t, bob).State)
	assert.Equal(t, http.StatusFound, bob.get("/dashboard/teachers").Code)
	assert.Equal(t, http.StatusOK, alice.get("/dashboard/teachers").Code)
}

func TestPortal_sessionIsRestored(t *testing.T) {
	api := newFakeAPI(t)
	conf := newConfig(api.URL)
	kv := inmemkv.Open()

	b := newBrowser(t, newServer(t, conf, kv))
	b.login("admin")

	// same storage, new process
	b.app = newServer(t, conf, kv)
	calls := api.calls.Load()
	info := getSessionInfo(t, b)
	assert.Equal(t, "Authenticated", info.State)
	assert.Equal(t, calls, api.calls.Load(), "restoring does not call the API")

	assert.Equal(t, http.StatusOK, b.get("/dashboard/groups").Code)
}

func TestPortal_logout(t *testing.T) {
	app, api := setup(t)
	b := newBrowser(t, app)
	b.login("admin")

	calls := api.calls.Load()
	for i := 0; i < 2; i++ {
		rec := b.post("/auth/logout", nil)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/auth/login", location(rec))
	}
	assert.Equal(t, calls, api.calls.Load(), "logout never calls the API")
	assert.Equal(t, "Anonymous", getSessionInfo(t, b).State)
	assert.Equal(t, http.StatusFound, b.get("/dashboard").Code)
}

func TestPortal_sessionExpired(t *testing.T) {
	app, api := setup(t)
	b := newBrowser(t, app)
	b.login("admin")
	api.expired.Store(true)

	rec := b.get("/dashboard/courses")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Your session has expired. Please log in again.")
	assert.Contains(t, body, `http-equiv="refresh"`)
	assert.Contains(t, body, "/auth/login")

	// cleared right away
	assert.Equal(t, "Anonymous", getSessionInfo(t, b).State)

	// then sent to login after the delay
	assert.Eventually(t, func() bool {
		rec := b.get("/unauthorized")
		return rec.Code == http.StatusFound && location(rec) == "/auth/login"
	}, time.Second, 10*time.Millisecond)

	// a new login drops any stale redirect
	api.expired.Store(false)
	b.login("admin")
	assert.Equal(t, http.StatusOK, b.get("/dashboard/courses").Code)
}

func TestPortal_apiErrors(t *testing.T) {
	app, api := setup(t)
	b := newBrowser(t, app)
	b.login("admin")
	api.broken.Store(true)

	rec := b.get("/dashboard/students")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), apiclient.MsgServer)

	rec = b.get("/dashboard/students", "Accept", "application/json")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"`+apiclient.MsgServer+`"}`, rec.Body.String())

	// the dashboard survives API failures other than an expired session
	rec = b.get("/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), apiclient.MsgServer)
	assert.Contains(t, rec.Body.String(), "0 unread notification(s)")
}

func TestPortal_language(t *testing.T) {
	app, _ := setup(t)
	b := newBrowser(t, app)
	b.login("teacher")
	assert.Equal(t, "en", getSessionInfo(t, b).Language)

	rec := b.post("/settings/language", url.Values{"language": {"FR"}}, "Referer", "http://portal.example/dashboard/courses?page=2")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard/courses?page=2", location(rec))
	assert.Equal(t, "fr", getSessionInfo(t, b).Language)

	rec = b.post("/settings/language", url.Values{"language": {"de"}}, "Accept", "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"unsupported language","fields":{"language":"unsupported language"}}`, rec.Body.String())

	// the language survives logout
	b.post("/auth/logout", nil)
	assert.Equal(t, "fr", getSessionInfo(t, b).Language)

	rec = b.get("/auth/login")
	assert.Contains(t, rec.Body.String(), `<html lang="fr"`)
}
