package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/masomo-portal/apps/portal/echo"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/storage/kv/inmem"
	"github.com/trezcool/masomo-portal/tests"
)

const (
	password     = "secret"
	cookieName   = "masomo_sid"
	invalidLogin = "Invalid email or password"
)

// fakeAPI is the school API: users log in as <role>@masomo.cd.
type fakeAPI struct {
	*httptest.Server
	expired atomic.Bool
	broken  atomic.Bool
	calls   atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	api := new(fakeAPI)
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.calls.Add(1)
		path := strings.TrimPrefix(r.URL.Path, "/api/")

		if path == "auth/login" {
			var body struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			decodeJSON(t, r, &body)
			role := strings.TrimSuffix(body.Email, "@masomo.cd")
			if body.Password != password || !user.Role(role).IsValid() {
				testutil.WriteJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": invalidLogin})
				return
			}
			testutil.WriteJSON(t, w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    map[string]interface{}{"token": testutil.CreateToken(t, role+"-1", role)},
			})
			return
		}

		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			testutil.WriteJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "no token"})
			return
		}
		if api.expired.Load() {
			testutil.WriteJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "jwt expired"})
			return
		}
		if api.broken.Load() {
			testutil.WriteJSON(t, w, http.StatusInternalServerError, map[string]interface{}{"success": false, "message": "boom"})
			return
		}

		switch path {
		case "dashboard/stats":
			testutil.WriteJSON(t, w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    map[string]interface{}{"students": 12, "teachers": 3},
			})
		case "notifications/unread-count":
			testutil.WriteJSON(t, w, http.StatusOK, map[string]interface{}{"success": true, "data": map[string]interface{}{"count": 4}})
		default:
			testutil.WriteJSON(t, w, http.StatusOK, map[string]interface{}{
				"success":    true,
				"data":       []interface{}{map[string]interface{}{"_id": "1", "name": "Alice Mbuyi", "code": path}},
				"pagination": map[string]interface{}{"total": 1, "pages": 1, "page": 1, "limit": 20},
			})
		}
	}))
	t.Cleanup(api.Close)
	return api
}

func decodeJSON(t *testing.T, r *http.Request, v interface{}) {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Errorf("decodeJSON(): %v", err)
	}
}

func newConfig(apiURL string) *core.Config {
	return &core.Config{
		Env:      core.EnvTest,
		TestMode: true,
		AppName:  "Masomo",
		Build:    "1.0.0",
		API:      core.APIConfig{BaseURL: apiURL + "/api", Timeout: time.Second},
		Session: core.SessionConfig{
			RedirectDelay:     20 * time.Millisecond,
			LoginRoute:        "/auth/login",
			DefaultRoute:      "/dashboard",
			UnauthorizedRoute: "/unauthorized",
			CookieName:        cookieName,
			CookieMaxAge:      time.Hour,
			IdleTimeout:       time.Hour,
		},
	}
}

func newServer(t *testing.T, conf *core.Config, kv core.KeyValueStore) Server {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	srv := NewServer(&Options{
		Conf:           conf,
		KV:             kv,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func setup(t *testing.T) (Server, *fakeAPI) {
	api := newFakeAPI(t)
	return newServer(t, newConfig(api.URL), inmemkv.Open()), api
}

// browser keeps the session cookie between requests.
type browser struct {
	t      *testing.T
	app    http.Handler
	cookie *http.Cookie
}

func newBrowser(t *testing.T, app http.Handler) *browser {
	return &browser{t: t, app: app}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.app.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			b.cookie = c
		}
	}
	return rec
}

func (b *browser) get(path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return b.do(req)
}

func (b *browser) post(path string, form url.Values, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return b.do(req)
}

func (b *browser) login(role string) {
	rec := b.post("/auth/login", url.Values{"email": {role + "@masomo.cd"}, "password": {password}})
	require.Equal(b.t, http.StatusFound, rec.Code, rec.Body.String())
}

func location(rec *httptest.ResponseRecorder) string {
	return rec.Header().Get("Location")
}
