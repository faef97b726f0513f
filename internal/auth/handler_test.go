package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/employee-console/internal/apiclient"
	"github.com/odyssey-erp/employee-console/internal/apiclient/apitest"
	"github.com/odyssey-erp/employee-console/internal/auth"
	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/roles"
	"github.com/odyssey-erp/employee-console/internal/session"
	"github.com/odyssey-erp/employee-console/internal/shared"
	"github.com/odyssey-erp/employee-console/internal/view"
	_ "github.com/odyssey-erp/employee-console/testing"
)

type fixture struct {
	handler  *auth.Handler
	browser  *shared.BrowserSessions
	sessions *session.Manager
	api      *apitest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	browser := shared.NewBrowserSessions(redisClient, "test_session", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	api := apitest.New(t)
	api.AddUser("12345", "correct", employees.Employee{FirstName: "Dora", LastName: "Director", Email: "dora@example.com", Role: roles.Director})
	api.AddUser("55555", "correct", employees.Employee{FirstName: "No", LastName: "Email", Role: roles.Employee})
	client, err := apiclient.New(apiclient.Config{BaseURL: api.URL, Timeout: 5 * time.Second, RetryMax: -1})
	require.NoError(t, err)
	sessions := session.NewManager(session.NewFileStore(filepath.Join(t.TempDir(), "token")), client)

	handler := auth.NewHandler(nil, sessions, browser, templates, shared.NewCSRFManager("csrfsecret"))
	return &fixture{handler: handler, browser: browser, sessions: sessions, api: api}
}

// serve runs fn with a browser session attached, committing it afterwards.
func (f *fixture) serve(t *testing.T, req *http.Request, fn http.HandlerFunc) (*httptest.ResponseRecorder, *shared.BrowserSession) {
	t.Helper()
	sess, err := f.browser.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithBrowserSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	fn(res, req)
	require.NoError(t, f.browser.Commit(ctx, res, sess))
	return res, sess
}

func postLogin(docNumber, password string) *http.Request {
	form := url.Values{}
	form.Set("docNumber", docNumber)
	form.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginPage(t *testing.T) {
	f := newFixture(t)

	res, sess := f.serve(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), f.handler.ShowLoginForTest)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.Contains(t, res.Body.String(), `name="docNumber"`)
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginValidation(t *testing.T) {
	f := newFixture(t)

	res, _ := f.serve(t, postLogin("12", ""), f.handler.HandleLoginForTest)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Must be at least 3 characters")
	assert.Contains(t, res.Body.String(), "Required")
	assert.Equal(t, 0, f.api.Calls(http.MethodPost, "/auth/login"))
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)

	res, _ := f.serve(t, postLogin("12345", "wrongpass"), f.handler.HandleLoginForTest)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid document or password")
	assert.Contains(t, res.Body.String(), `value="12345"`)
	assert.False(t, f.sessions.IsAuthenticated())
}

func TestLoginSuccessRedirectsWithFlash(t *testing.T) {
	f := newFixture(t)

	res, sess := f.serve(t, postLogin("12345", "correct"), f.handler.HandleLoginForTest)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
	assert.True(t, f.sessions.IsAuthenticated())
	assert.True(t, f.sessions.HeldBy(sess.ID))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Contains(t, flash.Message, "dora@example.com")
}

func TestLoginWithUnreadableTokenShowsError(t *testing.T) {
	f := newFixture(t)

	res, sess := f.serve(t, postLogin("55555", "correct"), f.handler.HandleLoginForTest)

	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.Contains(t, res.Body.String(), "cannot read")
	assert.NotContains(t, res.Body.String(), "Welcome back")
	assert.Empty(t, f.sessions.Token())
	assert.False(t, f.sessions.HeldBy(sess.ID))
}

// signedInBrowser logs in through the handler and returns the cookie of
// the browser session that now holds the console session.
func (f *fixture) signedInBrowser(t *testing.T) *http.Cookie {
	t.Helper()
	res, sess := f.serve(t, postLogin("12345", "correct"), f.handler.HandleLoginForTest)
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.True(t, f.sessions.HeldBy(sess.ID))
	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func TestLoginPageRedirectsWhenSignedIn(t *testing.T) {
	f := newFixture(t)
	cookie := f.signedInBrowser(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(cookie)
	res, _ := f.serve(t, req, f.handler.ShowLoginForTest)
	assert.Equal(t, http.StatusSeeOther, res.Code)

	res, _ = f.serve(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), f.handler.ShowLoginForTest)
	assert.Equal(t, http.StatusOK, res.Code, "another browser still gets the form")
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	cookie := f.signedInBrowser(t)

	router := chiRouter(f.handler)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	res, _ := f.serve(t, req, router.ServeHTTP)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	assert.False(t, f.sessions.IsAuthenticated())

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, cookie.Name, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge, "the browser session is dropped")

	req = httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(cookie)
	_, sess := f.serve(t, req, f.handler.ShowLoginForTest)
	assert.NotEqual(t, cookie.Value, sess.ID)
}

func TestLogoutFromAnotherBrowserKeepsOperatorSignedIn(t *testing.T) {
	f := newFixture(t)
	f.signedInBrowser(t)

	router := chiRouter(f.handler)
	res, _ := f.serve(t, httptest.NewRequest(http.MethodPost, "/auth/logout", nil), router.ServeHTTP)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.True(t, f.sessions.IsAuthenticated())
}

func TestLoginAPIUnavailable(t *testing.T) {
	f := newFixture(t)
	f.api.Close()

	res, _ := f.serve(t, postLogin("12345", "correct"), f.handler.HandleLoginForTest)

	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.Contains(t, res.Body.String(), "unavailable")
}

func chiRouter(h *auth.Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	return r
}
