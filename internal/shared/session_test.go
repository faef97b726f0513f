package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBrowserSessions(t *testing.T) (*BrowserSessions, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewBrowserSessions(client, "console_session", "secret", time.Hour, false), mr
}

func TestBrowserSessionFlashSurvivesRedirect(t *testing.T) {
	ctx := context.Background()
	sessions, _ := newBrowserSessions(t)

	sess, err := sessions.Load(ctx, httptest.NewRequest(http.MethodPost, "/employees", nil))
	require.NoError(t, err)
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Employee created"})
	rr := httptest.NewRecorder()
	require.NoError(t, sessions.Commit(ctx, rr, sess))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	next := httptest.NewRequest(http.MethodGet, "/employees/1", nil)
	next.AddCookie(cookies[0])

	loaded, err := sessions.Load(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Employee created", flash.Message)
	require.NoError(t, sessions.Commit(ctx, httptest.NewRecorder(), loaded))

	again, err := sessions.Load(ctx, next)
	require.NoError(t, err)
	assert.Nil(t, again.PopFlash(), "flash is shown once")
}

func TestBrowserSessionDestroy(t *testing.T) {
	ctx := context.Background()
	sessions, mr := newBrowserSessions(t)

	sess, err := sessions.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("k", "v")
	require.NoError(t, sessions.Commit(ctx, httptest.NewRecorder(), sess))
	assert.True(t, mr.Exists("console:browser:"+sess.ID))

	sessions.Destroy(sess)
	rr := httptest.NewRecorder()
	require.NoError(t, sessions.Commit(ctx, rr, sess))
	assert.False(t, mr.Exists("console:browser:"+sess.ID))
	require.Len(t, rr.Result().Cookies(), 1)
	assert.Equal(t, -1, rr.Result().Cookies()[0].MaxAge)
}

func TestCSRFManager(t *testing.T) {
	ctx := context.Background()
	sessions, _ := newBrowserSessions(t)
	sess, err := sessions.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	csrf := NewCSRFManager("csrf-secret")

	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, "forged"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, nil, token), ErrCSRFTokenMissing)
}

func TestFlashNotifier(t *testing.T) {
	sess := &BrowserSession{ID: "abc"}
	ctx := ContextWithBrowserSession(context.Background(), sess)

	FlashNotifier{}.Notify(ctx, "error", "Could not delete employee")
	FlashNotifier{}.Notify(context.Background(), "error", "dropped")

	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "error", flash.Kind)
	assert.Nil(t, sess.PopFlash())
}
