package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "studioops_session", time.Hour, false)
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	sm := testSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Nil(t, sess.Identity())

	identity := Identity{
		UserID:   uuid.New(),
		TenantID: uuid.New(),
		Role:     RoleAdmin,
		Email:    "admin@studioops.local",
		Name:     "Studio Admin",
	}
	sess.SetIdentity(identity)

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	cookie := sessionCookie(t, rr, sm.CookieName())
	require.NotEmpty(t, cookie.Value)
	require.True(t, cookie.HttpOnly)

	next := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	next.AddCookie(cookie)
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	require.NotNil(t, loaded.Identity())
	require.Equal(t, identity.UserID, loaded.Identity().UserID)
	require.Equal(t, identity.TenantID, loaded.Identity().TenantID)
	require.Equal(t, RoleAdmin, loaded.Identity().Role)
}

func TestSessionCommitSkipsCleanSessions(t *testing.T) {
	sm := testSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	require.Empty(t, rr.Result().Cookies())
}

func TestSessionDestroyClearsCookieAndStore(t *testing.T) {
	sm := testSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.NoError(t, err)
	sess.SetIdentity(Identity{UserID: uuid.New(), TenantID: uuid.New(), Role: RoleClient})

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	cookie := sessionCookie(t, rr, sm.CookieName())

	sm.Destroy(sess)
	out := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, out, sess))
	cleared := sessionCookie(t, out, sm.CookieName())
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)

	next := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	next.AddCookie(cookie)
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	require.Nil(t, loaded.Identity())
}

func TestSessionUnknownCookieYieldsAnonymous(t *testing.T) {
	sm := testSessionManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "expired-or-forged"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, sess.Identity())
	require.Equal(t, "expired-or-forged", sess.ID)
}
