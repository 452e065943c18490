package guard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/guard"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/session"
)

const (
	loginRoute     = "/login"
	dashboardRoute = "/dashboard"
)

type staticSnapshotter struct {
	snap session.Snapshot
}

func (s staticSnapshotter) Snapshot() session.Snapshot { return s.snap }

func snapshot(state session.State, loading bool) session.Snapshot {
	snap := session.Snapshot{
		State:           state,
		IsLoading:       loading,
		IsAuthenticated: state == session.StateAuthenticated,
	}
	if snap.IsAuthenticated {
		snap.User = &identity.User{ID: "1", Email: "a@b.com"}
	}
	return snap
}

func TestGateDecisions(t *testing.T) {
	g := guard.New(staticSnapshotter{}, loginRoute, dashboardRoute)

	tests := []struct {
		name string
		gate func(session.Snapshot) guard.Decision
		snap session.Snapshot
		want guard.Decision
	}{
		{"public while loading", g.Public, snapshot(session.StateBooting, true), guard.Decision{Outcome: guard.OutcomeLoading}},
		{"public anonymous", g.Public, snapshot(session.StateAnonymous, false), guard.Decision{Outcome: guard.OutcomeAllow}},
		{"public authenticated", g.Public, snapshot(session.StateAuthenticated, false), guard.Decision{Outcome: guard.OutcomeRedirect, RedirectTo: dashboardRoute}},
		{"private while loading", g.Private, snapshot(session.StateBooting, true), guard.Decision{Outcome: guard.OutcomeLoading}},
		{"private anonymous", g.Private, snapshot(session.StateAnonymous, false), guard.Decision{Outcome: guard.OutcomeRedirect, RedirectTo: loginRoute}},
		{"private authenticated", g.Private, snapshot(session.StateAuthenticated, false), guard.Decision{Outcome: guard.OutcomeAllow}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.gate(tc.snap))
		})
	}
}

func TestRequireAuthMiddlewareRedirectsAnonymous(t *testing.T) {
	g := guard.New(staticSnapshotter{snap: snapshot(session.StateAnonymous, false)}, loginRoute, dashboardRoute)

	handler := g.RequireAuth()(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("wrapped handler must not run for anonymous callers")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, dashboardRoute, nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, loginRoute, rec.Header().Get("Location"))
}

func TestPublicOnlyMiddlewareRedirectsAuthenticated(t *testing.T) {
	g := guard.New(staticSnapshotter{snap: snapshot(session.StateAuthenticated, false)}, loginRoute, dashboardRoute)

	handler := g.PublicOnly()(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("wrapped handler must not run for authenticated callers")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, loginRoute, nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, dashboardRoute, rec.Header().Get("Location"))
}

func TestMiddlewareRendersPlaceholderWhileLoading(t *testing.T) {
	g := guard.New(staticSnapshotter{snap: snapshot(session.StateBooting, true)}, loginRoute, dashboardRoute)

	handler := g.RequireAuth()(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("wrapped handler must not run while the boot probe is pending")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, dashboardRoute, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Loading")
}

func TestMiddlewareAllowsThrough(t *testing.T) {
	g := guard.New(staticSnapshotter{snap: snapshot(session.StateAuthenticated, false)}, loginRoute, dashboardRoute)

	called := false
	handler := g.RequireAuth()(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, dashboardRoute, nil))

	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}
