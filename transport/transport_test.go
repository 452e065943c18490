package transport_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/internaltest/fakeservice"
	"github.com/jrsteele09/go-auth-client/tokenstore"
	"github.com/jrsteele09/go-auth-client/transport"
)

const (
	testUserEmail    = "a@b.com"
	testUserPassword = "secret12"
)

type testFixture struct {
	svc     *fakeservice.Service
	server  *httptest.Server
	store   *tokenstore.MemoryStore
	client  *http.Client
	expired *atomic.Int32
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	svc := fakeservice.New()
	server := httptest.NewServer(svc.Handler())
	t.Cleanup(server.Close)

	store := tokenstore.NewMemoryStore()
	expired := &atomic.Int32{}

	tr, err := transport.New(server.URL, store, func() { expired.Add(1) })
	require.NoError(t, err)

	return &testFixture{
		svc:     svc,
		server:  server,
		store:   store,
		client:  tr.Client(10 * time.Second),
		expired: expired,
	}
}

// login obtains a pair through the exchange endpoint and persists it, the
// way the gateway would.
func (f *testFixture) login(t *testing.T) tokenstore.Pair {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":%q}`, testUserEmail, testUserPassword)
	resp, err := f.client.Post(f.server.URL+identity.RouteLogin, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var auth identity.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))

	pair := tokenstore.Pair{AccessToken: auth.AccessToken, RefreshToken: auth.RefreshToken}
	f.store.Set(pair)
	return pair
}

func (f *testFixture) getMe(t *testing.T) *http.Response {
	t.Helper()
	resp, err := f.client.Get(f.server.URL + identity.RouteMe)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAttachesBearerToken(t *testing.T) {
	f := setupTestFixture(t)
	f.svc.Seed(testUserEmail, testUserPassword)
	f.login(t)

	resp := f.getMe(t)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user identity.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	require.Equal(t, testUserEmail, user.Email)
}

func TestRefreshAndReplayOnExpiredAccess(t *testing.T) {
	f := setupTestFixture(t)
	f.svc.Seed(testUserEmail, testUserPassword)
	first := f.login(t)
	require.Equal(t, "AT1", first.AccessToken)
	require.Equal(t, "RT1", first.RefreshToken)

	// The server no longer honors AT1; the transport must refresh with RT1
	// and replay transparently.
	f.svc.ExpireAccessTokens()

	resp := f.getMe(t)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, f.svc.RefreshCalls())

	pair, ok := f.store.Get()
	require.True(t, ok)
	require.Equal(t, "AT2", pair.AccessToken)
	require.Equal(t, "RT2", pair.RefreshToken)
	require.Zero(t, f.expired.Load())
}

func TestAtMostOneRetryPerRequest(t *testing.T) {
	// A service whose refresh succeeds but whose protected route keeps
	// rejecting the new token: the request must come back 401 after exactly
	// one refresh, never loop.
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /data", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
	})
	mux.HandleFunc("POST "+identity.RouteRefresh, func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		_ = json.NewEncoder(w).Encode(identity.RefreshResponse{AccessToken: "AT2", RefreshToken: "RT2"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	store := tokenstore.NewMemoryStore()
	store.Set(tokenstore.Pair{AccessToken: "AT1", RefreshToken: "RT1"})

	tr, err := transport.New(server.URL, store, func() {})
	require.NoError(t, err)

	resp, err := tr.Client(10 * time.Second).Get(server.URL + "/data")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int32(1), refreshCalls.Load())
}

func TestAuthEndpointExemption(t *testing.T) {
	f := setupTestFixture(t)
	f.svc.Seed(testUserEmail, testUserPassword)

	body := fmt.Sprintf(`{"email":%q,"password":"wrong-password"}`, testUserEmail)
	resp, err := f.client.Post(f.server.URL+identity.RouteLogin, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, f.svc.RefreshCalls(), "a rejected login must never trigger the refresh protocol")
	require.Zero(t, f.expired.Load())
}

func TestRefreshFailureForcesSessionReset(t *testing.T) {
	f := setupTestFixture(t)
	f.svc.Seed(testUserEmail, testUserPassword)
	f.login(t)

	f.svc.ExpireAccessTokens()
	f.svc.FailRefresh = true

	resp := f.getMe(t)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, ok := f.store.Get()
	require.False(t, ok, "token store must be emptied")
	require.Equal(t, int32(1), f.expired.Load())
}

func TestMissingRefreshTokenForcesSessionReset(t *testing.T) {
	f := setupTestFixture(t)
	f.svc.Seed(testUserEmail, testUserPassword)
	f.store.Set(tokenstore.Pair{AccessToken: "stale-token"})

	resp := f.getMe(t)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, f.svc.RefreshCalls())
	require.Equal(t, int32(1), f.expired.Load())
}

func TestConcurrentFailuresShareOneRefresh(t *testing.T) {
	// Several requests failing at the same moment must collapse onto a
	// single refresh call even when the server rotates the refresh token
	// on first use.
	var refreshCalls atomic.Int32
	var tokens sync.Map
	tokens.Store("RT1", true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /data", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer AT2" {
			fmt.Fprint(w, "ok")
			return
		}
		http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
	})
	mux.HandleFunc("POST "+identity.RouteRefresh, func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, ok := tokens.LoadAndDelete(req.RefreshToken); !ok {
			http.Error(w, `{"message":"refresh token invalid"}`, http.StatusUnauthorized)
			return
		}
		time.Sleep(30 * time.Millisecond) // widen the race window
		_ = json.NewEncoder(w).Encode(identity.RefreshResponse{AccessToken: "AT2", RefreshToken: "RT2"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	store := tokenstore.NewMemoryStore()
	store.Set(tokenstore.Pair{AccessToken: "AT1", RefreshToken: "RT1"})

	var resets atomic.Int32
	tr, err := transport.New(server.URL, store, func() { resets.Add(1) })
	require.NoError(t, err)
	client := tr.Client(10 * time.Second)

	const workers = 5
	var wg sync.WaitGroup
	statuses := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(server.URL + "/data")
			if err != nil {
				return
			}
			defer resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), refreshCalls.Load())
	require.Zero(t, resets.Load())
	for i, status := range statuses {
		require.Equal(t, http.StatusOK, status, "request %d", i)
	}
}
