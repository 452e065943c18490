// Package transport is the outbound request pipeline for the identity
// client: it attaches the current access token to every request, recovers
// transparently from expired-access-token failures with a single
// refresh-and-replay cycle, and escalates to a hard session reset when the
// refresh itself fails.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-auth-client/identity"
	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/tokenstore"
)

const requestIDHeader = "X-Request-ID"

// OnSessionExpired is invoked after an unrecoverable refresh failure, once
// the token store has been cleared. The hosting shell decides what a reset
// means: a navigation to the public entry point, an event, or a prompt.
type OnSessionExpired func()

// Transport is an http.RoundTripper wrapping every outbound call in the
// authorization envelope. Concurrent 401s share one in-flight refresh; the
// replay of any one request still happens at most once.
type Transport struct {
	base      http.RoundTripper
	store     tokenstore.Store
	baseURL   string
	onExpired OnSessionExpired
	log       zerolog.Logger
	refresh   singleflight.Group

	refreshTimeout time.Duration
}

var _ http.RoundTripper = (*Transport)(nil)

// Option defines a function type to modify the Transport instance.
type Option func(*Transport)

// WithBase sets the underlying RoundTripper (default http.DefaultTransport).
func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = base
	}
}

// WithLogger sets the transport logger.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

// WithRefreshTimeout bounds the refresh call (default 15s).
func WithRefreshTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.refreshTimeout = d
	}
}

// New initializes a Transport. baseURL is the identity service base URL,
// used to recognize the service's own auth endpoints; onExpired is required
// so a terminal refresh failure always has somewhere to go.
func New(baseURL string, store tokenstore.Store, onExpired OnSessionExpired, options ...Option) (*Transport, error) {
	if baseURL == "" {
		return nil, errors.New("[transport.New] baseURL is required")
	}
	if store == nil {
		return nil, errors.New("[transport.New] token store is required")
	}
	if onExpired == nil {
		return nil, errors.New("[transport.New] onExpired is required")
	}

	t := &Transport{
		base:           http.DefaultTransport,
		store:          store,
		baseURL:        strings.TrimRight(baseURL, "/"),
		onExpired:      onExpired,
		log:            zerolog.Nop(),
		refreshTimeout: 15 * time.Second,
	}

	for _, opt := range options {
		opt(t)
	}

	return t, nil
}

// Client returns an http.Client using this transport.
func (t *Transport) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}

// RoundTrip implements the attach and recovery steps. The attach step runs
// before every send; the recovery step runs after every response and is
// skipped for replayed requests, so one original request triggers at most
// one refresh.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	bodyCopy, err := bufferBody(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Transport.RoundTrip] buffer request body")
	}

	requestID := uuid.New().String()
	resp, attached, err := t.send(req, bodyCopy, requestID)
	if err != nil {
		requestsTotal.WithLabelValues(resultError).Inc()
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		requestsTotal.WithLabelValues(resultOK).Inc()
		return resp, nil
	}
	requestsTotal.WithLabelValues(resultUnauthorized).Inc()

	// Auth-exchange endpoints surface their own 401s: a rejected login is
	// a credential error, not an expired session.
	if t.isExchangeRequest(req) {
		return resp, nil
	}

	pair, err := t.refreshTokens(req.Context(), attached)
	if err != nil {
		t.log.Warn().Err(err).Str("request_id", requestID).Msg("session reset: refresh failed")
		return resp, nil
	}

	// Replay the original request exactly once with the new access token.
	// The replay result goes back to the caller as if nothing happened.
	drainBody(resp)
	retriesTotal.Inc()
	t.log.Debug().Str("request_id", requestID).Msg("replaying request after refresh")

	replay := req.Clone(req.Context())
	replay.Body = bodyCopy()
	replay.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	replay.Header.Set(requestIDHeader, requestID)
	return t.base.RoundTrip(replay)
}

// send performs the attach step and the initial round trip, reporting
// which access token (if any) was attached.
func (t *Transport) send(req *http.Request, bodyCopy func() io.ReadCloser, requestID string) (*http.Response, string, error) {
	out := req.Clone(req.Context())
	out.Body = bodyCopy()
	out.Header.Set(requestIDHeader, requestID)

	var attached string
	if pair, ok := t.store.Get(); ok && pair.AccessToken != "" {
		attached = pair.AccessToken
		out.Header.Set("Authorization", "Bearer "+attached)
	}
	resp, err := t.base.RoundTrip(out)
	return resp, attached, err
}

// refreshTokens runs the shared refresh cycle. Concurrent callers collapse
// onto a single in-flight refresh and all receive its result, so a burst of
// 401s never burns more than one refresh token. staleToken is the access
// token the failing request carried: when the store already holds a
// different one, another caller refreshed in the meantime and the current
// pair is reused without touching the service. Any terminal failure clears
// the store and fires the session-expired callback exactly once, inside
// the shared call.
func (t *Transport) refreshTokens(ctx context.Context, staleToken string) (tokenstore.Pair, error) {
	v, err, _ := t.refresh.Do("refresh", func() (any, error) {
		pair, ok := t.store.Get()
		if ok && pair.AccessToken != "" && pair.AccessToken != staleToken {
			return pair, nil
		}
		if !ok || pair.RefreshToken == "" {
			t.reset()
			return nil, clienterrors.ErrTokenAbsent
		}

		newPair, err := t.callRefresh(ctx, pair.RefreshToken)
		if err != nil {
			t.reset()
			refreshesTotal.WithLabelValues("failure").Inc()
			return nil, clienterrors.Wrapf(clienterrors.ErrSessionExpired, "refresh rejected: %s", err.Error())
		}

		t.store.Set(newPair)
		refreshesTotal.WithLabelValues("success").Inc()
		return newPair, nil
	})
	if err != nil {
		return tokenstore.Pair{}, err
	}
	return v.(tokenstore.Pair), nil
}

// callRefresh posts the refresh token straight through the base transport;
// the refresh endpoint is never itself subject to the recovery step.
func (t *Transport) callRefresh(ctx context.Context, refreshToken string) (tokenstore.Pair, error) {
	ctx, cancel := context.WithTimeout(ctx, t.refreshTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return tokenstore.Pair{}, errors.Wrap(err, "[Transport.callRefresh] marshal")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+identity.RouteRefresh, bytes.NewReader(payload))
	if err != nil {
		return tokenstore.Pair{}, errors.Wrap(err, "[Transport.callRefresh] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return tokenstore.Pair{}, errors.Wrap(err, "[Transport.callRefresh] round trip")
	}
	defer drainBody(resp)

	if resp.StatusCode != http.StatusOK {
		return tokenstore.Pair{}, errors.Errorf("[Transport.callRefresh] status %d", resp.StatusCode)
	}

	var refreshed identity.RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return tokenstore.Pair{}, errors.Wrap(err, "[Transport.callRefresh] decode")
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		return tokenstore.Pair{}, errors.New("[Transport.callRefresh] incomplete token pair")
	}
	return tokenstore.Pair{AccessToken: refreshed.AccessToken, RefreshToken: refreshed.RefreshToken}, nil
}

func (t *Transport) reset() {
	t.store.Clear()
	sessionResetsTotal.Inc()
	t.onExpired()
}

func (t *Transport) isExchangeRequest(req *http.Request) bool {
	path := req.URL.Path
	for _, route := range identity.ExchangeRoutes {
		if strings.HasSuffix(path, route) {
			return true
		}
	}
	return strings.HasSuffix(path, identity.RouteRefresh)
}

// bufferBody reads the request body once and returns a factory producing
// fresh readers, so the attach step and a later replay send identical bytes.
func bufferBody(req *http.Request) (func() io.ReadCloser, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return func() io.ReadCloser { return http.NoBody }, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	return func() io.ReadCloser { return io.NopCloser(bytes.NewReader(data)) }, nil
}

func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}
