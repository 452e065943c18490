// Package identity is the typed client for the remote identity service.
// Each operation is a thin contract over the authenticated HTTP pipeline:
// it normalizes responses into the domain model and persists token pairs on
// successful exchanges, nothing more. Retry and recovery logic lives in the
// transport; service errors propagate to the caller untouched.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/tokenstore"
)

// Gateway performs the identity service operations.
type Gateway struct {
	baseURL string
	client  *http.Client
	store   tokenstore.Store
	log     zerolog.Logger
}

// GatewayOption defines a function type to modify the Gateway instance.
type GatewayOption func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(log zerolog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.log = log
	}
}

// NewGateway initializes a Gateway. The client is expected to carry the
// authenticated transport so bearer attachment and 401 recovery apply to
// every call made here.
func NewGateway(baseURL string, client *http.Client, store tokenstore.Store, options ...GatewayOption) (*Gateway, error) {
	if baseURL == "" {
		return nil, errors.New("[NewGateway] baseURL is required")
	}
	if client == nil {
		return nil, errors.New("[NewGateway] http client is required")
	}
	if store == nil {
		return nil, errors.New("[NewGateway] token store is required")
	}

	g := &Gateway{
		baseURL: baseURL,
		client:  client,
		store:   store,
		log:     zerolog.Nop(),
	}

	for _, opt := range options {
		opt(g)
	}

	return g, nil
}

// Signup registers a new account and persists the issued token pair.
func (g *Gateway) Signup(ctx context.Context, email, password string) (*AuthResponse, error) {
	req := SignupRequest{Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return nil, clienterrors.Wrapf(clienterrors.ErrInvalidCredential, "%s", err.Error())
	}
	return g.exchange(ctx, RouteSignup, req)
}

// Login exchanges an email/password pair and persists the issued tokens.
func (g *Gateway) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	req := LoginRequest{Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return nil, clienterrors.Wrapf(clienterrors.ErrInvalidCredential, "%s", err.Error())
	}
	return g.exchange(ctx, RouteLogin, req)
}

// GoogleAuth exchanges an opaque federated identity token.
func (g *Gateway) GoogleAuth(ctx context.Context, googleToken string) (*AuthResponse, error) {
	req := GoogleAuthRequest{GoogleToken: googleToken}
	if err := req.Validate(); err != nil {
		return nil, clienterrors.Wrapf(clienterrors.ErrInvalidCredential, "%s", err.Error())
	}
	return g.exchange(ctx, RouteGoogle, req)
}

// WalletAuth exchanges a connected wallet address.
func (g *Gateway) WalletAuth(ctx context.Context, walletAddress string) (*AuthResponse, error) {
	req := WalletAuthRequest{WalletAddress: walletAddress}
	if err := req.Validate(); err != nil {
		return nil, clienterrors.Wrapf(clienterrors.ErrInvalidCredential, "%s", err.Error())
	}
	return g.exchange(ctx, RouteWallet, req)
}

// Refresh exchanges a refresh token for a new pair and persists it.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (tokenstore.Pair, error) {
	var resp RefreshResponse
	if err := g.postJSON(ctx, RouteRefresh, refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return tokenstore.Pair{}, err
	}
	pair := tokenstore.Pair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	g.store.Set(pair)
	return pair, nil
}

// FetchProfile returns the identity behind the attached access token.
func (g *Gateway) FetchProfile(ctx context.Context) (*User, error) {
	var user User
	if err := g.getJSON(ctx, RouteMe, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout invalidates the session server-side. Token clearing is the
// caller's responsibility so local sign-out happens even when this fails.
func (g *Gateway) Logout(ctx context.Context) error {
	var resp messageResponse
	return g.postJSON(ctx, RouteLogout, struct{}{}, &resp)
}

func (g *Gateway) exchange(ctx context.Context, route string, reqBody any) (*AuthResponse, error) {
	var resp AuthResponse
	if err := g.postJSON(ctx, route, reqBody, &resp); err != nil {
		return nil, err
	}
	g.store.Set(tokenstore.Pair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	g.log.Debug().Str("route", route).Str("user_id", resp.User.ID).Msg("credential exchange succeeded")
	return &resp, nil
}

func (g *Gateway) postJSON(ctx context.Context, route string, reqBody, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Wrap(err, "[Gateway.postJSON] marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+route, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "[Gateway.postJSON] build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *Gateway) getJSON(ctx context.Context, route string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+route, nil)
	if err != nil {
		return errors.Wrap(err, "[Gateway.getJSON] build request")
	}
	return g.do(req, out)
}

func (g *Gateway) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "[Gateway.do] request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "[Gateway.do] read response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "[Gateway.do] decode response")
	}
	return nil
}

// decodeAPIError carries the service's own error payload through to the
// caller; a body that does not parse falls back to the HTTP status text.
func decodeAPIError(status int, body []byte) error {
	apiErr := &clienterrors.APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
