// Package federated adapts a federated identity provider (Google by
// default) into a credential source. Incoming identity tokens are verified
// against the provider's published keys before they are handed to the
// session controller; the service still performs its own verification.
package federated

import (
	"context"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-client/internal/config"
	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
)

// Verifier checks a raw identity token. Satisfied by *oidc.IDTokenVerifier.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Source produces federated credentials from verified identity tokens.
type Source struct {
	verifier Verifier
	oauth    *oauth2.Config
	log      zerolog.Logger

	lock    sync.Mutex
	sink    func(session.Credential)
	errSink func(error)
}

var _ session.CredentialSource = (*Source)(nil)

// SourceOption defines a function type to modify the Source instance.
type SourceOption func(*Source)

// WithLogger sets the source logger.
func WithLogger(log zerolog.Logger) SourceOption {
	return func(s *Source) {
		s.log = log
	}
}

// WithVerifier replaces the OIDC verifier (primarily for testing).
func WithVerifier(v Verifier) SourceOption {
	return func(s *Source) {
		s.verifier = v
	}
}

// NewSource discovers the provider's endpoints and builds the verifier for
// the configured client ID.
func NewSource(ctx context.Context, cfg config.FederatedConfig, options ...SourceOption) (*Source, error) {
	s := &Source{log: zerolog.Nop()}
	for _, opt := range options {
		opt(s)
	}

	if s.verifier == nil {
		provider, err := oidc.NewProvider(ctx, cfg.GetFederatedIssuer())
		if err != nil {
			return nil, errors.Wrap(err, "[NewSource] provider discovery")
		}
		s.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.GetFederatedClientID()})
		s.oauth = &oauth2.Config{
			ClientID:     cfg.GetFederatedClientID(),
			ClientSecret: cfg.GetFederatedClientSecret(),
			RedirectURL:  cfg.GetFederatedRedirectURL(),
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}
	}

	return s, nil
}

// Produce registers the credential sinks; Accept and ExchangeCode drive
// them as tokens arrive from the widget or the redirect flow.
func (s *Source) Produce(_ context.Context, sink func(session.Credential), errSink func(error)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sink = sink
	s.errSink = errSink
}

// AuthCodeURL returns the provider's consent URL for the redirect flow.
func (s *Source) AuthCodeURL(state string) string {
	if s.oauth == nil {
		return ""
	}
	return s.oauth.AuthCodeURL(state)
}

// ExchangeCode swaps an authorization code for tokens and feeds the
// embedded identity token through Accept.
func (s *Source) ExchangeCode(ctx context.Context, code string) {
	if s.oauth == nil {
		s.fail(errors.New("[Source.ExchangeCode] no oauth config"))
		return
	}
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.fail(errors.Wrap(err, "[Source.ExchangeCode] code exchange"))
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		s.fail(errors.New("[Source.ExchangeCode] response carried no id_token"))
		return
	}
	s.Accept(ctx, rawIDToken)
}

// Accept verifies a raw identity token from the widget's success callback.
// A token that fails verification goes to the error sink and is never
// forwarded to the controller.
func (s *Source) Accept(ctx context.Context, rawToken string) {
	if _, err := s.verifier.Verify(ctx, rawToken); err != nil {
		s.log.Warn().Err(err).Msg("federated token failed verification")
		s.fail(clienterrors.Wrapf(clienterrors.ErrFederatedTokenInvalid, "%s", err.Error()))
		return
	}

	s.lock.Lock()
	sink := s.sink
	s.lock.Unlock()
	if sink != nil {
		sink(session.FederatedCredential{Token: rawToken})
	}
}

func (s *Source) fail(err error) {
	s.lock.Lock()
	errSink := s.errSink
	s.lock.Unlock()
	if errSink != nil {
		errSink(err)
	}
}
