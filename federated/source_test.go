package federated_test

import (
	"context"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/federated"
	"github.com/jrsteele09/go-auth-client/internal/config"
	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
)

type fakeVerifier struct {
	err error
}

func (f fakeVerifier) Verify(context.Context, string) (*oidc.IDToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oidc.IDToken{}, nil
}

func setupSource(t *testing.T, verifier federated.Verifier) (*federated.Source, *[]session.Credential, *[]error) {
	t.Helper()

	source, err := federated.NewSource(context.Background(), config.Federated{}, federated.WithVerifier(verifier))
	require.NoError(t, err)

	var creds []session.Credential
	var errs []error
	source.Produce(context.Background(),
		func(c session.Credential) { creds = append(creds, c) },
		func(err error) { errs = append(errs, err) },
	)
	return source, &creds, &errs
}

func TestAcceptForwardsVerifiedToken(t *testing.T) {
	source, creds, errs := setupSource(t, fakeVerifier{})

	source.Accept(context.Background(), "raw-id-token")

	require.Empty(t, *errs)
	require.Len(t, *creds, 1)
	require.Equal(t, session.FederatedCredential{Token: "raw-id-token"}, (*creds)[0])
}

func TestAcceptRejectsUnverifiableToken(t *testing.T) {
	source, creds, errs := setupSource(t, fakeVerifier{err: errors.New("bad signature")})

	source.Accept(context.Background(), "forged-token")

	require.Empty(t, *creds, "an unverifiable token must never reach the controller")
	require.Len(t, *errs, 1)
	require.ErrorIs(t, (*errs)[0], clienterrors.ErrFederatedTokenInvalid)
}

func TestAuthCodeURLWithoutOAuthConfig(t *testing.T) {
	source, _, _ := setupSource(t, fakeVerifier{})
	require.Empty(t, source.AuthCodeURL("state"))
}
