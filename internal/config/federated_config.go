package config

// FederatedConfig holds the OIDC settings used to verify federated
// identity tokens before they are exchanged with the identity service.
type FederatedConfig interface {
	GetFederatedIssuer() string
	GetFederatedClientID() string
	GetFederatedClientSecret() string
	GetFederatedRedirectURL() string
}

type Federated struct{}

var _ FederatedConfig = Federated{}

func (Federated) GetFederatedIssuer() string {
	return GetEnv("FEDERATED_ISSUER", "https://accounts.google.com")
}

func (Federated) GetFederatedClientID() string {
	return GetEnv("FEDERATED_CLIENT_ID", "")
}

func (Federated) GetFederatedClientSecret() string {
	return GetEnv("FEDERATED_CLIENT_SECRET", "")
}

func (Federated) GetFederatedRedirectURL() string {
	return GetEnv("FEDERATED_REDIRECT_URL", "http://localhost:3000/auth/callback")
}
