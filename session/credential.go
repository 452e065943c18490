package session

import "context"

// Credential is the closed set of external proofs a user can present:
// an email/password pair, a federated identity token, or a connected
// wallet address. All three normalize to the same token-pair-plus-user
// result when exchanged through the gateway.
type Credential interface {
	isCredential()
}

type PasswordCredential struct {
	Email    string
	Password string
}

func (PasswordCredential) isCredential() {}

// FederatedCredential carries the opaque token produced by a federated
// identity widget. The token is already verified by the producing source;
// the controller treats it as a black box.
type FederatedCredential struct {
	Token string
}

func (FederatedCredential) isCredential() {}

type WalletCredential struct {
	Address string
}

func (WalletCredential) isCredential() {}

// CredentialSource is a capability that produces credentials from some
// external widget or flow. Sources deliver exactly one credential per
// completed flow through the sink; failures go to the error sink instead.
// This decouples the controller from any specific widget's callback shape.
type CredentialSource interface {
	Produce(ctx context.Context, sink func(Credential), errSink func(error))
}
