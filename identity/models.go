package identity

import "time"

// User is the identity record as returned by the service. It is immutable
// except by wholesale replacement: a fresh fetch or exchange response
// overwrites the previous value, individual fields are never mutated.
type User struct {
	// ID is the stable identifier for the user.
	ID string `json:"id"`

	// Email is the user's email address.
	Email string `json:"email"`

	// Username is the unique handle, may be absent for wallet-only users.
	Username *string `json:"username,omitempty"`

	// FirstName and LastName may be absent; FullName is always populated
	// by the service (falling back to username or email).
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	FullName  string  `json:"fullName"`

	// WalletAddress is set when the account was created or linked through
	// a wallet exchange.
	WalletAddress *string `json:"walletAddress,omitempty"`

	// IsActive reports whether the account is enabled.
	IsActive bool `json:"isActive"`

	// IsVerified reports whether the user has verified their email.
	IsVerified bool `json:"isVerified"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// AuthResponse is the credential-exchange response shared by the signup,
// login, google and wallet endpoints.
type AuthResponse struct {
	// AccessToken is the short-lived bearer token attached to
	// authenticated requests.
	AccessToken string `json:"accessToken"`

	// RefreshToken is the long-lived token exchanged for a new pair when
	// the access token expires.
	RefreshToken string `json:"refreshToken"`

	// TokenType is always "bearer".
	TokenType string `json:"tokenType,omitempty"`

	// User is the authenticated identity record.
	User User `json:"user"`
}

// RefreshResponse is returned by the refresh endpoint: a new pair, no user.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}
