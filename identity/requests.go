package identity

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// SignupRequest is the body for the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// LoginRequest is the body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// GoogleAuthRequest carries the opaque federated identity token.
type GoogleAuthRequest struct {
	GoogleToken string `json:"google_token"`
}

func (r GoogleAuthRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.GoogleToken, validation.Required),
	)
}

// WalletAuthRequest carries the connected wallet's address.
type WalletAuthRequest struct {
	WalletAddress string `json:"wallet_address"`
}

func (r WalletAuthRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.WalletAddress, validation.Required, validation.Length(1, 128)),
	)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
