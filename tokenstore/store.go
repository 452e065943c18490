// Package tokenstore persists the access/refresh token pair between runs.
// Storage is best-effort: an absent or expired slot is a normal state, never
// an error. Client-side expiry is advisory pruning only, the identity
// service's 401 response stays authoritative.
package tokenstore

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Default advisory validity windows, matching the service's issue policy.
const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Pair is the bearer token pair issued by the identity service. Both tokens
// are opaque to this package; the access and refresh tokens occupy distinct
// slots with distinct expiry policies and must never be swapped.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Store holds the current token pair. Implementations must treat absence as
// a valid state and must not return errors; persistence is best-effort.
type Store interface {
	// Set replaces both slots with the given pair, restarting their
	// advisory expiry windows.
	Set(pair Pair)
	// Get returns the currently valid pair. Expired slots come back as
	// empty strings; ok is false only when both slots are absent.
	Get() (pair Pair, ok bool)
	// Clear empties both slots.
	Clear()
}

// slot is one stored token with its advisory expiry.
type slot struct {
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func (s slot) valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// accessSlot builds the access slot. When the token happens to be a JWT
// whose exp claim falls before the advisory window, the earlier deadline
// wins, so we never attach a token we already know is dead.
func accessSlot(token string, ttl time.Duration) slot {
	expires := NowTimeFunc().Add(ttl)
	if exp, ok := jwtExpiry(token); ok && exp.Before(expires) {
		expires = exp
	}
	return slot{Token: token, ExpiresAt: expires}
}

func refreshSlot(token string, ttl time.Duration) slot {
	return slot{Token: token, ExpiresAt: NowTimeFunc().Add(ttl)}
}

// jwtExpiry peeks at a token's exp claim without verifying the signature.
// Opaque (non-JWT) tokens simply report no expiry.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
