package config

import "time"

// StoreConfig holds the token store settings. The TTLs are advisory,
// client-side pruning windows; the server's 401 remains authoritative.
type StoreConfig interface {
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetStoreSealKey() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetAccessTokenTTL() time.Duration {
	return 30 * time.Minute
}

func (Store) GetRefreshTokenTTL() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}

// GetStoreSealKey returns the key material used to seal the token file at
// rest. An empty value disables sealing (tokens stored in the clear).
func (Store) GetStoreSealKey() string {
	return GetEnv("STORE_SEAL_KEY", "")
}
