package identity

// Endpoint paths on the identity service, relative to the service base URL.
const (
	RouteSignup  = "/auth/signup"
	RouteLogin   = "/auth/login"
	RouteGoogle  = "/auth/google"
	RouteWallet  = "/auth/wallet"
	RouteRefresh = "/auth/refresh"
	RouteMe      = "/auth/me"
	RouteLogout  = "/auth/logout"
)

// ExchangeRoutes are the credential-exchange endpoints. A 401 from any of
// these means the credential itself was rejected and must surface to the
// caller untouched; the transport's refresh recovery never applies to them.
var ExchangeRoutes = []string{RouteSignup, RouteLogin, RouteGoogle, RouteWallet}
