// Package session owns the authoritative in-memory authentication state.
// A Controller is constructed explicitly and injected into the hosting
// layer; there is no ambient global session.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/tokenstore"
)

// State is the controller's position in the session lifecycle.
type State string

const (
	// StateBooting is the initial state while the startup reconciliation
	// probe is in flight.
	StateBooting State = "booting"
	// StateAnonymous means no user is signed in.
	StateAnonymous State = "anonymous"
	// StateAuthenticated means a user is signed in.
	StateAuthenticated State = "authenticated"
)

// Snapshot is an immutable view of the session state handed to guards and
// UI code. IsAuthenticated is always a pure projection of State.
type Snapshot struct {
	State           State
	User            *identity.User
	IsLoading       bool
	IsAuthenticated bool
}

// Gateway is the slice of the identity gateway the controller consumes.
type Gateway interface {
	Signup(ctx context.Context, email, password string) (*identity.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*identity.AuthResponse, error)
	GoogleAuth(ctx context.Context, googleToken string) (*identity.AuthResponse, error)
	WalletAuth(ctx context.Context, walletAddress string) (*identity.AuthResponse, error)
	FetchProfile(ctx context.Context) (*identity.User, error)
	Logout(ctx context.Context) error
}

// WalletDisconnector severs any external wallet session during logout.
type WalletDisconnector interface {
	Disconnect(ctx context.Context) error
}

// Deps holds all dependencies for the Controller.
type Deps struct {
	Gateway Gateway            // Typed operations against the identity service
	Store   tokenstore.Store   // Persisted token pair, cleared on logout
	Wallet  WalletDisconnector // Optional; nil when no wallet integration exists
}

// Controller is the session state machine.
type Controller struct {
	deps Deps
	log  zerolog.Logger

	lock        sync.RWMutex
	state       State
	user        *identity.User
	isLoading   bool
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// ControllerOption defines a function type to modify the Controller instance.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(log zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = log
	}
}

// NewController initializes a Controller in the Booting state. Call Boot to
// reconcile against any persisted tokens before serving traffic.
func NewController(deps Deps, options ...ControllerOption) (*Controller, error) {
	if deps.Gateway == nil {
		return nil, errors.New("[NewController] Gateway is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[NewController] Store is required")
	}

	c := &Controller{
		deps:        deps,
		log:         zerolog.Nop(),
		state:       StateBooting,
		isLoading:   true,
		subscribers: make(map[int]func(Snapshot)),
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:           c.state,
		User:            c.user,
		IsLoading:       c.isLoading,
		IsAuthenticated: c.state == StateAuthenticated,
	}
}

// Subscribe registers a listener invoked with a fresh snapshot after every
// state change. The returned function unsubscribes.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.lock.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.lock.Unlock()

	return func() {
		c.lock.Lock()
		delete(c.subscribers, id)
		c.lock.Unlock()
	}
}

// Boot runs the startup reconciliation probe: if persisted tokens identify
// a user, the session resumes; any failure, including "no tokens present",
// resolves to Anonymous. Boot never fails outward and is idempotent.
func (c *Controller) Boot(ctx context.Context) {
	c.setLoading(true)

	user, err := c.deps.Gateway.FetchProfile(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("boot probe resolved anonymous")
		c.transition(StateAnonymous, nil)
		return
	}
	c.transition(StateAuthenticated, user)
}

// Login exchanges an email/password pair. On failure the current state is
// kept and the error propagates for display; a failed attempt never forces
// a logout.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	return c.Authenticate(ctx, PasswordCredential{Email: email, Password: password})
}

// Signup registers a new account and signs it in.
func (c *Controller) Signup(ctx context.Context, email, password string) error {
	resp, err := c.deps.Gateway.Signup(ctx, email, password)
	if err != nil {
		return errors.Wrap(err, "[Controller.Signup] exchange")
	}
	c.transition(StateAuthenticated, &resp.User)
	return nil
}

// GoogleAuth exchanges a federated identity token.
func (c *Controller) GoogleAuth(ctx context.Context, googleToken string) error {
	return c.Authenticate(ctx, FederatedCredential{Token: googleToken})
}

// WalletAuth exchanges a connected wallet address.
func (c *Controller) WalletAuth(ctx context.Context, walletAddress string) error {
	return c.Authenticate(ctx, WalletCredential{Address: walletAddress})
}

// Authenticate exchanges any credential through the matching gateway
// operation. All variants converge on the same transition.
func (c *Controller) Authenticate(ctx context.Context, cred Credential) error {
	var resp *identity.AuthResponse
	var err error

	switch v := cred.(type) {
	case PasswordCredential:
		resp, err = c.deps.Gateway.Login(ctx, v.Email, v.Password)
	case FederatedCredential:
		resp, err = c.deps.Gateway.GoogleAuth(ctx, v.Token)
	case WalletCredential:
		resp, err = c.deps.Gateway.WalletAuth(ctx, v.Address)
	default:
		return errors.Errorf("[Controller.Authenticate] unknown credential type %T", cred)
	}
	if err != nil {
		return errors.Wrap(err, "[Controller.Authenticate] exchange")
	}

	c.transition(StateAuthenticated, &resp.User)
	return nil
}

// Logout signs the user out locally no matter what: the wallet disconnect
// and the server-side invalidation are both best-effort, and the token
// store is always cleared. It never fails outward.
func (c *Controller) Logout(ctx context.Context) {
	if c.deps.Wallet != nil {
		if err := c.deps.Wallet.Disconnect(ctx); err != nil {
			c.log.Warn().Err(err).Msg("wallet disconnect failed during logout")
		}
	}

	if err := c.deps.Gateway.Logout(ctx); err != nil {
		c.log.Warn().Err(err).Msg("server-side logout failed, clearing local session anyway")
	}

	c.deps.Store.Clear()
	c.transition(StateAnonymous, nil)
}

// RefetchUser re-runs the boot probe. The session may legitimately demote
// to Anonymous when the tokens no longer identify a user.
func (c *Controller) RefetchUser(ctx context.Context) {
	c.Boot(ctx)
}

// HandleSessionExpired reconciles the controller after the transport forced
// a hard reset; wire it to the transport's session-expired callback.
func (c *Controller) HandleSessionExpired() {
	c.transition(StateAnonymous, nil)
}

func (c *Controller) setLoading(loading bool) {
	c.lock.Lock()
	c.isLoading = loading
	snap := c.snapshotLocked()
	c.lock.Unlock()
	c.notify(snap)
}

// transition replaces the user projection wholesale and ends any loading
// phase. The user value is owned by the controller from here on.
func (c *Controller) transition(state State, user *identity.User) {
	c.lock.Lock()
	c.state = state
	c.user = user
	c.isLoading = false
	snap := c.snapshotLocked()
	c.lock.Unlock()

	c.notify(snap)
}

func (c *Controller) notify(snap Snapshot) {
	c.lock.RLock()
	listeners := make([]func(Snapshot), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		listeners = append(listeners, fn)
	}
	c.lock.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
