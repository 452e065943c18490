// Package wallet adapts an external wallet widget into a credential
// source. The widget exposes only a connection status and an address; this
// layer turns "newly connected" into exactly one wallet credential.
package wallet

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/session"
)

// Provider is the external wallet connection the watcher observes. Its own
// connection handshake is out of scope here.
type Provider interface {
	Disconnect(ctx context.Context) error
}

// Watcher consumes connect/disconnect observations from the wallet widget
// and submits the connected address as a credential exactly once per
// distinct connection. Re-observing an unchanged connected address is a
// no-op; a disconnect re-arms the watcher for the next connection.
type Watcher struct {
	provider Provider
	log      zerolog.Logger

	lock      sync.Mutex
	submitted bool
	sink      func(session.Credential)
	errSink   func(error)
}

var (
	_ session.CredentialSource   = (*Watcher)(nil)
	_ session.WalletDisconnector = (*Watcher)(nil)
)

// WatcherOption defines a function type to modify the Watcher instance.
type WatcherOption func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(log zerolog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.log = log
	}
}

// NewWatcher wraps the given provider. The provider may be nil when the
// host only needs observation handling and no disconnect capability.
func NewWatcher(provider Provider, options ...WatcherOption) *Watcher {
	w := &Watcher{
		provider: provider,
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Produce registers the credential sinks. Observations arriving before
// Produce are dropped; the widget re-reports its status on mount.
func (w *Watcher) Produce(_ context.Context, sink func(session.Credential), errSink func(error)) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.sink = sink
	w.errSink = errSink
}

// Observe feeds the widget's current connection status and address. The
// submitted flag is sticky across repeated observations of one connection
// and resets only when the wallet disconnects.
func (w *Watcher) Observe(connected bool, address string) {
	w.lock.Lock()

	if !connected {
		w.submitted = false
		w.lock.Unlock()
		return
	}

	if address == "" {
		errSink := w.errSink
		w.lock.Unlock()
		if errSink != nil {
			errSink(errors.New("[Watcher.Observe] connected wallet reported no address"))
		}
		return
	}

	if w.submitted || w.sink == nil {
		w.lock.Unlock()
		return
	}
	w.submitted = true
	sink := w.sink
	w.lock.Unlock()

	w.log.Debug().Str("address", address).Msg("wallet connected, submitting credential")
	sink(session.WalletCredential{Address: address})
}

// Disconnect severs the provider connection and re-arms the watcher.
func (w *Watcher) Disconnect(ctx context.Context) error {
	w.lock.Lock()
	w.submitted = false
	w.lock.Unlock()

	if w.provider == nil {
		return nil
	}
	if err := w.provider.Disconnect(ctx); err != nil {
		return errors.Wrap(err, "[Watcher.Disconnect] provider disconnect")
	}
	return nil
}
