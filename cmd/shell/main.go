// Command shell is a minimal hosting application around the auth client:
// it wires the token store, transport, gateway, and session controller
// together, guards a public and a private route, and decides what a hard
// session reset means (here: the controller demotes to anonymous and the
// guard redirects to the login route).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/federated"
	"github.com/jrsteele09/go-auth-client/guard"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/tokenstore"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/jrsteele09/go-auth-client/wallet"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running shell")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("shell stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	c := config.New()
	displayAppname(c.GetAppName())

	store := tokenstore.NewFileStore(
		filepath.Join(c.GetDataFolder(), "tokens.json"),
		tokenstore.WithSealKey(c.GetStoreSealKey()),
		tokenstore.WithFileTTLs(c.GetAccessTokenTTL(), c.GetRefreshTokenTTL()),
	)

	// The controller is created after the transport but the expiry callback
	// fires only once requests flow, so the late bind is safe.
	var controller *session.Controller
	tr, err := transport.New(c.GetServiceURL(), store, func() {
		log.Warn().Msg("session expired, returning to public entry")
		if controller != nil {
			controller.HandleSessionExpired()
		}
	}, transport.WithLogger(log.Logger))
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	gateway, err := identity.NewGateway(
		c.GetServiceURL(),
		tr.Client(c.GetRequestTimeout()),
		store,
		identity.WithLogger(log.Logger),
	)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	watcher := wallet.NewWatcher(nil, wallet.WithLogger(log.Logger))

	controller, err = session.NewController(session.Deps{
		Gateway: gateway,
		Store:   store,
		Wallet:  watcher,
	}, session.WithLogger(log.Logger))
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}

	// Startup reconciliation: resume the session from persisted tokens or
	// settle into anonymous before the first request is served.
	bootCtx, cancel := context.WithTimeout(context.Background(), c.GetRequestTimeout())
	controller.Boot(bootCtx)
	cancel()

	watcher.Produce(context.Background(), func(cred session.Credential) {
		ctx, cancel := context.WithTimeout(context.Background(), c.GetRequestTimeout())
		defer cancel()
		if err := controller.Authenticate(ctx, cred); err != nil {
			log.Warn().Err(err).Msg("wallet authentication failed")
		}
	}, func(err error) {
		log.Warn().Err(err).Msg("wallet source error")
	})

	var source *federated.Source
	if c.GetFederatedClientID() != "" {
		source, err = federated.NewSource(context.Background(), c, federated.WithLogger(log.Logger))
		if err != nil {
			return fmt.Errorf("build federated source: %w", err)
		}
		source.Produce(context.Background(), func(cred session.Credential) {
			ctx, cancel := context.WithTimeout(context.Background(), c.GetRequestTimeout())
			defer cancel()
			if err := controller.Authenticate(ctx, cred); err != nil {
				log.Warn().Err(err).Msg("federated authentication failed")
			}
		}, func(err error) {
			log.Warn().Err(err).Msg("federated source error")
		})
	}

	server := &http.Server{Addr: c.GetPort(), Handler: routes(c, controller, source)}
	go listenAndServe(server)
	waitForStopSignal()
	return shutdown(server)
}

func routes(c config.Config, controller *session.Controller, source *federated.Source) http.Handler {
	gates := guard.New(controller, c.GetLoginRoute(), c.GetDashboardRoute())
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+c.GetLoginRoute(), gates.PublicOnly()(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "sign in: POST email+password to", c.GetLoginRoute())
	}))

	mux.HandleFunc("POST "+c.GetLoginRoute(), func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		err := controller.Login(r.Context(), r.FormValue("email"), r.FormValue("password"))
		if err != nil {
			// Credential errors surface verbatim; the session is untouched.
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, c.GetDashboardRoute(), http.StatusSeeOther)
	})

	mux.HandleFunc("GET "+c.GetDashboardRoute(), gates.RequireAuth()(func(w http.ResponseWriter, r *http.Request) {
		snap := controller.Snapshot()
		fmt.Fprintf(w, "signed in as %s\n", snap.User.Email)
	}))

	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		controller.Logout(r.Context())
		http.Redirect(w, r, c.GetLoginRoute(), http.StatusSeeOther)
	})

	if source != nil {
		mux.HandleFunc("GET /auth/google", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, source.AuthCodeURL("state"), http.StatusSeeOther)
		})
		mux.HandleFunc("GET /auth/callback", func(w http.ResponseWriter, r *http.Request) {
			source.ExchangeCode(r.Context(), r.URL.Query().Get("code"))
			http.Redirect(w, r, c.GetDashboardRoute(), http.StatusSeeOther)
		})
	}

	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("shell listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
