// Package guard gates routes on the session state. Both gates are pure
// functions of a session snapshot; they hold no state of their own and are
// re-evaluated on every request or state change.
package guard

import (
	"net/http"

	"github.com/jrsteele09/go-auth-client/session"
)

// Outcome is what a gate decided to do with a request.
type Outcome string

const (
	// OutcomeLoading means the boot probe has not resolved yet; render a
	// neutral placeholder rather than guessing.
	OutcomeLoading Outcome = "loading"
	// OutcomeAllow lets the wrapped content through.
	OutcomeAllow Outcome = "allow"
	// OutcomeRedirect sends the caller to Decision.RedirectTo.
	OutcomeRedirect Outcome = "redirect"
)

// Decision is a gate's verdict for one snapshot.
type Decision struct {
	Outcome    Outcome
	RedirectTo string
}

// Snapshotter is the slice of the session controller the gates consume.
type Snapshotter interface {
	Snapshot() session.Snapshot
}

// Guard evaluates the two route gates against a session controller.
type Guard struct {
	sessions       Snapshotter
	loginRoute     string
	dashboardRoute string
}

func New(sessions Snapshotter, loginRoute, dashboardRoute string) *Guard {
	return &Guard{
		sessions:       sessions,
		loginRoute:     loginRoute,
		dashboardRoute: dashboardRoute,
	}
}

// Public admits only anonymous visitors; an authenticated user is sent to
// the authenticated landing route.
func (g *Guard) Public(snap session.Snapshot) Decision {
	if snap.IsLoading {
		return Decision{Outcome: OutcomeLoading}
	}
	if snap.IsAuthenticated {
		return Decision{Outcome: OutcomeRedirect, RedirectTo: g.dashboardRoute}
	}
	return Decision{Outcome: OutcomeAllow}
}

// Private is the symmetric gate: only authenticated users pass, everyone
// else is sent to the public entry route.
func (g *Guard) Private(snap session.Snapshot) Decision {
	if snap.IsLoading {
		return Decision{Outcome: OutcomeLoading}
	}
	if !snap.IsAuthenticated {
		return Decision{Outcome: OutcomeRedirect, RedirectTo: g.loginRoute}
	}
	return Decision{Outcome: OutcomeAllow}
}

// PublicOnly is Public as middleware for a hosting HTTP shell.
func (g *Guard) PublicOnly() func(http.HandlerFunc) http.HandlerFunc {
	return g.middleware(g.Public)
}

// RequireAuth is Private as middleware for a hosting HTTP shell.
func (g *Guard) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return g.middleware(g.Private)
}

func (g *Guard) middleware(gate func(session.Snapshot) Decision) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch decision := gate(g.sessions.Snapshot()); decision.Outcome {
			case OutcomeLoading:
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("Loading..."))
			case OutcomeRedirect:
				http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
			default:
				next(w, r)
			}
		}
	}
}
