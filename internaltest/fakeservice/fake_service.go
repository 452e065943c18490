// Package fakeservice is an in-memory stand-in for the remote identity
// service, used by tests across the module. Tokens are issued as "AT<n>" /
// "RT<n>" so scenarios can assert exact rotation order.
package fakeservice

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

type account struct {
	user     identity.User
	password string
}

// Service holds the fake's mutable state. The Fail* and RotateRefresh
// fields script failure modes per test; they are read under the lock.
type Service struct {
	lock     sync.Mutex
	accounts map[string]*account // keyed by email
	access   map[string]string   // access token -> user ID
	refresh  map[string]string   // refresh token -> user ID
	counter  int

	// RotateRefresh invalidates a refresh token on first use, mirroring a
	// service that rotates the pair on every refresh.
	RotateRefresh bool
	// FailRefresh makes the refresh endpoint answer 401.
	FailRefresh bool
	// FailLogout makes the logout endpoint answer 500.
	FailLogout bool

	refreshCalls int
}

func New() *Service {
	return &Service{
		accounts:      make(map[string]*account),
		access:        make(map[string]string),
		refresh:       make(map[string]string),
		RotateRefresh: true,
	}
}

// Seed registers an account and returns its user record.
func (s *Service) Seed(email, password string) identity.User {
	s.lock.Lock()
	defer s.lock.Unlock()

	user := identity.User{
		ID:         fmt.Sprintf("%d", len(s.accounts)+1),
		Email:      email,
		FullName:   email,
		Username:   utils.Ptr(strings.Split(email, "@")[0]),
		IsActive:   true,
		IsVerified: true,
		CreatedAt:  utils.Ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	s.accounts[email] = &account{user: user, password: password}
	return user
}

// ExpireAccessTokens invalidates every issued access token, so the next
// authenticated request sees a 401.
func (s *Service) ExpireAccessTokens() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.access = make(map[string]string)
}

// RefreshCalls reports how many refresh requests reached the service.
func (s *Service) RefreshCalls() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.refreshCalls
}

// Handler returns the fake's HTTP surface.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+identity.RouteSignup, s.handleSignup)
	mux.HandleFunc("POST "+identity.RouteLogin, s.handleLogin)
	mux.HandleFunc("POST "+identity.RouteGoogle, s.handleGoogle)
	mux.HandleFunc("POST "+identity.RouteWallet, s.handleWallet)
	mux.HandleFunc("POST "+identity.RouteRefresh, s.handleRefresh)
	mux.HandleFunc("GET "+identity.RouteMe, s.handleMe)
	mux.HandleFunc("POST "+identity.RouteLogout, s.handleLogout)
	return mux
}

func (s *Service) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req identity.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	s.lock.Lock()
	if _, exists := s.accounts[req.Email]; exists {
		s.lock.Unlock()
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	s.lock.Unlock()

	user := s.Seed(req.Email, req.Password)
	s.issuePair(w, user)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req identity.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	s.lock.Lock()
	acct, ok := s.accounts[req.Email]
	s.lock.Unlock()
	if !ok || acct.password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.issuePair(w, acct.user)
}

func (s *Service) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var req identity.GoogleAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GoogleToken == "" {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	if strings.HasPrefix(req.GoogleToken, "bad-") {
		writeError(w, http.StatusUnauthorized, "federated token rejected")
		return
	}
	email := "google-user@example.com"
	s.lock.Lock()
	acct, ok := s.accounts[email]
	s.lock.Unlock()
	if !ok {
		user := s.Seed(email, "")
		s.issuePair(w, user)
		return
	}
	s.issuePair(w, acct.user)
}

func (s *Service) handleWallet(w http.ResponseWriter, r *http.Request) {
	var req identity.WalletAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	email := req.WalletAddress + "@wallet.local"
	s.lock.Lock()
	acct, ok := s.accounts[email]
	s.lock.Unlock()
	if !ok {
		s.Seed(email, "")
		s.lock.Lock()
		acct = s.accounts[email]
		acct.user.WalletAddress = utils.Ptr(req.WalletAddress)
		s.lock.Unlock()
	}
	s.issuePair(w, acct.user)
}

func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	s.lock.Lock()
	s.refreshCalls++
	userID, ok := s.refresh[req.RefreshToken]
	if s.FailRefresh || !ok {
		s.lock.Unlock()
		writeError(w, http.StatusUnauthorized, "refresh token invalid")
		return
	}
	if s.RotateRefresh {
		delete(s.refresh, req.RefreshToken)
	}
	s.counter++
	access := fmt.Sprintf("AT%d", s.counter)
	refreshed := fmt.Sprintf("RT%d", s.counter)
	s.access[access] = userID
	s.refresh[refreshed] = userID
	s.lock.Unlock()

	writeJSON(w, http.StatusOK, identity.RefreshResponse{
		AccessToken:  access,
		RefreshToken: refreshed,
	})
}

func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFromBearer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	fail := s.FailLogout
	s.lock.Unlock()
	if fail {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	if _, ok := s.userFromBearer(r); !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Service) issuePair(w http.ResponseWriter, user identity.User) {
	s.lock.Lock()
	s.counter++
	access := fmt.Sprintf("AT%d", s.counter)
	refresh := fmt.Sprintf("RT%d", s.counter)
	s.access[access] = user.ID
	s.refresh[refresh] = user.ID
	s.lock.Unlock()

	writeJSON(w, http.StatusOK, identity.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		User:         user,
	})
}

func (s *Service) userFromBearer(r *http.Request) (identity.User, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return identity.User{}, false
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	userID, ok := s.access[parts[1]]
	if !ok {
		return identity.User{}, false
	}
	for _, acct := range s.accounts {
		if acct.user.ID == userID {
			return acct.user, true
		}
	}
	return identity.User{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
