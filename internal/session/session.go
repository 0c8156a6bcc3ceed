package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"seat-booking-companion/config"
	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/cache"
	"seat-booking-companion/internal/gateway"
)

var (
	// ErrNoSilentCredentials means neither a password nor a Feishu code is configured.
	ErrNoSilentCredentials = errors.New("no credentials configured for silent re-authentication")
	// ErrMissingToken means the backend accepted the login but sent no token.
	ErrMissingToken = errors.New("login response carried no token")
)

// API is the slice of the backend the session needs.
type API interface {
	Login(ctx context.Context, creds backend.Credentials) (*backend.LoginResponse, error)
	FeishuCallback(ctx context.Context, code string) (*backend.LoginResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*backend.User, error)
}

// State is a snapshot of the session for the UI.
type State struct {
	Authenticated bool          `json:"authenticated"`
	User          *backend.User `json:"user"`
	Loading       bool          `json:"loading"`
	Error         string        `json:"error,omitempty"`
}

// Store holds the authentication state and the current user.
type Store struct {
	api    API
	tokens gateway.TokenStore
	auth   config.AuthConfig
	cache  *cache.Manager
	now    func() time.Time

	mu            sync.RWMutex
	authenticated bool
	user          *backend.User
	loading       bool
	authErr       string
	onLost        []func()
}

// New creates a session store. c may be nil.
func New(api API, tokens gateway.TokenStore, auth config.AuthConfig, c *cache.Manager) *Store {
	return &Store{api: api, tokens: tokens, auth: auth, cache: c, now: time.Now}
}

// State returns a copy of the current session state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{Authenticated: s.authenticated, Loading: s.loading, Error: s.authErr}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// Authenticated reports whether a session is currently held.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// OnSessionLost registers fn to run after a failed silent re-authentication has
// dropped the session. fn must not block on outbound requests.
func (s *Store) OnSessionLost(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLost = append(s.onLost, fn)
}

// CurrentUserID returns the signed-in user's id, or 0.
func (s *Store) CurrentUserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

// Restore loads the cached profile so the current user is known before the first
// round trip to the backend.
func (s *Store) Restore(ctx context.Context) {
	if s.cache == nil {
		return
	}
	var u backend.User
	if !s.cache.Get(ctx, cache.KeyUserInfo, &u) {
		return
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
}

// SignIn logs in with a username and password.
func (s *Store) SignIn(ctx context.Context, creds backend.Credentials) (*backend.User, error) {
	s.begin()
	resp, err := s.api.Login(ctx, creds)
	return s.finishLogin(ctx, resp, err, "登录失败")
}

// SignInWithFeishu exchanges a Feishu authorization code for a session.
func (s *Store) SignInWithFeishu(ctx context.Context, code string) (*backend.User, error) {
	s.begin()
	resp, err := s.api.FeishuCallback(ctx, code)
	return s.finishLogin(ctx, resp, err, "飞书登录失败")
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.authErr = ""
	s.mu.Unlock()
}

func (s *Store) finishLogin(ctx context.Context, resp *backend.LoginResponse, err error, fallback string) (*backend.User, error) {
	if err == nil && resp.Token == "" {
		err = ErrMissingToken
	}
	if err == nil {
		err = s.tokens.SetToken(ctx, resp.Token)
	}
	if err != nil {
		// A failed login must not leave an older credential behind.
		if clearErr := s.tokens.ClearToken(ctx); clearErr != nil {
			log.Errorf("Failed to clear stored credential: %v", clearErr)
		}
		msg := gateway.Message(err)
		if msg == "" {
			msg = fallback
		}
		s.mu.Lock()
		s.authenticated, s.user, s.loading, s.authErr = false, nil, false, msg
		s.mu.Unlock()
		return nil, err
	}

	user := resp.Profile()
	if user == nil {
		user, err = s.api.Me(ctx)
		if err != nil {
			log.Warnf("Signed in but failed to load profile: %v", err)
		}
	}
	s.setUser(ctx, user)

	s.mu.Lock()
	s.authenticated, s.loading = true, false
	s.mu.Unlock()
	return user, nil
}

func (s *Store) setUser(ctx context.Context, u *backend.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	if s.cache != nil && u != nil {
		if err := s.cache.Set(ctx, cache.KeyUserInfo, u, cache.TTLVeryLong); err != nil {
			log.Warnf("Failed to cache user info: %v", err)
		}
	}
}

// SignOut logs out on the backend. The local credential and user-scoped cache entries
// are dropped even when the backend call fails.
func (s *Store) SignOut(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		log.Warnf("Logout failed, local credential cleared anyway: %v", err)
	}
	s.dropSession(ctx)
}

func (s *Store) dropSession(ctx context.Context) {
	if err := s.tokens.ClearToken(ctx); err != nil {
		log.Errorf("Failed to clear stored credential: %v", err)
	}
	if s.cache != nil {
		for _, key := range []string{
			cache.KeyUserInfo,
			cache.KeyUserCredits,
			cache.KeyUserBookings,
			cache.KeyUserInvitations,
			cache.KeyUserTransactions,
		} {
			s.cache.Delete(ctx, key)
		}
	}
	s.mu.Lock()
	s.authenticated, s.user, s.loading = false, nil, false
	s.mu.Unlock()
}

// CheckAuthStatus validates a stored token: a local expiry check first, then a
// profile round trip. Invalid tokens are removed. A backend that cannot be reached
// proves nothing about the token, so it is kept.
func (s *Store) CheckAuthStatus(ctx context.Context) (bool, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read stored credential: %w", err)
	}
	if token == "" {
		s.mu.Lock()
		s.authenticated, s.user = false, nil
		s.mu.Unlock()
		return false, nil
	}

	if tokenExpired(token, s.now()) {
		log.Info("Stored token has expired, removing it")
		s.dropSession(ctx)
		return false, nil
	}

	s.mu.Lock()
	s.authenticated, s.loading = true, true
	s.mu.Unlock()

	user, err := s.api.Me(ctx)
	if err != nil {
		if gateway.IsNetwork(err) {
			s.mu.Lock()
			s.loading = false
			s.mu.Unlock()
			return true, err
		}
		log.Warnf("Stored token is invalid, removing it: %v", err)
		s.dropSession(ctx)
		return false, nil
	}

	s.setUser(ctx, user)
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	return true, nil
}

// Reauthenticate obtains a fresh token without user interaction. It is installed
// as the gateway's re-authenticator and uses only anonymous login calls.
func (s *Store) Reauthenticate(ctx context.Context) (string, error) {
	var (
		resp *backend.LoginResponse
		err  error
	)
	switch {
	case s.auth.Username != "" && s.auth.Password != "":
		resp, err = s.api.Login(ctx, backend.Credentials{Username: s.auth.Username, Password: s.auth.Password})
	case s.auth.FeishuCode != "":
		resp, err = s.api.FeishuCallback(ctx, s.auth.FeishuCode)
	default:
		err = ErrNoSilentCredentials
	}
	if err == nil && (resp == nil || resp.Token == "") {
		err = ErrMissingToken
	}
	if err != nil {
		s.loseSession(ctx, err)
		return "", err
	}

	if u := resp.Profile(); u != nil {
		s.setUser(ctx, u)
	}
	s.mu.Lock()
	s.authenticated = true
	s.mu.Unlock()
	return resp.Token, nil
}

// loseSession drops a session the backend no longer accepts and tells the
// registered listeners.
func (s *Store) loseSession(ctx context.Context, cause error) {
	if !s.Authenticated() {
		return
	}
	log.Warnf("Session lost, silent re-authentication failed: %v", cause)
	s.dropSession(ctx)

	s.mu.Lock()
	s.authErr = "登录已过期，请重新登录"
	listeners := append([]func(){}, s.onLost...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// tokenExpired reports whether a JWT's exp claim lies in the past. Tokens that are
// not JWTs, or carry no exp, are left for the backend to judge.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
