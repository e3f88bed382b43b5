// Package services contains application services for the SportMatch client.
// This file defines the authentication service: login, register, logout,
// session validation and restoring a persisted session at startup.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sportmatch/internal/client/client"
	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/client/session"
	"github.com/dmitrijs2005/sportmatch/internal/common"
	"github.com/dmitrijs2005/sportmatch/internal/logging"
)

// ErrMissingToken is returned when the server accepted a login but did not
// hand out both tokens.
var ErrMissingToken = errors.New("auth response carries no token pair")

// ValidationPolicy decides what Validate does when the server cannot be
// asked: keep the session (fail-open) or drop it (fail-closed).
type ValidationPolicy string

const (
	FailOpen   ValidationPolicy = "fail-open"
	FailClosed ValidationPolicy = "fail-closed"
)

// ParseValidationPolicy accepts "fail-open" and "fail-closed"; empty means fail-open.
func ParseValidationPolicy(s string) (ValidationPolicy, error) {
	switch ValidationPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailOpen:
		return FailOpen, nil
	case FailClosed:
		return FailClosed, nil
	default:
		return "", fmt.Errorf("unknown validation policy %q", s)
	}
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login/Register: authenticate against the server and install the token pair.
//   - Logout: tell the server (best effort) and always clear the local session.
//   - Validate: confirm the session with the server; a 401 always ends it.
//   - Restore: reload a persisted session.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Login(ctx context.Context, email string, password []byte) (models.User, error)
	Register(ctx context.Context, req models.RegisterRequest, password []byte) (models.User, error)
	Logout(ctx context.Context) error
	Validate(ctx context.Context) (bool, error)
	Restore(ctx context.Context) (bool, error)
}

// SessionStore is the part of session.Store the auth service drives.
type SessionStore interface {
	session.Reader
	Install(ctx context.Context, cred session.Credential, user models.User) error
	Clear(ctx context.Context) bool
	ClearIfEpoch(ctx context.Context, epoch uint64) bool
	Restore(ctx context.Context) (bool, error)
}

type authService struct {
	client client.Client
	store  SessionStore
	bus    *events.Bus
	policy ValidationPolicy
	log    logging.Logger
}

// NewAuthService constructs an AuthService bound to the API client and the
// credential store. A nil logger means discard.
func NewAuthService(c client.Client, store SessionStore, bus *events.Bus, policy ValidationPolicy, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Discard()
	}
	if policy == "" {
		policy = FailOpen
	}
	return &authService{client: c, store: store, bus: bus, policy: policy, log: log}
}

// Login exchanges email and password for a token pair and installs it. The
// password buffer is wiped before returning.
func (a *authService) Login(ctx context.Context, email string, password []byte) (models.User, error) {
	defer common.WipeByteArray(password)

	resp, err := a.client.Login(ctx, models.AuthRequest{Email: email, Password: string(password)})
	if err != nil {
		return models.User{}, fmt.Errorf("login error: %w", err)
	}
	return a.install(ctx, resp)
}

// Register creates the account and logs in with the returned token pair.
func (a *authService) Register(ctx context.Context, req models.RegisterRequest, password []byte) (models.User, error) {
	defer common.WipeByteArray(password)

	req.Password = string(password)
	resp, err := a.client.Register(ctx, req)
	if err != nil {
		return models.User{}, fmt.Errorf("register error: %w", err)
	}
	return a.install(ctx, resp)
}

func (a *authService) install(ctx context.Context, resp *models.AuthResponse) (models.User, error) {
	if resp == nil || resp.Token == "" || resp.RefreshToken == "" {
		return models.User{}, ErrMissingToken
	}

	var user models.User
	if resp.User != nil {
		user = *resp.User
	} else {
		u, err := session.IdentityFromToken(resp.Token)
		if err != nil {
			return models.User{}, fmt.Errorf("read identity: %w", err)
		}
		user = u
	}

	cred := session.Credential{AccessToken: resp.Token, RefreshToken: resp.RefreshToken}
	if err := a.store.Install(ctx, cred, user); err != nil {
		if errors.Is(err, session.ErrIncompleteCredential) {
			return models.User{}, err
		}
		// Persisting failed; the in-memory session is live anyway.
		a.log.Warn(ctx, "session not persisted", "error", err)
	}
	a.log.Info(ctx, "logged in", "user_id", user.ID)
	return user, nil
}

// Logout notifies the server and clears the session even when that call
// fails. SessionEnded is published only if a session was actually cleared.
func (a *authService) Logout(ctx context.Context) error {
	if a.store.IsAuthenticated() {
		if err := a.client.Logout(ctx); err != nil {
			a.log.Warn(ctx, "server logout failed", "error", err)
		}
	}
	if a.store.Clear(ctx) {
		a.bus.Publish(events.SessionEnded, events.SessionEndedPayload{Reason: events.ReasonLogout})
		a.log.Info(ctx, "logged out")
	}
	return nil
}

// Validate asks the server for the current user's profile. It returns true
// while the session is usable. A rejected session is always cleared; other
// failures follow the configured policy.
func (a *authService) Validate(ctx context.Context) (bool, error) {
	epoch := a.store.Epoch()
	user, ok := a.store.User()
	if !ok || !a.store.IsAuthenticated() {
		return false, nil
	}

	_, err := a.client.UserProfile(ctx, user.ID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return a.store.IsAuthenticated(), err
	case errors.Is(err, client.ErrUnauthorized):
		a.end(ctx, epoch, err)
		return false, nil
	}

	if a.policy == FailClosed {
		a.log.Warn(ctx, "session validation failed, dropping session", "error", err)
		a.end(ctx, epoch, err)
		return false, nil
	}
	a.log.Warn(ctx, "session validation failed, keeping session", "error", err)
	return a.store.IsAuthenticated(), nil
}

// end clears the session unless the gateway already did.
func (a *authService) end(ctx context.Context, epoch uint64, cause error) {
	if a.store.ClearIfEpoch(ctx, epoch) {
		a.bus.Publish(events.SessionEnded, events.SessionEndedPayload{Reason: events.ReasonValidationFail, Err: cause})
	}
}

func (a *authService) Restore(ctx context.Context) (bool, error) {
	ok, err := a.store.Restore(ctx)
	if err != nil {
		return false, fmt.Errorf("restore session: %w", err)
	}
	return ok, nil
}
