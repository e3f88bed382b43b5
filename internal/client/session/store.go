package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/logging"
)

var (
	// ErrNoSession is returned by Rotate when the session was cleared while
	// a renewal was in flight.
	ErrNoSession = errors.New("no active session")
	// ErrIncompleteCredential rejects a pair with a missing token.
	ErrIncompleteCredential = errors.New("credential requires both access and refresh token")
)

// Credential is the access/refresh token pair.
type Credential struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (c Credential) complete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Change is delivered to OnChange listeners after every write.
type Change struct {
	Credential Credential
	Active     bool
	Epoch      uint64
}

// Reader is the read-only view handed to components that must not write
// the credential.
type Reader interface {
	Current() (Credential, bool)
	Epoch() uint64
	IsAuthenticated() bool
	User() (models.User, bool)
	OnChange(fn func(Change)) (cancel func())
}

// Snapshot is what a Persister stores.
type Snapshot struct {
	Credential Credential   `json:"credential"`
	User       *models.User `json:"user,omitempty"`
}

// Persister keeps the session across process restarts.
type Persister interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, bool, error)
	Clear(ctx context.Context) error
}

type listener struct {
	id uint64
	fn func(Change)
}

type Store struct {
	mu     sync.RWMutex
	cred   Credential
	user   *models.User
	active bool
	epoch  uint64

	lmu       sync.Mutex
	listeners []listener
	nextID    uint64

	persister Persister
	log       logging.Logger
}

type Option func(*Store)

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

func NewStore(opts ...Option) *Store {
	s := &Store{log: logging.Discard()}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ Reader = (*Store)(nil)

// Current returns the credential and whether a session is active.
func (s *Store) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.active
}

// Epoch increases on every install, rotation and clear.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active || s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Install starts a session after login or register.
func (s *Store) Install(ctx context.Context, cred Credential, user models.User) error {
	if !cred.complete() {
		return ErrIncompleteCredential
	}

	s.mu.Lock()
	s.cred = cred
	s.user = &user
	s.active = true
	s.epoch++
	change := Change{Credential: cred, Active: true, Epoch: s.epoch}
	s.mu.Unlock()

	s.log.Info(ctx, "session installed", "user_id", user.ID, "epoch", change.Epoch)
	s.notify(change)
	return s.save(ctx, Snapshot{Credential: cred, User: &user})
}

// Rotate replaces the pair after a successful renewal. It refuses to
// resurrect a session that was cleared meanwhile.
func (s *Store) Rotate(ctx context.Context, cred Credential) error {
	if !cred.complete() {
		return ErrIncompleteCredential
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNoSession
	}
	s.cred = cred
	s.epoch++
	change := Change{Credential: cred, Active: true, Epoch: s.epoch}
	var user *models.User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	s.mu.Unlock()

	s.log.Info(ctx, "credential rotated", "epoch", change.Epoch)
	s.notify(change)
	return s.save(ctx, Snapshot{Credential: cred, User: user})
}

// Clear ends the session. It reports whether there was one to end.
func (s *Store) Clear(ctx context.Context) bool {
	return s.clear(ctx, func() bool { return true })
}

// ClearIfEpoch ends the session only if no write happened since epoch. Of
// several callers racing on the same stale epoch exactly one gets true.
func (s *Store) ClearIfEpoch(ctx context.Context, epoch uint64) bool {
	return s.clear(ctx, func() bool { return s.epoch == epoch })
}

func (s *Store) clear(ctx context.Context, cond func() bool) bool {
	s.mu.Lock()
	if !s.active || !cond() {
		s.mu.Unlock()
		return false
	}
	s.cred = Credential{}
	s.user = nil
	s.active = false
	s.epoch++
	change := Change{Active: false, Epoch: s.epoch}
	s.mu.Unlock()

	s.log.Info(ctx, "session cleared", "epoch", change.Epoch)
	s.notify(change)

	if s.persister != nil {
		if err := s.persister.Clear(ctx); err != nil {
			s.log.Warn(ctx, "failed to clear persisted session", "error", err)
		}
	}
	return true
}

// Restore loads a persisted session, if any. A snapshot without a user
// falls back to the identity claims of the access token.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	if s.persister == nil {
		return false, nil
	}
	snap, ok, err := s.persister.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if !ok || !snap.Credential.complete() {
		return false, nil
	}

	user := snap.User
	if user == nil {
		u, err := IdentityFromToken(snap.Credential.AccessToken)
		if err != nil {
			s.log.Warn(ctx, "persisted token carries no identity", "error", err)
		}
		user = &u
	}

	s.mu.Lock()
	s.cred = snap.Credential
	s.user = user
	s.active = true
	s.epoch++
	change := Change{Credential: snap.Credential, Active: true, Epoch: s.epoch}
	s.mu.Unlock()

	s.log.Info(ctx, "session restored", "user_id", user.ID)
	s.notify(change)
	return true, nil
}

// OnChange registers fn to run after every write, in registration order,
// on the writer's goroutine.
func (s *Store) OnChange(fn func(Change)) (cancel func()) {
	s.lmu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(c Change) {
	s.lmu.Lock()
	list := append([]listener(nil), s.listeners...)
	s.lmu.Unlock()
	for _, l := range list {
		l.fn(c)
	}
}

func (s *Store) save(ctx context.Context, snap Snapshot) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, snap); err != nil {
		s.log.Warn(ctx, "failed to persist session", "error", err)
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
