// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sessionauth owns the client's session state. It reconciles the
// three credential sources (demo flag, persisted bearer token, managed
// backend session) into one observable Session with fixed precedence
// Demo > Bearer > Managed.
package sessionauth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fischmanb/memduo-gate/internal/localstore"
	"github.com/fischmanb/memduo-gate/internal/services/identity"
)

// Local store keys. Everything under managedKeyPrefix belongs to the managed
// backend's session scheme and is swept wholesale on logout.
const (
	demoActiveKey    = "demo:active"
	demoEmailKey     = "demo:email"
	bearerTokenKey   = "bearer:token"
	managedKeyPrefix = "managedauth:"
	managedTokenKey  = managedKeyPrefix + "token"
	stagedFormKey    = "signup:staged_form"
)

// ErrBadMasterCode is returned when the demo master code does not match.
var ErrBadMasterCode = errors.New("invalid demo master code")

// ManagedBackend is the subset of the managed identity backend the
// authority needs.
type ManagedBackend interface {
	Authenticate(ctx context.Context, cred identity.Credential) (*identity.Identity, string, error)
	CurrentIdentity(ctx context.Context, sessionToken string) (*identity.Identity, error)
	SignOut(ctx context.Context, sessionToken string) error
	ResetCredential(ctx context.Context, email string) error
	Subscribe(fn func(*identity.Identity)) func()
}

// BearerBackend validates persisted bearer tokens.
type BearerBackend interface {
	CurrentIdentity(ctx context.Context, sessionToken string) (*identity.Identity, error)
}

// Authority resolves and owns the session. Create with New, call Init once
// per cold start, observe via Subscribe, release with Close.
type Authority struct {
	store          *localstore.Store
	managed        ManagedBackend
	bearer         BearerBackend
	demoMasterCode string

	mu          sync.Mutex
	session     Session
	attempt     uint64
	subs        map[int]func(Session)
	nextSub     int
	unsubscribe func()
}

// New creates a session authority. The managed auth-state stream is
// subscribed immediately so sign-in/sign-out events observed while the
// process runs keep the session current.
func New(store *localstore.Store, managed ManagedBackend, bearer BearerBackend, demoMasterCode string) *Authority {
	a := &Authority{
		store:          store,
		managed:        managed,
		bearer:         bearer,
		demoMasterCode: demoMasterCode,
		session:        Session{Mode: ModeUnknown},
		subs:           make(map[int]func(Session)),
	}
	a.unsubscribe = managed.Subscribe(a.onManagedEvent)
	return a
}

// Close detaches from the managed auth-state stream.
func (a *Authority) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// Current returns the session as last resolved.
func (a *Authority) Current() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Subscribe registers an observer called on every session change. Returns
// an unsubscribe function.
func (a *Authority) Subscribe(fn func(Session)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs, id)
	}
}

// setSession commits a new session and notifies observers outside the lock.
func (a *Authority) setSession(sess Session) {
	a.mu.Lock()
	a.session = sess
	listeners := make([]func(Session), 0, len(a.subs))
	for _, fn := range a.subs {
		listeners = append(listeners, fn)
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(sess)
	}
}

// Init resolves the session from the persisted sources, in precedence
// order. Each call gets a monotonically increasing attempt number; when a
// newer Init starts before an older one finishes, the older result is
// discarded so stale network round-trips never overwrite fresher state.
func (a *Authority) Init(ctx context.Context) (Session, error) {
	a.mu.Lock()
	a.attempt++
	attempt := a.attempt
	a.mu.Unlock()

	sess, err := a.resolve(ctx)
	if err != nil {
		return Session{}, err
	}

	a.mu.Lock()
	if a.attempt != attempt {
		superseded := a.session
		a.mu.Unlock()
		slog.Debug("session_init_superseded", "attempt", attempt)
		return superseded, nil
	}
	a.mu.Unlock()

	a.setSession(sess)
	slog.Info("session_resolved", "mode", sess.Mode.String())
	return sess, nil
}

func (a *Authority) resolve(ctx context.Context) (Session, error) {
	// 1. Demo flag: a deliberate override, no backend call.
	if active, ok, err := a.store.Get(demoActiveKey); err != nil {
		return Session{}, err
	} else if ok && active == "1" {
		email, _, err := a.store.Get(demoEmailKey)
		if err != nil {
			return Session{}, err
		}
		return Session{Mode: ModeDemo, DemoEmail: email}, nil
	}

	// 2. Persisted bearer token, revalidated before trusting it.
	if tok, ok, err := a.store.Get(bearerTokenKey); err != nil {
		return Session{}, err
	} else if ok && tok != "" {
		ident, err := a.bearer.CurrentIdentity(ctx, tok)
		if err == nil {
			return Session{Mode: ModeBearer, BearerToken: tok, Identity: ident}, nil
		}
		// Never trust a stale bearer token: purge and fall through.
		slog.Warn("bearer_token_purged", "error", err)
		if err := a.store.Delete(bearerTokenKey); err != nil {
			return Session{}, err
		}
	}

	// 3. Managed backend's own session store.
	if tok, ok, err := a.store.Get(managedTokenKey); err != nil {
		return Session{}, err
	} else if ok && tok != "" {
		ident, err := a.managed.CurrentIdentity(ctx, tok)
		if err == nil {
			return Session{Mode: ModeManaged, Identity: ident}, nil
		}
		if !errors.Is(err, identity.ErrUnauthenticated) {
			return Session{}, err
		}
		if err := a.store.DeletePrefix(managedKeyPrefix); err != nil {
			return Session{}, err
		}
	}

	return Session{Mode: ModeNone}, nil
}

// onManagedEvent applies managed auth-state changes, respecting precedence:
// Demo and Bearer are never downgraded by an incidental managed event.
func (a *Authority) onManagedEvent(ident *identity.Identity) {
	a.mu.Lock()
	mode := a.session.Mode
	a.mu.Unlock()

	if mode == ModeDemo || mode == ModeBearer {
		return
	}

	if ident == nil {
		if mode == ModeManaged {
			a.setSession(Session{Mode: ModeNone})
		}
		return
	}
	a.setSession(Session{Mode: ModeManaged, Identity: ident})
}

// Login authenticates against the managed backend. On success the session
// token is persisted under the managed scheme and the session becomes
// Managed; on failure the session is unchanged and the error surfaces.
func (a *Authority) Login(ctx context.Context, cred identity.Credential) (Session, error) {
	ident, tok, err := a.managed.Authenticate(ctx, cred)
	if err != nil {
		return a.Current(), err
	}

	if err := a.store.Put(managedTokenKey, tok); err != nil {
		return a.Current(), err
	}

	sess := Session{Mode: ModeManaged, Identity: ident}
	a.setSession(sess)
	return sess, nil
}

// SetBackendAuth promotes the session to bearer mode with an already
// obtained token and identity. No backend call is made; the caller is
// telling the authority the result of its own login step.
func (a *Authority) SetBackendAuth(ident *identity.Identity, bearerToken string) (Session, error) {
	if err := a.store.Put(bearerTokenKey, bearerToken); err != nil {
		return a.Current(), err
	}

	sess := Session{Mode: ModeBearer, BearerToken: bearerToken, Identity: ident}
	a.setSession(sess)
	return sess, nil
}

// EnterDemo activates demo mode when the master code matches. An empty
// configured code disables demo mode entirely.
func (a *Authority) EnterDemo(masterCode, email string) (Session, error) {
	if a.demoMasterCode == "" || masterCode != a.demoMasterCode {
		return a.Current(), ErrBadMasterCode
	}

	if err := a.store.Put(demoActiveKey, "1"); err != nil {
		return a.Current(), err
	}
	if err := a.store.Put(demoEmailKey, email); err != nil {
		return a.Current(), err
	}

	sess := Session{Mode: ModeDemo, DemoEmail: email}
	a.setSession(sess)
	return sess, nil
}

// Logout clears all three sources and transitions to None. It is
// idempotent and never returns an error: local state clearing always
// succeeds even when the backend sign-out fails.
func (a *Authority) Logout(ctx context.Context) {
	tok, _, _ := a.store.Get(managedTokenKey)

	for _, key := range []string{demoActiveKey, demoEmailKey, bearerTokenKey} {
		if err := a.store.Delete(key); err != nil {
			slog.Warn("logout_local_clear_failed", "key", key, "error", err)
		}
	}
	// Aggressive sweep of every key under the managed session scheme.
	if err := a.store.DeletePrefix(managedKeyPrefix); err != nil {
		slog.Warn("logout_local_clear_failed", "key", managedKeyPrefix, "error", err)
	}

	if tok != "" {
		if err := a.managed.SignOut(ctx, tok); err != nil {
			slog.Warn("logout_signout_failed", "error", err)
		}
	}

	a.setSession(Session{Mode: ModeNone})
}

// ResetCredential passes through to the managed backend without touching
// session state.
func (a *Authority) ResetCredential(ctx context.Context, email string) error {
	return a.managed.ResetCredential(ctx, email)
}

// StageSignupForm caches the pre-registration form payload locally so an
// interrupted setup flow can restore it.
func (a *Authority) StageSignupForm(payload string) error {
	return a.store.Put(stagedFormKey, payload)
}

// StagedSignupForm returns the cached form payload, if any.
func (a *Authority) StagedSignupForm() (string, bool, error) {
	return a.store.Get(stagedFormKey)
}

// ClearStagedSignupForm drops the cached form payload.
func (a *Authority) ClearStagedSignupForm() error {
	return a.store.Delete(stagedFormKey)
}
