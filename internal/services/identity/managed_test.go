// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package identity_test

import (
	"context"
	"testing"

	"github.com/fischmanb/memduo-gate/internal/services/identity"
	"github.com/fischmanb/memduo-gate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerTestUser(t *testing.T, backend *identity.Managed) *identity.Identity {
	t.Helper()
	ident, err := backend.Register(context.Background(),
		identity.Profile{FirstName: "Ada", LastName: "Lovelace"},
		identity.Credential{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	return ident
}

func TestManagedRegister(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)

	ident := registerTestUser(t, backend)

	assert.NotEmpty(t, ident.UID)
	assert.Equal(t, "ada@example.com", ident.Email)
	assert.Equal(t, "Ada", ident.FirstName)
}

func TestManagedRegister_AlreadyExists(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)
	registerTestUser(t, backend)

	_, err := backend.Register(context.Background(),
		identity.Profile{},
		identity.Credential{Email: "ada@example.com", Password: "another-pass"})

	assert.ErrorIs(t, err, identity.ErrAlreadyExists)
}

func TestManagedRegister_InvalidEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)

	_, err := backend.Register(context.Background(),
		identity.Profile{},
		identity.Credential{Email: "not-an-email", Password: "correct-horse"})

	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestManagedRegister_ShortPassword(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)

	_, err := backend.Register(context.Background(),
		identity.Profile{},
		identity.Credential{Email: "ada@example.com", Password: "short"})

	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestManagedAuthenticate(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)
	registerTestUser(t, backend)

	ident, sessionToken, err := backend.Authenticate(context.Background(),
		identity.Credential{Email: "ada@example.com", Password: "correct-horse"})

	require.NoError(t, err)
	assert.NotEmpty(t, sessionToken)
	assert.Equal(t, "ada@example.com", ident.Email)
}

func TestManagedAuthenticate_WrongPassword(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)
	registerTestUser(t, backend)

	_, _, err := backend.Authenticate(context.Background(),
		identity.Credential{Email: "ada@example.com", Password: "wrong"})

	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestManagedAuthenticate_UnknownUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)

	_, _, err := backend.Authenticate(context.Background(),
		identity.Credential{Email: "nobody@example.com", Password: "whatever-pass"})

	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestManagedCurrentIdentity(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)
	registerTestUser(t, backend)

	_, sessionToken, err := backend.Authenticate(context.Background(),
		identity.Credential{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	ident, err := backend.CurrentIdentity(context.Background(), sessionToken)

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", ident.Email)
}

func TestManagedCurrentIdentity_UnknownToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)

	_, err := backend.CurrentIdentity(context.Background(), "bogus-token")

	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestManagedSignOut(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)
	registerTestUser(t, backend)
	ctx := context.Background()

	_, sessionToken, err := backend.Authenticate(ctx,
		identity.Credential{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	require.NoError(t, backend.SignOut(ctx, sessionToken))

	_, err = backend.CurrentIdentity(ctx, sessionToken)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	// Idempotent on a token that no longer exists.
	assert.NoError(t, backend.SignOut(ctx, sessionToken))
}

func TestManagedSubscribe(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)
	registerTestUser(t, backend)
	ctx := context.Background()

	var events []*identity.Identity
	unsubscribe := backend.Subscribe(func(ident *identity.Identity) {
		events = append(events, ident)
	})

	_, sessionToken, err := backend.Authenticate(ctx,
		identity.Credential{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.NoError(t, backend.SignOut(ctx, sessionToken))

	require.Len(t, events, 2)
	assert.Equal(t, "ada@example.com", events[0].Email)
	assert.Nil(t, events[1])

	unsubscribe()
	_, _, err = backend.Authenticate(ctx,
		identity.Credential{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestManagedResetCredential_UnknownEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)

	err := backend.ResetCredential(context.Background(), "nobody@example.com")

	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestManagedResetCredential_NoSender(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	backend := identity.NewManaged(repo, nil)
	registerTestUser(t, backend)

	// Without a configured sender the reset is logged, not an error.
	assert.NoError(t, backend.ResetCredential(context.Background(), "ada@example.com"))
}
