package identity_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"warung/internal/identity"
	"warung/internal/models"
	"warung/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*store.Store, *identity.Resolver) {
	t.Helper()
	dsn := fmt.Sprintf("file:identity_%s?mode=memory&cache=shared", t.Name())
	s, err := store.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Bootstrap(context.Background(), false))
	return s, identity.NewResolver(s)
}

func insertSession(t *testing.T, s *store.Store, token string, userID int64, fingerprint string, expiresAt time.Time) {
	t.Helper()
	_, err := s.Execute(context.Background(),
		"INSERT INTO sessions (token, user_id, fingerprint, created_at, expires_at) VALUES (?, ?, ?, ?, ?)",
		token, userID, fingerprint, time.Now().UTC(), expiresAt)
	require.NoError(t, err)
}

func TestResolveValidSession(t *testing.T) {
	s, r := setup(t)
	fp := identity.Fingerprint("agent", "10.0.0.1")
	insertSession(t, s, "tok-valid", 2, fp, time.Now().UTC().Add(time.Hour))

	ident, err := r.Resolve(context.Background(), "tok-valid", fp)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ident.UserID)
	assert.Equal(t, models.RoleUser, ident.Role)
	assert.True(t, ident.Authenticated())
}

func TestResolveAdminRole(t *testing.T) {
	s, r := setup(t)
	fp := identity.Fingerprint("agent", "10.0.0.1")
	insertSession(t, s, "tok-admin", 1, fp, time.Now().UTC().Add(time.Hour))

	ident, err := r.Resolve(context.Background(), "tok-admin", fp)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, ident.Role)
}

func TestResolveMissingSession(t *testing.T) {
	_, r := setup(t)

	ident, err := r.Resolve(context.Background(), "", "fp")
	assert.ErrorIs(t, err, identity.ErrSessionMissing)
	assert.Equal(t, identity.Guest, ident)

	ident, err = r.Resolve(context.Background(), "tok-absent", "fp")
	assert.ErrorIs(t, err, identity.ErrSessionMissing)
	assert.Equal(t, identity.Guest, ident)
}

func TestResolveExpiredSessionIsDestroyed(t *testing.T) {
	s, r := setup(t)
	fp := identity.Fingerprint("agent", "10.0.0.1")
	insertSession(t, s, "tok-expired", 2, fp, time.Now().UTC().Add(-time.Minute))

	ident, err := r.Resolve(context.Background(), "tok-expired", fp)
	assert.ErrorIs(t, err, identity.ErrSessionExpired)
	assert.Equal(t, identity.Guest, ident)

	var count int64
	_, qerr := s.QueryOne(context.Background(), &count,
		"SELECT COUNT(*) FROM sessions WHERE token = ?", "tok-expired")
	require.NoError(t, qerr)
	assert.Zero(t, count, "expired session row must be deleted")
}

func TestResolveFingerprintMismatchDestroysSession(t *testing.T) {
	s, r := setup(t)
	insertSession(t, s, "tok-fp", 2, identity.Fingerprint("agent", "10.0.0.1"), time.Now().UTC().Add(time.Hour))

	ident, err := r.Resolve(context.Background(), "tok-fp", identity.Fingerprint("other-agent", "10.9.9.9"))
	assert.ErrorIs(t, err, identity.ErrSessionFingerprintMismatch)
	assert.Equal(t, identity.Guest, ident)

	var count int64
	_, qerr := s.QueryOne(context.Background(), &count,
		"SELECT COUNT(*) FROM sessions WHERE token = ?", "tok-fp")
	require.NoError(t, qerr)
	assert.Zero(t, count)
}

func TestResolveDoesNotExtendExpiry(t *testing.T) {
	s, r := setup(t)
	fp := identity.Fingerprint("agent", "10.0.0.1")
	expires := time.Now().UTC().Add(10 * time.Minute).Truncate(time.Second)
	insertSession(t, s, "tok-fixed", 2, fp, expires)

	_, err := r.Resolve(context.Background(), "tok-fixed", fp)
	require.NoError(t, err)

	var stored time.Time
	_, qerr := s.QueryOne(context.Background(), &stored,
		"SELECT expires_at FROM sessions WHERE token = ?", "tok-fixed")
	require.NoError(t, qerr)
	assert.True(t, stored.Equal(expires), "resolution must not touch expires_at")
}

func TestFingerprintIsStable(t *testing.T) {
	a := identity.Fingerprint("agent", "1.2.3.4")
	b := identity.Fingerprint("agent", "1.2.3.4")
	c := identity.Fingerprint("agent", "1.2.3.5")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
