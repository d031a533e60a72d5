// Package identity resolves opaque session handles to an authenticated
// subject and role. All resolution failures collapse to Unauthenticated at
// the transport boundary.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"warung/internal/models"
	"warung/internal/store"
)

var (
	ErrSessionMissing             = errors.New("session missing")
	ErrSessionExpired             = errors.New("session expired")
	ErrSessionFingerprintMismatch = errors.New("session fingerprint mismatch")
)

// Identity is the resolved subject of a request.
type Identity struct {
	UserID int64
	Role   models.Role
}

// Guest is the unauthenticated sentinel.
var Guest = Identity{Role: models.RoleGuest}

// Authenticated reports whether the identity belongs to a registered user.
func (id Identity) Authenticated() bool {
	return id.Role == models.RoleUser || id.Role == models.RoleAdmin
}

// Fingerprint digests the stable client attributes captured at login and
// re-checked on every use of the session.
func Fingerprint(userAgent, remoteAddr string) string {
	sum := sha256.Sum256([]byte(userAgent + "|" + remoteAddr))
	return hex.EncodeToString(sum[:])
}

// Resolver looks sessions up in the store.
type Resolver struct {
	store *store.Store
}

func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

type sessionRow struct {
	Token       string
	UserID      int64
	Fingerprint string
	ExpiresAt   time.Time
	Role        models.Role
}

// Resolve maps a session token to an identity. Expired sessions and
// fingerprint mismatches destroy the session row and fail resolution. A
// successful resolution never extends expiry; refresh is a separate
// operation on the auth service.
func (r *Resolver) Resolve(ctx context.Context, token, fingerprint string) (Identity, error) {
	if token == "" {
		return Guest, ErrSessionMissing
	}
	var row sessionRow
	found, err := r.store.QueryOne(ctx, &row,
		`SELECT s.token, s.user_id, s.fingerprint, s.expires_at, u.role
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ?`, token)
	if err != nil {
		return Guest, err
	}
	if !found {
		return Guest, ErrSessionMissing
	}
	if !row.ExpiresAt.After(time.Now().UTC()) {
		r.destroy(ctx, token)
		return Guest, ErrSessionExpired
	}
	if row.Fingerprint != fingerprint {
		r.destroy(ctx, token)
		return Guest, ErrSessionFingerprintMismatch
	}
	return Identity{UserID: row.UserID, Role: row.Role}, nil
}

func (r *Resolver) destroy(ctx context.Context, token string) {
	// best effort; the caller is already being rejected
	_, _ = r.store.Execute(ctx, "DELETE FROM sessions WHERE token = ?", token)
}
