package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warung/internal/models"
	"warung/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials deliberately does not distinguish a wrong
	// username from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
)

// AuthService handles registration and the session lifecycle.
type AuthService struct {
	store      *store.Store
	sessionTTL time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(s *store.Store, sessionTTL time.Duration) *AuthService {
	return &AuthService{store: s, sessionTTL: sessionTTL}
}

// RegisterInput is the payload for account creation. Role is always user.
type RegisterInput struct {
	Username         string `json:"username" validate:"required,min=3,max=100"`
	Password         string `json:"password" validate:"required,min=6"`
	ShippingAddress  string `json:"shipping_address" validate:"max=500"`
	PaymentReference string `json:"payment_reference" validate:"max=100"`
}

// Register creates a user with a bcrypt credential digest.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	var existingID int64
	taken, err := s.store.QueryOne(ctx, &existingID,
		"SELECT id FROM users WHERE username = ?", in.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	var userID int64
	err = s.store.Transaction(ctx, func(tx *store.Tx) error {
		_, err := tx.Execute(ctx,
			`INSERT INTO users (username, password_hash, role, shipping_address, payment_reference, subscribed, created_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?)`,
			in.Username, string(hash), models.RoleUser, in.ShippingAddress, in.PaymentReference, now)
		if err != nil {
			return err
		}
		userID, err = tx.LastInsertID(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	return &models.User{
		ID:              userID,
		Username:        in.Username,
		Role:            models.RoleUser,
		ShippingAddress: in.ShippingAddress,
		Subscribed:      true,
		CreatedAt:       now,
	}, nil
}

// Login verifies the credential digest and opens a session bound to the
// caller's fingerprint. Any prior session for the user is revoked, so at
// most one session is active per user.
func (s *AuthService) Login(ctx context.Context, username, password, fingerprint string) (*models.Session, error) {
	var user struct {
		ID           int64
		PasswordHash string
	}
	found, err := s.store.QueryOne(ctx, &user,
		"SELECT id, password_hash FROM users WHERE username = ?", username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !found {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	session := &models.Session{
		Token:       uuid.New().String(),
		UserID:      user.ID,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}
	err = s.store.Transaction(ctx, func(tx *store.Tx) error {
		if _, err := tx.Execute(ctx, "DELETE FROM sessions WHERE user_id = ?", user.ID); err != nil {
			return err
		}
		_, err := tx.Execute(ctx,
			`INSERT INTO sessions (token, user_id, fingerprint, created_at, expires_at)
			 VALUES (?, ?, ?, ?, ?)`,
			session.Token, session.UserID, session.Fingerprint, session.CreatedAt, session.ExpiresAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Logout destroys the session row.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	_, err := s.store.Execute(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// Refresh explicitly extends a session's expiry. Resolution never does.
func (s *AuthService) Refresh(ctx context.Context, token string) (time.Time, error) {
	expires := time.Now().UTC().Add(s.sessionTTL)
	rows, err := s.store.Execute(ctx,
		"UPDATE sessions SET expires_at = ? WHERE token = ?", expires, token)
	if err != nil {
		return time.Time{}, err
	}
	if rows == 0 {
		return time.Time{}, ErrInvalidCredentials
	}
	return expires, nil
}
