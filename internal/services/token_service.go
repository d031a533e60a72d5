package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// ErrTokenInvalid covers malformed, tampered and expired unsubscribe tokens.
var ErrTokenInvalid = errors.New("invalid token")

// unsubscribeTokenTTL bounds how long an issued unsubscribe link stays valid.
const unsubscribeTokenTTL = time.Hour

// TokenService signs and verifies the single-use bearer tokens that prove
// subject identity outside a session, such as newsletter unsubscribe links.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a new TokenService.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// IssueUnsubscribe signs a bearer token for the given user, valid for one
// hour. The jti claim makes the token single-use once recorded as consumed.
func (s *TokenService) IssueUnsubscribe(userID int64) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"purpose": "unsubscribe",
		"jti":     uuid.New().String(),
		"iat":     now.Unix(),
		"exp":     now.Add(unsubscribeTokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyUnsubscribe checks signature, purpose and expiry, returning the
// subject id and the token's jti.
func (s *TokenService) VerifyUnsubscribe(tokenString string) (int64, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrTokenInvalid
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", ErrTokenInvalid
	}
	if purpose, _ := claims["purpose"].(string); purpose != "unsubscribe" {
		return 0, "", ErrTokenInvalid
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, "", ErrTokenInvalid
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return 0, "", ErrTokenInvalid
	}
	return int64(userID), jti, nil
}
