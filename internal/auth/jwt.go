package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"notehub-backend/internal/models"
)

// TokenLifetime is fixed at issuance. There is no refresh path; clients
// re-authenticate with credentials after expiry.
const TokenLifetime = time.Hour

var (
	ErrMissingToken = errors.New("no bearer token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Principal is the identity a verified token resolves to. It is built from
// the claims alone and never re-read from storage during the request.
type Principal struct {
	ID       string
	Email    string
	Role     models.Role
	TenantID string
}

type Claims struct {
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	TenantID string      `json:"tenantId"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies bearer tokens with a process-wide symmetric
// secret fixed at construction. Issue and Verify are pure in-memory work.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret []byte) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	return &Tokens{secret: secret, now: time.Now}, nil
}

// Issue mints a signed token for the user and returns it with its lifetime in
// seconds. Tokens are not tracked server-side.
func (t *Tokens) Issue(user *models.User) (string, int, error) {
	now := t.now()
	claims := Claims{
		Email:    user.Email,
		Role:     user.Role,
		TenantID: user.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", 0, err
	}
	return signed, int(TokenLifetime.Seconds()), nil
}

// Verify checks signature and expiry and reconstructs the principal.
func (t *Tokens) Verify(tokenString string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	// A token without a tenant claim cannot scope anything; fail closed.
	if claims.TenantID == "" {
		return nil, ErrInvalidToken
	}

	return &Principal{
		ID:       claims.Subject,
		Email:    claims.Email,
		Role:     claims.Role,
		TenantID: claims.TenantID,
	}, nil
}
