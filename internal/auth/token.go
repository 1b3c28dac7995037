// Package auth issues and verifies the signed access and refresh credentials
// handed to clients, and derives the digests under which refresh credentials
// are stored.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeRefresh marks refresh credentials so they cannot be presented as access tokens.
const TokenTypeRefresh = "refresh"

const minSecretLength = 16

var (
	// ErrInvalidToken is returned for any token that fails signature, expiry, or type checks.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrWeakSecret is returned when the signing secret is too short to be useful.
	ErrWeakSecret = errors.New("auth: signing secret too short")
)

// Claims is the JWT payload shared by access and refresh tokens. Access tokens
// carry Email and Role; refresh tokens carry Type=refresh instead.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Subject identifies the user a token pair is minted for.
type Subject struct {
	UserID string
	Email  string
	Role   string
}

// IssuedToken is a signed token and the instant it stops being valid.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Pair is the access and refresh credential returned on login and refresh.
type Pair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// IssuerConfig configures token signing.
type IssuerConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	newID      func() string
}

// NewIssuer constructs an Issuer. now defaults to time.Now.
func NewIssuer(cfg IssuerConfig, now func() time.Time) (*Issuer, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("auth: token lifetimes must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		secret:     cfg.Secret,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        now,
		newID:      uuid.NewString,
	}, nil
}

// RefreshTTL reports how long refresh credentials stay valid.
func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// AccessTTL reports how long access credentials stay valid.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// IssuePair mints a fresh access and refresh token for subject.
func (i *Issuer) IssuePair(subject Subject) (Pair, error) {
	if subject.UserID == "" {
		return Pair{}, fmt.Errorf("auth: subject is required")
	}
	now := i.now()

	access, err := i.sign(Claims{
		Email:            subject.Email,
		Role:             subject.Role,
		RegisteredClaims: i.registered(subject.UserID, now, i.accessTTL),
	})
	if err != nil {
		return Pair{}, err
	}

	refresh, err := i.sign(Claims{
		Type:             TokenTypeRefresh,
		RegisteredClaims: i.registered(subject.UserID, now, i.refreshTTL),
	})
	if err != nil {
		return Pair{}, err
	}

	return Pair{Access: access, Refresh: refresh}, nil
}

// VerifyAccess validates an access token and returns its claims.
func (i *Issuer) VerifyAccess(token string) (Claims, error) {
	claims, err := i.parse(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != "" {
		return Claims{}, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.Type)
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and returns its claims.
func (i *Issuer) VerifyRefresh(token string) (Claims, error) {
	claims, err := i.parse(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != TokenTypeRefresh {
		return Claims{}, fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}
	return claims, nil
}

func (i *Issuer) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        i.newID(),
		Issuer:    i.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *Issuer) sign(claims Claims) (IssuedToken, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (i *Issuer) parse(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// HashToken returns the hex SHA-256 digest under which a refresh token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
