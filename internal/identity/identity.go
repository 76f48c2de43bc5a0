// Package identity resolves bearer tokens into principals.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodorder/internal/config"
	"foodorder/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidPrincipal is returned for tokens or principals missing an
	// id, carrying an unknown role, or an employee without a branch.
	ErrInvalidPrincipal = errors.New("invalid principal")
)

// Claims is the token payload.
type Claims struct {
	Role   model.Role `json:"role"`
	Branch string     `json:"branch,omitempty"`
	jwt.RegisteredClaims
}

// Resolver turns a bearer token into the principal it was issued to.
type Resolver interface {
	Resolve(ctx context.Context, token string) (model.Principal, error)
}

// JWT signs and verifies HS256 tokens with a shared secret.
type JWT struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWT creates a token issuer and resolver from the auth configuration.
func NewJWT(cfg config.AuthConfig) *JWT {
	return &JWT{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
}

// Issue mints a token for the principal valid for the configured TTL.
func (j *JWT) Issue(p model.Principal) (string, error) {
	if err := validate(p); err != nil {
		return "", err
	}

	now := j.now()
	claims := &Claims{
		Role:   p.Role,
		Branch: p.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.ID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Resolve verifies the token and returns its principal.
func (j *JWT) Resolve(_ context.Context, token string) (model.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !parsed.Valid {
		return model.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	p := model.Principal{Role: claims.Role, ID: claims.Subject, BranchID: claims.Branch}
	if err := validate(p); err != nil {
		return model.Principal{}, err
	}
	return p, nil
}

func validate(p model.Principal) error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPrincipal)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidPrincipal, p.Role)
	}
	if p.Role == model.RoleEmployee && p.BranchID == "" {
		return fmt.Errorf("%w: employee without branch", ErrInvalidPrincipal)
	}
	return nil
}
