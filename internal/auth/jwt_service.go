// Package auth verifies the HS256 access tokens minted by the marketplace API.
package auth

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultAccessTokenTTL = 15 * time.Minute

var (
	// ErrMissingUserID is returned for tokens that name no user.
	ErrMissingUserID = errors.New("jwt: missing user id claim")
	ErrEmptyToken    = errors.New("jwt: token string is empty")
)

type JWTConfig struct {
	Secret         string
	Issuer         string // checked only when set
	Audience       string // checked only when set
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims carry the caller identity. The user id is read from uid, then the
// marketplace's legacy userId claim, then sub.
type Claims struct {
	UserID       string `json:"uid,omitempty"`
	LegacyUserID string `json:"userId,omitempty"`
	Role         string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) resolve() error {
	c.UserID = strings.TrimSpace(cmp.Or(c.UserID, c.LegacyUserID, c.Subject))
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	if c.UserID == "" {
		return ErrMissingUserID
	}
	return nil
}

type AccessTokenInput struct {
	UserID string
	Role   string
}

type JWTService struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	s := &JWTService{
		key:      []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cmp.Or(max(cfg.AccessTokenTTL, 0), DefaultAccessTokenTTL),
		now:      cfg.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(5 * time.Second),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}
	s.parser = jwt.NewParser(opts...)
	return s, nil
}

// GenerateAccessToken signs a token for input. Production tokens come from
// the marketplace; this serves tooling and tests.
func (s *JWTService) GenerateAccessToken(input AccessTokenInput) (string, error) {
	if input.UserID == "" {
		return "", errors.New("jwt: user id is required")
	}

	issued := s.now()
	claims := Claims{
		UserID: input.UserID,
		Role:   strings.ToLower(strings.TrimSpace(input.Role)),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttl)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies signature, expiry and the configured issuer
// and audience, then resolves the caller's id and role.
func (s *JWTService) ValidateAccessToken(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	claims := new(Claims)
	if _, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return s.key, nil }); err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}
	if err := claims.resolve(); err != nil {
		return nil, err
	}
	return claims, nil
}
