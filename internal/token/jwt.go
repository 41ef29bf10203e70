package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cinevault/auth-service/internal/config"
	"github.com/cinevault/auth-service/internal/user"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Kind selects which secret and claim set a token is issued and verified with.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the JWT claim set for both token kinds. Refresh tokens carry the
// subject only; access tokens additionally embed the user view fields.
type Claims struct {
	Username       string `json:"username,omitempty"`
	Email          string `json:"email,omitempty"`
	Role           string `json:"role,omitempty"`
	IsExternalAuth bool   `json:"is_external_auth_user,omitempty"`
	// Kind prevents a refresh token from passing access verification when the
	// two secrets are configured equal.
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// JWTService signs and verifies HS256 access and refresh tokens. All state is
// read-only after construction; safe for concurrent use.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewJWTService(cfg config.AuthConfig) *JWTService {
	refreshSecret := cfg.RefreshTokenSecret
	if len(refreshSecret) == 0 {
		refreshSecret = cfg.AccessTokenSecret
	}
	return &JWTService{
		accessSecret:  cfg.AccessTokenSecret,
		refreshSecret: refreshSecret,
		issuer:        cfg.TokenIssuer,
		audience:      cfg.TokenAudience,
		accessTTL:     cfg.AccessTokenDuration,
		refreshTTL:    cfg.RefreshTokenDuration,
	}
}

// AccessTokenDuration exposes the configured access token validity.
func (s *JWTService) AccessTokenDuration() time.Duration { return s.accessTTL }

// RefreshTokenDuration exposes the configured refresh token validity.
func (s *JWTService) RefreshTokenDuration() time.Duration { return s.refreshTTL }

// IssuePair creates a fresh access/refresh token pair for the user.
func (s *JWTService) IssuePair(u *user.User) (Pair, error) {
	accessToken, err := s.IssueAccessToken(u)
	if err != nil {
		return Pair{}, err
	}

	refreshToken, err := s.issueRefreshToken(u.ID)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// IssueAccessToken creates a short-lived access token embedding the user's
// identity claims.
func (s *JWTService) IssueAccessToken(u *user.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username:       u.Username,
		Email:          u.Email,
		Role:           string(u.Role),
		IsExternalAuth: u.IsExternal(),
		Kind:           string(KindAccess),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) issueRefreshToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &Claims{
		Kind: string(KindRefresh),
		RegisteredClaims: jwt.RegisteredClaims{
			// Unique per token so concurrent sessions for one user never
			// collide in the session store.
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, nil
}

// Verify validates signature, issuer, audience, expiry and kind, and returns
// the claims. ErrExpiredToken is distinguished from every other failure so
// callers can prompt a refresh instead of a re-login.
func (s *JWTService) Verify(tokenStr string, kind Kind) (*Claims, error) {
	secret := s.accessSecret
	if kind == KindRefresh {
		secret = s.refreshSecret
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Kind != string(kind) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
