package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"communityos/internal/tenant"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidToken covers every token that fails parsing or validation.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenRevoked means the token was logged out.
	ErrTokenRevoked = errors.New("auth: token revoked")
)

// JWTConfig configures JWTService.
type JWTConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	AccessTTL time.Duration
}

// JWTService issues and validates HS256 access tokens. With a redis client
// it also keeps a blacklist of logged-out token ids.
type JWTService struct {
	secretKey   []byte
	issuer      string
	audience    string
	accessTTL   time.Duration
	redisClient redis.UniversalClient
	now         func() time.Time
}

// NewJWTService creates a token service. redisClient may be nil.
func NewJWTService(cfg JWTConfig, redisClient redis.UniversalClient) *JWTService {
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTService{
		secretKey:   []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		audience:    cfg.Audience,
		accessTTL:   ttl,
		redisClient: redisClient,
		now:         time.Now,
	}
}

// TokenClaims are the claims of an access token. The subject is the user id.
type TokenClaims struct {
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Subject is the principal a token is issued for.
type Subject struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Email    string
	Role     tenant.Role
}

// IssuedToken is a signed token and its expiry.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issue signs an access token for s.
func (j *JWTService) Issue(s Subject) (*IssuedToken, error) {
	now := j.now()
	expires := now.Add(j.accessTTL)
	claims := &TokenClaims{
		Email:    s.Email,
		TenantID: s.TenantID.String(),
		Role:     string(s.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.issuer,
			Subject:   s.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &IssuedToken{Token: signed, ExpiresAt: expires}, nil
}

// Validate parses tokenString and checks signature, expiry, issuer,
// audience and the blacklist.
func (j *JWTService) Validate(ctx context.Context, tokenString string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return j.secretKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if j.isRevoked(ctx, claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke blacklists the token until it would have expired anyway. Without
// redis it is a no-op.
func (j *JWTService) Revoke(ctx context.Context, claims *TokenClaims) error {
	if j.redisClient == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(j.now())
	if ttl <= 0 {
		return nil
	}
	if err := j.redisClient.Set(ctx, blacklistKey(claims.ID), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// isRevoked fails open on redis errors.
func (j *JWTService) isRevoked(ctx context.Context, id string) bool {
	if j.redisClient == nil || id == "" {
		return false
	}
	n, err := j.redisClient.Exists(ctx, blacklistKey(id)).Result()
	return err == nil && n > 0
}

func blacklistKey(id string) string {
	return "auth:blacklist:" + id
}

// ExtractTokenFromBearer strips a case-insensitive "Bearer " prefix.
func ExtractTokenFromBearer(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
