package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/warung-ops/backend-warung/internal/common"
)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords so
// the login response never reveals which one failed.
var ErrInvalidCredentials = &common.AppError{
	Code:       "UNAUTHORIZED",
	Message:    "invalid username or password",
	HTTPStatus: http.StatusUnauthorized,
}

// StaffSource captures the store methods the service needs.
type StaffSource interface {
	GetByUsername(ctx context.Context, username string) (Staff, error)
}

// Config groups Service dependencies.
type Config struct {
	Store     StaffSource
	Secret    string
	Issuer    string
	AccessTTL time.Duration
	ClockSkew time.Duration
}

// Service authenticates staff and issues HS256 access tokens.
type Service struct {
	store     StaffSource
	secret    []byte
	issuer    string
	accessTTL time.Duration
	clockSkew time.Duration
	now       func() time.Time
}

// NewService validates config and constructs the service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = time.Minute
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "backend-warung"
	}
	return &Service{
		store:     cfg.Store,
		secret:    []byte(cfg.Secret),
		issuer:    issuer,
		accessTTL: ttl,
		clockSkew: skew,
		now:       time.Now,
	}, nil
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) { s.now = now }

// Login verifies the password and returns a signed access token.
func (s *Service) Login(ctx context.Context, username, password string) (string, Staff, error) {
	staff, err := s.store.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", Staff{}, ErrInvalidCredentials
		}
		return "", Staff{}, fmt.Errorf("lookup staff: %w", err)
	}
	if !staff.Active {
		return "", Staff{}, ErrInvalidCredentials
	}
	match, err := argon2id.ComparePasswordAndHash(password, staff.PasswordHash)
	if err != nil || !match {
		return "", Staff{}, ErrInvalidCredentials
	}
	token, err := s.sign(staff)
	if err != nil {
		return "", Staff{}, err
	}
	return token, staff, nil
}

// HashPassword produces an argon2id hash for storage.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams)
}

func (s *Service) sign(staff Staff) (string, error) {
	now := s.now()
	built, err := jwt.NewBuilder().
		Subject(staff.ID.String()).
		Issuer(s.issuer).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(now.Add(s.accessTTL)).
		Claim("role", staff.Role).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(built, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// Claims is the parsed identity carried by a valid token.
type Claims struct {
	UserID uuid.UUID
	Role   string
}

// Parse verifies the signature, algorithm, issuer and expiry of a token.
func (s *Service) Parse(raw string) (Claims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithIssuer(s.issuer),
		jwt.WithAcceptableSkew(s.clockSkew),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return Claims{}, &common.AppError{Code: "UNAUTHORIZED", Message: "invalid token", HTTPStatus: http.StatusUnauthorized, Err: err}
	}
	userID, err := uuid.Parse(tok.Subject())
	if err != nil {
		return Claims{}, &common.AppError{Code: "UNAUTHORIZED", Message: "invalid token subject", HTTPStatus: http.StatusUnauthorized, Err: err}
	}
	claims := Claims{UserID: userID}
	if role, ok := tok.Get("role"); ok {
		if str, ok := role.(string); ok {
			claims.Role = str
		}
	}
	return claims, nil
}
