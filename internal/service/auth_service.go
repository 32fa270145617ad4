package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/makkenzo/ledgerpro-license-api/internal/config"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"go.uber.org/zap"
)

const (
	adminSubject     = "admin"
	realtimeAudience = "ledgerpro-realtime"
	tokenIssuer      = "ledgerpro-license-api"
)

type AdminClaims struct {
	jwt.RegisteredClaims
}

// AuthService guards the admin surface. HTTP routes use the static admin
// token; browser websocket clients, which cannot set headers, trade it for
// a short-lived HS256 token.
type AuthService struct {
	adminToken []byte
	jwtSecret  []byte
	ttl        time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func NewAuthService(cfg *config.AdminConfig, logger *zap.Logger) (*AuthService, error) {
	log := logger.Named("AuthService")
	if cfg.Token == "" {
		return nil, errors.New("admin token is required")
	}

	secret := cfg.JWTSecret
	if secret == "" {
		log.Warn("admin.jwtSecret not set, deriving realtime token secret from admin token")
		secret = cfg.Token
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &AuthService{
		adminToken: []byte(cfg.Token),
		jwtSecret:  []byte(secret),
		ttl:        ttl,
		now:        time.Now,
		logger:     log,
	}, nil
}

// AuthenticateAdmin compares token with the configured admin token in
// constant time.
func (s *AuthService) AuthenticateAdmin(token string) error {
	if token == "" || subtle.ConstantTimeCompare([]byte(token), s.adminToken) != 1 {
		return ierr.ErrUnauthorized
	}
	return nil
}

func (s *AuthService) IssueRealtimeToken() (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)

	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   adminSubject,
			Audience:  jwt.ClaimStrings{realtimeAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error("Failed to sign realtime token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("sign realtime token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *AuthService) ValidateToken(rawToken string) (*AdminClaims, error) {
	if rawToken == "" {
		return nil, ierr.ErrInvalidToken
	}

	var claims AdminClaims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(realtimeAudience),
		jwt.WithSubject(adminSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		s.logger.Debug("Realtime token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ierr.ErrInvalidToken, err)
	}
	return &claims, nil
}
