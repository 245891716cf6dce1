package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopagent/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AuthServiceConfig holds token and lockout settings.
type AuthServiceConfig struct {
	JWTSecret        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	MaxLoginAttempts int
	LockDuration     time.Duration
}

// AuthService handles registration, login and token verification. Failed
// logins are counted in the cache and lock the account temporarily.
type AuthService struct {
	users  domain.UserRepository
	cache  domain.Cache
	config AuthServiceConfig
	logger *zap.Logger
}

// tokenClaims are the JWT claims issued by this service.
type tokenClaims struct {
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// NewAuthService creates a new auth service
func NewAuthService(users domain.UserRepository, cache domain.Cache, config AuthServiceConfig, logger *zap.Logger) *AuthService {
	if config.AccessTokenTTL <= 0 {
		config.AccessTokenTTL = 30 * time.Minute
	}
	if config.RefreshTokenTTL <= 0 {
		config.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if config.MaxLoginAttempts <= 0 {
		config.MaxLoginAttempts = 5
	}
	if config.LockDuration <= 0 {
		config.LockDuration = 30 * time.Minute
	}

	return &AuthService{
		users:  users,
		cache:  cache,
		config: config,
		logger: logger,
	}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") || len(password) < 8 {
		return nil, domain.ErrInvalidRequest
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("email", email))
	return user, nil
}

// Login verifies credentials and issues a token pair. After
// MaxLoginAttempts consecutive failures the account locks for LockDuration.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	attemptsKey := "login_attempts:" + email

	if attempts, err := s.cache.Get(ctx, attemptsKey); err == nil {
		if count, _ := strconv.ParseInt(attempts, 10, 64); count >= int64(s.config.MaxLoginAttempts) {
			s.logger.Warn("login rejected, account locked", zap.String("email", email))
			return nil, domain.ErrAccountLocked
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.recordFailedAttempt(ctx, attemptsKey, email)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailedAttempt(ctx, attemptsKey, email)
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.cache.Delete(ctx, attemptsKey); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}

	return s.issueTokens(email)
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, domain.ErrInvalidToken
	}

	// The account must still exist
	if _, err := s.users.GetByEmail(ctx, claims.Email); err != nil {
		return nil, domain.ErrInvalidToken
	}

	return s.issueTokens(claims.Email)
}

// VerifyAccessToken validates an access token and returns its subject email.
func (s *AuthService) VerifyAccessToken(tokenString string) (string, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.TokenType != tokenTypeAccess {
		return "", domain.ErrInvalidToken
	}
	return claims.Email, nil
}

func (s *AuthService) recordFailedAttempt(ctx context.Context, key, email string) {
	count, err := s.cache.Incr(ctx, key, s.config.LockDuration)
	if err != nil {
		s.logger.Warn("failed to record login attempt", zap.Error(err))
		return
	}
	s.logger.Info("failed login attempt",
		zap.String("email", email),
		zap.Int64("attempts", count))
}

func (s *AuthService) issueTokens(email string) (*domain.TokenPair, error) {
	access, err := s.signToken(email, tokenTypeAccess, s.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(email, tokenTypeRefresh, s.config.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func (s *AuthService) signToken(email, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) parseToken(tokenString string) (*tokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
