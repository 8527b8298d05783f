package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/repository"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalidated = errors.New("session invalidated by a newer login")
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	Role   model.Role `json:"role"`
	UserID int        `json:"user_id"`
}

// AuthService handles authentication, JWT, and session management.
type AuthService struct {
	cfg      *config.Config
	rdb      *redis.Client
	userRepo *repository.UserRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, userRepo: userRepo}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login verifies the credentials and issues a token. A successful login
// replaces the user's previous session, so only the newest device stays
// signed in.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := s.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	token, err := s.GenerateToken(ctx, user)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{Token: token, User: *user}, nil
}

// GenerateToken signs a JWT for the user and registers its JTI as the
// only valid session in Redis.
func (s *AuthService) GenerateToken(ctx context.Context, user *model.User) (string, error) {
	jti := uuid.New().String()
	signed, err := s.sign(user, jti, time.Now())
	if err != nil {
		return "", err
	}

	// Store session in Redis with same expiry as JWT.
	sessionKey := config.CacheKey.UserSessionKey(user.ID)
	if err := s.rdb.Set(ctx, sessionKey, jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return signed, nil
}

func (s *AuthService) sign(user *model.User, jti string, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		Role:   user.Role,
		UserID: user.ID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateSession checks that the token's JTI matches the active session in Redis.
func (s *AuthService) ValidateSession(ctx context.Context, userID int, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.UserSessionKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionInvalidated
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// Logout removes the user's session. Tokens issued before stay signed
// but are rejected by the session check.
func (s *AuthService) Logout(ctx context.Context, userID int) error {
	return s.rdb.Del(ctx, config.CacheKey.UserSessionKey(userID)).Err()
}

// Me returns the user behind a token.
func (s *AuthService) Me(ctx context.Context, userID int) (*model.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
