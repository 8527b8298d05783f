package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
)

func testAuth() *AuthService {
	return NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: 4}, nil, nil)
}

func TestTokenRoundTrip(t *testing.T) {
	s := testAuth()
	user := &model.User{ID: 42, Role: model.RoleStudent}

	token, err := s.sign(user, "jti-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 || claims.Role != model.RoleStudent || claims.ID != "jti-1" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	s := testAuth()
	user := &model.User{ID: 1, Role: model.RoleAdmin}

	expired, _ := s.sign(user, "old", time.Now().Add(-2*time.Hour))
	if _, err := s.ValidateToken(expired); err == nil {
		t.Fatal("expired token accepted")
	}

	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, nil, nil)
	forged, _ := other.sign(user, "x", time.Now())
	if _, err := s.ValidateToken(forged); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestPasswordHashing(t *testing.T) {
	s := testAuth()
	hash, err := s.HashPassword("alchemy42")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CheckPassword(hash, "alchemy42"); err != nil {
		t.Fatalf("valid password rejected: %v", err)
	}
	if err := s.CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
}
