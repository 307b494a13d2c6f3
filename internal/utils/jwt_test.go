package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pulmocare-server/internal/config"
	"pulmocare-server/internal/models"
)

func testJWTConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "test-secret",
		JWTRefreshSecret:          "test-refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 168,
	}
}

func TestGenerateAndValidateTokens(t *testing.T) {
	cfg := testJWTConfig()
	user := &models.User{Role: models.RoleDoctor}
	user.ID = "user-1"

	accessToken, refreshToken, err := GenerateTokens(user, cfg)
	if err != nil {
		t.Fatalf("GenerateTokens: %v", err)
	}

	claims, err := ValidateToken(accessToken, cfg.JWTSecret)
	if err != nil {
		t.Fatalf("ValidateToken(access): %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != models.RoleDoctor {
		t.Errorf("claims = %s/%s, want user-1/doctor", claims.UserID, claims.Role)
	}

	if _, err := ValidateToken(refreshToken, cfg.JWTRefreshSecret); err != nil {
		t.Fatalf("ValidateToken(refresh): %v", err)
	}
}

func TestValidateTokenRejectsForeignIssuer(t *testing.T) {
	cfg := testJWTConfig()

	// Same secret, different issuer: minted by another service, not by us.
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: "user-1",
		Role:   models.RolePatient,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "some-other-service",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tokenString, err := foreign.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ValidateToken(tokenString, cfg.JWTSecret); err == nil {
		t.Fatal("token with a foreign issuer was accepted")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	user := &models.User{Role: models.RolePatient}
	user.ID = "user-1"

	accessToken, _, err := GenerateTokens(user, cfg)
	if err != nil {
		t.Fatalf("GenerateTokens: %v", err)
	}

	if _, err := ValidateToken(accessToken, "wrong-secret"); err == nil {
		t.Fatal("token validated with the wrong secret")
	}
}
