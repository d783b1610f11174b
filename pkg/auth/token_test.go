package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/clubledger-backend/pkg/config"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "clubledger",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		NationalID: "12345678-9",
		Role:       enums.RoleTesorera,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	actor := claims.Actor()
	if actor.ID != "12345678-9" {
		t.Fatalf("unexpected actor id %q", actor.ID)
	}
	if actor.Role != enums.RoleTesorera {
		t.Fatalf("unexpected role %s", actor.Role)
	}
	if !actor.IsPrivileged() {
		t.Fatalf("tesorera should be privileged")
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testJWTConfig()

	cases := []struct {
		name    string
		cfg     config.JWTConfig
		payload AccessTokenPayload
		want    string
	}{
		{
			name:    "missing secret",
			cfg:     config.JWTConfig{Issuer: "x", ExpirationMinutes: 1},
			payload: AccessTokenPayload{NationalID: "1-9", Role: enums.RoleDirectiva},
			want:    "secret",
		},
		{
			name:    "missing subject",
			cfg:     cfg,
			payload: AccessTokenPayload{Role: enums.RoleDirectiva},
			want:    "national id",
		},
		{
			name:    "unknown role",
			cfg:     cfg,
			payload: AccessTokenPayload{NationalID: "1-9", Role: "owner"},
			want:    "invalid role",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MintAccessToken(tc.cfg, time.Now(), tc.payload)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{NationalID: "1-9", Role: enums.RoleApoderado})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{NationalID: "1-9", Role: enums.RoleApoderado})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expired token error")
	}
}

func TestParseAccessTokenRejectsUnknownRole(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		Role: "owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1-9",
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}

func TestActorHasAnyRole(t *testing.T) {
	actor := Actor{ID: "1-9", Role: enums.RoleEntrenador}
	if !actor.HasAnyRole(enums.RoleDirectiva, enums.RoleEntrenador) {
		t.Fatal("expected role match")
	}
	if actor.HasAnyRole(enums.RoleTesorera) {
		t.Fatal("unexpected role match")
	}
}

func TestVerifierFlagsExpiry(t *testing.T) {
	cfg := testJWTConfig()
	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	stale, err := MintAccessToken(cfg, time.Now().Add(-31*time.Minute-time.Minute), AccessTokenPayload{NationalID: "1-9", Role: enums.RoleTesorera})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := verifier.Verify(stale); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	withinSkew, err := MintAccessToken(cfg, time.Now().Add(-30*time.Minute-10*time.Second), AccessTokenPayload{NationalID: "1-9", Role: enums.RoleTesorera})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := verifier.Verify(withinSkew); err != nil {
		t.Fatalf("expected token inside clock skew to pass, got %v", err)
	}
}

func TestVerifierRejectsTokenWithoutExpiry(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		Role:             enums.RoleDirectiva,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1-9", Issuer: cfg.Issuer},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected tokens without exp to be rejected")
	}
}

func TestNewVerifierRequiresConfig(t *testing.T) {
	if _, err := NewVerifier(config.JWTConfig{Issuer: "x"}); !errors.Is(err, ErrSecretRequired) {
		t.Fatalf("expected ErrSecretRequired, got %v", err)
	}
	if _, err := NewVerifier(config.JWTConfig{Secret: "x"}); !errors.Is(err, ErrIssuerRequired) {
		t.Fatalf("expected ErrIssuerRequired, got %v", err)
	}
}
