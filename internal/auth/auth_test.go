package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, err := m.GenerateToken(ServiceClaims{ClientID: "scanner-1", Role: RoleOperator})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.ClientID != "scanner-1" || claims.Role != RoleOperator {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Hour).GenerateToken(ServiceClaims{ClientID: "c", Role: RoleReader})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := NewTokenManager("secret-b", time.Hour).ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	m := NewTokenManager("test-secret", -time.Minute)
	token, err := m.GenerateToken(ServiceClaims{ClientID: "c", Role: RoleReader})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := m.ValidateToken(token); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAPIKeyVerify(t *testing.T) {
	hash, err := HashKey("sk-live-abc")
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}

	m := NewAPIKeyManager(map[string]string{hash: RoleReader})

	role, err := m.Verify("sk-live-abc")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if role != RoleReader {
		t.Errorf("expected reader role, got %s", role)
	}

	if _, err := m.Verify("wrong-key"); err == nil {
		t.Error("expected rejection for unknown key")
	}
	if _, err := m.Verify(""); err == nil {
		t.Error("expected rejection for empty key")
	}
}
