package middleware

import (
	"testing"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &models.User{ID: "user-123", Email: "test@example.com"}

	token, err := GenerateJWT(user, "test-secret")
	if err != nil {
		t.Fatalf("GenerateJWT returned error: %v", err)
	}

	claims, err := ParseJWT(token, "test-secret")
	if err != nil {
		t.Fatalf("ParseJWT returned error: %v", err)
	}
	if claims.UserID != "user-123" || claims.Email != "test@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT(&models.User{ID: "u1"}, "secret-a")
	if err != nil {
		t.Fatalf("GenerateJWT returned error: %v", err)
	}

	if _, err := ParseJWT(token, "secret-b"); err == nil {
		t.Error("expected signature validation to fail with the wrong secret")
	}
}

func TestParseJWT_Garbage(t *testing.T) {
	if _, err := ParseJWT("not.a.token", "secret"); err == nil {
		t.Error("expected parse failure for garbage input")
	}
}
