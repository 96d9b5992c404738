package auth

import (
	"context"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Setenv("TRUSS_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("user-42", "user@acme.test", 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "user@acme.test" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
	if claims.Issuer != "truss" {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Setenv("TRUSS_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	if _, err := ParseAndValidate(""); err == nil {
		t.Fatalf("empty token must fail")
	}
	if _, err := ParseAndValidate("not.a.token"); err == nil {
		t.Fatalf("malformed token must fail")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	t.Setenv("TRUSS_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	if _, err := GenerateToken("user-42", "", -time.Minute); err == nil {
		t.Fatalf("non-positive ttl must be rejected at generation")
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv("TRUSS_AUTH_SECRET", "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("user-42", "", time.Minute); err == nil {
		t.Fatalf("missing secret must fail token generation")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = ContextWithUser(ctx, "user-7", "Seven@acme.test")
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-7" {
		t.Fatalf("unexpected user id: %s, ok=%v", id, ok)
	}
	if email, ok := EmailFromContext(ctx); !ok || email == "" {
		t.Fatalf("expected email in context")
	}

	ctx = ContextWithToken(ctx, "raw-token")
	tok, ok := TokenFromContext(ctx)
	if !ok || tok != "raw-token" {
		t.Fatalf("unexpected token: %s", tok)
	}

	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Fatalf("empty context must not produce a user")
	}
}
