package live

import (
	"testing"
	"time"
)

func TestTokenMintVerify(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Minute)

	token, err := issuer.Mint("survey-1", "owner-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	owner, err := issuer.Verify(token, "survey-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if owner != "owner-1" {
		t.Fatalf("got owner %q, want owner-1", owner)
	}
}

func TestTokenRejectsWrongSurvey(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Minute)

	token, err := issuer.Mint("survey-1", "owner-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := issuer.Verify(token, "survey-2"); err == nil {
		t.Fatal("expected rejection for a different survey")
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Minute)
	other := NewTokenIssuer([]byte("other-secret"), time.Minute)

	token, err := issuer.Mint("survey-1", "owner-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := other.Verify(token, "survey-1"); err == nil {
		t.Fatal("expected rejection for a token signed with another secret")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	issuer := &TokenIssuer{Secret: []byte("test-secret"), TTL: -time.Minute}

	token, err := issuer.Mint("survey-1", "owner-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := issuer.Verify(token, "survey-1"); err == nil {
		t.Fatal("expected rejection for an expired token")
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Minute)
	if _, err := issuer.Verify("not-a-token", "survey-1"); err == nil {
		t.Fatal("expected rejection for a malformed token")
	}
}
