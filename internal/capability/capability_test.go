package capability

import (
	"testing"
	"time"
)

func TestIssueAndVerify_RoundTrips(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"), time.Minute)
	tok, err := issuer.Issue("alice@example.com", "files/report.pdf")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := issuer.Verify(tok, "alice@example.com", "files/report.pdf"); err != nil {
		t.Errorf("expected verification to succeed, got %v", err)
	}
}

func TestVerify_RejectsWrongUser(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"), time.Minute)
	tok, _ := issuer.Issue("alice@example.com", "files/report.pdf")
	if err := issuer.Verify(tok, "mallory@example.com", "files/report.pdf"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for wrong user, got %v", err)
	}
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"), time.Minute)
	tok, _ := issuer.Issue("alice@example.com", "files/report.pdf")
	if err := issuer.Verify(tok, "alice@example.com", "files/other.pdf"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for wrong key, got %v", err)
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"), -time.Minute)
	tok, _ := issuer.Issue("alice@example.com", "files/report.pdf")
	if err := issuer.Verify(tok, "alice@example.com", "files/report.pdf"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerify_RejectsTamperedToken(t *testing.T) {
	issuerA := NewIssuer([]byte("secret-a"), time.Minute)
	issuerB := NewIssuer([]byte("secret-b"), time.Minute)
	tok, _ := issuerA.Issue("alice@example.com", "files/report.pdf")
	if err := issuerB.Verify(tok, "alice@example.com", "files/report.pdf"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for token signed with different secret, got %v", err)
	}
}
