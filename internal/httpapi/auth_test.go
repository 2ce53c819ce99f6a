package httpapi

import (
	"strings"
	"testing"
	"time"

	"supplydesk/backend/internal/domain"
)

func TestAuthManagerIssueAndParse(t *testing.T) {
	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour)

	resp, err := auth.Issue("ops@supplydesk", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if resp.Role != domain.RoleAdmin || resp.AccessToken == "" {
		t.Fatalf("unexpected token response: %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Subject != "ops@supplydesk" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestAuthManagerRejectsUnknownRole(t *testing.T) {
	auth := NewAuthManager("secret", time.Hour)
	if _, err := auth.Issue("someone", "cashier"); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
	if _, err := auth.Issue("  ", domain.RoleStaff); err == nil {
		t.Fatalf("expected empty subject to be rejected")
	}
}

func TestAuthManagerRejectsExpiredToken(t *testing.T) {
	auth := NewAuthManager("secret", time.Minute)
	issuedAt := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issuedAt }

	resp, err := auth.Issue("driver", domain.RoleStaff)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	auth.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestAuthManagerRejectsForeignSecret(t *testing.T) {
	resp, err := NewAuthManager("one-secret", time.Hour).Issue("driver", domain.RoleStaff)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	_, err = NewAuthManager("another-secret", time.Hour).ParseToken(resp.AccessToken)
	if err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}
