package auth

import (
	"errors"
	"testing"

	"leadline/internal/domain"
)

func TestRoleRanking(t *testing.T) {
	admin := Actor{ID: "a", Role: domain.RoleAdmin}
	manager := Actor{ID: "m", Role: domain.RoleManager}
	assoc := Actor{ID: "u1", Role: domain.RoleAssociate}
	nobody := Actor{ID: "x", Role: "GUEST"}

	if err := admin.Require(domain.RoleAdmin); err != nil {
		t.Fatalf("admin should pass admin check: %v", err)
	}
	if err := manager.Require(domain.RoleAdmin); err == nil {
		t.Fatalf("manager should fail admin check")
	}
	var fe ForbiddenError
	if err := assoc.Require(domain.RoleManager); !errors.As(err, &fe) || fe.Role != domain.RoleManager {
		t.Fatalf("expected ForbiddenError for associate, got %v", err)
	}
	if err := nobody.Require(domain.RoleAssociate); err == nil {
		t.Fatalf("unknown role must not pass")
	}
}

func TestCanActFor(t *testing.T) {
	assoc := Actor{ID: "u1", Role: domain.RoleAssociate}
	if !assoc.CanActFor("u1") || assoc.CanActFor("u2") {
		t.Fatalf("associate may act only for self")
	}
	if !(Actor{ID: "m", Role: domain.RoleManager}).CanActFor("u2") {
		t.Fatalf("manager may act for others")
	}
}

func TestHideFinancials(t *testing.T) {
	amount := 120.5
	sales := []domain.Sale{{ID: "s1", Amount: &amount}}
	hidden := HideFinancials(Actor{Role: domain.RoleManager}, sales)
	if hidden[0].Amount != nil {
		t.Fatalf("manager should not see amounts")
	}
	if sales[0].Amount == nil {
		t.Fatalf("input slice must not be modified")
	}
	shown := HideFinancials(Actor{Role: domain.RoleAdmin}, sales)
	if shown[0].Amount == nil || *shown[0].Amount != amount {
		t.Fatalf("admin should see amounts")
	}
}
