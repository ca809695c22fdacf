package auth

import (
	"fmt"

	"leadline/internal/domain"
)

// ForbiddenError indicates the caller's role is below the one required.
type ForbiddenError struct {
	Role string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %s required", e.Role)
}

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	ID   string
	Role string
}

func rank(role string) int {
	switch role {
	case domain.RoleAdmin:
		return 3
	case domain.RoleManager:
		return 2
	case domain.RoleAssociate:
		return 1
	}
	return 0
}

// AtLeast reports whether role ranks at or above min.
func AtLeast(role, min string) bool {
	return rank(role) > 0 && rank(role) >= rank(min)
}

// Require returns ForbiddenError when a's role ranks below min.
func (a Actor) Require(min string) error {
	if !AtLeast(a.Role, min) {
		return ForbiddenError{Role: min}
	}
	return nil
}

// CanActFor reports whether a may operate on associateID's work.
// Associates act only for themselves; managers and admins for anyone.
func (a Actor) CanActFor(associateID string) bool {
	return a.ID == associateID || AtLeast(a.Role, domain.RoleManager)
}

// SeesFinancials reports whether sale amounts may be shown to a.
func (a Actor) SeesFinancials() bool {
	return a.Role == domain.RoleAdmin
}

// HideFinancials strips sale amounts for roles that may not see them.
func HideFinancials(a Actor, sales []domain.Sale) []domain.Sale {
	if a.SeesFinancials() {
		return sales
	}
	out := make([]domain.Sale, len(sales))
	for i, s := range sales {
		s.Amount = nil
		out[i] = s
	}
	return out
}
