package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"leadline/internal/domain"
	"leadline/internal/engine/auth"
	"leadline/internal/events"
)

// ParseAmount accepts "1234.5", "1234,5" or an empty string (no amount).
func ParseAmount(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil, invalid("amount %q is not a number", raw)
	}
	return &v, nil
}

type SaleInput struct {
	ContactID   string
	AssociateID string
	Amount      *float64
}

// RecordSale creates or updates the single sale of a BOOKED contact.
func (e Engine) RecordSale(ctx context.Context, in SaleInput, actor auth.Actor) (domain.Sale, error) {
	if err := actor.Require(domain.RoleAdmin); err != nil {
		return domain.Sale{}, err
	}
	if in.ContactID == "" || in.AssociateID == "" {
		return domain.Sale{}, invalid("contactId and userId are required")
	}
	ts := domain.FormatTime(e.now())
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sale{}, err
	}
	defer tx.Rollback()
	c, err := e.Repo.GetContact(ctx, tx, in.ContactID)
	if err != nil {
		return domain.Sale{}, err
	}
	if c.State != domain.StateBooked {
		return domain.Sale{}, ErrNotBooked
	}
	sale, err := e.Repo.UpsertSale(ctx, tx, domain.Sale{
		ID:          uuid.New().String(),
		ContactID:   c.ID,
		AssociateID: in.AssociateID,
		Amount:      in.Amount,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	})
	if err != nil {
		return domain.Sale{}, err
	}
	evt, err := e.appendEvent(ctx, tx, "sale.recorded", "sale", sale.ID, actor.ID, events.EventPayload{
		"contactId": c.ID,
		"userId":    in.AssociateID,
	})
	if err != nil {
		return domain.Sale{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sale{}, err
	}
	e.Events.Publish(evt)
	return sale, nil
}

// ListSales returns sales visible to actor, with amounts hidden below ADMIN.
func (e Engine) ListSales(ctx context.Context, associateID string, actor auth.Actor) ([]domain.Sale, error) {
	if err := actor.Require(domain.RoleManager); err != nil {
		return nil, err
	}
	sales, err := e.Repo.ListSales(ctx, associateID)
	if err != nil {
		return nil, err
	}
	return auth.HideFinancials(actor, sales), nil
}
