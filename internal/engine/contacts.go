package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"leadline/internal/domain"
	"leadline/internal/engine/auth"
	"leadline/internal/events"
	"leadline/internal/repo"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// prepareContact validates profile fields and resets lifecycle fields to a fresh NEW lead.
func (e Engine) prepareContact(c domain.Contact, ts string) (domain.Contact, error) {
	c.CompanyName = strings.TrimSpace(c.CompanyName)
	if c.CompanyName == "" {
		return c, invalid("companyName is required")
	}
	if c.SegmentKey != "" {
		key, err := normalizeSegment(c.SegmentKey)
		if err != nil {
			return c, err
		}
		c.SegmentKey = key
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.State = domain.StateNew
	c.AssignedToID = nil
	c.LastCalledAt = nil
	c.CallLaterAt = nil
	c.NoAnswerAt = nil
	c.CallNote = nil
	c.ReviveAt = nil
	c.NoAnswerCount = 0
	c.CreatedAt = ts
	c.UpdatedAt = ts
	return c, nil
}

// CreateContact inserts a single NEW, unassigned contact.
func (e Engine) CreateContact(ctx context.Context, c domain.Contact, actor auth.Actor) (domain.Contact, error) {
	if err := actor.Require(domain.RoleAdmin); err != nil {
		return domain.Contact{}, err
	}
	c, err := e.prepareContact(c, domain.FormatTime(e.now()))
	if err != nil {
		return domain.Contact{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Contact{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertContact(ctx, tx, c); err != nil {
		return domain.Contact{}, err
	}
	evt, err := e.appendEvent(ctx, tx, "contact.created", "contact", c.ID, actor.ID, events.EventPayload{"segmentKey": c.SegmentKey})
	if err != nil {
		return domain.Contact{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Contact{}, err
	}
	e.Events.Publish(evt)
	return c, nil
}

// ImportContacts inserts parsed rows as NEW leads in one transaction.
// Rows with an unknown segment are imported unsegmented.
func (e Engine) ImportContacts(ctx context.Context, rows []domain.Contact, source, actorID string) (int, error) {
	ts := domain.FormatTime(e.now())
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	inserted := 0
	for _, row := range rows {
		if row.SegmentKey != "" {
			if key, err := normalizeSegment(row.SegmentKey); err == nil {
				row.SegmentKey = key
			} else {
				row.SegmentKey = ""
			}
		}
		c, err := e.prepareContact(row, ts)
		if err != nil {
			continue
		}
		if err := e.Repo.InsertContact(ctx, tx, c); err != nil {
			return 0, err
		}
		inserted++
	}
	evt, err := e.appendEvent(ctx, tx, "contacts.imported", "contact", "", actorID, events.EventPayload{
		"source":   source,
		"inserted": inserted,
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	e.Events.Publish(evt)
	return inserted, nil
}

// GetContact returns a contact. Associates may only read contacts assigned to them.
func (e Engine) GetContact(ctx context.Context, id string, actor auth.Actor) (domain.Contact, error) {
	c, err := e.Repo.GetContact(ctx, nil, id)
	if err != nil {
		return domain.Contact{}, err
	}
	if !auth.AtLeast(actor.Role, domain.RoleManager) {
		if c.AssignedToID == nil || *c.AssignedToID != actor.ID {
			return domain.Contact{}, auth.ForbiddenError{Role: domain.RoleManager}
		}
	}
	return c, nil
}

type ContactPage struct {
	Items []domain.Contact `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Take  int              `json:"take"`
}

// ListContacts pages through contacts for managers and admins.
func (e Engine) ListContacts(ctx context.Context, f repo.ContactFilters, page, take int, actor auth.Actor) (ContactPage, error) {
	if err := actor.Require(domain.RoleManager); err != nil {
		return ContactPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if take <= 0 {
		take = DefaultPageSize
	}
	if take > MaxPageSize {
		take = MaxPageSize
	}
	if f.State != "" {
		f.State = strings.ToUpper(f.State)
		if !domain.ValidState(f.State) {
			return ContactPage{}, invalid("unknown state %q", f.State)
		}
	}
	if f.SegmentKey != "" && f.SegmentKey != domain.Unsegmented {
		key, err := normalizeSegment(f.SegmentKey)
		if err != nil {
			return ContactPage{}, err
		}
		f.SegmentKey = key
	}
	f.Limit = take
	f.Offset = (page - 1) * take
	items, total, err := e.Repo.ListContacts(ctx, f)
	if err != nil {
		return ContactPage{}, err
	}
	if items == nil {
		items = []domain.Contact{}
	}
	return ContactPage{Items: items, Total: total, Page: page, Take: take}, nil
}

// Summary counts contacts per segment and state.
func (e Engine) Summary(ctx context.Context, actor auth.Actor) ([]domain.SegmentCount, error) {
	if err := actor.Require(domain.RoleManager); err != nil {
		return nil, err
	}
	return e.Repo.SegmentSummary(ctx)
}

// BulkSetState administratively moves ids to state and reports rows changed.
func (e Engine) BulkSetState(ctx context.Context, ids []string, state string, actor auth.Actor) (int64, error) {
	if err := actor.Require(domain.RoleAdmin); err != nil {
		return 0, err
	}
	state = strings.ToUpper(strings.TrimSpace(state))
	if !domain.ValidState(state) {
		return 0, invalid("unknown state %q", state)
	}
	if len(ids) == 0 {
		return 0, invalid("ids are required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	n, err := e.Repo.SetStates(ctx, tx, ids, state, domain.FormatTime(e.now()))
	if err != nil {
		return 0, err
	}
	evt, err := e.appendEvent(ctx, tx, "contact.state_set", "contact", "", actor.ID, events.EventPayload{
		"ids":   ids,
		"state": state,
		"count": n,
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	e.Events.Publish(evt)
	return n, nil
}

// Callbacks lists the associate's CALL_LATER contacts.
func (e Engine) Callbacks(ctx context.Context, associateID string) ([]domain.Contact, error) {
	if associateID == "" {
		return nil, invalid("associate is required")
	}
	return e.Repo.ListCallbacks(ctx, associateID)
}
