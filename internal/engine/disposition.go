package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadline/internal/domain"
	"leadline/internal/events"
)

// DispositionInput is an associate's recorded outcome for one contact.
type DispositionInput struct {
	ContactID   string
	Action      string
	Note        string
	Skip        bool
	CallLaterAt string
	DurationSec int
	SessionID   string
	AssociateID string
}

func (in DispositionInput) validate() (DispositionInput, *time.Time, error) {
	in.ContactID = strings.TrimSpace(in.ContactID)
	in.Action = strings.ToUpper(strings.TrimSpace(in.Action))
	if in.ContactID == "" {
		return in, nil, invalid("contact id is required")
	}
	if in.Action == "" {
		return in, nil, invalid("action is required")
	}
	if !domain.ValidAction(in.Action) {
		return in, nil, invalid("unknown action %q", in.Action)
	}
	if in.DurationSec < 0 {
		in.DurationSec = 0
	}
	if in.CallLaterAt == "" {
		return in, nil, nil
	}
	at, err := domain.ParseTime(in.CallLaterAt)
	if err != nil {
		return in, nil, invalid("callLaterAt: %v", err)
	}
	return in, &at, nil
}

// Transition computes the contact that results from applying in at now.
// It does not touch storage.
func Transition(c domain.Contact, in DispositionInput, callLaterAt *time.Time, now time.Time) domain.Contact {
	ts := domain.FormatTime(now)
	next := c
	next.LastCalledAt = &ts
	next.UpdatedAt = ts
	next.ReviveAt = nil
	associate := optionalString(in.AssociateID)

	switch in.Action {
	case domain.ActionCallLater:
		next.State = domain.StateCallLater
		next.CallNote = optionalString(in.Note)
		at := ts
		if callLaterAt != nil {
			at = domain.FormatTime(*callLaterAt)
		}
		next.CallLaterAt = &at
		next.AssignedToID = associate
	case domain.ActionBooked:
		next.State = domain.StateBooked
		if associate != nil {
			next.AssignedToID = associate
		}
	case domain.ActionRefused:
		next.State = domain.StateRefused
		next.CallNote = optionalString(in.Note)
		if associate != nil {
			next.AssignedToID = associate
		}
	case domain.ActionNoAnswer:
		revive := domain.FormatTime(now.Add(ReviveDelay))
		next.AssignedToID = nil
		if in.Skip {
			next.State = domain.StateSkip
			next.ReviveAt = &revive
			break
		}
		next.State = domain.StateNoAnswer
		next.NoAnswerAt = &ts
		next.NoAnswerCount = c.NoAnswerCount + 1
		next.ReviveAt = &revive
		if next.NoAnswerCount >= NoAnswerLimit {
			next.State = domain.StateRefused
			next.ReviveAt = nil
		}
	}
	return next
}

// ApplyDisposition records a handling timer and applies the outcome to the
// contact in one transaction. Closed contacts and lost updates are rejected
// with the contact untouched; the timer is committed either way.
func (e Engine) ApplyDisposition(ctx context.Context, in DispositionInput) (domain.Contact, error) {
	in, callLaterAt, err := in.validate()
	if err != nil {
		return domain.Contact{}, err
	}
	now := e.now()
	ts := domain.FormatTime(now)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Contact{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetContact(ctx, tx, in.ContactID)
	if err != nil {
		return domain.Contact{}, err
	}
	if in.DurationSec > 0 && in.AssociateID != "" {
		timer := domain.ContactTimer{
			ID:          uuid.New().String(),
			ContactID:   c.ID,
			AssociateID: in.AssociateID,
			SessionID:   optionalString(in.SessionID),
			DurationSec: in.DurationSec,
			EndedAt:     ts,
		}
		if err := e.Repo.InsertTimer(ctx, tx, timer); err != nil {
			return domain.Contact{}, err
		}
	}
	if domain.Closed(c.State) {
		return domain.Contact{}, reject(tx, ErrContactClosed)
	}
	next := Transition(c, in, callLaterAt, now)
	n, err := e.Repo.UpdateIfState(ctx, tx, next, c.State)
	if err != nil {
		return domain.Contact{}, err
	}
	if n == 0 {
		return domain.Contact{}, reject(tx, ErrConflict)
	}
	evt, err := e.appendEvent(ctx, tx, "contact.disposition", "contact", c.ID, in.AssociateID, events.EventPayload{
		"action":        in.Action,
		"skip":          in.Skip,
		"from":          c.State,
		"to":            next.State,
		"noAnswerCount": next.NoAnswerCount,
		"durationSec":   in.DurationSec,
		"sessionId":     in.SessionID,
	})
	if err != nil {
		return domain.Contact{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Contact{}, err
	}
	e.Events.Publish(evt)
	return next, nil
}

// reject commits whatever tx already holds (the timer) and returns cause.
func reject(tx *sql.Tx, cause error) error {
	if err := tx.Commit(); err != nil {
		return err
	}
	return cause
}
