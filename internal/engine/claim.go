package engine

import (
	"context"
	"errors"

	"leadline/internal/domain"
	"leadline/internal/events"
	"leadline/internal/repo"
)

// ClaimResult describes one claim call. Contact is nil when nothing was
// claimed; Exhausted separates lost races from an empty queue.
type ClaimResult struct {
	Contact    *domain.Contact `json:"contact"`
	SegmentKey string          `json:"segmentKey,omitempty"`
	Attempts   int             `json:"attempts"`
	Exhausted  bool            `json:"exhausted"`
}

// ClaimNext hands the next eligible NEW contact of segmentKey to associateID.
func (e Engine) ClaimNext(ctx context.Context, associateID, segmentKey string) (ClaimResult, error) {
	if associateID == "" {
		return ClaimResult{}, invalid("associate is required")
	}
	if segmentKey == "" {
		return ClaimResult{}, invalid("segmentKey is required")
	}
	key, err := normalizeSegment(segmentKey)
	if err != nil {
		return ClaimResult{}, err
	}
	return e.claim(ctx, associateID, key)
}

// ClaimForNow picks a segment for the current window and claims from it,
// falling back to any segment when the window yields nothing.
func (e Engine) ClaimForNow(ctx context.Context, associateID string) (ClaimResult, error) {
	if associateID == "" {
		return ClaimResult{}, invalid("associate is required")
	}
	key, ok, err := e.PickSegment(e.now())
	if err != nil {
		return ClaimResult{}, err
	}
	if ok {
		res, err := e.claim(ctx, associateID, key)
		if err != nil || res.Contact != nil {
			return res, err
		}
	}
	return e.claim(ctx, associateID, "")
}

// Revive returns due NO_ANSWER and SKIP contacts to the queue.
func (e Engine) Revive(ctx context.Context, actorID string) (int64, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	ts := domain.FormatTime(e.now())
	n, err := e.Repo.ReviveDue(ctx, tx, ts)
	if err != nil {
		return 0, err
	}
	var evts []domain.Event
	if n > 0 {
		evt, err := e.appendEvent(ctx, tx, "contacts.revived", "contact", "", actorID, events.EventPayload{"count": n})
		if err != nil {
			return 0, err
		}
		evts = append(evts, evt)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	e.Events.Publish(evts...)
	return n, nil
}

// prepare runs revival and drops the associate's previous claim.
func (e Engine) prepare(ctx context.Context, associateID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	ts := domain.FormatTime(e.now())
	var evts []domain.Event
	n, err := e.Repo.ReviveDue(ctx, tx, ts)
	if err != nil {
		return err
	}
	if n > 0 {
		evt, err := e.appendEvent(ctx, tx, "contacts.revived", "contact", "", associateID, events.EventPayload{"count": n})
		if err != nil {
			return err
		}
		evts = append(evts, evt)
	}
	released, err := e.releaseClaims(ctx, tx, associateID, ts, associateID)
	if err != nil {
		return err
	}
	if released != nil {
		evts = append(evts, *released)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Events.Publish(evts...)
	return nil
}

func (e Engine) claim(ctx context.Context, associateID, segmentKey string) (ClaimResult, error) {
	if err := e.prepare(ctx, associateID); err != nil {
		return ClaimResult{}, err
	}
	res := ClaimResult{SegmentKey: segmentKey}
	for res.Attempts < ClaimAttempts {
		res.Attempts++
		ts := domain.FormatTime(e.now())
		candidate, err := e.Repo.FindFirstEligible(ctx, repo.EligibleFilter{AssociateID: associateID, SegmentKey: segmentKey, Now: ts})
		if errors.Is(err, repo.ErrNotFound) {
			return res, nil
		}
		if err != nil {
			return ClaimResult{}, err
		}
		won, evt, err := e.tryClaim(ctx, candidate.ID, associateID, segmentKey, ts)
		if err != nil {
			return ClaimResult{}, err
		}
		if !won {
			continue
		}
		e.Events.Publish(evt)
		c, err := e.Repo.GetContact(ctx, nil, candidate.ID)
		if err != nil {
			return ClaimResult{}, err
		}
		res.Contact = &c
		return res, nil
	}
	res.Exhausted = true
	e.logger().Printf("claim: %s lost %d races on segment %q", associateID, res.Attempts, segmentKey)
	return res, nil
}

func (e Engine) tryClaim(ctx context.Context, contactID, associateID, segmentKey, ts string) (bool, domain.Event, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.Event{}, err
	}
	defer tx.Rollback()
	won, err := e.Repo.ClaimContact(ctx, tx, contactID, associateID, ts)
	if err != nil || !won {
		return false, domain.Event{}, err
	}
	evt, err := e.appendEvent(ctx, tx, "contact.claimed", "contact", contactID, associateID, events.EventPayload{"segmentKey": segmentKey})
	if err != nil {
		return false, domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return false, domain.Event{}, err
	}
	return true, evt, nil
}
