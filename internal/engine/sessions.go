package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"leadline/internal/domain"
	"leadline/internal/engine/auth"
	"leadline/internal/events"
	"leadline/internal/repo"
)

// StartSession opens a calling session for associateID. An open session of the
// same associate is closed first and its pending claims are released.
func (e Engine) StartSession(ctx context.Context, associateID, segmentKey string) (domain.CallSession, error) {
	if associateID == "" {
		return domain.CallSession{}, invalid("associate is required")
	}
	if segmentKey != "" {
		key, err := normalizeSegment(segmentKey)
		if err != nil {
			return domain.CallSession{}, err
		}
		segmentKey = key
	}
	now := e.now()
	ts := domain.FormatTime(now)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CallSession{}, err
	}
	defer tx.Rollback()

	var evts []domain.Event
	prev, err := e.Repo.OpenSession(ctx, tx, associateID)
	switch {
	case err == nil:
		evt, err := e.closeSession(ctx, tx, prev, elapsedSeconds(prev.StartedAt, now), ts, associateID, "superseded")
		if err != nil {
			return domain.CallSession{}, err
		}
		evts = append(evts, evt...)
	case !errors.Is(err, repo.ErrNotFound):
		return domain.CallSession{}, err
	}

	s := domain.CallSession{
		ID:          uuid.New().String(),
		AssociateID: associateID,
		SegmentKey:  segmentKey,
		StartedAt:   ts,
	}
	if err := e.Repo.InsertSession(ctx, tx, s); err != nil {
		return domain.CallSession{}, err
	}
	evt, err := e.appendEvent(ctx, tx, "session.started", "session", s.ID, associateID, events.EventPayload{"segmentKey": segmentKey})
	if err != nil {
		return domain.CallSession{}, err
	}
	evts = append(evts, evt)
	if err := tx.Commit(); err != nil {
		return domain.CallSession{}, err
	}
	e.Events.Publish(evts...)
	return s, nil
}

// EndSession closes sessionID with the client-reported duration.
// Only the owner, or a manager or admin, may end a session.
func (e Engine) EndSession(ctx context.Context, sessionID string, durationSec int, actor auth.Actor) (domain.CallSession, error) {
	if sessionID == "" {
		return domain.CallSession{}, invalid("sessionId is required")
	}
	if durationSec < 0 {
		durationSec = 0
	}
	ts := domain.FormatTime(e.now())
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CallSession{}, err
	}
	defer tx.Rollback()

	s, err := e.Repo.GetSession(ctx, tx, sessionID)
	if err != nil {
		return domain.CallSession{}, err
	}
	if !actor.CanActFor(s.AssociateID) {
		return domain.CallSession{}, auth.ForbiddenError{Role: domain.RoleManager}
	}
	if !s.Open() {
		return domain.CallSession{}, ErrSessionClosed
	}
	evts, err := e.closeSession(ctx, tx, s, durationSec, ts, actor.ID, "ended")
	if err != nil {
		return domain.CallSession{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CallSession{}, err
	}
	e.Events.Publish(evts...)
	s.EndedAt = &ts
	s.DurationSec = &durationSec
	return s, nil
}

// CurrentSession returns the associate's open session.
func (e Engine) CurrentSession(ctx context.Context, associateID string) (domain.CallSession, error) {
	return e.Repo.OpenSession(ctx, nil, associateID)
}

func (e Engine) ListSessions(ctx context.Context, associateID string, limit int) ([]domain.CallSession, error) {
	return e.Repo.ListSessions(ctx, associateID, limit)
}

func (e Engine) closeSession(ctx context.Context, tx *sql.Tx, s domain.CallSession, durationSec int, ts, actorID, reason string) ([]domain.Event, error) {
	ok, err := e.Repo.CloseSession(ctx, tx, s.ID, ts, durationSec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionClosed
	}
	var evts []domain.Event
	released, err := e.releaseClaims(ctx, tx, s.AssociateID, ts, actorID)
	if err != nil {
		return nil, err
	}
	if released != nil {
		evts = append(evts, *released)
	}
	evt, err := e.appendEvent(ctx, tx, "session.ended", "session", s.ID, actorID, events.EventPayload{
		"userId":      s.AssociateID,
		"durationSec": durationSec,
		"reason":      reason,
	})
	if err != nil {
		return nil, err
	}
	return append(evts, evt), nil
}

// releaseClaims unassigns the associate's claimed-but-undispositioned contacts.
func (e Engine) releaseClaims(ctx context.Context, tx *sql.Tx, associateID, ts, actorID string) (*domain.Event, error) {
	n, err := e.Repo.ReleaseClaims(ctx, tx, associateID, ts)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	evt, err := e.appendEvent(ctx, tx, "contact.released", "user", associateID, actorID, events.EventPayload{"count": n})
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

func elapsedSeconds(startedAt string, now time.Time) int {
	start, err := domain.ParseTime(startedAt)
	if err != nil || now.Before(start) {
		return 0
	}
	return int(now.Sub(start) / time.Second)
}
