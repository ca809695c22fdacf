package repo

import (
	"context"
	"database/sql"

	"leadline/internal/domain"
)

func (r Repo) InsertTimer(ctx context.Context, tx *sql.Tx, t domain.ContactTimer) error {
	_, err := r.exec(ctx, tx, `INSERT INTO contact_timers(id,contact_id,user_id,session_id,duration_sec,ended_at) VALUES (?,?,?,?,?,?)`,
		t.ID, t.ContactID, t.AssociateID, nullableStringPtr(t.SessionID), t.DurationSec, t.EndedAt)
	return err
}

func (r Repo) ListTimers(ctx context.Context, contactID string) ([]domain.ContactTimer, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,contact_id,user_id,session_id,duration_sec,ended_at FROM contact_timers WHERE contact_id=? ORDER BY ended_at ASC, id ASC`), contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ContactTimer
	for rows.Next() {
		var t domain.ContactTimer
		var session sql.NullString
		if err := rows.Scan(&t.ID, &t.ContactID, &t.AssociateID, &session, &t.DurationSec, &t.EndedAt); err != nil {
			return nil, err
		}
		t.SessionID = stringPtr(session)
		res = append(res, t)
	}
	return res, rows.Err()
}

// TimerTotals aggregates handling attempts of one associate since a point in time.
type TimerTotals struct {
	Dials             int
	TalkSeconds       int
	GoodConversations int
}

func (r Repo) TimerTotals(ctx context.Context, associateID, since string, goodSeconds int) (TimerTotals, error) {
	var t TimerTotals
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT COUNT(*), COALESCE(SUM(duration_sec),0), COALESCE(SUM(CASE WHEN duration_sec>=? THEN 1 ELSE 0 END),0)
FROM contact_timers WHERE user_id=? AND ended_at>=?`), goodSeconds, associateID, since).Scan(&t.Dials, &t.TalkSeconds, &t.GoodConversations)
	return t, err
}
