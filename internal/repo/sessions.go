package repo

import (
	"context"
	"database/sql"

	"leadline/internal/domain"
)

const sessionColumns = `id,user_id,segment_key,started_at,ended_at,duration_sec`

func scanSession(row scanner) (domain.CallSession, error) {
	var s domain.CallSession
	var seg, ended sql.NullString
	var dur sql.NullInt64
	err := row.Scan(&s.ID, &s.AssociateID, &seg, &s.StartedAt, &ended, &dur)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.SegmentKey = seg.String
	s.EndedAt = stringPtr(ended)
	if dur.Valid {
		d := int(dur.Int64)
		s.DurationSec = &d
	}
	return s, nil
}

func (r Repo) InsertSession(ctx context.Context, tx *sql.Tx, s domain.CallSession) error {
	_, err := r.exec(ctx, tx, `INSERT INTO call_sessions(`+sessionColumns+`) VALUES (?,?,?,?,?,?)`,
		s.ID, s.AssociateID, nullable(s.SegmentKey), s.StartedAt, nullableStringPtr(s.EndedAt), nil)
	return err
}

func (r Repo) GetSession(ctx context.Context, tx *sql.Tx, id string) (domain.CallSession, error) {
	return scanSession(r.on(tx).QueryRowContext(ctx, r.q(`SELECT `+sessionColumns+` FROM call_sessions WHERE id=?`), id))
}

// OpenSession returns the associate's session that has not ended.
func (r Repo) OpenSession(ctx context.Context, tx *sql.Tx, associateID string) (domain.CallSession, error) {
	return scanSession(r.on(tx).QueryRowContext(ctx, r.q(`SELECT `+sessionColumns+` FROM call_sessions WHERE user_id=? AND ended_at IS NULL ORDER BY started_at DESC LIMIT 1`), associateID))
}

// CloseSession sets endedAt and duration on an open session. It reports false
// when the session was already closed or does not exist.
func (r Repo) CloseSession(ctx context.Context, tx *sql.Tx, id, endedAt string, durationSec int) (bool, error) {
	n, err := r.exec(ctx, tx, `UPDATE call_sessions SET ended_at=?, duration_sec=? WHERE id=? AND ended_at IS NULL`, endedAt, durationSec, id)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) ListSessions(ctx context.Context, associateID string, limit int) ([]domain.CallSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT `+sessionColumns+` FROM call_sessions WHERE user_id=? ORDER BY started_at DESC LIMIT ?`), associateID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CallSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// SessionSeconds sums reported durations of sessions ended at or after since.
func (r Repo) SessionSeconds(ctx context.Context, associateID, since string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT COALESCE(SUM(duration_sec),0) FROM call_sessions WHERE user_id=? AND ended_at IS NOT NULL AND ended_at>=?`),
		associateID, since).Scan(&n)
	return n, err
}
