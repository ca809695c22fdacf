package repo

import (
	"context"
	"database/sql"

	"leadline/internal/domain"
)

func (r Repo) InsertNote(ctx context.Context, tx *sql.Tx, n domain.BookingNote) error {
	_, err := r.exec(ctx, tx, `INSERT INTO booking_notes(id,contact_id,author_id,content,created_at) VALUES (?,?,?,?,?)`,
		n.ID, n.ContactID, n.AuthorID, n.Content, n.CreatedAt)
	return err
}

func (r Repo) ListNotes(ctx context.Context, contactID string) ([]domain.BookingNote, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,contact_id,author_id,content,created_at FROM booking_notes WHERE contact_id=? ORDER BY created_at DESC, id DESC`), contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.BookingNote
	for rows.Next() {
		var n domain.BookingNote
		if err := rows.Scan(&n.ID, &n.ContactID, &n.AuthorID, &n.Content, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}
