package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"leadline/internal/domain"
	"leadline/internal/events"
)

func (e Engine) AddNote(ctx context.Context, contactID, authorID, content string) (domain.BookingNote, error) {
	content = strings.TrimSpace(content)
	if contactID == "" {
		return domain.BookingNote{}, invalid("contact id is required")
	}
	if content == "" {
		return domain.BookingNote{}, invalid("content is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.BookingNote{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetContact(ctx, tx, contactID); err != nil {
		return domain.BookingNote{}, err
	}
	n := domain.BookingNote{
		ID:        uuid.New().String(),
		ContactID: contactID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: domain.FormatTime(e.now()),
	}
	if err := e.Repo.InsertNote(ctx, tx, n); err != nil {
		return domain.BookingNote{}, err
	}
	evt, err := e.appendEvent(ctx, tx, "note.added", "contact", contactID, authorID, events.EventPayload{"noteId": n.ID})
	if err != nil {
		return domain.BookingNote{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.BookingNote{}, err
	}
	e.Events.Publish(evt)
	return n, nil
}

// ListNotes returns a contact's notes, newest first.
func (e Engine) ListNotes(ctx context.Context, contactID string) ([]domain.BookingNote, error) {
	if _, err := e.Repo.GetContact(ctx, nil, contactID); err != nil {
		return nil, err
	}
	return e.Repo.ListNotes(ctx, contactID)
}
