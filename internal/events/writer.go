package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"leadline/internal/db"
	"leadline/internal/domain"
)

// Publisher receives events once their transaction has committed.
type Publisher interface {
	Publish(evt domain.Event)
}

type Writer struct {
	DB        *sql.DB
	Dialect   db.Dialect
	Now       func() time.Time
	Publisher Publisher
}

type EventPayload map[string]any

// Append inserts an audit row inside tx and returns it with its assigned id.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) (domain.Event, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal event payload: %w", err)
	}
	evt := domain.Event{
		TS:         domain.FormatTime(w.Now()),
		Type:       evtType,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    string(data),
	}
	query := db.Rebind(w.Dialect, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?) RETURNING id`)
	if err := tx.QueryRowContext(ctx, query, evt.TS, evt.Type, evt.EntityKind, nullable(evt.EntityID), evt.ActorID, evt.Payload).Scan(&evt.ID); err != nil {
		return domain.Event{}, fmt.Errorf("append event %s: %w", evtType, err)
	}
	return evt, nil
}

// Publish forwards committed events to the configured publisher, if any.
func (w Writer) Publish(evts ...domain.Event) {
	if w.Publisher == nil {
		return
	}
	for _, evt := range evts {
		if evt.ID == 0 {
			continue
		}
		w.Publisher.Publish(evt)
	}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
