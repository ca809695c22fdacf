package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"leadline/internal/config"
	"leadline/internal/domain"
	"leadline/internal/events"
	"leadline/internal/repo"
	"leadline/internal/segment"
)

const (
	// ReviveDelay is how long NO_ANSWER and SKIP contacts stay out of the queue.
	ReviveDelay = 3 * time.Hour
	// NoAnswerLimit escalates a contact to REFUSED once reached.
	NoAnswerLimit = 5
	// ClaimAttempts bounds the conditional-update retry loop of a claim.
	ClaimAttempts = 5
	// GoodConversationSeconds is the handling time that counts as a real conversation.
	GoodConversationSeconds = 60
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrContactClosed  = errors.New("contact already closed")
	ErrSessionClosed  = errors.New("session already ended")
	ErrNotBooked      = errors.New("contact is not booked")
	ErrConflict       = errors.New("contact changed concurrently")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
	// Intn draws the weighted segment; nil uses math/rand.
	Intn   func(int) int
	Logger *log.Logger
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.New(db)
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db, Dialect: r.Dialect},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Time reads the engine clock.
func (e Engine) Time() time.Time { return e.now() }

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func (e Engine) intn(n int) int {
	if e.Intn != nil {
		return e.Intn(n)
	}
	return rand.Intn(n)
}

// appendEvent records an audit row with the engine clock.
func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload events.EventPayload) (domain.Event, error) {
	w := e.Events
	w.Now = e.now
	return w.Append(ctx, tx, evtType, entityKind, entityID, actorID, payload)
}

// Picker returns the segment picker for the loaded configuration.
func (e Engine) Picker() (segment.Picker, error) {
	if e.Config == nil {
		return segment.Picker{}, errors.New("config not loaded")
	}
	return e.Config.Picker()
}

// PickSegment chooses a segment for t, reporting false outside the windows
// or when the active window has no weighted segments.
func (e Engine) PickSegment(t time.Time) (string, bool, error) {
	p, err := e.Picker()
	if err != nil {
		return "", false, err
	}
	key, ok := p.Pick(t, e.intn)
	return key, ok, nil
}

// normalizeSegment maps a full or short segment key to the full key.
func normalizeSegment(key string) (string, error) {
	meta, ok := segment.Lookup(strings.ToUpper(strings.TrimSpace(key)))
	if !ok {
		return "", invalid("unknown segment %q", key)
	}
	return meta.Key, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
