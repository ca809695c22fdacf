package server

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"leadline/internal/domain"
	"leadline/internal/engine"
	"leadline/internal/segment"
)

// Request payloads

type StartSessionRequest struct {
	SegmentKey string `json:"segmentKey,omitempty"`
}

type EndSessionRequest struct {
	SessionID   string `json:"sessionId,omitempty"`
	DurationSec int    `json:"durationSec,omitempty"`
}

type ClaimNextRequest struct {
	SegmentKey string `json:"segmentKey,omitempty" example:"B"`
}

type DispositionRequest struct {
	Action      string  `json:"action,omitempty" example:"NO_ANSWER"`
	Note        string  `json:"note,omitempty"`
	Skip        bool    `json:"skip,omitempty"`
	CallLaterAt string  `json:"callLaterAt,omitempty" example:"2024-07-02T15:00:00Z"`
	DurationSec float64 `json:"durationSec,omitempty"`
	SessionID   string  `json:"sessionId,omitempty"`
	UserID      string  `json:"userId,omitempty"`
}

// duration truncates to whole seconds; negatives count as zero.
func (r DispositionRequest) duration() int {
	if r.DurationSec <= 0 || math.IsNaN(r.DurationSec) {
		return 0
	}
	if r.DurationSec >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(r.DurationSec)
}

type CreateContactRequest struct {
	CompanyName string `json:"companyName"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Title       string `json:"title,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneWork   string `json:"phoneWork,omitempty"`
	PhoneMobile string `json:"phoneMobile,omitempty"`
	PhoneCorp   string `json:"phoneCorp,omitempty"`
	City        string `json:"city,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	Website     string `json:"website,omitempty"`
	SegmentKey  string `json:"segmentKey,omitempty"`
}

func (r CreateContactRequest) contact() domain.Contact {
	return domain.Contact{
		CompanyName: r.CompanyName,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Title:       r.Title,
		Email:       r.Email,
		PhoneWork:   r.PhoneWork,
		PhoneMobile: r.PhoneMobile,
		PhoneCorp:   r.PhoneCorp,
		City:        r.City,
		Industry:    r.Industry,
		Keywords:    r.Keywords,
		Website:     r.Website,
		SegmentKey:  r.SegmentKey,
	}
}

type BulkStateRequest struct {
	IDs   []string `json:"ids"`
	State string   `json:"state" example:"NEW"`
}

type NoteRequest struct {
	Content string `json:"content,omitempty"`
}

type SaleRequest struct {
	ContactID string `json:"contactId"`
	UserID    string `json:"userId"`
	// Amount is a number or a string using '.' or ',' as decimal separator.
	Amount any `json:"amount,omitempty"`
}

func (r SaleRequest) amount() (*float64, error) {
	switch v := r.Amount.(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return nil, err
		}
		return &f, nil
	case string:
		return engine.ParseAmount(v)
	default:
		return nil, fmt.Errorf("%w: amount must be a number or string", engine.ErrInvalidRequest)
	}
}

// Response payloads

type SessionStartResponse struct {
	SessionID string `json:"sessionId"`
}

type SessionEndResponse struct {
	EndedAt string `json:"endedAt"`
}

type ClaimResponse struct {
	Contact *domain.Contact `json:"contact"`
}

type ClaimAutoResponse struct {
	Contact    *domain.Contact `json:"contact"`
	SegmentKey string          `json:"segmentKey,omitempty"`
}

type DispositionResponse struct {
	OK bool `json:"ok"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type SegmentPickResponse struct {
	SegmentKey string   `json:"segmentKey,omitempty"`
	Window     string   `json:"window,omitempty"`
	Pool       []string `json:"pool"`
}

type SegmentsResponse struct {
	Items []segment.Meta `json:"items"`
}

type WhoAmIResponse struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entityKind"`
	EntityID   string          `json:"entityId,omitempty"`
	ActorID    string          `json:"actorId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func eventResponse(evt domain.Event) EventResponse {
	resp := EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
	}
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		resp.Payload = json.RawMessage(evt.Payload)
	}
	return resp
}

type ContactsResponse struct {
	Items []domain.Contact `json:"items"`
}

type SessionsResponse struct {
	Items []domain.CallSession `json:"items"`
}

type NotesResponse struct {
	Items []domain.BookingNote `json:"items"`
}

type SalesResponse struct {
	Items []domain.Sale `json:"items"`
}

type SummaryResponse struct {
	Items []domain.SegmentCount `json:"items"`
}

type EventsResponse struct {
	Items []EventResponse `json:"items"`
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
