package domain

import "time"

// Contact states.
const (
	StateNew       = "NEW"
	StateNoAnswer  = "NO_ANSWER"
	StateCallLater = "CALL_LATER"
	StateBooked    = "BOOKED"
	StateRefused   = "REFUSED"
	StateSkip      = "SKIP"
)

// Disposition actions.
const (
	ActionNoAnswer  = "NO_ANSWER"
	ActionCallLater = "CALL_LATER"
	ActionBooked    = "BOOKED"
	ActionRefused   = "REFUSED"
)

// Roles carried by authenticated principals.
const (
	RoleAdmin     = "ADMIN"
	RoleManager   = "MANAGER"
	RoleAssociate = "ASSOCIATE"
)

// Unsegmented labels contacts without a segment key in summaries.
const Unsegmented = "UNSEGMENTED"

// TimeLayout is fixed-width so stored timestamps compare lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts TimeLayout as well as plain RFC3339 input.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func ValidState(s string) bool {
	switch s {
	case StateNew, StateNoAnswer, StateCallLater, StateBooked, StateRefused, StateSkip:
		return true
	}
	return false
}

func ValidAction(a string) bool {
	switch a {
	case ActionNoAnswer, ActionCallLater, ActionBooked, ActionRefused:
		return true
	}
	return false
}

func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAssociate:
		return true
	}
	return false
}

// Closed reports whether the state no longer moves through dispositions.
func Closed(state string) bool {
	return state == StateBooked || state == StateRefused
}

type Contact struct {
	ID            string  `json:"id"`
	CompanyName   string  `json:"companyName"`
	FirstName     string  `json:"firstName,omitempty"`
	LastName      string  `json:"lastName,omitempty"`
	Title         string  `json:"title,omitempty"`
	Email         string  `json:"email,omitempty"`
	PhoneWork     string  `json:"phoneWork,omitempty"`
	PhoneMobile   string  `json:"phoneMobile,omitempty"`
	PhoneCorp     string  `json:"phoneCorp,omitempty"`
	City          string  `json:"city,omitempty"`
	Industry      string  `json:"industry,omitempty"`
	Keywords      string  `json:"keywords,omitempty"`
	Website       string  `json:"website,omitempty"`
	SegmentKey    string  `json:"segmentKey,omitempty"`
	State         string  `json:"state" enum:"NEW,NO_ANSWER,CALL_LATER,BOOKED,REFUSED,SKIP"`
	AssignedToID  *string `json:"assignedToId,omitempty"`
	LastCalledAt  *string `json:"lastCalledAt,omitempty" format:"date-time"`
	CallLaterAt   *string `json:"callLaterAt,omitempty" format:"date-time"`
	NoAnswerAt    *string `json:"noAnswerAt,omitempty" format:"date-time"`
	CallNote      *string `json:"callNote,omitempty"`
	NoAnswerCount int     `json:"noAnswerCount"`
	ReviveAt      *string `json:"reviveAt,omitempty" format:"date-time"`
	CreatedAt     string  `json:"createdAt" format:"date-time"`
	UpdatedAt     string  `json:"updatedAt" format:"date-time"`
}

type CallSession struct {
	ID          string  `json:"id"`
	AssociateID string  `json:"userId"`
	SegmentKey  string  `json:"segmentKey,omitempty"`
	StartedAt   string  `json:"startedAt" format:"date-time"`
	EndedAt     *string `json:"endedAt,omitempty" format:"date-time"`
	DurationSec *int    `json:"durationSec,omitempty"`
}

// Open reports whether the session has not been ended yet.
func (s CallSession) Open() bool { return s.EndedAt == nil }

// ContactTimer is one handling attempt. Rows are never updated.
type ContactTimer struct {
	ID          string  `json:"id"`
	ContactID   string  `json:"contactId"`
	AssociateID string  `json:"userId"`
	SessionID   *string `json:"sessionId,omitempty"`
	DurationSec int     `json:"durationSec"`
	EndedAt     string  `json:"endedAt" format:"date-time"`
}

type Sale struct {
	ID          string   `json:"id"`
	ContactID   string   `json:"contactId"`
	AssociateID string   `json:"userId"`
	Amount      *float64 `json:"amount,omitempty"`
	CreatedAt   string   `json:"createdAt" format:"date-time"`
	UpdatedAt   string   `json:"updatedAt" format:"date-time"`
}

type BookingNote struct {
	ID        string `json:"id"`
	ContactID string `json:"contactId"`
	AuthorID  string `json:"authorId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId,omitempty"`
	ActorID    string `json:"actorId"`
	Payload    string `json:"payload,omitempty"`
}

// SegmentCount is one cell of the segment × state summary.
type SegmentCount struct {
	SegmentKey string `json:"segmentKey"`
	State      string `json:"state"`
	Count      int    `json:"count"`
}

type AssociateStats struct {
	AssociateID       string `json:"userId"`
	Since             string `json:"since" format:"date-time"`
	Dials             int    `json:"dials"`
	TalkSeconds       int    `json:"talkSeconds"`
	GoodConversations int    `json:"goodConversations"`
	Bookings          int    `json:"bookings"`
	SessionSeconds    int    `json:"sessionSeconds"`
}
