package leadlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Leadline HTTP API client for calling-floor frontends.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Contact represents the API contact model (partial).
type Contact struct {
	ID            string  `json:"id"`
	CompanyName   string  `json:"companyName"`
	FirstName     string  `json:"firstName,omitempty"`
	LastName      string  `json:"lastName,omitempty"`
	Email         string  `json:"email,omitempty"`
	PhoneWork     string  `json:"phoneWork,omitempty"`
	PhoneMobile   string  `json:"phoneMobile,omitempty"`
	City          string  `json:"city,omitempty"`
	SegmentKey    string  `json:"segmentKey,omitempty"`
	State         string  `json:"state"`
	AssignedToID  *string `json:"assignedToId,omitempty"`
	CallLaterAt   *string `json:"callLaterAt,omitempty"`
	CallNote      *string `json:"callNote,omitempty"`
	NoAnswerCount int     `json:"noAnswerCount"`
}

// Disposition is the outcome of one call.
type Disposition struct {
	Action      string `json:"action,omitempty"`
	Note        string `json:"note,omitempty"`
	Skip        bool   `json:"skip,omitempty"`
	CallLaterAt string `json:"callLaterAt,omitempty"`
	DurationSec int    `json:"durationSec,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
}

type Note struct {
	ID        string `json:"id"`
	ContactID string `json:"contactId"`
	AuthorID  string `json:"authorId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

type Stats struct {
	UserID            string `json:"userId"`
	Since             string `json:"since"`
	Dials             int    `json:"dials"`
	TalkSeconds       int    `json:"talkSeconds"`
	GoodConversations int    `json:"goodConversations"`
	Bookings          int    `json:"bookings"`
	SessionSeconds    int    `json:"sessionSeconds"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// StartSession opens a calling session and returns its id.
func (c *Client) StartSession(ctx context.Context, segmentKey string) (string, error) {
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	err := c.do(ctx, http.MethodPost, "v0/sessions/start", map[string]any{"segmentKey": segmentKey}, &resp)
	return resp.SessionID, err
}

// EndSession closes a session and returns its end time.
func (c *Client) EndSession(ctx context.Context, sessionID string, durationSec int) (string, error) {
	var resp struct {
		EndedAt string `json:"endedAt"`
	}
	err := c.do(ctx, http.MethodPost, "v0/sessions/end", map[string]any{
		"sessionId":   sessionID,
		"durationSec": durationSec,
	}, &resp)
	return resp.EndedAt, err
}

// ClaimNext claims the next contact of a segment. A nil contact means the pool is empty.
func (c *Client) ClaimNext(ctx context.Context, segmentKey string) (*Contact, error) {
	var resp struct {
		Contact *Contact `json:"contact"`
	}
	err := c.do(ctx, http.MethodPost, "v0/contacts/claim-next", map[string]any{"segmentKey": segmentKey}, &resp)
	return resp.Contact, err
}

// ClaimAuto claims from the segment picked for the current calling window.
func (c *Client) ClaimAuto(ctx context.Context) (*Contact, string, error) {
	var resp struct {
		Contact    *Contact `json:"contact"`
		SegmentKey string   `json:"segmentKey"`
	}
	err := c.do(ctx, http.MethodPost, "v0/contacts/claim-auto", nil, &resp)
	return resp.Contact, resp.SegmentKey, err
}

// Disposition records the outcome of a call.
func (c *Client) Disposition(ctx context.Context, contactID string, d Disposition) error {
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "v0/contacts/"+url.PathEscape(contactID)+"/disposition", d, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("disposition rejected: %s", resp.Error)
	}
	return nil
}

func (c *Client) AddNote(ctx context.Context, contactID, content string) (Note, error) {
	var resp Note
	err := c.do(ctx, http.MethodPost, "v0/contacts/"+url.PathEscape(contactID)+"/notes", map[string]any{"content": content}, &resp)
	return resp, err
}

// Callbacks lists the caller's scheduled callbacks, latest first.
func (c *Client) Callbacks(ctx context.Context) ([]Contact, error) {
	var resp struct {
		Items []Contact `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v0/callbacks", nil, &resp)
	return resp.Items, err
}

func (c *Client) Stats(ctx context.Context, userID string) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "v0/stats/associates/"+url.PathEscape(userID), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
