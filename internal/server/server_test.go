package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"leadline/internal/config"
	"leadline/internal/db"
	"leadline/internal/domain"
	"leadline/internal/engine"
	"leadline/internal/migrate"
	"leadline/internal/segment"
)

const testSecret = "test-secret"

var (
	adminHeaders   = map[string]string{"X-Actor-Id": "admin-1", "X-Actor-Role": "ADMIN"}
	managerHeaders = map[string]string{"X-Actor-Id": "manager-1", "X-Actor-Role": "MANAGER"}
)

func associateHeaders(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id}
}

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, mutate func(*config.Config)) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createContact(t *testing.T, srv *testServer, company, segmentKey string) domain.Contact {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/contacts", map[string]any{
		"companyName": company,
		"segmentKey":  segmentKey,
	}, adminHeaders)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create contact status %d: %s", res.StatusCode, string(data))
	}
	var c domain.Contact
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal contact: %v", err)
	}
	return c
}

func claimNext(t *testing.T, srv *testServer, associate, segmentKey string) ClaimResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/contacts/claim-next", map[string]any{
		"segmentKey": segmentKey,
	}, associateHeaders(associate))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("claim-next status %d: %s", res.StatusCode, string(data))
	}
	var out ClaimResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal claim: %v", err)
	}
	return out
}

func TestSessionClaimDispositionFlow(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	seeded := createContact(t, srv, "Café Central", "B")
	if seeded.SegmentKey != segment.Restaurants || seeded.State != domain.StateNew {
		t.Fatalf("unexpected seeded contact %+v", seeded)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/sessions/start", map[string]any{"segmentKey": "B"}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start session status %d: %s", res.StatusCode, string(data))
	}
	var started SessionStartResponse
	if err := json.Unmarshal(data, &started); err != nil || started.SessionID == "" {
		t.Fatalf("expected session id, got %s (%v)", string(data), err)
	}

	claim := claimNext(t, srv, "assoc-1", "B")
	if claim.Contact == nil || claim.Contact.ID != seeded.ID {
		t.Fatalf("expected to claim %s, got %+v", seeded.ID, claim.Contact)
	}
	if claim.Contact.AssignedToID == nil || *claim.Contact.AssignedToID != "assoc-1" {
		t.Fatalf("expected claim assigned to assoc-1, got %+v", claim.Contact.AssignedToID)
	}

	// pool empty for the second associate
	empty := claimNext(t, srv, "assoc-2", "B")
	if empty.Contact != nil {
		t.Fatalf("expected no contact, got %+v", empty.Contact)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contacts/"+seeded.ID+"/disposition", map[string]any{
		"action":      "BOOKED",
		"durationSec": 42,
		"sessionId":   started.SessionID,
	}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("disposition status %d: %s", res.StatusCode, string(data))
	}
	var ok DispositionResponse
	if err := json.Unmarshal(data, &ok); err != nil || !ok.OK {
		t.Fatalf("expected ok:true, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/contacts/"+seeded.ID, nil, managerHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get contact status %d: %s", res.StatusCode, string(data))
	}
	var booked domain.Contact
	if err := json.Unmarshal(data, &booked); err != nil {
		t.Fatalf("unmarshal contact: %v", err)
	}
	if booked.State != domain.StateBooked || booked.AssignedToID == nil || *booked.AssignedToID != "assoc-1" {
		t.Fatalf("expected contact booked by assoc-1, got %+v", booked)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contacts/"+seeded.ID+"/notes", map[string]any{"content": "  demo on friday "}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add note status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/contacts/"+seeded.ID+"/notes", nil, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list notes status %d: %s", res.StatusCode, string(data))
	}
	var notes NotesResponse
	if err := json.Unmarshal(data, &notes); err != nil {
		t.Fatalf("unmarshal notes: %v", err)
	}
	if len(notes.Items) != 1 || notes.Items[0].Content != "demo on friday" || notes.Items[0].AuthorID != "assoc-1" {
		t.Fatalf("unexpected notes %s", string(data))
	}

	// closed contacts answer ok:false
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contacts/"+seeded.ID+"/disposition", map[string]any{
		"action": "NO_ANSWER",
	}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on closed contact, got %d: %s", res.StatusCode, string(data))
	}
	var failed map[string]any
	if err := json.Unmarshal(data, &failed); err != nil {
		t.Fatalf("unmarshal failure: %v", err)
	}
	if failed["ok"] != false || failed["error"] == "" {
		t.Fatalf("expected ok:false with error, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/sessions/end", map[string]any{
		"sessionId":   started.SessionID,
		"durationSec": 600,
	}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("end session status %d: %s", res.StatusCode, string(data))
	}
	var ended SessionEndResponse
	if err := json.Unmarshal(data, &ended); err != nil || ended.EndedAt == "" {
		t.Fatalf("expected endedAt, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/sessions/end", map[string]any{
		"sessionId": started.SessionID,
	}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on second end, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/stats/associates/assoc-1", nil, managerHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", res.StatusCode, string(data))
	}
	var stats domain.AssociateStats
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.Dials != 1 || stats.TalkSeconds != 42 || stats.Bookings != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestClaimNextValidation(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/contacts/claim-next", nil, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without segment, got %d: %s", res.StatusCode, string(data))
	}
	var envelope apiError
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Body.Code != "bad_request" {
		t.Fatalf("expected bad_request code, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contacts/claim-next", map[string]any{"segmentKey": "Z"}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown segment, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contacts/claim-next", map[string]any{"segmentKey": "B"}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d: %s", res.StatusCode, string(data))
	}
}

func TestDispositionUnknownContact(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/contacts/missing/disposition", map[string]any{
		"action": "NO_ANSWER",
	}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	var failed map[string]any
	if err := json.Unmarshal(data, &failed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if failed["ok"] != false {
		t.Fatalf("expected ok:false, got %s", string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/contacts/missing/disposition", map[string]any{
		"action": "MAYBE",
	}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d: %s", res.StatusCode, string(data))
	}
}

func TestDispositionBodyIsReadLeniently(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	booked := createContact(t, srv, "Padaria Sol", "C")
	missed := createContact(t, srv, "Talho Norte", "C")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/contacts/"+booked.ID+"/disposition", map[string]any{
		"action": "BOOKED", "durationSec": 42.5,
	}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("fractional duration status %d: %s", res.StatusCode, string(data))
	}
	timers, err := srv.Engine.Repo.ListTimers(context.Background(), booked.ID)
	if err != nil {
		t.Fatalf("list timers: %v", err)
	}
	if len(timers) != 1 || timers[0].DurationSec != 42 {
		t.Fatalf("expected a 42s timer, got %+v", timers)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contacts/"+missed.ID+"/disposition", map[string]any{
		"action": "NO_ANSWER", "durationSec": -3,
	}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("negative duration status %d: %s", res.StatusCode, string(data))
	}
	if timers, _ := srv.Engine.Repo.ListTimers(context.Background(), missed.ID); len(timers) != 0 {
		t.Fatalf("negative duration must count as zero, got %+v", timers)
	}

	// badly typed fields keep the disposition error shape
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contacts/"+missed.ID+"/disposition", map[string]any{
		"action": "NO_ANSWER", "skip": "true",
	}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for string skip, got %d: %s", res.StatusCode, string(data))
	}
	var failed map[string]any
	if err := json.Unmarshal(data, &failed); err != nil {
		t.Fatalf("unmarshal failure: %v", err)
	}
	msg, _ := failed["error"].(string)
	if failed["ok"] != false || msg == "" {
		t.Fatalf("expected ok:false with an error message, got %s", string(data))
	}
}

func TestSalesRequireAdminAndHideAmounts(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	c := createContact(t, srv, "Oficina Lopes", "D")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/sales", map[string]any{
		"contactId": c.ID, "userId": "assoc-1", "amount": "99,5",
	}, adminHeaders)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unbooked contact, got %d: %s", res.StatusCode, string(data))
	}

	claimNext(t, srv, "assoc-1", "D")
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/contacts/"+c.ID+"/disposition", map[string]any{"action": "BOOKED"}, associateHeaders("assoc-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("book status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/sales", map[string]any{
		"contactId": c.ID, "userId": "assoc-1", "amount": "99,5",
	}, managerHeaders)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for manager, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/sales", map[string]any{
		"contactId": c.ID, "userId": "assoc-1", "amount": "99,5",
	}, adminHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("record sale status %d: %s", res.StatusCode, string(data))
	}
	var sale domain.Sale
	if err := json.Unmarshal(data, &sale); err != nil {
		t.Fatalf("unmarshal sale: %v", err)
	}
	if sale.Amount == nil || *sale.Amount != 99.5 {
		t.Fatalf("expected amount 99.5, got %+v", sale.Amount)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/sales", nil, managerHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list sales status %d: %s", res.StatusCode, string(data))
	}
	var listed SalesResponse
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatalf("unmarshal sales: %v", err)
	}
	if len(listed.Items) != 1 || listed.Items[0].Amount != nil {
		t.Fatalf("expected one sale without amount for manager, got %s", string(data))
	}
}

func TestBearerTokenAuth(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	token, err := SignToken(testSecret, "assoc-9", "associate", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me WhoAmIResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.UserID != "assoc-9" || me.Role != domain.RoleAssociate {
		t.Fatalf("unexpected principal %+v", me)
	}

	forged, _ := SignToken("other-secret", "assoc-9", "ADMIN", time.Hour)
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer " + forged})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", res.StatusCode)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected public health, got %d", res.StatusCode)
	}

	// associates cannot list contacts
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/contacts", nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 listing contacts as associate, got %d", res.StatusCode)
	}
}

func TestWebhookDelivery(t *testing.T) {
	var (
		mu       sync.Mutex
		received []webhookEvent
		secrets  []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err == nil {
			mu.Lock()
			received = append(received, evt)
			secrets = append(secrets, r.Header.Get("X-Leadline-Secret"))
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	srv, cleanup := newTestServer(t, func(cfg *config.Config) {
		cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"contact.created"}, Secret: "s3cret"}}
	})
	defer cleanup()

	d := NewWebhookDispatcher(srv.Engine, nil)
	if d == nil {
		t.Fatalf("expected dispatcher for configured hook")
	}
	ctx := context.Background()
	createContact(t, srv, "Before Hook", "A")
	d.DispatchAll(ctx) // cursor starts after existing events

	created := createContact(t, srv, "After Hook", "A")
	claimNext(t, srv, "assoc-1", "A")
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected one delivery, got %+v", received)
	}
	if received[0].Type != "contact.created" || received[0].EntityID != created.ID {
		t.Fatalf("unexpected delivery %+v", received[0])
	}
	if secrets[0] != "s3cret" {
		t.Fatalf("expected secret header, got %q", secrets[0])
	}
}
