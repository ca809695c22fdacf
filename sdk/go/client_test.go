package leadlinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClaimAndDispose(t *testing.T) {
	var gotAuth, gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v0/contacts/claim-next":
			w.Write([]byte(`{"contact":{"id":"c1","companyName":"Café","state":"NEW","noAnswerCount":0}}`))
		case "/v0/contacts/c1/disposition":
			var d Disposition
			json.NewDecoder(r.Body).Decode(&d)
			gotAction = d.Action
			w.Write([]byte(`{"ok":true}`))
		case "/v0/contacts/c2/disposition":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"ok":false,"error":"contact is closed"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok")
	ctx := context.Background()
	contact, err := c.ClaimNext(ctx, "B")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if contact == nil || contact.ID != "c1" {
		t.Fatalf("unexpected contact %+v", contact)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if err := c.Disposition(ctx, "c1", Disposition{Action: "NO_ANSWER", DurationSec: 12}); err != nil {
		t.Fatalf("disposition: %v", err)
	}
	if gotAction != "NO_ANSWER" {
		t.Fatalf("expected action to be sent, got %q", gotAction)
	}

	err = c.Disposition(ctx, "c2", Disposition{Action: "BOOKED"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 api error, got %v", err)
	}
}

func TestClaimNextEmptyPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"contact":null}`))
	}))
	defer srv.Close()
	contact, err := New(srv.URL, "").ClaimNext(context.Background(), "A")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if contact != nil {
		t.Fatalf("expected nil contact, got %+v", contact)
	}
}
