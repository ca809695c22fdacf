package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"leadline/internal/domain"
	"leadline/internal/engine"
	"leadline/internal/engine/auth"
	"leadline/internal/repo"
	"leadline/internal/segment"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	// Live serves the websocket feed at <base>/live when set.
	Live        http.Handler
	CORSOrigins []string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// dispositionError is the {ok:false,error} answer of the disposition endpoint.
type dispositionError struct {
	status  int
	OK      bool   `json:"ok"`
	Message string `json:"error"`
}

func (e *dispositionError) GetStatus() int { return e.status }
func (e *dispositionError) Error() string  { return e.Message }

func newDispositionError(status int, msg string, errs []error) *dispositionError {
	var details []string
	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}
	if len(details) > 0 {
		msg += ": " + strings.Join(details, "; ")
	}
	return &dispositionError{status: status, Message: msg}
}

const dispositionOperationID = "disposition"

// New returns an HTTP handler exposing the Leadline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(hctx huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		if hctx != nil && hctx.Operation() != nil && hctx.Operation().OperationID == dispositionOperationID {
			return newDispositionError(status, msg, errs)
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Leadline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerMe(group)
	registerSegments(group, cfg.Engine)
	registerSessions(group, cfg.Engine)
	registerClaims(group, cfg.Engine)
	registerDisposition(group, cfg.Engine)
	registerContacts(group, cfg.Engine)
	registerNotes(group, cfg.Engine)
	registerSales(group, cfg.Engine)
	registerStats(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)
	if cfg.Live != nil {
		router.Get(path.Join(basePath, "live"), cfg.Live.ServeHTTP)
	}

	if len(cfg.CORSOrigins) == 0 {
		return router, nil
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-Id", "X-Actor-Role"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(router), nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"role": fe.Role})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrNotBooked):
		return newAPIError(http.StatusBadRequest, "not_booked", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidRequest):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, engine.ErrContactClosed):
		return newAPIError(http.StatusConflict, "contact_closed", err.Error(), nil)
	case errors.Is(err, engine.ErrSessionClosed):
		return newAPIError(http.StatusConflict, "session_closed", err.Error(), nil)
	case errors.Is(err, engine.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	default:
		log.Printf("internal error: %v", err)
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Leadline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{UserID: actor.ID, Role: actor.Role}}, nil
	})
}

func registerSegments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-segments",
		Method:      http.MethodGet,
		Path:        "/segments",
		Summary:     "Segment catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SegmentsResponse `json:"body"`
	}, error) {
		return &struct {
			Body SegmentsResponse `json:"body"`
		}{Body: SegmentsResponse{Items: segment.Catalog()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pick-segment",
		Method:      http.MethodGet,
		Path:        "/segments/pick",
		Summary:     "Pick a segment for the current calling window",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SegmentPickResponse `json:"body"`
	}, error) {
		p, err := e.Picker()
		if err != nil {
			return nil, handleError(err)
		}
		now := e.Time()
		resp := SegmentPickResponse{Pool: nonNilSlice(p.Pool(now))}
		if w, ok := p.WindowAt(now); ok {
			resp.Window = w.ID
		}
		key, ok, err := e.PickSegment(now)
		if err != nil {
			return nil, handleError(err)
		}
		if ok {
			resp.SegmentKey = key
		}
		return &struct {
			Body SegmentPickResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerSessions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "start-session",
		Method:      http.MethodPost,
		Path:        "/sessions/start",
		Summary:     "Start a calling session",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body StartSessionRequest `json:"body" required:"false"`
	}) (*struct {
		Body SessionStartResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.StartSession(ctx, actor.ID, input.Body.SegmentKey)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionStartResponse `json:"body"`
		}{Body: SessionStartResponse{SessionID: s.ID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-session",
		Method:      http.MethodPost,
		Path:        "/sessions/end",
		Summary:     "End a calling session",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body EndSessionRequest `json:"body" required:"false"`
	}) (*struct {
		Body SessionEndResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.EndSession(ctx, strings.TrimSpace(input.Body.SessionID), input.Body.DurationSec, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionEndResponse `json:"body"`
		}{Body: SessionEndResponse{EndedAt: *s.EndedAt}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "current-session",
		Method:      http.MethodGet,
		Path:        "/sessions/current",
		Summary:     "Caller's open session",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.CallSession `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CurrentSession(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CallSession `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/sessions",
		Summary:     "List sessions of an associate",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UserID string `query:"userId"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body SessionsResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		userID := input.UserID
		if userID == "" {
			userID = actor.ID
		}
		if !actor.CanActFor(userID) {
			return nil, handleError(auth.ForbiddenError{Role: domain.RoleManager})
		}
		items, err := e.ListSessions(ctx, userID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionsResponse `json:"body"`
		}{Body: SessionsResponse{Items: nonNilSlice(items)}}, nil
	})
}

func registerClaims(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "claim-next",
		Method:      http.MethodPost,
		Path:        "/contacts/claim-next",
		Summary:     "Claim the next contact of a segment",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body ClaimNextRequest `json:"body" required:"false"`
	}) (*struct {
		Body ClaimResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ClaimNext(ctx, actor.ID, input.Body.SegmentKey)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ClaimResponse `json:"body"`
		}{Body: ClaimResponse{Contact: res.Contact}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "claim-auto",
		Method:      http.MethodPost,
		Path:        "/contacts/claim-auto",
		Summary:     "Claim the next contact for the current calling window",
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ClaimAutoResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ClaimForNow(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ClaimAutoResponse `json:"body"`
		}{Body: ClaimAutoResponse{Contact: res.Contact, SegmentKey: res.SegmentKey}}, nil
	})
}

func registerDisposition(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: dispositionOperationID,
		Method:      http.MethodPost,
		Path:        "/contacts/{id}/disposition",
		Summary:     "Record the outcome of handling a contact",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body DispositionRequest `json:"body" required:"false"`
	}) (*struct {
		Body DispositionResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		associateID := actor.ID
		if input.Body.UserID != "" && auth.AtLeast(actor.Role, domain.RoleManager) {
			associateID = input.Body.UserID
		}
		_, err := e.ApplyDisposition(ctx, engine.DispositionInput{
			ContactID:   input.ID,
			Action:      input.Body.Action,
			Note:        input.Body.Note,
			Skip:        input.Body.Skip,
			CallLaterAt: input.Body.CallLaterAt,
			DurationSec: input.Body.duration(),
			SessionID:   input.Body.SessionID,
			AssociateID: associateID,
		})
		if err != nil {
			se := handleError(err)
			return nil, &dispositionError{status: se.GetStatus(), Message: se.Error()}
		}
		return &struct {
			Body DispositionResponse `json:"body"`
		}{Body: DispositionResponse{OK: true}}, nil
	})
}

func registerContacts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-contacts",
		Method:      http.MethodGet,
		Path:        "/contacts",
		Summary:     "List contacts",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		State        string `query:"state"`
		SegmentKey   string `query:"segmentKey"`
		AssignedToID string `query:"assignedToId"`
		Query        string `query:"q"`
		Page         int    `query:"page" default:"1"`
		Take         int    `query:"take" default:"50"`
	}) (*struct {
		Body engine.ContactPage `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		page, err := e.ListContacts(ctx, repo.ContactFilters{
			State:        input.State,
			SegmentKey:   input.SegmentKey,
			AssignedToID: input.AssignedToID,
			Query:        input.Query,
		}, input.Page, input.Take, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ContactPage `json:"body"`
		}{Body: page}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-contact",
		Method:        http.MethodPost,
		Path:          "/contacts",
		Summary:       "Create contact",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateContactRequest `json:"body"`
	}) (*struct {
		Body domain.Contact `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateContact(ctx, input.Body.contact(), actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Contact `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "contacts-summary",
		Method:      http.MethodGet,
		Path:        "/contacts/summary",
		Summary:     "Contact counts per segment and state",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SummaryResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Summary(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SummaryResponse `json:"body"`
		}{Body: SummaryResponse{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-state",
		Method:      http.MethodPost,
		Path:        "/contacts/bulk-state",
		Summary:     "Set the state of many contacts",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body BulkStateRequest `json:"body"`
	}) (*struct {
		Body CountResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.BulkSetState(ctx, input.Body.IDs, input.Body.State, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CountResponse `json:"body"`
		}{Body: CountResponse{Count: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-contact",
		Method:      http.MethodGet,
		Path:        "/contacts/{id}",
		Summary:     "Get contact",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Contact `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.GetContact(ctx, input.ID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Contact `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-callbacks",
		Method:      http.MethodGet,
		Path:        "/callbacks",
		Summary:     "Caller's scheduled callbacks",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ContactsResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Callbacks(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ContactsResponse `json:"body"`
		}{Body: ContactsResponse{Items: nonNilSlice(items)}}, nil
	})
}

func registerNotes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-note",
		Method:        http.MethodPost,
		Path:          "/contacts/{id}/notes",
		Summary:       "Add a booking note",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string      `path:"id"`
		Body NoteRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.BookingNote `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.AddNote(ctx, input.ID, actor.ID, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.BookingNote `json:"body"`
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/contacts/{id}/notes",
		Summary:     "List booking notes",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body NotesResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListNotes(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NotesResponse `json:"body"`
		}{Body: NotesResponse{Items: nonNilSlice(items)}}, nil
	})
}

func registerSales(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "record-sale",
		Method:      http.MethodPost,
		Path:        "/sales",
		Summary:     "Create or update the sale of a booked contact",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body SaleRequest `json:"body"`
	}) (*struct {
		Body domain.Sale `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		amount, err := input.Body.amount()
		if err != nil {
			return nil, handleError(fmt.Errorf("%w: %v", engine.ErrInvalidRequest, err))
		}
		sale, err := e.RecordSale(ctx, engine.SaleInput{
			ContactID:   input.Body.ContactID,
			AssociateID: input.Body.UserID,
			Amount:      amount,
		}, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Sale `json:"body"`
		}{Body: sale}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sales",
		Method:      http.MethodGet,
		Path:        "/sales",
		Summary:     "List sales",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UserID string `query:"userId"`
	}) (*struct {
		Body SalesResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListSales(ctx, input.UserID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SalesResponse `json:"body"`
		}{Body: SalesResponse{Items: nonNilSlice(items)}}, nil
	})
}

func registerStats(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "associate-stats",
		Method:      http.MethodGet,
		Path:        "/stats/associates/{userId}",
		Summary:     "Activity of one associate",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"userId"`
		Since  string `query:"since" doc:"RFC3339 start; defaults to the start of the business day"`
	}) (*struct {
		Body domain.AssociateStats `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var since time.Time
		if input.Since != "" {
			t, err := domain.ParseTime(input.Since)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid since", map[string]any{"since": input.Since})
			}
			since = t
		}
		stats, err := e.AssociateStats(ctx, input.UserID, since, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AssociateStats `json:"body"`
		}{Body: stats}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type  string `query:"type"`
		Limit int    `query:"limit" default:"50"`
	}) (*struct {
		Body EventsResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListEvents(ctx, normalizeLimit(input.Limit), input.Type, actor)
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventsResponse{Items: []EventResponse{}}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body EventsResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
