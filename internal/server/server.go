package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"maestro/internal/domain"
	"maestro/internal/engine"
	"maestro/internal/engine/auth"
	"maestro/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Log      logrus.FieldLogger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"precondition_failed"`
	Message string         `json:"message" example:"interaction is cancelled"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type output[T any] struct {
	Body T `json:"body"`
}

func reply[T any](v T) *output[T] {
	return &output[T]{Body: v}
}

// New returns an HTTP handler exposing the Maestro API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = log
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(accessLog(log))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Maestro API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerMe(group, cfg.Engine)
	registerInteractions(group, cfg.Engine)
	registerParticipants(group, cfg.Engine)
	registerCompletion(group, cfg.Engine)
	registerLogs(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func accessLog(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("request")
		})
	}
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
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"action": fe.Action})
	}
	var ue auth.UnknownActorError
	if errors.As(err, &ue) {
		return newAPIError(http.StatusUnauthorized, "unknown_user", err.Error(), map[string]any{"user_id": ue.ActorID})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field})
	}
	if errors.Is(err, engine.ErrInvalidDecision) {
		return newAPIError(http.StatusBadRequest, "invalid_decision", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrNotAccepted) {
		return newAPIError(http.StatusConflict, "precondition_failed", err.Error(), nil)
	}
	var pe engine.PreconditionError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusConflict, "precondition_failed", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
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
		for _, op := range operations(item) {
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

func operations(item *huma.PathItem) []*huma.Operation {
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{
		item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
	} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
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
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
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
    <title>Maestro API Docs</title>
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
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
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
	}, func(ctx context.Context, _ *struct{}) (*output[map[string]string], error) {
		return reply(map[string]string{"status": "ok"}), nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[WhoAmIResponse], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.Auth.Actor(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		roles, err := e.Repo.ProfileRoles(ctx, u.ID)
		if err != nil {
			return nil, handleError(err)
		}
		p, _ := principalFromContext(ctx)
		return reply(WhoAmIResponse{User: u, Roles: nonNilSlice(roles), Via: p.Source}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-projects",
		Method:      http.MethodGet,
		Path:        "/me/projects",
		Summary:     "Interactions the current user created or takes part in",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[projectList], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.MyProjects(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(projectList{Items: nonNilSlice(items)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-notifications",
		Method:      http.MethodGet,
		Path:        "/me/notifications",
		Summary:     "Notifications addressed to the current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Unsent bool `query:"unsent"`
		Limit  int  `query:"limit" default:"50"`
	}) (*output[notificationList], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.Auth.Actor(ctx, userID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListNotifications(ctx, repo.NotificationFilter{
			UserID:     userID,
			UnsentOnly: input.Unsent,
			Limit:      normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(notificationList{Items: nonNilSlice(items)}), nil
	})
}

type interactionPath struct {
	ID string `path:"interaction_id"`
}

func registerInteractions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-interaction",
		Method:        http.MethodPost,
		Path:          "/interactions",
		Summary:       "Create interaction",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateInteractionRequest `json:"body"`
	}) (*output[domain.Interaction], error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.CreateInteraction(ctx, input.Body.options(userID))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(it), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-interactions",
		Method:      http.MethodGet,
		Path:        "/interactions",
		Summary:     "List visible interactions",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"draft,proposal_sent,in_progress,completed,cancelled"`
	}) (*output[interactionList], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListInteractions(ctx, userID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(interactionList{Items: nonNilSlice(items)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-interaction",
		Method:      http.MethodGet,
		Path:        "/interactions/{interaction_id}",
		Summary:     "Interaction detail",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *interactionPath) (*output[engine.Detail], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.GetInteraction(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-interaction",
		Method:      http.MethodPatch,
		Path:        "/interactions/{interaction_id}",
		Summary:     "Update interaction",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		interactionPath
		Body UpdateInteractionRequest `json:"body"`
	}) (*output[domain.Interaction], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.UpdateInteraction(ctx, input.Body.options(input.ID, userID))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(it), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-interaction",
		Method:      http.MethodPost,
		Path:        "/interactions/{interaction_id}/cancel",
		Summary:     "Cancel interaction",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *interactionPath) (*output[domain.Interaction], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.CancelInteraction(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(it), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recompute-interaction",
		Method:      http.MethodPost,
		Path:        "/interactions/{interaction_id}/recompute",
		Summary:     "Recompute status from participant links",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *interactionPath) (*output[domain.Interaction], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.RecomputeStatus(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(it), nil
	})
}

func registerParticipants(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-participants",
		Method:      http.MethodGet,
		Path:        "/interactions/{interaction_id}/participants",
		Summary:     "List participants",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		interactionPath
		Role     string `query:"role" enum:"agent,venue,performer"`
		Accepted bool   `query:"accepted"`
	}) (*output[participantList], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Participants(ctx, input.ID, userID, input.Role, input.Accepted)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(participantList{Items: items}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-participant",
		Method:        http.MethodPost,
		Path:          "/interactions/{interaction_id}/participants",
		Summary:       "Invite a participant",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		interactionPath
		Body AddParticipantRequest `json:"body"`
	}) (*output[domain.ParticipantLink], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.AddParticipant(ctx, engine.AddParticipantOptions{
			InteractionID: input.ID,
			ActorID:       userID,
			UserID:        input.Body.UserID,
			Role:          input.Body.Role,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(l), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sync-participants",
		Method:      http.MethodPut,
		Path:        "/interactions/{interaction_id}/participants",
		Summary:     "Replace participants of every role",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		interactionPath
		Body SyncParticipantsRequest `json:"body"`
	}) (*output[engine.SyncResult], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.SyncParticipants(ctx, engine.SyncOptions{
			InteractionID: input.ID,
			ActorID:       userID,
			Participants:  input.Body.Participants,
		})
		if err != nil {
			return nil, handleError(err)
		}
		res.Added = nonNilSlice(res.Added)
		res.Removed = nonNilSlice(res.Removed)
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-participant",
		Method:      http.MethodDelete,
		Path:        "/interactions/{interaction_id}/participants/{user_id}",
		Summary:     "Remove a participant",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		interactionPath
		UserID string `path:"user_id"`
		Role   string `query:"role" enum:"agent,venue,performer"`
	}) (*output[domain.Interaction], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.RemoveParticipant(ctx, engine.RemoveParticipantOptions{
			InteractionID: input.ID,
			ActorID:       userID,
			UserID:        input.UserID,
			Role:          input.Role,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(it), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "respond-invitation",
		Method:      http.MethodPost,
		Path:        "/links/{link_id}/respond",
		Summary:     "Accept or decline an invitation",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LinkID string `path:"link_id"`
		Body   DecisionRequest `json:"body"`
	}) (*output[domain.Interaction], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.RespondToInvitation(ctx, engine.RespondOptions{
			LinkID:   input.LinkID,
			ActorID:  userID,
			Decision: input.Body.Decision,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(it), nil
	})
}

func registerCompletion(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "request-completion",
		Method:      http.MethodPost,
		Path:        "/interactions/{interaction_id}/completion",
		Summary:     "Ask accepted participants to confirm completion",
		Description: "started is false when the interaction is not in progress or has no accepted participant.",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *interactionPath) (*output[CompletionRequestResponse], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, started, err := e.RequestCompletion(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(CompletionRequestResponse{Started: started, Interaction: it}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "respond-completion",
		Method:      http.MethodPost,
		Path:        "/links/{link_id}/completion",
		Summary:     "Confirm or decline completion",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		LinkID string `path:"link_id"`
		Body   DecisionRequest `json:"body"`
	}) (*output[domain.Interaction], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.RespondToCompletion(ctx, engine.RespondOptions{
			LinkID:   input.LinkID,
			ActorID:  userID,
			Decision: input.Body.Decision,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(it), nil
	})
}

func registerLogs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/interactions/{interaction_id}/events",
		Summary:     "Interaction log, oldest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		interactionPath
		Type string `query:"type" enum:"note,status_change,file,milestone"`
	}) (*output[eventList], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListEvents(ctx, input.ID, userID, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(eventList{Items: nonNilSlice(items)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-event",
		Method:        http.MethodPost,
		Path:          "/interactions/{interaction_id}/events",
		Summary:       "Append to the interaction log",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		interactionPath
		Body CreateEventRequest `json:"body"`
	}) (*output[domain.InteractionEvent], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.AddEvent(ctx, engine.AddEventOptions{
			InteractionID: input.ID,
			ActorID:       userID,
			Type:          input.Body.Type,
			Text:          input.Body.Text,
			Attachment:    input.Body.Attachment,
			Metadata:      input.Body.Metadata,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(ev), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reports",
		Method:      http.MethodGet,
		Path:        "/interactions/{interaction_id}/reports",
		Summary:     "Project reports, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *interactionPath) (*output[reportList], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListReports(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(reportList{Items: nonNilSlice(items)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-report",
		Method:        http.MethodPost,
		Path:          "/interactions/{interaction_id}/reports",
		Summary:       "Attach a project report",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		interactionPath
		Body CreateReportRequest `json:"body"`
	}) (*output[domain.ProjectReport], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.AddReport(ctx, engine.AddReportOptions{
			InteractionID: input.ID,
			ActorID:       userID,
			Summary:       input.Body.Summary,
			Highlights:    input.Body.Highlights,
			Audience:      input.Body.Audience,
			Feedback:      input.Body.Feedback,
			MediaLink:     input.Body.MediaLink,
			Attachment:    input.Body.Attachment,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(rep), nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
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
