package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/action_layer/internal/app"
	useractions "github.com/R3E-Network/action_layer/internal/app/actions/users"
	"github.com/R3E-Network/action_layer/internal/app/metrics"
	"github.com/R3E-Network/action_layer/internal/app/storage"
	"github.com/R3E-Network/action_layer/internal/httputil"
	"github.com/R3E-Network/action_layer/internal/middleware"
	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// CapabilityAudit is required to read the audit trail.
const CapabilityAudit = "audit.view"

// Config wires the HTTP boundary. Zero values disable the optional layers.
type Config struct {
	JWTSecret   string
	CORSOrigins []string
	RateLimiter *middleware.RateLimiter
	Audit       *AuditLog
	Logger      *logger.Logger
}

// handler bundles HTTP endpoints for the application actions.
type handler struct {
	app   *app.Application
	audit *AuditLog
	log   *logger.Logger
}

// NewHandler returns a router exposing the REST API and the form flow.
func NewHandler(application *app.Application, cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("http")
	}
	if cfg.Audit == nil {
		cfg.Audit = NewAuditLog(0, nil)
	}
	h := &handler{app: application, audit: cfg.Audit, log: cfg.Logger}

	router := mux.NewRouter()
	router.Use(middleware.MetricsMiddleware)
	router.Use(middleware.NewAuthMiddleware([]byte(cfg.JWTSecret), cfg.Logger.Named("auth"), []string{"/healthz", "/metrics"}).Handler)
	if cfg.RateLimiter != nil {
		router.Use(cfg.RateLimiter.Handler)
	}
	router.Use(h.audit.Middleware)

	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/users", h.createUser).Methods(http.MethodPost)
	router.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	router.HandleFunc("/users/{id}", h.getUser).Methods(http.MethodGet)
	router.HandleFunc("/users/{id}", h.updateUser).Methods(http.MethodPut, http.MethodPatch)
	router.HandleFunc("/users/{id}", h.deleteUser).Methods(http.MethodDelete)
	router.HandleFunc("/check-email", h.checkEmail).Methods(http.MethodPost)
	router.HandleFunc("/user", h.currentUser).Methods(http.MethodGet)
	router.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)

	router.HandleFunc("/web/users", h.webCreateUser).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	var root http.Handler = router
	if len(cfg.CORSOrigins) > 0 {
		root = middleware.NewCORSMiddleware(cfg.CORSOrigins).Handler(root)
	}
	return middleware.NewTracingMiddleware(cfg.Logger).Handler(root)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"services": h.app.Services(),
	})
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	input, err := decodeJSON(w, r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.run(w, r, h.app.Actions.Create, input)
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	input, err := decodeJSON(w, r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	input["id"] = mux.Vars(r)["id"]
	h.run(w, r, h.app.Actions.Update, input)
}

func (h *handler) checkEmail(w http.ResponseWriter, r *http.Request) {
	input, err := decodeJSON(w, r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.run(w, r, h.app.Actions.CheckEmail, input)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	res := useractions.Run(r.Context(), h.app.Actions, h.app.Actions.Get, middleware.CallerFrom(r.Context()), mux.Vars(r)["id"])
	httputil.WriteResult(w, res)
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	res := useractions.Run(r.Context(), h.app.Actions, h.app.Actions.Delete, middleware.CallerFrom(r.Context()), mux.Vars(r)["id"])
	httputil.WriteResult(w, res)
}

func (h *handler) currentUser(w http.ResponseWriter, r *http.Request) {
	res := useractions.Run(r.Context(), h.app.Actions, h.app.Actions.Current, middleware.CallerFrom(r.Context()), struct{}{})
	httputil.WriteResult(w, res)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	res := useractions.Run(r.Context(), h.app.Actions, h.app.Actions.List, middleware.CallerFrom(r.Context()), parseQuery(r.URL.Query()))
	httputil.WriteResult(w, res)
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	res := action.Execute(r.Context(), h.app.Executor, h.audit.listAction(), middleware.CallerFrom(r.Context()), limit)
	httputil.WriteResult(w, res)
}

func (h *handler) run(w http.ResponseWriter, r *http.Request, a action.Action[map[string]any], input map[string]any) {
	res := useractions.Run(r.Context(), h.app.Actions, a, middleware.CallerFrom(r.Context()), input)
	httputil.WriteResult(w, res)
}

// parseQuery maps listing query parameters onto a storage query. Filter
// values may be repeated or comma separated.
func parseQuery(values url.Values) storage.Query {
	q := storage.Query{
		Search:        values.Get("search"),
		SortBy:        values.Get("sort_by"),
		SortDirection: values.Get("sort_direction"),
	}
	q.Page, _ = strconv.Atoi(values.Get("page"))
	q.PerPage, _ = strconv.Atoi(values.Get("per_page"))

	for field := range storage.FilterableFields {
		var vals []string
		for _, raw := range values[field] {
			for _, v := range strings.Split(raw, ",") {
				if v = strings.TrimSpace(v); v != "" {
					vals = append(vals, v)
				}
			}
		}
		if len(vals) > 0 {
			if q.Filters == nil {
				q.Filters = make(map[string][]string)
			}
			q.Filters[field] = vals
		}
	}
	return q
}

// decodeJSON reads a JSON object body. An empty body yields an empty map.
func decodeJSON(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	out := make(map[string]any)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return nil, errors.New("invalid JSON body: trailing data")
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}
