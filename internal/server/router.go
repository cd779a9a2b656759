// Package server exposes session lookups over HTTP for link-repair callers
// such as an LMS course restore hook.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/julianfbeck/panopto-relink-cli/internal/notice"
	"github.com/julianfbeck/panopto-relink-cli/internal/panopto"
	"github.com/julianfbeck/panopto-relink-cli/internal/relink"
)

// Resolver is the lookup the router serves.
type Resolver interface {
	Resolve(ctx context.Context, groupName string) (*panopto.Session, error)
}

// RouterOptions controls router construction. Resolver is required.
type RouterOptions struct {
	Resolver       Resolver
	RemediationURL string
	Logger         zerolog.Logger
	CORSOptions    *cors.Options
	HealthHandler  http.HandlerFunc
}

// DefaultCORSOptions allows read-only cross-origin GETs.
func DefaultCORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter builds the HTTP surface:
//
//	GET /health
//	GET /v1/session?group=<name>   JSON lookup result
//	GET /v1/notice?group=<name>    HTML re-link notice
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions(nil)
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	h := &handlers{resolver: opts.Resolver, remediationURL: opts.RemediationURL}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", h.session)
		r.Get("/notice", h.notice)
	})

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

type handlers struct {
	resolver       Resolver
	remediationURL string
}

type sessionResponse struct {
	Group   string           `json:"group"`
	Found   bool             `json:"found"`
	Session *panopto.Session `json:"session,omitempty"`
	Kind    string           `json:"kind,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	group, ok := groupParam(w, r)
	if !ok {
		return
	}

	session, err := h.resolver.Resolve(r.Context(), group)
	resp := sessionResponse{Group: group, Found: session != nil, Session: session}
	status := http.StatusOK
	switch {
	case err != nil:
		kind := relink.KindOf(err)
		resp.Kind = kind.String()
		resp.Error = err.Error()
		status = statusFor(kind)
	case session == nil:
		status = http.StatusNotFound
	}
	writeJSON(w, status, resp)
}

// notice always renders; lookup failures only drop the session details.
func (h *handlers) notice(w http.ResponseWriter, r *http.Request) {
	group, ok := groupParam(w, r)
	if !ok {
		return
	}

	session, _ := h.resolver.Resolve(r.Context(), group)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = notice.HTML(w, notice.Data{RemediationURL: h.remediationURL, Session: session})
}

// groupParam returns the group query value as sent; blank values are rejected.
func groupParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	group := r.URL.Query().Get("group")
	if strings.TrimSpace(group) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "group is required"})
		return "", false
	}
	return group, true
}

func statusFor(kind relink.Kind) int {
	switch kind {
	case relink.KindConfigurationMissing:
		return http.StatusServiceUnavailable
	case relink.KindMalformedResponse, relink.KindRemoteUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
