// Package httpapi is the operator-facing HTTP surface: per-guild
// stats, leaderboard, live configuration, quest template CRUD,
// external-feed subscription CRUD, and economy tuning, plus an
// unauthenticated health check. Built on chi, cors, and validator
// (see DESIGN.md's dependency table).
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"guildkeeper/internal/clock"
	"guildkeeper/internal/metrics"
	"guildkeeper/internal/store"
)

// Server wires the store to chi routes. It deliberately has no
// dependency on the economy engines (quest/trade/shop/minigame): every
// route this package serves is operator-facing configuration, CRUD,
// and read-only reporting (spec.md §4.10) — the CLI surface that
// mutates balances lives in internal/commands instead.
type Server struct {
	store    *store.Store
	clock    clock.Clock
	validate *validator.Validate
	log      zerolog.Logger

	apiKey      string
	corsOrigins []string
}

// Config configures a Server; APIKey and CORSOrigins come from
// spec.md §6's environment file (HTTP API shared secret, CORS
// origins).
type Config struct {
	APIKey      string
	CORSOrigins []string
}

func New(s *store.Store, c clock.Clock, log zerolog.Logger, cfg Config) *Server {
	if cfg.APIKey == "" || cfg.APIKey == "change-me" {
		log.Warn().Msg("httpapi: running with a default or empty API key; set a real shared secret before exposing this port")
	}
	return &Server{
		store:       s,
		clock:       c,
		validate:    validator.New(),
		log:         log,
		apiKey:      cfg.APIKey,
		corsOrigins: cfg.CORSOrigins,
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.logRequest)

	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
	})
	r.Use(c.Handler)

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/guilds/{guildID}", func(gr chi.Router) {
		gr.Use(s.requireAPIKey)
		gr.Get("/stats", s.handleStats)
		gr.Get("/leaderboard", s.handleLeaderboard)
		gr.Get("/config", s.handleGetConfig)
		gr.Post("/config", s.handlePostConfig)
		gr.Get("/minigame-settings", s.handleGetMinigameSettings)
		gr.Post("/minigame-settings", s.handlePostMinigameSettings)

		gr.Get("/challenges", s.handleListChallenges)
		gr.Post("/challenges", s.handleCreateChallenge)
		gr.Put("/challenges/{id}", s.handleUpdateChallenge)
		gr.Delete("/challenges/{id}", s.handleDeleteChallenge)

		gr.Get("/streamers", s.handleListFeeds("twitch"))
		gr.Post("/streamers", s.handleCreateFeed("twitch"))
		gr.Delete("/streamers/{id}", s.handleDeleteFeed)

		gr.Get("/youtube", s.handleListFeeds("youtube"))
		gr.Post("/youtube", s.handleCreateFeed("youtube"))
		gr.Put("/youtube/{id}", s.handleUpdateFeed)
		gr.Delete("/youtube/{id}", s.handleDeleteFeed)
	})

	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, statusClass(ww.Status())).Inc()
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", w.Header().Get("X-Request-Id")).
			Msg("http request")
	})
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// requireAPIKey implements spec.md §4.10's constant-time shared-secret
// check. A mismatch returns 401 with {"error":"Unauthorized"}.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
