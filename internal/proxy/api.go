package proxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bnema/maa-copilot-filter/internal/filter"
	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/bnema/maa-copilot-filter/internal/roster"
	"github.com/bnema/maa-copilot-filter/internal/state"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// ControlPrefix is where the control API is mounted
const ControlPrefix = "/_copilot"

// MaxImportSize caps a roster upload
const MaxImportSize = 8 << 20

// API serves status, settings and roster import
type API struct {
	state  *state.State
	engine *filter.Engine
	log    zerolog.Logger
}

// NewAPI creates the control API handlers
func NewAPI(st *state.State, engine *filter.Engine, log zerolog.Logger) *API {
	return &API{
		state:  st,
		engine: engine,
		log:    log.With().Str("component", "api").Logger(),
	}
}

// NewRouter mounts the control API under ControlPrefix and sends every
// other request to upstream. Browsers may call the control API only from
// allowedOrigins.
func NewRouter(api *API, upstream http.Handler, allowedOrigins []string, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Route(ControlPrefix, func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		api.Routes(r)
	})

	r.Handle("/*", upstream)
	return r
}

// Routes registers the control endpoints on r
func (a *API) Routes(r chi.Router) {
	r.Get("/status", a.handleStatus)
	r.Get("/stats", a.handleStats)
	r.Get("/settings", a.handleGetSettings)
	r.Put("/settings", a.handlePutSettings)
	r.Get("/roster", a.handleGetRoster)
	r.Post("/roster", a.handleImportRoster)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.state.Status())
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Stats())
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.state.Config())
}

// SettingsUpdate is a partial settings change; nil fields are left as-is
type SettingsUpdate struct {
	Enabled         *bool `json:"enabled"`
	AllowOneMissing *bool `json:"allow_one_missing"`
	RequireEliteTwo *bool `json:"require_elite_two"`
}

// Apply copies the set fields onto cfg
func (u SettingsUpdate) Apply(cfg *models.FilterConfig) {
	if u.Enabled != nil {
		cfg.Enabled = *u.Enabled
	}
	if u.AllowOneMissing != nil {
		cfg.AllowOneMissing = *u.AllowOneMissing
	}
	if u.RequireEliteTwo != nil {
		cfg.RequireEliteTwoForTopRarity = *u.RequireEliteTwo
	}
}

func (a *API) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var upd SettingsUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings: "+err.Error())
		return
	}

	cfg, err := a.state.UpdateConfig(r.Context(), upd.Apply)
	if err != nil {
		a.log.Error().Err(err).Msg("settings update failed")
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	a.log.Info().
		Bool("enabled", cfg.Enabled).
		Bool("allow_one_missing", cfg.AllowOneMissing).
		Bool("require_elite_two", cfg.RequireEliteTwoForTopRarity).
		Msg("settings updated")
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	ops := a.state.Roster()
	if ops == nil {
		ops = []models.Operator{}
	}
	writeJSON(w, http.StatusOK, ops)
}

// ImportResult is the response to a roster upload
type ImportResult struct {
	Total       int            `json:"total"`
	Imported    int            `json:"imported"`
	Skipped     int            `json:"skipped"`
	Duplicates  int            `json:"duplicates"`
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`
	Operators   int            `json:"operators"`
}

func (a *API) handleImportRoster(w http.ResponseWriter, r *http.Request) {
	im := roster.NewImporter()
	ops, err := im.Parse(http.MaxBytesReader(w, r.Body, MaxImportSize))
	if err != nil {
		msg := "invalid roster: " + err.Error()
		if errors.Is(err, roster.ErrNotAnArray) {
			msg = "invalid data format: " + err.Error()
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := a.state.ReplaceRoster(r.Context(), ops); err != nil {
		a.log.Error().Err(err).Msg("roster import failed")
		writeError(w, http.StatusInternalServerError, "failed to save roster")
		return
	}

	stats := im.Stats()
	res := ImportResult{
		Total:       stats.Total,
		Imported:    stats.Owned,
		Skipped:     stats.Skipped,
		Duplicates:  stats.Duplicates,
		SkipReasons: stats.SkipReasons,
		Operators:   a.state.Status().Operators,
	}
	a.log.Info().Int("imported", res.Imported).Int("skipped", res.Skipped).Msg("roster imported")
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
