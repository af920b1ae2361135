package www

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"rovernav/engine"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
	logFn    func(format string, args ...any)
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
		logFn:    log.Printf,
	}

	if err := EnsureDefaultAdmin(eng.DB()); err != nil {
		log.Printf("www: default admin: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE
	r.Get("/events", hub.SSEHandler)

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	// API routes (no auth required for read)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealthCheck)
		r.Get("/mission", h.apiCurrentMission)
		r.Get("/missions", h.apiListMissions)
		r.Get("/missions/{id}", h.apiGetMission)
		r.Get("/missions/{id}/steps", h.apiMissionSteps)
		r.Get("/grid", h.apiGrid)
		r.Get("/livestate", h.apiLiveState)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/missions", h.apiStartMission)
			r.Post("/mission/cancel", h.apiCancelMission)
			r.Post("/mission/step", h.apiStepMission)
			r.Post("/obstacles", h.apiAddObstacles)
			r.Post("/obstacles/sensor", h.apiSensorObstacle)
			r.Post("/rover/stop", h.apiRoverStop)
			r.Post("/rover/charge", h.apiRoverCharge)
			r.Get("/config", h.apiGetConfig)
			r.Post("/config", h.apiSaveConfig)
			r.Get("/diagnostics", h.apiDiagnostics)
		})
	})

	stopFn := func() {
		hub.Stop()
	}

	return r, stopFn
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	h.jsonStatus(w, http.StatusOK, data)
}

func (h *Handlers) jsonStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
