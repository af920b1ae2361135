package www

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	messaging := false
	if c := h.engine.MsgClient(); c != nil {
		messaging = c.IsConnected()
	}
	h.jsonOK(w, map[string]any{
		"status":    "ok",
		"rover":     h.engine.RoverConnected(),
		"messaging": messaging,
		"state":     h.engine.Snapshot().State,
		"uptime":    int64(h.engine.Uptime().Seconds()),
	})
}

func (h *Handlers) apiCurrentMission(w http.ResponseWriter, r *http.Request) {
	m, err := h.engine.CurrentMission()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{
		"mission":  m,
		"snapshot": h.engine.Snapshot(),
	})
}

func (h *Handlers) apiListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := h.engine.DB().ListMissions(queryLimit(r, 50))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, missions)
}

func (h *Handlers) apiGetMission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	m, err := h.engine.DB().GetMission(id)
	if errors.Is(err, sql.ErrNoRows) {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	goals, err := h.engine.DB().ListMissionGoals(id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	obstacles, err := h.engine.DB().ListObstacles(id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{
		"mission":   m,
		"goals":     goals,
		"obstacles": obstacles,
	})
}

func (h *Handlers) apiMissionSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	steps, err := h.engine.DB().ListMissionSteps(id, queryLimit(r, 200))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, steps)
}

// apiGrid returns the occupancy map of the running mission.
func (h *Handlers) apiGrid(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	h.jsonOK(w, map[string]any{
		"width":       snap.Width,
		"height":      snap.Height,
		"position":    snap.Position,
		"heading":     snap.Heading,
		"goals":       snap.Goals,
		"reached":     snap.Reached,
		"active_path": snap.Active,
		"obstacles":   snap.Obstacles,
	})
}

func (h *Handlers) apiLiveState(w http.ResponseWriter, r *http.Request) {
	ls := h.engine.LiveState()
	if ls == nil {
		h.jsonError(w, "live state disabled", http.StatusNotFound)
		return
	}
	state, err := ls.Get()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := map[string]any{"state": state}
	if state != nil && state.MissionID != 0 {
		trail, err := ls.Trail(state.MissionID)
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp["trail"] = trail
	}
	h.jsonOK(w, resp)
}

func (h *Handlers) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return def
}
