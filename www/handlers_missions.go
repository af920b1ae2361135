package www

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"rovernav/grid"
	"rovernav/navigation"
	"rovernav/planner"
	"rovernav/reactive"
)

type startMissionRequest struct {
	UUID      string      `json:"uuid"`
	Start     grid.Cell   `json:"start"`
	Heading   string      `json:"heading"`
	Goals     []grid.Cell `json:"goals"`
	Obstacles []grid.Cell `json:"obstacles"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
}

func (h *Handlers) apiStartMission(w http.ResponseWriter, r *http.Request) {
	var req startMissionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	heading := reactive.Forward
	if strings.TrimSpace(req.Heading) != "" {
		parsed, err := reactive.ParseHeading(req.Heading)
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		heading = parsed
	}

	rec, err := h.engine.StartMission(navigation.Mission{
		Start:     req.Start,
		Heading:   heading,
		Goals:     req.Goals,
		Obstacles: req.Obstacles,
		Width:     req.Width,
		Height:    req.Height,
	}, req.UUID, h.getUsername(r))
	if err != nil {
		h.jsonError(w, err.Error(), missionErrorStatus(err))
		return
	}
	h.jsonStatus(w, http.StatusCreated, map[string]any{
		"mission":  rec,
		"snapshot": h.engine.Snapshot(),
	})
}

func (h *Handlers) apiCancelMission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	// an empty body is a cancel without reason
	decodeJSON(r, &req)
	if req.Reason == "" {
		req.Reason = "cancelled by operator"
	}
	if err := h.engine.CancelMission(req.Reason, h.getUsername(r)); err != nil {
		h.jsonError(w, err.Error(), missionErrorStatus(err))
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

// apiStepMission runs one step immediately, outside the step loop.
func (h *Handlers) apiStepMission(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.stepTimeout())
	defer cancel()
	res, err := h.engine.StepOnce(ctx)
	if err != nil {
		h.jsonError(w, err.Error(), missionErrorStatus(err))
		return
	}
	resp := map[string]any{
		"step":     res.Step,
		"state":    res.State,
		"mode":     res.Mode.String(),
		"moved":    res.Moved,
		"position": res.Position,
		"heading":  res.Heading.String(),
		"reached":  res.Reached,
		"hold":     res.Hold,
	}
	if res.Moved {
		resp["direction"] = res.Direction.String()
	}
	if res.BatteryKnown {
		resp["battery"] = res.Battery
	}
	if res.Err != nil {
		resp["error"] = res.Err.Error()
	}
	h.jsonOK(w, resp)
}

func (h *Handlers) apiAddObstacles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cells []grid.Cell `json:"cells"`
	}
	if err := decodeJSON(r, &req); err != nil || len(req.Cells) == 0 {
		h.jsonError(w, "cells required", http.StatusBadRequest)
		return
	}
	n, err := h.engine.AddObstacles(req.Cells, h.getUsername(r))
	if err != nil {
		h.jsonError(w, err.Error(), missionErrorStatus(err))
		return
	}
	h.jsonOK(w, map[string]any{"added": n})
}

func (h *Handlers) apiSensorObstacle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Distance float64 `json:"distance"`
		Angle    float64 `json:"angle"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	c, marked, err := h.engine.MarkFromSensor(req.Distance, req.Angle, h.getUsername(r))
	if err != nil {
		h.jsonError(w, err.Error(), missionErrorStatus(err))
		return
	}
	h.jsonOK(w, map[string]any{"cell": c, "marked": marked})
}

func (h *Handlers) apiRoverStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.stepTimeout())
	defer cancel()
	if err := h.engine.StopRover(ctx, h.getUsername(r)); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiRoverCharge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.stepTimeout())
	defer cancel()
	if err := h.engine.ChargeRover(ctx, h.getUsername(r)); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) stepTimeout() time.Duration {
	if d := h.engine.AppConfig().Rover.Timeout; d > 0 {
		return 2 * d
	}
	return 30 * time.Second
}

func missionErrorStatus(err error) int {
	switch {
	case errors.Is(err, navigation.ErrMissionActive), errors.Is(err, navigation.ErrNotStarted),
		errors.Is(err, navigation.ErrNoGrid):
		return http.StatusConflict
	case errors.Is(err, grid.ErrInvalidDimensions), errors.Is(err, grid.ErrOutOfBounds),
		errors.Is(err, grid.ErrInvalidSensorReading), errors.Is(err, planner.ErrInvalidGoal):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
