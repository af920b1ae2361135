package www

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

func (h *Handlers) apiGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.AppConfig()
	cfg.RLock()
	defer cfg.RUnlock()
	h.jsonOK(w, map[string]any{
		"rover": map[string]any{
			"base_url":      cfg.Rover.BaseURL,
			"timeout":       cfg.Rover.Timeout.String(),
			"retries":       cfg.Rover.Retries,
			"retry_backoff": cfg.Rover.RetryBackoff.String(),
			"poll_interval": cfg.Rover.PollInterval.String(),
		},
		"navigation": map[string]any{
			"grid_width":        cfg.Navigation.GridWidth,
			"grid_height":       cfg.Navigation.GridHeight,
			"max_cells":         cfg.Navigation.MaxCells,
			"step_interval":     cfg.Navigation.StepInterval.String(),
			"reached_distance":  cfg.Navigation.ReachedDistance,
			"obstacle_range":    cfg.Navigation.ObstacleRange,
			"min_battery":       cfg.Navigation.MinBattery,
			"charge_attempts":   cfg.Navigation.ChargeAttempts,
			"reactive_fallback": cfg.Navigation.ReactiveFallback,
		},
		"messaging": map[string]any{
			"backend":         cfg.Messaging.Backend,
			"mqtt_broker":     cfg.Messaging.MQTT.Broker,
			"mqtt_port":       cfg.Messaging.MQTT.Port,
			"kafka_brokers":   cfg.Messaging.Kafka.Brokers,
			"telemetry_topic": cfg.Messaging.TelemetryTopic,
			"command_topic":   cfg.Messaging.CommandTopic,
			"station_id":      cfg.Messaging.StationID,
		},
		"redis": map[string]any{
			"address": cfg.Redis.Address,
			"db":      cfg.Redis.DB,
		},
		"database": map[string]any{
			"driver": cfg.Database.Driver,
		},
	})
}

// apiSaveConfig updates one section from form values, saves the file and
// hot-reloads the affected client. Navigation and redis changes apply on
// restart.
func (h *Handlers) apiSaveConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	section := r.FormValue("section")
	cfg := h.engine.AppConfig()

	cfg.Lock()
	switch section {
	case "rover":
		if v := r.FormValue("base_url"); v != "" {
			cfg.Rover.BaseURL = v
		}
		if d, err := time.ParseDuration(r.FormValue("timeout")); err == nil && d > 0 {
			cfg.Rover.Timeout = d
		}
		if n, err := strconv.Atoi(r.FormValue("retries")); err == nil && n >= 0 {
			cfg.Rover.Retries = n
		}
		if d, err := time.ParseDuration(r.FormValue("retry_backoff")); err == nil {
			cfg.Rover.RetryBackoff = d
		}
		if d, err := time.ParseDuration(r.FormValue("poll_interval")); err == nil && d > 0 {
			cfg.Rover.PollInterval = d
		}
	case "navigation":
		if f, err := strconv.ParseFloat(r.FormValue("min_battery"), 64); err == nil {
			cfg.Navigation.MinBattery = f
		}
		if n, err := strconv.Atoi(r.FormValue("charge_attempts")); err == nil && n >= 0 {
			cfg.Navigation.ChargeAttempts = n
		}
		if f, err := strconv.ParseFloat(r.FormValue("obstacle_range"), 64); err == nil && f >= 0 {
			cfg.Navigation.ObstacleRange = f
		}
		if r.Form.Has("reactive_fallback") {
			cfg.Navigation.ReactiveFallback = r.FormValue("reactive_fallback") == "true"
		}
	case "messaging":
		backend := r.FormValue("backend")
		switch backend {
		case "", "mqtt", "kafka":
		default:
			cfg.Unlock()
			h.jsonError(w, "unknown backend "+strconv.Quote(backend), http.StatusBadRequest)
			return
		}
		cfg.Messaging.Backend = backend
		if v := r.FormValue("mqtt_broker"); v != "" {
			cfg.Messaging.MQTT.Broker = v
		}
		if p, err := strconv.Atoi(r.FormValue("mqtt_port")); err == nil {
			cfg.Messaging.MQTT.Port = p
		}
		if brokers := r.FormValue("kafka_brokers"); brokers != "" {
			cfg.Messaging.Kafka.Brokers = splitTrim(brokers, ",")
		}
		if v := r.FormValue("telemetry_topic"); v != "" {
			cfg.Messaging.TelemetryTopic = v
		}
		if v := r.FormValue("command_topic"); v != "" {
			cfg.Messaging.CommandTopic = v
		}
	case "redis":
		cfg.Redis.Address = r.FormValue("address")
		cfg.Redis.Password = r.FormValue("password")
		if d, err := strconv.Atoi(r.FormValue("db")); err == nil {
			cfg.Redis.DB = d
		}
	default:
		cfg.Unlock()
		h.jsonError(w, "unknown section", http.StatusBadRequest)
		return
	}
	cfg.Unlock()

	if err := cfg.Save(h.engine.ConfigPath()); err != nil {
		h.logFn("config: save error: %v", err)
		h.jsonError(w, "failed to save: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Hot-reload the affected subsystem
	switch section {
	case "rover":
		h.engine.ReconfigureRover()
	case "messaging":
		h.engine.ReconfigureMessaging()
	}

	h.engine.DB().AppendAudit("config", 0, "saved", "", section, h.getUsername(r))
	h.logFn("config: %s section saved", section)
	h.jsonOK(w, map[string]string{"status": "ok", "section": section})
}

func (h *Handlers) apiDiagnostics(w http.ResponseWriter, r *http.Request) {
	auditLog, err := h.engine.DB().ListAuditLog(50)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	pending, err := h.engine.DB().ListPendingOutbox(1000)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{
		"audit_log":      auditLog,
		"rover":          h.engine.RoverConnected(),
		"messaging":      h.engine.MessagingConnected(),
		"outbox_pending": len(pending),
		"sse_clients":    h.eventHub.ClientCount(),
		"uptime":         h.engine.Uptime().Round(time.Second).String(),
	})
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
