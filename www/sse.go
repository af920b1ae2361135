package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"rovernav/engine"
)

type SSEEvent struct {
	Event string
	Data  string
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	select {
	case h.stopChan <- struct{}{}:
	default:
	}
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.send(evt)
		case <-keepalive.C:
			h.send(SSEEvent{Event: "keepalive", Data: "ping"})
		}
	}
}

func (h *EventHub) send(evt SSEEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// drop if full
		}
	}
}

func (h *EventHub) Broadcast(event, data string) {
	select {
	case h.broadcast <- SSEEvent{Event: event, Data: data}:
	default:
	}
}

// BroadcastJSON marshals v as the event data.
func (h *EventHub) BroadcastJSON(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("sse: marshal %s: %v", event, err)
		return
	}
	h.Broadcast(event, string(data))
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetupEngineListeners wires engine events to SSE broadcasts.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.MissionStartedEvent)
		h.BroadcastJSON("mission-update", map[string]any{
			"type":         "started",
			"mission_id":   ev.MissionID,
			"mission_uuid": ev.MissionUUID,
			"mode":         ev.Mode.String(),
			"start":        ev.Start,
			"goals":        ev.Goals,
		})
	}, engine.EventMissionStarted)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.MissionStepEvent)
		res := ev.Result
		data := map[string]any{
			"mission_id": ev.MissionID,
			"step":       res.Step,
			"state":      res.State,
			"mode":       res.Mode.String(),
			"moved":      res.Moved,
			"position":   res.Position,
			"heading":    res.Heading.String(),
			"hold":       res.Hold,
		}
		if res.Moved {
			data["direction"] = res.Direction.String()
		}
		if res.BatteryKnown {
			data["battery"] = res.Battery
		}
		if res.Obstacle != nil {
			data["obstacle"] = res.Obstacle
		}
		h.BroadcastJSON("rover-step", data)
	}, engine.EventMissionStep)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.GoalReachedEvent)
		h.BroadcastJSON("mission-update", map[string]any{
			"type":       "goal_reached",
			"mission_id": ev.MissionID,
			"goal":       ev.Goal,
			"remaining":  ev.Remaining,
		})
	}, engine.EventGoalReached)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.MissionCompletedEvent)
		h.BroadcastJSON("mission-update", map[string]any{
			"type":       "completed",
			"mission_id": ev.MissionID,
			"position":   ev.Position,
			"steps":      ev.Steps,
		})
	}, engine.EventMissionCompleted)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.MissionFailedEvent)
		h.BroadcastJSON("mission-update", map[string]any{
			"type":       "failed",
			"mission_id": ev.MissionID,
			"position":   ev.Position,
			"error":      ev.Error,
		})
	}, engine.EventMissionFailed)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.ObstaclesAddedEvent)
		h.BroadcastJSON("grid-update", map[string]any{
			"mission_id": ev.MissionID,
			"obstacles":  ev.Cells,
			"source":     ev.Source,
		})
	}, engine.EventObstaclesAdded)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.BatteryLowEvent)
		h.BroadcastJSON("rover-battery", map[string]any{
			"battery":   ev.Battery,
			"attempts":  ev.Attempts,
			"recovered": ev.Recovered,
		})
	}, engine.EventBatteryLow)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"rover":"connected"}`)
	}, engine.EventRoverConnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"rover":"disconnected"}`)
	}, engine.EventRoverDisconnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"messaging":"connected"}`)
	}, engine.EventMessagingConnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"messaging":"disconnected"}`)
	}, engine.EventMessagingDisconnected)
}

// SSEHandler serves the SSE endpoint.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
