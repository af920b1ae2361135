package messaging

import (
	"log"
	"sync"
	"time"

	"rovernav/protocol"
)

// StatusFunc reports what goes into a heartbeat.
type StatusFunc func() (state, missionUUID string, roverConnected bool)

// Heartbeater publishes rover.heartbeat periodically.
type Heartbeater struct {
	client    Publisher
	stationID string
	topic     string
	status    StatusFunc
	interval  time.Duration
	startTime time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHeartbeater creates a heartbeater for the given rover identity.
func NewHeartbeater(client Publisher, stationID, telemetryTopic string, status StatusFunc) *Heartbeater {
	return &Heartbeater{
		client:    client,
		stationID: stationID,
		topic:     telemetryTopic,
		status:    status,
		interval:  60 * time.Second,
		stopCh:    make(chan struct{}),
	}
}

// Start sends an initial heartbeat and begins the loop.
func (h *Heartbeater) Start() {
	h.startTime = time.Now()
	h.sendHeartbeat()
	go h.loop()
}

// Stop halts the heartbeat loop.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *Heartbeater) heartbeat() *protocol.RoverHeartbeat {
	hb := &protocol.RoverHeartbeat{
		StationID: h.stationID,
		Uptime:    int64(time.Since(h.startTime).Seconds()),
	}
	if h.status != nil {
		hb.State, hb.MissionUUID, hb.Connected = h.status()
	}
	return hb
}

func (h *Heartbeater) sendHeartbeat() {
	env, err := protocol.NewEnvelope(
		protocol.TypeRoverHeartbeat,
		protocol.Address{Role: protocol.RoleRover, Station: h.stationID},
		protocol.Address{Role: protocol.RoleControl},
		h.heartbeat(),
	)
	if err != nil {
		log.Printf("heartbeater: build heartbeat: %v", err)
		return
	}
	data, err := env.Encode()
	if err != nil {
		log.Printf("heartbeater: encode heartbeat: %v", err)
		return
	}
	if err := h.client.Publish(h.topic, data); err != nil {
		log.Printf("heartbeater: send heartbeat: %v", err)
	}
}

func (h *Heartbeater) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}
