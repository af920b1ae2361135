package protocol

import (
	"encoding/json"
	"log"
)

// FilterFunc returns true if the message should be processed.
type FilterFunc func(hdr *RawHeader) bool

// MessageHandler defines callbacks for all protocol message types.
// Embed NoOpHandler and override only the methods you need.
type MessageHandler interface {
	// Control -> Rover
	HandleMissionStart(env *Envelope, p *MissionStart)
	HandleMissionCancel(env *Envelope, p *MissionCancel)
	HandleObstaclesAdd(env *Envelope, p *ObstaclesAdd)

	// Rover -> Control
	HandleCommandAck(env *Envelope, p *CommandAck)
	HandleMissionStarted(env *Envelope, p *MissionStarted)
	HandleMissionStep(env *Envelope, p *MissionStep)
	HandleMissionGoalReached(env *Envelope, p *MissionGoalReached)
	HandleMissionCompleted(env *Envelope, p *MissionCompleted)
	HandleMissionFailed(env *Envelope, p *MissionFailed)
	HandleRoverBatteryLow(env *Envelope, p *RoverBatteryLow)
	HandleRoverHeartbeat(env *Envelope, p *RoverHeartbeat)
}

// Ingestor performs two-phase decode and dispatches to a MessageHandler.
type Ingestor struct {
	handler MessageHandler
	filter  FilterFunc
}

func NewIngestor(handler MessageHandler, filter FilterFunc) *Ingestor {
	return &Ingestor{
		handler: handler,
		filter:  filter,
	}
}

// HandleRaw is the entry point for raw message bytes from the messaging layer.
func (ing *Ingestor) HandleRaw(data []byte) {
	// Phase 1: decode routing header only
	var hdr RawHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		log.Printf("protocol: header decode error: %v", err)
		return
	}
	if hdr.Version > Version {
		log.Printf("protocol: dropping message %s with version %d", hdr.ID, hdr.Version)
		return
	}
	if IsExpiredHeader(&hdr) {
		log.Printf("protocol: dropping expired message %s (type=%s)", hdr.ID, hdr.Type)
		return
	}
	if ing.filter != nil && !ing.filter(&hdr) {
		return
	}

	// Phase 2: full envelope decode
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("protocol: envelope decode error: %v", err)
		return
	}

	switch env.Type {
	case TypeMissionStart:
		decodeAndCall(ing.handler.HandleMissionStart, &env)
	case TypeMissionCancel:
		decodeAndCall(ing.handler.HandleMissionCancel, &env)
	case TypeObstaclesAdd:
		decodeAndCall(ing.handler.HandleObstaclesAdd, &env)
	case TypeCommandAck:
		decodeAndCall(ing.handler.HandleCommandAck, &env)
	case TypeMissionStarted:
		decodeAndCall(ing.handler.HandleMissionStarted, &env)
	case TypeMissionStep:
		decodeAndCall(ing.handler.HandleMissionStep, &env)
	case TypeMissionGoalReached:
		decodeAndCall(ing.handler.HandleMissionGoalReached, &env)
	case TypeMissionCompleted:
		decodeAndCall(ing.handler.HandleMissionCompleted, &env)
	case TypeMissionFailed:
		decodeAndCall(ing.handler.HandleMissionFailed, &env)
	case TypeRoverBatteryLow:
		decodeAndCall(ing.handler.HandleRoverBatteryLow, &env)
	case TypeRoverHeartbeat:
		decodeAndCall(ing.handler.HandleRoverHeartbeat, &env)
	default:
		log.Printf("protocol: unknown message type: %s", env.Type)
	}
}

// decodeAndCall unmarshals the payload and calls the handler method.
func decodeAndCall[T any](fn func(*Envelope, *T), env *Envelope) {
	var p T
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		log.Printf("protocol: payload decode error for %s: %v", env.Type, err)
		return
	}
	fn(env, &p)
}

// StationFilter accepts messages addressed to station or broadcast to "*".
func StationFilter(station string) FilterFunc {
	return func(hdr *RawHeader) bool {
		return hdr.Dst.Station == station || hdr.Dst.Station == "*" || hdr.Dst.Station == ""
	}
}
