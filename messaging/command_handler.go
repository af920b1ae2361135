package messaging

import (
	"log"

	"rovernav/grid"
	"rovernav/navigation"
	"rovernav/protocol"
	"rovernav/reactive"
	"rovernav/store"
)

// Commander is the engine surface the command handler drives.
type Commander interface {
	StartMission(m navigation.Mission, missionUUID, actor string) (*store.Mission, error)
	CancelMission(reason, actor string) error
	AddObstacles(cells []grid.Cell, actor string) (int, error)
}

// CommandHandler handles inbound protocol commands on the command topic and
// answers each with a command.ack on the telemetry topic.
type CommandHandler struct {
	protocol.NoOpHandler

	db             *store.DB
	cmd            Commander
	stationID      string
	telemetryTopic string
}

// NewCommandHandler creates a handler for inbound control messages.
func NewCommandHandler(db *store.DB, cmd Commander, stationID, telemetryTopic string) *CommandHandler {
	return &CommandHandler{
		db:             db,
		cmd:            cmd,
		stationID:      stationID,
		telemetryTopic: telemetryTopic,
	}
}

// Ingestor returns an ingestor bound to this handler and station.
func (h *CommandHandler) Ingestor() *protocol.Ingestor {
	return protocol.NewIngestor(h, protocol.StationFilter(h.stationID))
}

func (h *CommandHandler) HandleMissionStart(env *protocol.Envelope, p *protocol.MissionStart) {
	log.Printf("command_handler: mission start from %s: start=%v goals=%d", env.Src.Station, p.Start, len(p.Goals))
	heading := reactive.Forward
	if p.Heading != "" {
		parsed, err := reactive.ParseHeading(p.Heading)
		if err != nil {
			h.ack(env, &protocol.CommandAck{Command: env.Type, Detail: err.Error()})
			return
		}
		heading = parsed
	}
	m := navigation.Mission{
		Start:     cell(p.Start),
		Heading:   heading,
		Goals:     cells(p.Goals),
		Obstacles: cells(p.Obstacles),
		Width:     p.Width,
		Height:    p.Height,
	}
	mission, err := h.cmd.StartMission(m, p.MissionUUID, actor(env))
	if err != nil {
		h.ack(env, &protocol.CommandAck{Command: env.Type, MissionUUID: p.MissionUUID, Detail: err.Error()})
		return
	}
	h.ack(env, &protocol.CommandAck{Command: env.Type, Accepted: true, MissionUUID: mission.UUID})
}

func (h *CommandHandler) HandleMissionCancel(env *protocol.Envelope, p *protocol.MissionCancel) {
	log.Printf("command_handler: mission cancel from %s: %s", env.Src.Station, p.Reason)
	if err := h.cmd.CancelMission(p.Reason, actor(env)); err != nil {
		h.ack(env, &protocol.CommandAck{Command: env.Type, MissionUUID: p.MissionUUID, Detail: err.Error()})
		return
	}
	h.ack(env, &protocol.CommandAck{Command: env.Type, Accepted: true, MissionUUID: p.MissionUUID})
}

func (h *CommandHandler) HandleObstaclesAdd(env *protocol.Envelope, p *protocol.ObstaclesAdd) {
	n, err := h.cmd.AddObstacles(cells(p.Cells), actor(env))
	if err != nil {
		h.ack(env, &protocol.CommandAck{Command: env.Type, MissionUUID: p.MissionUUID, Detail: err.Error()})
		return
	}
	log.Printf("command_handler: %d of %d obstacles marked", n, len(p.Cells))
	h.ack(env, &protocol.CommandAck{Command: env.Type, Accepted: true, MissionUUID: p.MissionUUID})
}

func (h *CommandHandler) ack(env *protocol.Envelope, ack *protocol.CommandAck) {
	src := protocol.Address{Role: protocol.RoleRover, Station: h.stationID}
	reply, err := protocol.NewReply(protocol.TypeCommandAck, src, env.Src, env.ID, ack)
	if err != nil {
		log.Printf("command_handler: build ack: %v", err)
		return
	}
	data, err := reply.Encode()
	if err != nil {
		log.Printf("command_handler: encode ack: %v", err)
		return
	}
	if err := h.db.EnqueueOutbox(h.telemetryTopic, data, protocol.TypeCommandAck, h.stationID); err != nil {
		log.Printf("command_handler: enqueue ack: %v", err)
	}
}

func actor(env *protocol.Envelope) string {
	if env.Src.Station != "" {
		return "msg:" + env.Src.Station
	}
	return "msg"
}

func cell(p protocol.Point) grid.Cell { return grid.Cell{X: p.X, Y: p.Y} }

func cells(ps []protocol.Point) []grid.Cell {
	if len(ps) == 0 {
		return nil
	}
	out := make([]grid.Cell, len(ps))
	for i, p := range ps {
		out[i] = cell(p)
	}
	return out
}
