package protocol

// NoOpHandler implements MessageHandler with no-op methods.
type NoOpHandler struct{}

func (NoOpHandler) HandleMissionStart(*Envelope, *MissionStart)             {}
func (NoOpHandler) HandleMissionCancel(*Envelope, *MissionCancel)           {}
func (NoOpHandler) HandleObstaclesAdd(*Envelope, *ObstaclesAdd)             {}
func (NoOpHandler) HandleCommandAck(*Envelope, *CommandAck)                 {}
func (NoOpHandler) HandleMissionStarted(*Envelope, *MissionStarted)         {}
func (NoOpHandler) HandleMissionStep(*Envelope, *MissionStep)               {}
func (NoOpHandler) HandleMissionGoalReached(*Envelope, *MissionGoalReached) {}
func (NoOpHandler) HandleMissionCompleted(*Envelope, *MissionCompleted)     {}
func (NoOpHandler) HandleMissionFailed(*Envelope, *MissionFailed)           {}
func (NoOpHandler) HandleRoverBatteryLow(*Envelope, *RoverBatteryLow)       {}
func (NoOpHandler) HandleRoverHeartbeat(*Envelope, *RoverHeartbeat)         {}

var _ MessageHandler = NoOpHandler{}
