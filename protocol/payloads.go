package protocol

// Point is a grid cell on the wire.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// --- Control -> Rover payloads ---

// MissionStart asks the rover to begin a mission. No goals means a reactive
// mission.
type MissionStart struct {
	MissionUUID string  `json:"mission_uuid,omitempty"`
	Start       Point   `json:"start"`
	Heading     string  `json:"heading,omitempty"`
	Goals       []Point `json:"goals,omitempty"`
	Obstacles   []Point `json:"obstacles,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
}

type MissionCancel struct {
	MissionUUID string `json:"mission_uuid,omitempty"`
	Reason      string `json:"reason"`
}

// ObstaclesAdd marks cells on the running mission's grid.
type ObstaclesAdd struct {
	MissionUUID string  `json:"mission_uuid,omitempty"`
	Cells       []Point `json:"cells"`
}

// --- Rover -> Control payloads ---

// CommandAck answers a command; CorID on the envelope names the command.
type CommandAck struct {
	Command     string `json:"command"`
	Accepted    bool   `json:"accepted"`
	MissionUUID string `json:"mission_uuid,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

type MissionStarted struct {
	MissionUUID string  `json:"mission_uuid"`
	Mode        string  `json:"mode"`
	Start       Point   `json:"start"`
	Heading     string  `json:"heading"`
	Goals       []Point `json:"goals,omitempty"`
}

// MissionStep reports one navigation step.
type MissionStep struct {
	MissionUUID string   `json:"mission_uuid"`
	Step        int      `json:"step"`
	State       string   `json:"state"`
	Mode        string   `json:"mode"`
	Direction   string   `json:"direction,omitempty"`
	Moved       bool     `json:"moved"`
	Position    Point    `json:"position"`
	Heading     string   `json:"heading"`
	Battery     *float64 `json:"battery,omitempty"`
	Hold        string   `json:"hold,omitempty"`
	Obstacle    *Point   `json:"obstacle,omitempty"`
}

type MissionGoalReached struct {
	MissionUUID string `json:"mission_uuid"`
	Goal        Point  `json:"goal"`
	Remaining   int    `json:"remaining"`
}

type MissionCompleted struct {
	MissionUUID string `json:"mission_uuid"`
	Position    Point  `json:"position"`
	Steps       int    `json:"steps"`
}

type MissionFailed struct {
	MissionUUID string `json:"mission_uuid"`
	Position    Point  `json:"position"`
	Error       string `json:"error"`
}

// RoverBatteryLow is sent when the battery gate trips and again once the
// charge attempts are over.
type RoverBatteryLow struct {
	SessionID string  `json:"session_id"`
	Battery   float64 `json:"battery"`
	Attempts  int     `json:"attempts"`
	Recovered bool    `json:"recovered"`
}

// RoverHeartbeat is sent periodically by the rover service.
type RoverHeartbeat struct {
	StationID   string `json:"station_id"`
	Uptime      int64  `json:"uptime_s"`
	State       string `json:"state"`
	MissionUUID string `json:"mission_uuid,omitempty"`
	Connected   bool   `json:"rover_connected"`
}
