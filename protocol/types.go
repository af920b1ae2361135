package protocol

// Message type constants for rover telemetry and commands.
const (
	// Control -> Rover (published on the command topic)
	TypeMissionStart  = "mission.start"
	TypeMissionCancel = "mission.cancel"
	TypeObstaclesAdd  = "obstacles.add"

	// Rover -> Control (published on the telemetry topic)
	TypeCommandAck         = "command.ack"
	TypeMissionStarted     = "mission.started"
	TypeMissionStep        = "mission.step"
	TypeMissionGoalReached = "mission.goal_reached"
	TypeMissionCompleted   = "mission.completed"
	TypeMissionFailed      = "mission.failed"
	TypeRoverBatteryLow    = "rover.battery_low"
	TypeRoverHeartbeat     = "rover.heartbeat"
)

// Roles for Address.Role.
const (
	RoleRover   = "rover"
	RoleControl = "control"
)

// Protocol version.
const Version = 1
