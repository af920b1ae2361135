package engine

import (
	"rovernav/grid"
	"rovernav/navigation"
)

const (
	EventMissionStarted EventType = iota + 1
	EventMissionStep
	EventGoalReached
	EventMissionCompleted
	EventMissionFailed
	EventObstaclesAdded
	EventBatteryLow
	EventRoverConnected
	EventRoverDisconnected
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

type MissionStartedEvent struct {
	MissionID   int64
	MissionUUID string
	Mode        navigation.Mode
	Start       grid.Cell
	Heading     string
	Goals       []grid.Cell
	Actor       string
}

type MissionStepEvent struct {
	MissionID   int64
	MissionUUID string
	Result      navigation.StepResult
}

type GoalReachedEvent struct {
	MissionID   int64
	MissionUUID string
	Goal        grid.Cell
	Remaining   int
}

type MissionCompletedEvent struct {
	MissionID   int64
	MissionUUID string
	Position    grid.Cell
	Steps       int
}

type MissionFailedEvent struct {
	MissionID   int64
	MissionUUID string
	Position    grid.Cell
	Error       string
}

type ObstaclesAddedEvent struct {
	MissionID int64
	Cells     []grid.Cell
	Source    string // "manual" or "sensor"
	Actor     string
}

type BatteryLowEvent struct {
	MissionID int64
	SessionID string
	Battery   float64
	Attempts  int
	Recovered bool
}

type ConnectionEvent struct {
	Detail string
}
