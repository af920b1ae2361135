package livestate

import "time"

// RoverState is the latest known pose and mission progress of one rover.
type RoverState struct {
	StationID   string    `json:"station_id"`
	MissionID   int64     `json:"mission_id"`
	MissionUUID string    `json:"mission_uuid"`
	State       string    `json:"state"`
	Mode        string    `json:"mode"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	Heading     string    `json:"heading"`
	Steps       int       `json:"steps"`
	Battery     *float64  `json:"battery,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	Source      string    `json:"source"` // "redis" or "sql"
}

// TrailPoint is one visited cell.
type TrailPoint struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Step int `json:"step"`
}
