package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rovernav/grid"
	"rovernav/reactive"
)

var (
	ErrNoReachableGoal = errors.New("navigation: no reachable goal")
	ErrTransientIO     = errors.New("navigation: transient rover failure")
	ErrFatalIO         = errors.New("navigation: rover failure")
	ErrMissionActive   = errors.New("navigation: mission already active")
	ErrCancelled       = errors.New("navigation: mission cancelled")
	ErrNotStarted      = errors.New("navigation: no mission started")
	ErrNoGrid          = errors.New("navigation: mission has no grid")
)

// State is a step of the session state machine.
type State string

const (
	StateIdle            State = "idle"
	StatePlanning        State = "planning"
	StateMoving          State = "moving"
	StateReplanNeeded    State = "replan_needed"
	StateGoalReached     State = "goal_reached"
	StateMissionComplete State = "mission_complete"
	StateFailed          State = "failed"
)

// Terminal reports whether no further step can change the session.
func (s State) Terminal() bool {
	return s == StateMissionComplete || s == StateFailed
}

// Active reports whether a mission is underway.
func (s State) Active() bool {
	return s != StateIdle && !s.Terminal()
}

// Mode selects how the next direction is chosen.
type Mode int

const (
	ModeGrid Mode = iota
	ModeReactive
)

func (m Mode) String() string {
	switch m {
	case ModeGrid:
		return "grid"
	case ModeReactive:
		return "reactive"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grid":
		return ModeGrid, nil
	case "reactive":
		return ModeReactive, nil
	}
	return ModeGrid, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Hold names why a step issued no move without failing.
type Hold string

const (
	HoldNone      Hold = ""
	HoldBattery   Hold = "battery"
	HoldSensor    Hold = "sensor"
	HoldTransient Hold = "transient"
)

// Status is what the session needs from a rover status read.
type Status struct {
	Battery      float64
	BatteryKnown bool
}

// Rover is the external collaborator that executes moves. Errors that
// wrap ErrTransientIO, or that carry a Transient() bool method returning
// true, are treated as transient.
type Rover interface {
	Status(ctx context.Context) (Status, error)
	SensorData(ctx context.Context) (reactive.SensorSnapshot, error)
	Move(ctx context.Context, dir reactive.Heading) error
	Stop(ctx context.Context) error
}

// IsTransient classifies a collaborator error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientIO) {
		return true
	}
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}

// Config holds the tunables of a session.
type Config struct {
	Width  int
	Height int
	// MaxCells caps width*height of a mission grid. Zero leaves only the
	// grid package limit.
	MaxCells   int
	Thresholds reactive.Thresholds
	// MinBattery holds the rover while the reported battery is at or under it.
	MinBattery float64
	// ObstacleRange is the ultrasonic range within which an echo ahead is
	// projected onto the grid as an obstacle. Zero disables projection.
	ObstacleRange float64
	// ReactiveFallback switches a grid mission to reactive mode instead of
	// failing when no goal is reachable.
	ReactiveFallback bool
}

func DefaultConfig() Config {
	return Config{
		Width:         20,
		Height:        20,
		MaxCells:      1000000,
		Thresholds:    reactive.DefaultThresholds(),
		MinBattery:    20,
		ObstacleRange: 2.0,
	}
}

// Mission describes what Start should do. A mission without goals runs in
// reactive mode.
type Mission struct {
	Start     grid.Cell
	Heading   reactive.Heading
	Goals     []grid.Cell
	Obstacles []grid.Cell
	// Width and Height override the configured grid size when positive.
	Width  int
	Height int
}

// StepResult describes one call to Step.
type StepResult struct {
	Step      int
	State     State
	Mode      Mode
	Direction reactive.Heading
	Moved     bool
	Position  grid.Cell
	Heading   reactive.Heading
	// Target is the cell the move aimed at in grid mode.
	Target    grid.Cell
	Goal      grid.Cell
	HasGoal   bool
	Reached   []grid.Cell
	Replanned bool
	// Obstacle is set when a sensor echo was projected onto the grid.
	Obstacle     *grid.Cell
	Battery      float64
	BatteryKnown bool
	Hold         Hold
	Err          error
	// StopErr is set when the stop issued on completion or failure failed.
	StopErr error
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State     State            `json:"state"`
	Mode      Mode             `json:"mode"`
	Position  grid.Cell        `json:"position"`
	Heading   reactive.Heading `json:"heading"`
	Goals     []grid.Cell      `json:"goals"`
	Reached   []grid.Cell      `json:"reached"`
	Active    []grid.Cell      `json:"active_path"`
	Obstacles []grid.Cell      `json:"obstacles"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	Steps     int              `json:"steps"`
	Error     string           `json:"error,omitempty"`
}
