package engine

import (
	"context"

	"rovernav/grid"
	"rovernav/navigation"
	"rovernav/reactive"
	"rovernav/rover"
)

// RoverAPI is the part of rover.Client the engine uses.
type RoverAPI interface {
	StartSession(ctx context.Context) (string, error)
	SessionID() string
	GetStatus(ctx context.Context) (*rover.Status, error)
	GetSensorData(ctx context.Context) (*rover.SensorData, error)
	Move(ctx context.Context, dir reactive.Heading) error
	Stop(ctx context.Context) error
	Charge(ctx context.Context) error
}

var _ RoverAPI = (*rover.Client)(nil)

// roverAdapter bridges the rover HTTP client to navigation.Rover.
type roverAdapter struct {
	api RoverAPI
}

func (a *roverAdapter) Status(ctx context.Context) (navigation.Status, error) {
	st, err := a.api.GetStatus(ctx)
	if err != nil {
		return navigation.Status{}, err
	}
	if !st.BatteryKnown && st.LowBattery {
		// the status text is the only battery signal; treat it as empty
		return navigation.Status{Battery: 0, BatteryKnown: true}, nil
	}
	return navigation.Status{Battery: st.Battery, BatteryKnown: st.BatteryKnown}, nil
}

func (a *roverAdapter) SensorData(ctx context.Context) (reactive.SensorSnapshot, error) {
	sd, err := a.api.GetSensorData(ctx)
	if err != nil {
		return reactive.SensorSnapshot{}, err
	}
	return sd.Snapshot, nil
}

func (a *roverAdapter) Move(ctx context.Context, dir reactive.Heading) error {
	return a.api.Move(ctx, dir)
}

func (a *roverAdapter) Stop(ctx context.Context) error {
	return a.api.Stop(ctx)
}

// navEmitter bridges navigator outcomes to the EventBus.
type navEmitter struct {
	bus *EventBus
}

func (e *navEmitter) EmitMissionStarted(ev MissionStartedEvent) {
	e.bus.Emit(Event{Type: EventMissionStarted, Payload: ev})
}

func (e *navEmitter) EmitStep(missionID int64, missionUUID string, res navigation.StepResult, remaining int) {
	e.bus.Emit(Event{Type: EventMissionStep, Payload: MissionStepEvent{
		MissionID:   missionID,
		MissionUUID: missionUUID,
		Result:      res,
	}})
	if res.Obstacle != nil {
		e.bus.Emit(Event{Type: EventObstaclesAdded, Payload: ObstaclesAddedEvent{
			MissionID: missionID,
			Cells:     []grid.Cell{*res.Obstacle},
			Source:    "sensor",
			Actor:     "system",
		}})
	}
	for i, g := range res.Reached {
		e.bus.Emit(Event{Type: EventGoalReached, Payload: GoalReachedEvent{
			MissionID:   missionID,
			MissionUUID: missionUUID,
			Goal:        g,
			Remaining:   remaining + len(res.Reached) - 1 - i,
		}})
	}
	switch res.State {
	case navigation.StateMissionComplete:
		e.bus.Emit(Event{Type: EventMissionCompleted, Payload: MissionCompletedEvent{
			MissionID:   missionID,
			MissionUUID: missionUUID,
			Position:    res.Position,
			Steps:       res.Step,
		}})
	case navigation.StateFailed:
		detail := ""
		if res.Err != nil {
			detail = res.Err.Error()
		}
		e.bus.Emit(Event{Type: EventMissionFailed, Payload: MissionFailedEvent{
			MissionID:   missionID,
			MissionUUID: missionUUID,
			Position:    res.Position,
			Error:       detail,
		}})
	}
}

func (e *navEmitter) EmitObstacles(ev ObstaclesAddedEvent) {
	e.bus.Emit(Event{Type: EventObstaclesAdded, Payload: ev})
}

func (e *navEmitter) EmitBattery(ev BatteryLowEvent) {
	e.bus.Emit(Event{Type: EventBatteryLow, Payload: ev})
}
