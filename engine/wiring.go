package engine

import (
	"fmt"

	"rovernav/grid"
	"rovernav/livestate"
	"rovernav/navigation"
	"rovernav/protocol"
	"rovernav/store"
)

func (e *Engine) wireEventHandlers() {
	// Mission started: audit, reset the live trail, tell the control station
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MissionStartedEvent)
		e.logFn("engine: mission %d started by %s (%s, %d goals)", ev.MissionID, ev.Actor, ev.Mode, len(ev.Goals))
		if ev.MissionID != 0 {
			e.db.AppendAudit("mission", ev.MissionID, "started", "", ev.Mode.String(), ev.Actor)
		}
		if e.liveState != nil {
			e.liveState.ResetTrail()
			e.updateLiveState(ev.MissionID, ev.MissionUUID, string(navigation.StatePlanning), ev.Mode, ev.Start, ev.Heading, 0, nil)
		}
		e.enqueue(protocol.TypeMissionStarted, &protocol.MissionStarted{
			MissionUUID: ev.MissionUUID,
			Mode:        ev.Mode.String(),
			Start:       point(ev.Start),
			Heading:     ev.Heading,
			Goals:       points(ev.Goals),
		})
	}, EventMissionStarted)

	// Every step: persist, mirror live state, publish telemetry
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MissionStepEvent)
		e.handleStep(ev)
	}, EventMissionStep)

	// Goal reached
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(GoalReachedEvent)
		e.logFn("engine: mission %d reached goal %s, %d remaining", ev.MissionID, ev.Goal, ev.Remaining)
		if ev.MissionID != 0 {
			if err := e.db.MarkGoalReached(ev.MissionID, ev.Goal.X, ev.Goal.Y); err != nil {
				e.logFn("engine: mark goal reached: %v", err)
			}
			e.db.AppendAudit("mission", ev.MissionID, "goal_reached", "", ev.Goal.String(), "system")
		}
		e.enqueue(protocol.TypeMissionGoalReached, &protocol.MissionGoalReached{
			MissionUUID: ev.MissionUUID,
			Goal:        point(ev.Goal),
			Remaining:   ev.Remaining,
		})
	}, EventGoalReached)

	// Mission completed
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MissionCompletedEvent)
		e.logFn("engine: mission %d complete at %s after %d steps", ev.MissionID, ev.Position, ev.Steps)
		if ev.MissionID != 0 {
			e.db.FinishMission(ev.MissionID, string(navigation.StateMissionComplete), "")
			e.db.AppendAudit("mission", ev.MissionID, "completed", "", ev.Position.String(), "system")
		}
		e.enqueue(protocol.TypeMissionCompleted, &protocol.MissionCompleted{
			MissionUUID: ev.MissionUUID,
			Position:    point(ev.Position),
			Steps:       ev.Steps,
		})
	}, EventMissionCompleted)

	// Mission failed: remaining goals become unreachable
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MissionFailedEvent)
		e.logFn("engine: mission %d failed at %s: %s", ev.MissionID, ev.Position, ev.Error)
		if ev.MissionID != 0 {
			e.db.FinishMission(ev.MissionID, string(navigation.StateFailed), ev.Error)
			e.db.MarkPendingGoals(ev.MissionID, store.GoalUnreachable)
			e.db.AppendAudit("mission", ev.MissionID, "failed", "", ev.Error, "system")
		}
		e.enqueue(protocol.TypeMissionFailed, &protocol.MissionFailed{
			MissionUUID: ev.MissionUUID,
			Position:    point(ev.Position),
			Error:       ev.Error,
		})
	}, EventMissionFailed)

	// Obstacles: persist, deduplicated per mission cell
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ObstaclesAddedEvent)
		if ev.MissionID == 0 {
			return
		}
		added := 0
		for _, c := range ev.Cells {
			ok, err := e.db.AddObstacle(ev.MissionID, c, ev.Source)
			if err != nil {
				e.logFn("engine: persist obstacle %s: %v", c, err)
				continue
			}
			if ok {
				added++
			}
		}
		if added > 0 && ev.Source == store.ObstacleManual {
			e.db.AppendAudit("mission", ev.MissionID, "obstacles_added", "", fmt.Sprintf("%d cells", added), ev.Actor)
		}
	}, EventObstaclesAdded)

	// Battery low
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(BatteryLowEvent)
		if ev.Recovered {
			e.logFn("engine: battery recovered to %.1f after %d attempts", ev.Battery, ev.Attempts)
		} else {
			e.logFn("engine: battery low (%.1f), charge attempt %d", ev.Battery, ev.Attempts)
		}
		if ev.MissionID != 0 && (ev.Attempts == 1 || ev.Recovered) {
			e.db.AppendAudit("rover", ev.MissionID, "battery_low", "", fmt.Sprintf("%.1f recovered=%v", ev.Battery, ev.Recovered), "system")
		}
		e.enqueue(protocol.TypeRoverBatteryLow, &protocol.RoverBatteryLow{
			SessionID: ev.SessionID,
			Battery:   ev.Battery,
			Attempts:  ev.Attempts,
			Recovered: ev.Recovered,
		})
	}, EventBatteryLow)

	// Connection changes: log only
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		e.logFn("engine: connection change: %s", ev.Detail)
	}, EventRoverConnected, EventRoverDisconnected, EventMessagingConnected, EventMessagingDisconnected)
}

func (e *Engine) handleStep(ev MissionStepEvent) {
	res := ev.Result
	var battery *float64
	if res.BatteryKnown {
		b := res.Battery
		battery = &b
	}
	direction := ""
	if res.Moved {
		direction = res.Direction.String()
	}
	detail := ""
	if res.Err != nil {
		detail = res.Err.Error()
	}

	var target *grid.Cell
	if res.HasGoal {
		t := res.Target
		target = &t
	}

	if ev.MissionID != 0 {
		err := e.db.AppendMissionStep(&store.MissionStep{
			MissionID: ev.MissionID,
			Seq:       res.Step,
			State:     string(res.State),
			Mode:      res.Mode.String(),
			Direction: direction,
			Moved:     res.Moved,
			PosX:      res.Position.X,
			PosY:      res.Position.Y,
			Target:    target,
			Battery:   battery,
			Hold:      string(res.Hold),
			Detail:    detail,
		})
		if err != nil {
			e.logFn("engine: persist step %d of mission %d: %v", res.Step, ev.MissionID, err)
		}
	}
	e.updateLiveState(ev.MissionID, ev.MissionUUID, string(res.State), res.Mode, res.Position, res.Heading.String(), res.Step, battery)

	msg := &protocol.MissionStep{
		MissionUUID: ev.MissionUUID,
		Step:        res.Step,
		State:       string(res.State),
		Mode:        res.Mode.String(),
		Direction:   direction,
		Moved:       res.Moved,
		Position:    point(res.Position),
		Heading:     res.Heading.String(),
		Battery:     battery,
		Hold:        string(res.Hold),
	}
	if res.Obstacle != nil {
		p := point(*res.Obstacle)
		msg.Obstacle = &p
	}
	e.enqueue(protocol.TypeMissionStep, msg)
}

func (e *Engine) updateLiveState(missionID int64, missionUUID, state string, mode navigation.Mode, pos grid.Cell, heading string, steps int, battery *float64) {
	if e.liveState == nil {
		if missionID != 0 {
			e.db.UpdateMissionProgress(missionID, state, mode.String(), pos.X, pos.Y, heading, steps)
		}
		return
	}
	err := e.liveState.Update(&livestate.RoverState{
		MissionID:   missionID,
		MissionUUID: missionUUID,
		State:       state,
		Mode:        mode.String(),
		X:           pos.X,
		Y:           pos.Y,
		Heading:     heading,
		Steps:       steps,
		Battery:     battery,
	})
	if err != nil {
		e.logFn("engine: livestate update: %v", err)
	}
}

// enqueue puts a telemetry envelope on the outbox when messaging is enabled.
func (e *Engine) enqueue(msgType string, payload any) {
	if e.cfg.Messaging.Backend == "" {
		return
	}
	src := protocol.Address{Role: protocol.RoleRover, Station: e.cfg.Messaging.StationID}
	dst := protocol.Address{Role: protocol.RoleControl}
	env, err := protocol.NewEnvelope(msgType, src, dst, payload)
	if err != nil {
		e.logFn("engine: build %s: %v", msgType, err)
		return
	}
	data, err := env.Encode()
	if err != nil {
		e.logFn("engine: encode %s: %v", msgType, err)
		return
	}
	if err := e.db.EnqueueOutbox(e.cfg.Messaging.TelemetryTopic, data, msgType, e.cfg.Messaging.StationID); err != nil {
		e.logFn("engine: enqueue %s: %v", msgType, err)
	}
}

func point(c grid.Cell) protocol.Point { return protocol.Point{X: c.X, Y: c.Y} }

func points(cs []grid.Cell) []protocol.Point {
	if len(cs) == 0 {
		return nil
	}
	out := make([]protocol.Point, len(cs))
	for i, c := range cs {
		out[i] = point(c)
	}
	return out
}
