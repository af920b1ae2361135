package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rovernav/grid"
	"rovernav/navigation"
	"rovernav/store"
)

// Navigator owns the navigation session. Every access goes through mu and
// the loop runs exactly one Step per tick while a mission is active.
// Events are emitted after mu is released.
type Navigator struct {
	mu      sync.Mutex
	session *navigation.Session
	rover   RoverAPI
	db      *store.DB
	emit    *navEmitter
	logFn   LogFunc

	interval       time.Duration
	stepTimeout    time.Duration
	chargeAttempts int

	missionID   int64
	missionUUID string
	lowAttempts int

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func newNavigator(e *Engine) *Navigator {
	nc := e.cfg.Navigation
	stepTimeout := e.cfg.Rover.Timeout * time.Duration(e.cfg.Rover.Retries+2)
	if stepTimeout <= 0 {
		stepTimeout = 30 * time.Second
	}
	return &Navigator{
		session:        navigation.New(&roverAdapter{api: e.rover}, e.cfg.Session()),
		rover:          e.rover,
		db:             e.db,
		emit:           &navEmitter{bus: e.Events},
		logFn:          e.logFn,
		interval:       nc.StepInterval,
		stepTimeout:    stepTimeout,
		chargeAttempts: nc.ChargeAttempts,
		stopChan:       make(chan struct{}),
	}
}

// Start begins the step loop.
func (n *Navigator) Start() {
	interval := n.interval
	if interval <= 0 {
		interval = time.Second
	}
	n.wg.Add(1)
	go n.loop(interval)
}

// Stop halts the step loop and waits for an in-flight step.
func (n *Navigator) Stop() {
	n.stopOnce.Do(func() { close(n.stopChan) })
	n.wg.Wait()
}

func (n *Navigator) loop(interval time.Duration) {
	defer n.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopChan:
			return
		case <-ticker.C:
			if !n.Active() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), n.stepTimeout)
			n.Step(ctx)
			cancel()
		}
	}
}

// Active reports whether a mission is underway.
func (n *Navigator) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.session.State().Active()
}

// Begin starts a mission, opening a rover session first when none exists.
// The mission is persisted before the first step can run; a persistence
// failure is logged and the mission runs anyway.
func (n *Navigator) Begin(ctx context.Context, m navigation.Mission, missionUUID, actor string) (*store.Mission, error) {
	rec, snap, err := n.begin(ctx, m, missionUUID, actor)
	if err != nil {
		return nil, err
	}

	n.emit.EmitMissionStarted(MissionStartedEvent{
		MissionID:   rec.ID,
		MissionUUID: rec.UUID,
		Mode:        snap.Mode,
		Start:       snap.Position,
		Heading:     rec.Heading,
		Goals:       snap.Goals,
		Actor:       actor,
	})
	if len(snap.Obstacles) > 0 {
		n.emit.EmitObstacles(ObstaclesAddedEvent{
			MissionID: rec.ID,
			Cells:     snap.Obstacles,
			Source:    store.ObstacleManual,
			Actor:     actor,
		})
	}
	return rec, nil
}

func (n *Navigator) begin(ctx context.Context, m navigation.Mission, missionUUID, actor string) (*store.Mission, navigation.Snapshot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.session.State().Active() {
		return nil, navigation.Snapshot{}, navigation.ErrMissionActive
	}
	if n.rover.SessionID() == "" {
		if _, err := n.rover.StartSession(ctx); err != nil {
			return nil, navigation.Snapshot{}, fmt.Errorf("start rover session: %w", err)
		}
	}
	if err := n.session.Start(m); err != nil {
		return nil, navigation.Snapshot{}, err
	}
	snap := n.session.Snapshot()
	rec := &store.Mission{
		UUID:       missionUUID,
		SessionID:  n.rover.SessionID(),
		Mode:       snap.Mode.String(),
		StartX:     snap.Position.X,
		StartY:     snap.Position.Y,
		Heading:    snap.Heading.String(),
		GridWidth:  snap.Width,
		GridHeight: snap.Height,
		Actor:      actor,
	}
	if err := n.db.CreateMission(rec); err != nil {
		n.logFn("navigator: persist mission: %v", err)
	} else if len(snap.Goals) > 0 {
		if err := n.db.CreateMissionGoals(rec.ID, snap.Goals); err != nil {
			n.logFn("navigator: persist goals for mission %d: %v", rec.ID, err)
		}
	}
	n.missionID, n.missionUUID = rec.ID, rec.UUID
	n.lowAttempts = 0
	return rec, snap, nil
}

// Step runs one navigation step. Outside an active mission it returns
// ErrNotStarted for an idle session and the unchanged terminal result
// otherwise; neither emits events.
func (n *Navigator) Step(ctx context.Context) (navigation.StepResult, error) {
	n.mu.Lock()
	state := n.session.State()
	if state == navigation.StateIdle {
		n.mu.Unlock()
		return navigation.StepResult{State: state}, navigation.ErrNotStarted
	}
	if !state.Active() {
		res := n.session.Step(ctx)
		n.mu.Unlock()
		return res, nil
	}
	res := n.session.Step(ctx)
	remaining := len(n.session.Snapshot().Goals)
	id, uuid := n.missionID, n.missionUUID
	battery := n.handleBattery(ctx, res)
	n.mu.Unlock()

	if res.StopErr != nil {
		n.logFn("navigator: stop after mission %d ended: %v", id, res.StopErr)
	}
	n.emit.EmitStep(id, uuid, res, remaining)
	if battery != nil {
		n.emit.EmitBattery(*battery)
	}
	return res, nil
}

// handleBattery stops and charges the rover while the battery gate holds.
// Once chargeAttempts are used up the mission is cancelled. Called with mu
// held.
func (n *Navigator) handleBattery(ctx context.Context, res navigation.StepResult) *BatteryLowEvent {
	if res.Hold != navigation.HoldBattery {
		if n.lowAttempts == 0 || !res.BatteryKnown {
			return nil
		}
		ev := &BatteryLowEvent{
			MissionID: n.missionID,
			SessionID: n.rover.SessionID(),
			Battery:   res.Battery,
			Attempts:  n.lowAttempts,
			Recovered: true,
		}
		n.lowAttempts = 0
		return ev
	}

	n.lowAttempts++
	ev := &BatteryLowEvent{
		MissionID: n.missionID,
		SessionID: n.rover.SessionID(),
		Battery:   res.Battery,
		Attempts:  n.lowAttempts,
	}
	if n.lowAttempts == 1 {
		if err := n.rover.Stop(ctx); err != nil {
			n.logFn("navigator: stop for charge: %v", err)
		}
	}
	if n.lowAttempts > n.chargeAttempts {
		n.logFn("navigator: battery still at %.1f after %d charge attempts, cancelling mission", res.Battery, n.chargeAttempts)
		n.session.Cancel()
		return ev
	}
	if err := n.rover.Charge(ctx); err != nil {
		n.logFn("navigator: charge attempt %d: %v", n.lowAttempts, err)
	}
	return ev
}

// Cancel fails the running mission at the next step.
func (n *Navigator) Cancel() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.session.State().Active() {
		return navigation.ErrNotStarted
	}
	n.session.Cancel()
	return nil
}

// AddObstacles marks cells on the mission grid. Only cells inside the grid
// are reported in the emitted event.
func (n *Navigator) AddObstacles(cells []grid.Cell, actor string) (int, error) {
	n.mu.Lock()
	added, err := n.session.AddObstacles(cells)
	if err != nil {
		n.mu.Unlock()
		return 0, err
	}
	snap := n.session.Snapshot()
	id := n.missionID
	n.mu.Unlock()

	var inside []grid.Cell
	for _, c := range cells {
		if c.X >= 0 && c.Y >= 0 && c.X < snap.Width && c.Y < snap.Height {
			inside = append(inside, c)
		}
	}
	if len(inside) > 0 {
		n.emit.EmitObstacles(ObstaclesAddedEvent{MissionID: id, Cells: inside, Source: store.ObstacleManual, Actor: actor})
	}
	return added, nil
}

// MarkFromSensor projects a range reading from the rover's cell.
func (n *Navigator) MarkFromSensor(distance, angle float64, actor string) (grid.Cell, bool, error) {
	n.mu.Lock()
	c, marked, err := n.session.MarkFromSensor(distance, angle)
	id := n.missionID
	n.mu.Unlock()
	if err != nil || !marked {
		return c, marked, err
	}
	n.emit.EmitObstacles(ObstaclesAddedEvent{MissionID: id, Cells: []grid.Cell{c}, Source: store.ObstacleSensor, Actor: actor})
	return c, true, nil
}

func (n *Navigator) Snapshot() navigation.Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.session.Snapshot()
}

// Current returns the id and UUID of the latest mission.
func (n *Navigator) Current() (int64, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.missionID, n.missionUUID
}
