package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rovernav/config"
	"rovernav/grid"
	"rovernav/livestate"
	"rovernav/navigation"
	"rovernav/reactive"
	"rovernav/rover"
	"rovernav/store"
)

type fakeRover struct {
	mu           sync.Mutex
	session      string
	sessionErr   error
	sessions     int
	battery      float64
	batteryKnown bool
	lowText      bool
	snapshot     reactive.SensorSnapshot
	moves        []reactive.Heading
	stops        int
	charges      int
}

func (f *fakeRover) StartSession(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	f.sessions++
	f.session = "sess-1"
	return f.session, nil
}

func (f *fakeRover) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeRover) GetStatus(ctx context.Context) (*rover.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &rover.Status{Battery: f.battery, BatteryKnown: f.batteryKnown, LowBattery: f.lowText}, nil
}

func (f *fakeRover) GetSensorData(ctx context.Context) (*rover.SensorData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &rover.SensorData{Snapshot: f.snapshot}, nil
}

func (f *fakeRover) Move(ctx context.Context, dir reactive.Heading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, dir)
	return nil
}

func (f *fakeRover) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeRover) Charge(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges++
	return nil
}

func (f *fakeRover) setBattery(b float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.battery, f.batteryKnown = b, true
}

func testEngine(t *testing.T, r *fakeRover) *Engine {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Defaults()
	cfg.Messaging.Backend = "mqtt"
	cfg.Navigation.ChargeAttempts = 2
	return New(Config{
		AppConfig: cfg,
		DB:        db,
		Rover:     r,
		LiveState: livestate.NewManager(db, nil, cfg.Messaging.StationID),
		LogFunc:   t.Logf,
	})
}

func recordEvents(e *Engine) *[]EventType {
	var mu sync.Mutex
	var types []EventType
	e.Events.Subscribe(func(evt Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, evt.Type)
	})
	return &types
}

func outboxTypes(t *testing.T, db *store.DB) []string {
	t.Helper()
	msgs, err := db.ListPendingOutbox(100)
	if err != nil {
		t.Fatalf("outbox: %v", err)
	}
	var out []string
	for _, m := range msgs {
		out = append(out, m.MsgType)
	}
	return out
}

func gridMission() navigation.Mission {
	return navigation.Mission{
		Start:   grid.Cell{X: 0, Y: 0},
		Heading: reactive.Forward,
		Goals:   []grid.Cell{{X: 0, Y: 2}},
		Width:   5,
		Height:  5,
	}
}

func TestMissionLifecycle(t *testing.T) {
	r := &fakeRover{battery: 90, batteryKnown: true}
	e := testEngine(t, r)
	events := recordEvents(e)

	rec, err := e.StartMission(gridMission(), "", "admin")
	if err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	if rec.ID == 0 || rec.UUID == "" {
		t.Fatalf("mission not persisted: %+v", rec)
	}
	if r.sessions != 1 || rec.SessionID != "sess-1" {
		t.Errorf("sessions = %d, session id = %q", r.sessions, rec.SessionID)
	}

	ctx := context.Background()
	var states []navigation.State
	for i := 0; i < 10; i++ {
		res, err := e.StepOnce(ctx)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		states = append(states, res.State)
		if res.State.Terminal() {
			break
		}
	}
	if diff := cmp.Diff([]navigation.State{navigation.StateMoving, navigation.StateMissionComplete}, states); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}

	got, err := e.DB().GetMission(rec.ID)
	if err != nil {
		t.Fatalf("get mission: %v", err)
	}
	if got.State != "mission_complete" || got.CompletedAt == nil {
		t.Errorf("mission = %s completed_at=%v", got.State, got.CompletedAt)
	}
	if got.PosX != 0 || got.PosY != 2 || got.Steps != 2 {
		t.Errorf("progress = (%d,%d) steps=%d", got.PosX, got.PosY, got.Steps)
	}

	goals, _ := e.DB().ListMissionGoals(rec.ID)
	if len(goals) != 1 || goals[0].Status != store.GoalReached {
		t.Errorf("goals = %+v", goals)
	}
	steps, _ := e.DB().ListMissionSteps(rec.ID, 10)
	if len(steps) != 2 || steps[0].Direction != "forward" {
		t.Fatalf("steps = %+v", steps)
	}
	if steps[0].Target == nil || *steps[0].Target != (grid.Cell{X: 0, Y: 2}) {
		t.Errorf("last step target = %v, want (0,2)", steps[0].Target)
	}

	wantOutbox := []string{"mission.started", "mission.step", "mission.step", "mission.goal_reached", "mission.completed"}
	if diff := cmp.Diff(wantOutbox, outboxTypes(t, e.DB())); diff != "" {
		t.Errorf("outbox mismatch (-want +got):\n%s", diff)
	}
	wantEvents := []EventType{EventMissionStarted, EventMissionStep, EventMissionStep, EventGoalReached, EventMissionCompleted}
	if diff := cmp.Diff(wantEvents, *events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	// after completion further steps change nothing and emit nothing
	res, err := e.StepOnce(ctx)
	if err != nil || res.State != navigation.StateMissionComplete {
		t.Errorf("step after complete = %v, %v", res.State, err)
	}
	if len(*events) != len(wantEvents) {
		t.Errorf("step after complete emitted events")
	}
	if r.stops != 1 {
		t.Errorf("stops = %d, want 1", r.stops)
	}

	live, err := e.LiveState().Get()
	if err != nil || live == nil {
		t.Fatalf("livestate = %v, %v", live, err)
	}
	if live.State != "mission_complete" || live.Y != 2 {
		t.Errorf("livestate = %+v", live)
	}
}

func TestStepBeforeStart(t *testing.T) {
	e := testEngine(t, &fakeRover{})
	if _, err := e.StepOnce(context.Background()); !errors.Is(err, navigation.ErrNotStarted) {
		t.Errorf("err = %v, want ErrNotStarted", err)
	}
	if m, err := e.CurrentMission(); m != nil || err != nil {
		t.Errorf("CurrentMission = %v, %v before any mission", m, err)
	}
}

func TestStartMissionErrors(t *testing.T) {
	r := &fakeRover{sessionErr: errors.New("connection refused")}
	e := testEngine(t, r)
	if _, err := e.StartMission(gridMission(), "", "admin"); err == nil {
		t.Fatal("expected rover session error")
	}

	r.sessionErr = nil
	huge := gridMission()
	huge.Width, huge.Height = 1<<32, 1<<32
	if _, err := e.StartMission(huge, "", "admin"); !errors.Is(err, grid.ErrInvalidDimensions) {
		t.Errorf("oversized grid err = %v, want ErrInvalidDimensions", err)
	}
	if e.Navigator().Active() {
		t.Error("rejected mission left the navigator active")
	}

	if _, err := e.StartMission(gridMission(), "m-1", "admin"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	if _, err := e.StartMission(gridMission(), "", "admin"); !errors.Is(err, navigation.ErrMissionActive) {
		t.Errorf("err = %v, want ErrMissionActive", err)
	}
	m, err := e.CurrentMission()
	if err != nil || m.UUID != "m-1" {
		t.Errorf("current = %+v, %v", m, err)
	}
}

func TestCancelMission(t *testing.T) {
	r := &fakeRover{session: "s", battery: 90, batteryKnown: true}
	e := testEngine(t, r)
	if err := e.CancelMission("nothing running", "admin"); !errors.Is(err, navigation.ErrNotStarted) {
		t.Errorf("cancel without mission = %v", err)
	}
	rec, err := e.StartMission(gridMission(), "", "admin")
	if err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	if err := e.CancelMission("operator", "admin"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	res, _ := e.StepOnce(context.Background())
	if res.State != navigation.StateFailed || !errors.Is(res.Err, navigation.ErrCancelled) {
		t.Errorf("after cancel = %s, %v", res.State, res.Err)
	}
	if len(r.moves) != 0 {
		t.Errorf("moves = %v, want none", r.moves)
	}

	got, _ := e.DB().GetMission(rec.ID)
	if got.State != "failed" || got.ErrorDetail == "" {
		t.Errorf("mission = %s %q", got.State, got.ErrorDetail)
	}
	goals, _ := e.DB().ListMissionGoals(rec.ID)
	if goals[0].Status != store.GoalUnreachable {
		t.Errorf("goal status = %s, want unreachable", goals[0].Status)
	}
	audit, _ := e.DB().ListEntityAudit("mission", rec.ID)
	var actions []string
	for _, a := range audit {
		actions = append(actions, a.Action)
	}
	if diff := cmp.Diff([]string{"failed", "cancel_requested", "started"}, actions); diff != "" {
		t.Errorf("audit mismatch (-want +got):\n%s", diff)
	}
}

func TestBatteryChargeAndRecovery(t *testing.T) {
	r := &fakeRover{session: "s", battery: 10, batteryKnown: true}
	e := testEngine(t, r)
	var battery []BatteryLowEvent
	e.Events.SubscribeTypes(func(evt Event) {
		battery = append(battery, evt.Payload.(BatteryLowEvent))
	}, EventBatteryLow)

	if _, err := e.StartMission(gridMission(), "", "admin"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, _ := e.StepOnce(ctx)
		if res.Hold != navigation.HoldBattery {
			t.Fatalf("step %d hold = %q, want battery", i, res.Hold)
		}
	}
	if r.stops != 1 || r.charges != 2 || len(r.moves) != 0 {
		t.Errorf("stops=%d charges=%d moves=%v", r.stops, r.charges, r.moves)
	}

	r.setBattery(80)
	res, _ := e.StepOnce(ctx)
	if !res.Moved {
		t.Fatalf("expected a move after recovery, got %+v", res)
	}
	if len(battery) != 3 || !battery[2].Recovered || battery[2].Attempts != 2 {
		t.Errorf("battery events = %+v", battery)
	}
}

func TestBatteryExhaustionCancels(t *testing.T) {
	r := &fakeRover{session: "s", battery: 5, batteryKnown: true}
	e := testEngine(t, r)
	if _, err := e.StartMission(gridMission(), "", "admin"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	ctx := context.Background()
	var last navigation.StepResult
	for i := 0; i < 4; i++ {
		last, _ = e.StepOnce(ctx)
	}
	if last.State != navigation.StateFailed || !errors.Is(last.Err, navigation.ErrCancelled) {
		t.Errorf("final = %s %v, want cancelled failure", last.State, last.Err)
	}
	if r.charges != 2 {
		t.Errorf("charges = %d, want 2", r.charges)
	}
}

func TestLowBatteryTextHolds(t *testing.T) {
	r := &fakeRover{session: "s", lowText: true}
	e := testEngine(t, r)
	if _, err := e.StartMission(gridMission(), "", "admin"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	res, _ := e.StepOnce(context.Background())
	if res.Hold != navigation.HoldBattery {
		t.Errorf("hold = %q, want battery", res.Hold)
	}
}

func TestObstaclesPersisted(t *testing.T) {
	r := &fakeRover{session: "s", battery: 90, batteryKnown: true}
	e := testEngine(t, r)
	m := gridMission()
	m.Obstacles = []grid.Cell{{X: 4, Y: 4}}
	rec, err := e.StartMission(m, "", "admin")
	if err != nil {
		t.Fatalf("StartMission: %v", err)
	}

	n, err := e.AddObstacles([]grid.Cell{{X: 0, Y: 1}, {X: 9, Y: 9}}, "admin")
	if err != nil || n != 1 {
		t.Fatalf("AddObstacles = %d, %v", n, err)
	}
	c, marked, err := e.MarkFromSensor(2, 0, "admin")
	if err != nil || !marked || c != (grid.Cell{X: 2, Y: 0}) {
		t.Fatalf("MarkFromSensor = %v %v %v", c, marked, err)
	}

	list, err := e.DB().ListObstacles(rec.ID)
	if err != nil {
		t.Fatalf("list obstacles: %v", err)
	}
	var got []string
	for _, o := range list {
		got = append(got, grid.Cell{X: o.X, Y: o.Y}.String()+" "+o.Source)
	}
	want := []string{"(4,4) manual", "(0,1) manual", "(2,0) sensor"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("obstacles mismatch (-want +got):\n%s", diff)
	}

	// the path through (0,1) is blocked, the rover detours
	res, _ := e.StepOnce(context.Background())
	if !res.Moved || res.Position != (grid.Cell{X: 1, Y: 0}) {
		t.Errorf("first move = %+v", res)
	}
}

func TestReactiveMissionHasNoGrid(t *testing.T) {
	r := &fakeRover{session: "s", battery: 90, batteryKnown: true}
	e := testEngine(t, r)
	if _, err := e.StartMission(navigation.Mission{}, "", "admin"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	if _, err := e.AddObstacles([]grid.Cell{{X: 1, Y: 1}}, "admin"); !errors.Is(err, navigation.ErrNoGrid) {
		t.Errorf("err = %v, want ErrNoGrid", err)
	}
	if snap := e.Snapshot(); snap.Mode != navigation.ModeReactive {
		t.Errorf("mode = %v", snap.Mode)
	}
}

func TestHeartbeatStatus(t *testing.T) {
	r := &fakeRover{session: "s", battery: 90, batteryKnown: true}
	e := testEngine(t, r)
	e.checkConnectionStatus()
	state, uuid, connected := e.HeartbeatStatus()
	if state != "idle" || uuid != "" || !connected {
		t.Errorf("heartbeat = %s %q %v", state, uuid, connected)
	}
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var all, steps int
	bus.Subscribe(func(Event) { all++ })
	id := bus.SubscribeTypes(func(Event) { steps++ }, EventMissionStep)
	bus.Subscribe(func(Event) { panic("boom") })

	bus.Emit(Event{Type: EventMissionStep})
	bus.Emit(Event{Type: EventMissionStarted})
	bus.Unsubscribe(id)
	bus.Emit(Event{Type: EventMissionStep})

	if all != 3 || steps != 1 {
		t.Errorf("all=%d steps=%d, want 3 and 1", all, steps)
	}
}
