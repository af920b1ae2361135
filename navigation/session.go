// Package navigation runs a single rover mission, either along planned
// grid paths toward a list of goals or by reacting to raw sensor readings.
//
// A Session is not safe for concurrent use; callers serialize access.
package navigation

import (
	"context"
	"fmt"

	"rovernav/grid"
	"rovernav/planner"
	"rovernav/reactive"
)

type Session struct {
	cfg   Config
	rover Rover

	state   State
	mode    Mode
	grid    *grid.Grid
	goals   *planner.GoalQueue
	pos     grid.Cell
	heading reactive.Heading
	reached []grid.Cell
	steps   int
	err     error
	stopErr error
	cancel  bool
}

func New(r Rover, cfg Config) *Session {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		d := DefaultConfig()
		cfg.Width, cfg.Height = d.Width, d.Height
	}
	return &Session{cfg: cfg, rover: r, state: StateIdle}
}

func (s *Session) State() State { return s.state }

func (s *Session) Mode() Mode { return s.mode }

func (s *Session) Position() grid.Cell { return s.pos }

// Err returns the error that failed the mission, if any.
func (s *Session) Err() error { return s.err }

// Start begins a mission. It is allowed from idle or any terminal state.
func (s *Session) Start(m Mission) error {
	if s.state.Active() {
		return ErrMissionActive
	}
	heading := m.Heading
	if !heading.Valid() {
		heading = reactive.Forward
	}

	var (
		g     *grid.Grid
		goals = planner.NewGoalQueue()
		mode  = ModeReactive
	)
	if len(m.Goals) > 0 {
		w, h := s.cfg.Width, s.cfg.Height
		if m.Width > 0 && m.Height > 0 {
			w, h = m.Width, m.Height
		}
		if s.cfg.MaxCells > 0 && w > s.cfg.MaxCells/h {
			return fmt.Errorf("%w: %dx%d exceeds %d cells", grid.ErrInvalidDimensions, w, h, s.cfg.MaxCells)
		}
		var err error
		g, err = grid.New(w, h)
		if err != nil {
			return err
		}
		if !g.InBounds(m.Start) {
			return fmt.Errorf("%w: start %s", grid.ErrOutOfBounds, m.Start)
		}
		if err := goals.SetGoals(g, m.Goals); err != nil {
			return err
		}
		g.SetObstacles(m.Obstacles)
		mode = ModeGrid
	}

	s.state = StatePlanning
	s.mode = mode
	s.grid = g
	s.goals = goals
	s.pos = m.Start
	s.heading = heading
	s.reached = nil
	s.steps = 0
	s.err = nil
	s.cancel = false
	return nil
}

// Cancel fails the mission at the next step boundary.
func (s *Session) Cancel() {
	if s.state.Active() {
		s.cancel = true
	}
}

// AddObstacles marks cells on the mission grid and drops the active path if
// it runs through one of them.
func (s *Session) AddObstacles(cells []grid.Cell) (int, error) {
	if s.grid == nil {
		return 0, ErrNoGrid
	}
	n := s.grid.SetObstacles(cells)
	if s.goals.Crosses(cells) {
		s.goals.Invalidate()
	}
	return n, nil
}

// MarkFromSensor projects a range reading taken from the current position
// onto the grid.
func (s *Session) MarkFromSensor(distance, angleDegrees float64) (grid.Cell, bool, error) {
	if s.grid == nil {
		return grid.Cell{}, false, ErrNoGrid
	}
	c, ok, err := s.grid.MarkFromSensor(s.pos.X, s.pos.Y, distance, angleDegrees)
	if err != nil || !ok {
		return c, ok, err
	}
	if s.goals.Crosses([]grid.Cell{c}) {
		s.goals.Invalidate()
	}
	return c, true, nil
}

// Snapshot returns a copy of the session for display or persistence.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:    s.state,
		Mode:     s.mode,
		Position: s.pos,
		Heading:  s.heading,
		Reached:  append([]grid.Cell(nil), s.reached...),
		Steps:    s.steps,
	}
	if s.goals != nil {
		snap.Goals = s.goals.Goals()
		snap.Active = s.goals.Active()
	}
	if s.grid != nil {
		snap.Width, snap.Height = s.grid.Width(), s.grid.Height()
		snap.Obstacles = s.grid.Obstacles()
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// Step runs one decision and at most one move. After the mission is over
// it returns the terminal state without touching the rover.
func (s *Session) Step(ctx context.Context) StepResult {
	if s.state.Terminal() {
		return s.result(StepResult{Err: s.err})
	}
	if s.state == StateIdle {
		return s.result(StepResult{Err: ErrNotStarted})
	}
	if s.cancel {
		s.fail(ctx, ErrCancelled)
		return s.result(StepResult{Err: s.err})
	}

	s.steps++
	s.state = StatePlanning
	res := StepResult{}

	// a failed status read is no update, not a failure
	if st, err := s.rover.Status(ctx); err == nil && st.BatteryKnown {
		res.Battery, res.BatteryKnown = st.Battery, true
		if st.Battery <= s.cfg.MinBattery {
			res.Hold = HoldBattery
			return s.result(res)
		}
	}

	if s.mode == ModeGrid && s.stepGrid(ctx, &res) {
		return s.result(res)
	}
	s.stepReactive(ctx, &res)
	return s.result(res)
}

// stepGrid returns true when res is final. It returns false only after
// switching to reactive mode.
func (s *Session) stepGrid(ctx context.Context, res *StepResult) bool {
	adv := s.goals.Advance(s.grid, s.pos)
	s.reached = append(s.reached, adv.Reached...)
	res.Reached = append(res.Reached, adv.Reached...)
	res.Replanned = adv.Replanned

	switch adv.Status {
	case planner.AdvanceComplete:
		s.complete(ctx)
		return true
	case planner.AdvanceNoPath:
		if s.cfg.ReactiveFallback {
			s.mode = ModeReactive
			return false
		}
		s.fail(ctx, fmt.Errorf("%w from %s (%d goals left)", ErrNoReachableGoal, s.pos, s.goals.Len()))
		res.Err = s.err
		return true
	}

	dir, ok := reactive.Toward(s.pos, adv.Next)
	if !ok {
		// planner returned a non-adjacent cell; drop the path and try again
		s.goals.Invalidate()
		return true
	}
	res.Target, res.Goal, res.HasGoal = adv.Next, adv.Goal, true
	if !s.move(ctx, dir, res) {
		s.goals.Invalidate()
		return true
	}
	s.pos = adv.Next

	if c, ok := s.goals.Arrive(s.pos); ok {
		s.reached = append(s.reached, c)
		res.Reached = append(res.Reached, c)
		if s.goals.Len() == 0 {
			s.complete(ctx)
		} else {
			s.state = StateGoalReached
		}
		return true
	}

	s.state = StateMoving
	s.sense(ctx, res)
	if len(s.goals.Active()) == 0 {
		s.state = StateReplanNeeded
	}
	return true
}

// sense projects an ultrasonic echo ahead of the rover onto the grid.
func (s *Session) sense(ctx context.Context, res *StepResult) {
	if s.cfg.ObstacleRange <= 0 {
		return
	}
	snap, err := s.rover.SensorData(ctx)
	if err != nil {
		return
	}
	snap = reactive.Sanitize(snap)
	us := snap.Ultrasonic
	if !us.Detected || us.Distance <= 0 || us.Distance > s.cfg.ObstacleRange {
		return
	}
	c, err := grid.Project(s.pos.X, s.pos.Y, us.Distance, s.heading.Angle())
	if err != nil || c == s.pos || !s.grid.InBounds(c) {
		return
	}
	// an echo off a goal cell is the target itself
	if s.goals.IsGoal(c) {
		return
	}
	s.grid.SetObstacles([]grid.Cell{c})
	res.Obstacle = &c
	if s.goals.Crosses([]grid.Cell{c}) {
		s.goals.Invalidate()
	}
}

func (s *Session) stepReactive(ctx context.Context, res *StepResult) {
	snap, err := s.rover.SensorData(ctx)
	if err != nil {
		res.Hold = HoldSensor
		res.Err = err
		return
	}
	dir, reached := reactive.Resolve(s.heading, snap, s.cfg.Thresholds)
	if reached {
		s.complete(ctx)
		return
	}
	if !s.move(ctx, dir, res) {
		return
	}
	s.pos = s.pos.Add(dir.Delta())
	s.state = StateMoving
}

// move issues one move and records the outcome. A transient failure leaves
// the session planning; anything else fails the mission.
func (s *Session) move(ctx context.Context, dir reactive.Heading, res *StepResult) bool {
	res.Direction = dir
	err := s.rover.Move(ctx, dir)
	if err == nil {
		res.Moved = true
		s.heading = dir
		return true
	}
	if IsTransient(err) {
		res.Hold = HoldTransient
		res.Err = fmt.Errorf("%w: move %s: %w", ErrTransientIO, dir, err)
		return false
	}
	s.fail(ctx, fmt.Errorf("%w: move %s: %w", ErrFatalIO, dir, err))
	res.Err = s.err
	return false
}

func (s *Session) complete(ctx context.Context) {
	s.stopErr = s.rover.Stop(ctx)
	s.state = StateMissionComplete
}

func (s *Session) fail(ctx context.Context, err error) {
	s.stopErr = s.rover.Stop(ctx)
	s.state = StateFailed
	s.err = err
}

func (s *Session) result(res StepResult) StepResult {
	res.Step = s.steps
	res.State = s.state
	res.Mode = s.mode
	res.Position = s.pos
	res.Heading = s.heading
	res.StopErr, s.stopErr = s.stopErr, nil
	return res
}
