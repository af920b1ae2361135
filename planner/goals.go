package planner

import (
	"errors"
	"fmt"

	"rovernav/grid"
)

var ErrInvalidGoal = errors.New("planner: invalid goal")

// AdvanceStatus is the outcome of GoalQueue.Advance.
type AdvanceStatus int

const (
	// AdvanceMove means Next holds the cell to drive to.
	AdvanceMove AdvanceStatus = iota
	// AdvanceComplete means every goal has been reached.
	AdvanceComplete
	// AdvanceNoPath means goals remain but none can be reached from the
	// current position.
	AdvanceNoPath
)

func (s AdvanceStatus) String() string {
	switch s {
	case AdvanceMove:
		return "move"
	case AdvanceComplete:
		return "complete"
	case AdvanceNoPath:
		return "no_path"
	}
	return fmt.Sprintf("AdvanceStatus(%d)", int(s))
}

// Advance is what the queue decided for one step.
type Advance struct {
	Status    AdvanceStatus
	Next      grid.Cell
	Goal      grid.Cell
	Reached   []grid.Cell
	Replanned bool
}

// GoalQueue holds the remaining goals of a mission and the path being
// driven toward the currently selected one. Goals are only dropped when the
// rover stands on the selected goal.
type GoalQueue struct {
	goals    []grid.Cell
	selected grid.Cell
	hasGoal  bool
	active   Path
}

func NewGoalQueue() *GoalQueue {
	return &GoalQueue{}
}

// SetGoals replaces the goal list. Any cell outside g rejects the whole
// list and leaves the previous one in place.
func (q *GoalQueue) SetGoals(g *grid.Grid, cells []grid.Cell) error {
	for _, c := range cells {
		if !g.InBounds(c) {
			return fmt.Errorf("%w: %s outside %dx%d grid", ErrInvalidGoal, c, g.Width(), g.Height())
		}
	}
	q.goals = append([]grid.Cell(nil), cells...)
	q.clearSelection()
	return nil
}

// Len returns the number of goals still to reach.
func (q *GoalQueue) Len() int { return len(q.goals) }

// Goals returns a copy of the remaining goals in stored order.
func (q *GoalQueue) Goals() []grid.Cell {
	return append([]grid.Cell(nil), q.goals...)
}

// Active returns a copy of the remaining active path.
func (q *GoalQueue) Active() Path {
	return append(Path(nil), q.active...)
}

// Selected returns the goal currently being driven to.
func (q *GoalQueue) Selected() (grid.Cell, bool) {
	return q.selected, q.hasGoal
}

// Invalidate drops the active path so the next Advance replans. The
// remaining goals are untouched.
func (q *GoalQueue) Invalidate() {
	q.active = nil
}

// Crosses reports whether any cell of the active path is in cells.
func (q *GoalQueue) Crosses(cells []grid.Cell) bool {
	for _, p := range q.active {
		for _, c := range cells {
			if p == c {
				return true
			}
		}
	}
	return false
}

// IsGoal reports whether c is one of the remaining goals.
func (q *GoalQueue) IsGoal(c grid.Cell) bool {
	for _, g := range q.goals {
		if g == c {
			return true
		}
	}
	return false
}

// NearestGoal returns the remaining goal with the shortest planned path from
// pos. Ties go to the goal stored first. ok is false when no goal is
// reachable.
func (q *GoalQueue) NearestGoal(g *grid.Grid, pos grid.Cell) (grid.Cell, bool) {
	i, _, ok := q.nearest(g, pos)
	if !ok {
		return grid.Cell{}, false
	}
	return q.goals[i], true
}

func (q *GoalQueue) nearest(g *grid.Grid, pos grid.Cell) (int, Path, bool) {
	best := -1
	var bestPath Path
	for i, goal := range q.goals {
		var p Path
		if goal != pos {
			p = Plan(g, pos, goal)
			if len(p) == 0 {
				continue
			}
		}
		if best < 0 || len(p) < len(bestPath) {
			best, bestPath = i, p
		}
	}
	return best, bestPath, best >= 0
}

// Arrive drops the selected goal if pos is on it.
func (q *GoalQueue) Arrive(pos grid.Cell) (grid.Cell, bool) {
	if !q.hasGoal || pos != q.selected {
		return grid.Cell{}, false
	}
	reached := q.selected
	q.remove(reached)
	q.clearSelection()
	return reached, true
}

// Advance returns the next cell to drive to from pos, planning toward the
// nearest goal when there is no usable active path.
func (q *GoalQueue) Advance(g *grid.Grid, pos grid.Cell) Advance {
	var adv Advance
	if c, ok := q.Arrive(pos); ok {
		adv.Reached = append(adv.Reached, c)
	}
	for {
		if len(q.goals) == 0 {
			q.clearSelection()
			adv.Status = AdvanceComplete
			return adv
		}
		if !q.usable(g, pos) {
			i, path, ok := q.nearest(g, pos)
			if !ok {
				q.clearSelection()
				adv.Status = AdvanceNoPath
				return adv
			}
			goal := q.goals[i]
			if len(path) == 0 {
				// already standing on it
				q.goals = append(q.goals[:i], q.goals[i+1:]...)
				q.clearSelection()
				adv.Reached = append(adv.Reached, goal)
				continue
			}
			q.selected, q.hasGoal, q.active = goal, true, path
			adv.Replanned = true
		}
		adv.Status = AdvanceMove
		adv.Next = q.active[0]
		adv.Goal = q.selected
		q.active = q.active[1:]
		return adv
	}
}

// usable reports whether the active path still starts next to pos and runs
// through free cells only.
func (q *GoalQueue) usable(g *grid.Grid, pos grid.Cell) bool {
	if !q.hasGoal || len(q.active) == 0 || !q.active[0].Adjacent(pos) {
		return false
	}
	for _, c := range q.active {
		if !g.Passable(c) {
			return false
		}
	}
	return true
}

func (q *GoalQueue) remove(c grid.Cell) {
	for i, goal := range q.goals {
		if goal == c {
			q.goals = append(q.goals[:i], q.goals[i+1:]...)
			return
		}
	}
}

func (q *GoalQueue) clearSelection() {
	q.selected, q.hasGoal, q.active = grid.Cell{}, false, nil
}
