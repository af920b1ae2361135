package planner

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rovernav/grid"
)

func wallColumn(x, fromY, toY int) []grid.Cell {
	var cells []grid.Cell
	for y := fromY; y <= toY; y++ {
		cells = append(cells, grid.Cell{X: x, Y: y})
	}
	return cells
}

func TestNearestGoal_WallColumn(t *testing.T) {
	g := mustGrid(t, 20, 20, wallColumn(10, 0, 16)...)
	q := NewGoalQueue()
	goals := []grid.Cell{{X: 15, Y: 15}, {X: 3, Y: 3}, {X: 18, Y: 18}}
	if err := q.SetGoals(g, goals); err != nil {
		t.Fatalf("SetGoals: %v", err)
	}
	got, ok := q.NearestGoal(g, grid.Cell{X: 5, Y: 2})
	if !ok {
		t.Fatal("expected a reachable goal")
	}
	if got != (grid.Cell{X: 3, Y: 3}) {
		t.Errorf("nearest = %s, want (3,3)", got)
	}
}

func TestNearestGoal_WallMakesManhattanNeighbourFar(t *testing.T) {
	g := mustGrid(t, 20, 20, wallColumn(10, 0, 18)...)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 11, Y: 0}, {X: 3, Y: 10}})
	got, _ := q.NearestGoal(g, grid.Cell{X: 9, Y: 0})
	if got != (grid.Cell{X: 3, Y: 10}) {
		t.Errorf("nearest = %s, want (3,10)", got)
	}
}

func TestNearestGoal_TieUsesListOrder(t *testing.T) {
	g := mustGrid(t, 10, 10)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 5, Y: 7}, {X: 7, Y: 5}, {X: 3, Y: 5}})
	got, _ := q.NearestGoal(g, grid.Cell{X: 5, Y: 5})
	if got != (grid.Cell{X: 5, Y: 7}) {
		t.Errorf("nearest = %s, want (5,7)", got)
	}
}

func TestNearestGoal_NoneReachable(t *testing.T) {
	g := mustGrid(t, 5, 5, wallColumn(2, 0, 4)...)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 4, Y: 4}, {X: 3, Y: 0}})
	if c, ok := q.NearestGoal(g, grid.Cell{X: 0, Y: 0}); ok {
		t.Errorf("nearest = %s, want none", c)
	}
}

func TestSetGoals_RejectsOutOfBounds(t *testing.T) {
	g := mustGrid(t, 5, 5)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 1, Y: 1}})
	err := q.SetGoals(g, []grid.Cell{{X: 2, Y: 2}, {X: 5, Y: 0}})
	if !errors.Is(err, ErrInvalidGoal) {
		t.Fatalf("err = %v, want ErrInvalidGoal", err)
	}
	if diff := cmp.Diff([]grid.Cell{{X: 1, Y: 1}}, q.Goals()); diff != "" {
		t.Errorf("goals changed on rejected SetGoals (-want +got):\n%s", diff)
	}
}

func TestAdvance_DrivesToGoalThenCompletes(t *testing.T) {
	g := mustGrid(t, 5, 5)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 0, Y: 2}})
	pos := grid.Cell{X: 0, Y: 0}

	adv := q.Advance(g, pos)
	if adv.Status != AdvanceMove || adv.Next != (grid.Cell{X: 0, Y: 1}) || !adv.Replanned {
		t.Fatalf("first advance = %+v", adv)
	}
	pos = adv.Next
	if _, ok := q.Arrive(pos); ok {
		t.Fatal("should not have arrived yet")
	}

	adv = q.Advance(g, pos)
	if adv.Status != AdvanceMove || adv.Next != (grid.Cell{X: 0, Y: 2}) || adv.Replanned {
		t.Fatalf("second advance = %+v", adv)
	}
	pos = adv.Next
	reached, ok := q.Arrive(pos)
	if !ok || reached != (grid.Cell{X: 0, Y: 2}) {
		t.Fatalf("Arrive = %s, %v", reached, ok)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}

	adv = q.Advance(g, pos)
	if adv.Status != AdvanceComplete {
		t.Errorf("status = %s, want complete", adv.Status)
	}
}

func TestAdvance_NearestFirst(t *testing.T) {
	g := mustGrid(t, 5, 5)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 4, Y: 4}, {X: 0, Y: 1}})
	adv := q.Advance(g, grid.Cell{X: 0, Y: 0})
	if adv.Goal != (grid.Cell{X: 0, Y: 1}) {
		t.Errorf("goal = %s, want (0,1)", adv.Goal)
	}
}

func TestAdvance_StartingOnGoal(t *testing.T) {
	g := mustGrid(t, 5, 5)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 0, Y: 0}, {X: 2, Y: 0}})
	adv := q.Advance(g, grid.Cell{X: 0, Y: 0})
	if diff := cmp.Diff([]grid.Cell{{X: 0, Y: 0}}, adv.Reached); diff != "" {
		t.Errorf("reached mismatch (-want +got):\n%s", diff)
	}
	if adv.Status != AdvanceMove || adv.Next != (grid.Cell{X: 1, Y: 0}) {
		t.Errorf("advance = %+v", adv)
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}

func TestAdvance_ReplansAroundNewObstacle(t *testing.T) {
	g := mustGrid(t, 5, 5)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 0, Y: 4}})
	pos := grid.Cell{X: 0, Y: 0}
	adv := q.Advance(g, pos)
	pos = adv.Next

	blocked := grid.Cell{X: 0, Y: 3}
	g.SetObstacles([]grid.Cell{blocked})
	adv = q.Advance(g, pos)
	if !adv.Replanned {
		t.Fatal("expected a replan after the path was blocked")
	}
	rest := append(Path{adv.Next}, q.Active()...)
	if len(rest) != 5 {
		t.Errorf("detour length = %d, want 5", len(rest))
	}
	for _, c := range rest {
		if c == blocked {
			t.Errorf("detour %v runs through %s", rest, blocked)
		}
	}
	checkPath(t, g, pos, grid.Cell{X: 0, Y: 4}, rest)
}

func TestAdvance_ReplansWhenPositionDidNotChange(t *testing.T) {
	g := mustGrid(t, 5, 5)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 0, Y: 3}})
	pos := grid.Cell{X: 0, Y: 0}
	first := q.Advance(g, pos)
	// the move was not accepted, so pos stays put
	again := q.Advance(g, pos)
	if !again.Replanned || again.Next != first.Next {
		t.Errorf("retry advance = %+v, want replan to %s", again, first.Next)
	}
}

func TestAdvance_NoPathKeepsGoals(t *testing.T) {
	g := mustGrid(t, 5, 5, wallColumn(2, 0, 4)...)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 4, Y: 4}})
	adv := q.Advance(g, grid.Cell{X: 0, Y: 0})
	if adv.Status != AdvanceNoPath {
		t.Fatalf("status = %s, want no_path", adv.Status)
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}

func TestAdvance_SkipsUnreachableGoal(t *testing.T) {
	g := mustGrid(t, 6, 6, grid.Cell{X: 4, Y: 5}, grid.Cell{X: 5, Y: 4})
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 5, Y: 5}, {X: 0, Y: 2}})
	adv := q.Advance(g, grid.Cell{X: 0, Y: 0})
	if adv.Status != AdvanceMove || adv.Goal != (grid.Cell{X: 0, Y: 2}) {
		t.Errorf("advance = %+v, want move toward (0,2)", adv)
	}
}

func TestCrossesAndInvalidate(t *testing.T) {
	g := mustGrid(t, 5, 5)
	q := NewGoalQueue()
	q.SetGoals(g, []grid.Cell{{X: 0, Y: 4}})
	q.Advance(g, grid.Cell{X: 0, Y: 0})
	if !q.Crosses([]grid.Cell{{X: 0, Y: 3}}) {
		t.Error("active path should cross (0,3)")
	}
	if q.Crosses([]grid.Cell{{X: 3, Y: 3}}) {
		t.Error("active path should not cross (3,3)")
	}
	q.Invalidate()
	if len(q.Active()) != 0 {
		t.Errorf("active = %v after Invalidate", q.Active())
	}
	if q.Len() != 1 {
		t.Errorf("Invalidate dropped goals: Len = %d", q.Len())
	}
}
