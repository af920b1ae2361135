package planner

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rovernav/grid"
)

func mustGrid(t *testing.T, w, h int, obstacles ...grid.Cell) *grid.Grid {
	t.Helper()
	g, err := grid.New(w, h)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	g.SetObstacles(obstacles)
	return g
}

// bfs is the oracle: unweighted shortest distance over the same
// connectivity, -1 when unreachable.
func bfs(g *grid.Grid, start, goal grid.Cell) int {
	dist := map[grid.Cell]int{start: 0}
	frontier := []grid.Cell{start}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur == goal {
			return dist[cur]
		}
		for _, d := range neighbours {
			n := cur.Add(d)
			if _, seen := dist[n]; seen || !g.Passable(n) {
				continue
			}
			dist[n] = dist[cur] + 1
			frontier = append(frontier, n)
		}
	}
	return -1
}

func checkPath(t *testing.T, g *grid.Grid, start, goal grid.Cell, p Path) {
	t.Helper()
	prev := start
	for i, c := range p {
		if !prev.Adjacent(c) {
			t.Fatalf("step %d: %s is not adjacent to %s", i, c, prev)
		}
		if !g.Passable(c) {
			t.Fatalf("step %d: %s is not free", i, c)
		}
		prev = c
	}
	if len(p) > 0 && p[len(p)-1] != goal {
		t.Fatalf("path ends at %s, want %s", p[len(p)-1], goal)
	}
}

func TestPlan_StartEqualsGoal(t *testing.T) {
	g := mustGrid(t, 5, 5)
	if p := Plan(g, grid.Cell{X: 2, Y: 2}, grid.Cell{X: 2, Y: 2}); len(p) != 0 {
		t.Errorf("path = %v, want empty", p)
	}
}

func TestPlan_TieBreakOrder(t *testing.T) {
	g := mustGrid(t, 3, 3)
	got := Plan(g, grid.Cell{X: 0, Y: 0}, grid.Cell{X: 1, Y: 1})
	want := Path{{X: 0, Y: 1}, {X: 1, Y: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	g := mustGrid(t, 12, 12, grid.Cell{X: 4, Y: 4}, grid.Cell{X: 5, Y: 4}, grid.Cell{X: 6, Y: 4})
	start, goal := grid.Cell{X: 1, Y: 1}, grid.Cell{X: 10, Y: 9}
	first := Plan(g, start, goal)
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, Plan(g, start, goal)); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
}

func TestPlan_WalledOffGoal(t *testing.T) {
	goal := grid.Cell{X: 5, Y: 5}
	g := mustGrid(t, 10, 10,
		grid.Cell{X: 5, Y: 6}, grid.Cell{X: 5, Y: 4},
		grid.Cell{X: 4, Y: 5}, grid.Cell{X: 6, Y: 5})
	if p := Plan(g, grid.Cell{X: 0, Y: 0}, goal); len(p) != 0 {
		t.Errorf("path = %v, want empty", p)
	}
}

func TestPlan_GoalIsObstacle(t *testing.T) {
	g := mustGrid(t, 4, 4, grid.Cell{X: 3, Y: 3})
	if p := Plan(g, grid.Cell{X: 0, Y: 0}, grid.Cell{X: 3, Y: 3}); len(p) != 0 {
		t.Errorf("path = %v, want empty", p)
	}
}

func TestPlan_OutOfBoundsEnds(t *testing.T) {
	g := mustGrid(t, 4, 4)
	if p := Plan(g, grid.Cell{X: 0, Y: 0}, grid.Cell{X: 7, Y: 0}); len(p) != 0 {
		t.Errorf("path = %v, want empty", p)
	}
	if p := Plan(g, grid.Cell{X: -1, Y: 0}, grid.Cell{X: 2, Y: 2}); len(p) != 0 {
		t.Errorf("path = %v, want empty", p)
	}
}

func TestPlan_MatchesBFSOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		w, h := 4+rng.Intn(12), 4+rng.Intn(12)
		g := mustGrid(t, w, h)
		var obs []grid.Cell
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if rng.Float64() < 0.3 {
					obs = append(obs, grid.Cell{X: x, Y: y})
				}
			}
		}
		g.SetObstacles(obs)
		start := grid.Cell{X: rng.Intn(w), Y: rng.Intn(h)}
		goal := grid.Cell{X: rng.Intn(w), Y: rng.Intn(h)}

		p := Plan(g, start, goal)
		want := -1
		if g.Passable(goal) || start == goal {
			want = bfs(g, start, goal)
		}
		switch {
		case start == goal:
			if len(p) != 0 {
				t.Fatalf("trial %d: start==goal gave %v", trial, p)
			}
		case want < 0:
			if len(p) != 0 {
				t.Fatalf("trial %d: unreachable %s->%s gave %v", trial, start, goal, p)
			}
		default:
			if len(p) != want {
				t.Fatalf("trial %d: %s->%s len = %d, want %d", trial, start, goal, len(p), want)
			}
			checkPath(t, g, start, goal, p)
		}
	}
}
