// Package planner finds grid paths and sequences multi-goal missions.
package planner

import (
	"container/heap"

	"rovernav/grid"
)

// Path is the ordered list of cells from the current position (exclusive)
// to the goal (inclusive). An empty path means there is nothing to drive.
type Path []grid.Cell

// neighbours is the fixed expansion order: up, down, left, right.
// Equal-cost ties are broken by insertion order, so this order decides
// which of several shortest paths is returned.
var neighbours = [4]grid.Cell{
	{X: 0, Y: 1},
	{X: 0, Y: -1},
	{X: -1, Y: 0},
	{X: 1, Y: 0},
}

type item struct {
	cell grid.Cell
	cost int
	seq  int
}

type queue []item

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(item)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// Plan runs a uniform-cost search from start to goal over 4-connected free
// cells and stops as soon as goal is popped. It returns an empty path when
// start equals goal, when goal is unreachable, or when either end is
// outside the grid.
func Plan(g *grid.Grid, start, goal grid.Cell) Path {
	if start == goal || !g.InBounds(start) || !g.InBounds(goal) {
		return nil
	}

	dist := map[grid.Cell]int{start: 0}
	prev := make(map[grid.Cell]grid.Cell)
	done := make(map[grid.Cell]bool)

	pq := &queue{}
	seq := 0
	heap.Push(pq, item{cell: start, cost: 0, seq: seq})

	found := false
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(item)
		if done[cur.cell] {
			continue
		}
		done[cur.cell] = true
		if cur.cell == goal {
			found = true
			break
		}
		for _, d := range neighbours {
			next := cur.cell.Add(d)
			if !g.Passable(next) {
				continue
			}
			cost := cur.cost + 1
			if old, seen := dist[next]; seen && cost >= old {
				continue
			}
			dist[next] = cost
			prev[next] = cur.cell
			seq++
			heap.Push(pq, item{cell: next, cost: cost, seq: seq})
		}
	}
	if !found {
		return nil
	}

	path := make(Path, 0, dist[goal])
	for c := goal; c != start; c = prev[c] {
		path = append(path, c)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
