// Package grid holds the occupancy map the planner searches.
package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidDimensions    = errors.New("grid: invalid dimensions")
	ErrOutOfBounds          = errors.New("grid: cell out of bounds")
	ErrInvalidSensorReading = errors.New("grid: invalid sensor reading")
)

// State is the occupancy of a single cell.
type State uint8

const (
	Free State = iota
	Obstacle
)

// Cell is an integer grid coordinate. Forward is +Y and Right is +X.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Add returns c offset by d.
func (c Cell) Add(d Cell) Cell { return Cell{X: c.X + d.X, Y: c.Y + d.Y} }

// Adjacent reports whether o is one 4-connected step away from c.
func (c Cell) Adjacent(o Cell) bool {
	dx, dy := c.X-o.X, c.Y-o.Y
	return dx*dx+dy*dy == 1
}

// Grid is a fixed-size occupancy grid stored row-major.
type Grid struct {
	width  int
	height int
	cells  []State
}

// MaxCells bounds the size of any grid New will allocate.
const MaxCells = 1 << 24

// New returns a width x height grid with every cell free.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 || width > MaxCells/height {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]State, width*height),
	}, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// InBounds reports whether c lies inside the grid.
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < g.width && c.Y >= 0 && c.Y < g.height
}

func (g *Grid) index(c Cell) int { return c.Y*g.width + c.X }

// IsFree reports whether (x, y) is free. Coordinates outside the grid are an error.
func (g *Grid) IsFree(x, y int) (bool, error) {
	c := Cell{X: x, Y: y}
	if !g.InBounds(c) {
		return false, fmt.Errorf("%w: %s in %dx%d", ErrOutOfBounds, c, g.width, g.height)
	}
	return g.cells[g.index(c)] == Free, nil
}

// Passable is IsFree for callers that have already bounds-checked, or that
// treat out-of-range cells as walls.
func (g *Grid) Passable(c Cell) bool {
	return g.InBounds(c) && g.cells[g.index(c)] == Free
}

// SetObstacles marks every in-bounds cell as an obstacle. Out-of-bounds
// cells are skipped so noisy sensor-derived coordinates can be passed
// straight through. Returns the number of cells that changed.
func (g *Grid) SetObstacles(cells []Cell) int {
	marked := 0
	for _, c := range cells {
		if !g.InBounds(c) {
			continue
		}
		i := g.index(c)
		if g.cells[i] != Obstacle {
			g.cells[i] = Obstacle
			marked++
		}
	}
	return marked
}

// Project computes the cell a reading of distance at angleDegrees lands on
// from origin, rounded to the nearest cell.
func Project(originX, originY int, distance, angleDegrees float64) (Cell, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance < 0 {
		return Cell{}, fmt.Errorf("%w: distance %v", ErrInvalidSensorReading, distance)
	}
	if math.IsNaN(angleDegrees) || math.IsInf(angleDegrees, 0) {
		return Cell{}, fmt.Errorf("%w: angle %v", ErrInvalidSensorReading, angleDegrees)
	}
	theta := angleDegrees * math.Pi / 180
	return Cell{
		X: int(math.Round(float64(originX) + distance*math.Cos(theta))),
		Y: int(math.Round(float64(originY) + distance*math.Sin(theta))),
	}, nil
}

// MarkFromSensor projects a range reading from origin and marks the cell it
// hits. A projection that leaves the grid is a no-op. The projected cell is
// returned along with whether it was inside the grid and marked.
func (g *Grid) MarkFromSensor(originX, originY int, distance, angleDegrees float64) (Cell, bool, error) {
	c, err := Project(originX, originY, distance, angleDegrees)
	if err != nil {
		return Cell{}, false, err
	}
	if !g.InBounds(c) {
		return c, false, nil
	}
	g.cells[g.index(c)] = Obstacle
	return c, true, nil
}

// Obstacles lists obstacle cells in row-major order.
func (g *Grid) Obstacles() []Cell {
	var out []Cell
	for i, s := range g.cells {
		if s == Obstacle {
			out = append(out, Cell{X: i % g.width, Y: i / g.width})
		}
	}
	return out
}
