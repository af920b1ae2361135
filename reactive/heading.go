package reactive

import (
	"fmt"
	"strings"

	"rovernav/grid"
)

// Heading is a commanded driving direction. The zero value is Forward.
type Heading int

const (
	Forward Heading = iota
	Backward
	Left
	Right
)

var headingNames = [...]string{"forward", "backward", "left", "right"}

// Valid reports whether h is one of the four headings.
func (h Heading) Valid() bool { return h >= Forward && h <= Right }

// String returns the lowercase name the rover API expects.
func (h Heading) String() string {
	if !h.Valid() {
		return fmt.Sprintf("Heading(%d)", int(h))
	}
	return headingNames[h]
}

// ParseHeading accepts any casing of forward, backward, left or right.
func ParseHeading(s string) (Heading, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range headingNames {
		if s == name {
			return Heading(i), nil
		}
	}
	return Forward, fmt.Errorf("unknown heading %q", s)
}

func (h Heading) MarshalText() ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("invalid heading %d", int(h))
	}
	return []byte(h.String()), nil
}

func (h *Heading) UnmarshalText(b []byte) error {
	v, err := ParseHeading(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// Delta is the one-cell offset a move in h produces.
func (h Heading) Delta() grid.Cell {
	switch h {
	case Backward:
		return grid.Cell{X: 0, Y: -1}
	case Left:
		return grid.Cell{X: -1, Y: 0}
	case Right:
		return grid.Cell{X: 1, Y: 0}
	}
	return grid.Cell{X: 0, Y: 1}
}

// Angle is the sensor bearing of h in degrees, counter-clockwise from +X.
func (h Heading) Angle() float64 {
	switch h {
	case Right:
		return 0
	case Left:
		return 180
	case Backward:
		return 270
	}
	return 90
}

// Toward returns the heading that moves from one cell to an adjacent one.
func Toward(from, to grid.Cell) (Heading, bool) {
	switch (grid.Cell{X: to.X - from.X, Y: to.Y - from.Y}) {
	case grid.Cell{X: 0, Y: 1}:
		return Forward, true
	case grid.Cell{X: 0, Y: -1}:
		return Backward, true
	case grid.Cell{X: -1, Y: 0}:
		return Left, true
	case grid.Cell{X: 1, Y: 0}:
		return Right, true
	}
	return Forward, false
}
