// Package reactive picks a driving direction straight from sensor readings
// when no map is available.
package reactive

import (
	"log"
	"math"
)

// Ultrasonic is a range reading and whether the sensor reported an echo.
type Ultrasonic struct {
	Distance float64 `json:"distance"`
	Detected bool    `json:"detected"`
}

// Accel is an accelerometer sample.
type Accel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SensorSnapshot is one fused reading of the rover's sensors, taken fresh
// for each decision.
type SensorSnapshot struct {
	RFID       bool       `json:"rfid"`
	IR         bool       `json:"ir"`
	Ultrasonic Ultrasonic `json:"ultrasonic"`
	Accel      Accel      `json:"accel"`
	Heading    Heading    `json:"heading"`
}

// Thresholds are the tunable constants of the rule set.
type Thresholds struct {
	// ReachedDistance is the ultrasonic range at or under which the target
	// counts as reached.
	ReachedDistance float64 `yaml:"reached_distance" json:"reached_distance"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{ReachedDistance: 5}
}

// Resolve returns the next heading for a rover currently driving current,
// or reached=true when the readings say the target is here. The rules are
// evaluated in a fixed order and the first match wins. It never fails: bad
// channels are zeroed and a panic yields Forward.
func Resolve(current Heading, snap SensorSnapshot, th Thresholds) (next Heading, reached bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("reactive: resolve recovered: %v", r)
			next, reached = Forward, false
		}
	}()

	if !current.Valid() {
		current = Forward
	}
	snap = Sanitize(snap)
	limit := th.ReachedDistance
	if math.IsNaN(limit) || limit < 0 {
		limit = DefaultThresholds().ReachedDistance
	}

	us := snap.Ultrasonic
	near := us.Detected && math.Abs(us.Distance) <= limit
	dx, dy := drift(current, snap.Accel)

	switch {
	case snap.RFID && snap.IR && near:
		return Forward, true
	case snap.RFID && !snap.IR:
		return driftHeading(dx, dy), false
	case !snap.RFID && snap.IR:
		if dx > 0 {
			return Right, false
		}
		return Left, false
	case !snap.IR && us.Detected:
		if dy > 0 {
			return Forward, false
		}
		return Backward, false
	case snap.IR && us.Detected:
		if near {
			return Forward, true
		}
		return driftHeading(dx, dy), false
	}
	return driftHeading(dx, dy), false
}

// Sanitize replaces non-finite channel values with the neutral defaults.
// Each channel is handled on its own.
func Sanitize(s SensorSnapshot) SensorSnapshot {
	if !finite(s.Ultrasonic.Distance) {
		s.Ultrasonic = Ultrasonic{}
	}
	if !finite(s.Accel.X) || !finite(s.Accel.Y) || !finite(s.Accel.Z) {
		s.Accel = Accel{}
	}
	if !s.Heading.Valid() {
		s.Heading = Forward
	}
	return s
}

// drift is the measured acceleration minus what a unit-speed rover
// commanded in h should show.
func drift(h Heading, a Accel) (dx, dy float64) {
	dx, dy = a.X, a.Y
	switch h {
	case Right:
		dx--
	case Left:
		dx++
	case Forward:
		dy--
	case Backward:
		dy++
	}
	return dx, dy
}

func driftHeading(dx, dy float64) Heading {
	switch {
	case dx > 0:
		return Right
	case dx < 0:
		return Left
	case dy > 0:
		return Forward
	}
	return Backward
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
