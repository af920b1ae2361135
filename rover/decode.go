package rover

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"rovernav/grid"
	"rovernav/reactive"
)

// Position is the rover's reported location in simulation units.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Cell rounds p to the nearest grid cell.
func (p Position) Cell() grid.Cell {
	return grid.Cell{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

type Status struct {
	Position     Position `json:"position"`
	HasPosition  bool     `json:"has_position"`
	Battery      float64  `json:"battery"`
	BatteryKnown bool     `json:"battery_known"`
	State        string   `json:"status"`
	// LowBattery is set when any text field of the status mentions a
	// battery problem.
	LowBattery bool           `json:"low_battery"`
	Raw        map[string]any `json:"-"`
}

type SensorData struct {
	Snapshot     reactive.SensorSnapshot `json:"snapshot"`
	Position     Position                `json:"position"`
	HasPosition  bool                    `json:"has_position"`
	Battery      float64                 `json:"battery"`
	BatteryKnown bool                    `json:"battery_known"`
	Raw          map[string]any          `json:"-"`
}

func decodeObject(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return raw, nil
}

func parseStatus(raw map[string]any) *Status {
	s := &Status{Raw: raw}
	s.Position, s.HasPosition = asPosition(raw["position"])
	s.Battery, s.BatteryKnown = asBattery(raw["battery"])
	if v, ok := raw["status"]; ok {
		s.State = fmt.Sprint(v)
	}
	for _, v := range raw {
		text, ok := v.(string)
		if !ok {
			continue
		}
		text = strings.ToLower(text)
		if strings.Contains(text, "low") || strings.Contains(text, "battery") || strings.Contains(text, "intermittent") {
			s.LowBattery = true
		}
	}
	return s
}

// parseSensorData decodes each channel on its own; a channel that is
// missing or has an unexpected shape takes its neutral value.
func parseSensorData(raw map[string]any) *SensorData {
	d := &SensorData{Raw: raw}
	d.Snapshot.RFID = asDetected(raw["rfid"], "tag_detected", "detected", "value")
	d.Snapshot.IR = asDetected(raw["ir"], "reflection", "detected", "value")
	d.Snapshot.Ultrasonic = asUltrasonic(raw["ultrasonic"])
	d.Snapshot.Accel = asAccel(raw["accelerometer"])
	for _, key := range []string{"heading", "direction"} {
		if s, ok := raw[key].(string); ok {
			if h, err := reactive.ParseHeading(s); err == nil {
				d.Snapshot.Heading = h
				break
			}
		}
	}
	d.Snapshot = reactive.Sanitize(d.Snapshot)
	d.Position, d.HasPosition = asPosition(raw["position"])
	d.Battery, d.BatteryKnown = asBattery(raw["battery"])
	return d
}

// asDetected reads a boolean channel that may arrive as a bool, number,
// string or an object carrying one of keys.
func asDetected(v any, keys ...string) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1", "detected":
			return true
		}
	case map[string]any:
		for _, k := range keys {
			if inner, ok := t[k]; ok {
				return asDetected(inner)
			}
		}
	}
	return false
}

// ultrasonicRange is the distance under which a bare numeric reading
// counts as an echo.
const ultrasonicRange = 100

func asUltrasonic(v any) reactive.Ultrasonic {
	switch t := v.(type) {
	case map[string]any:
		dist, _ := asFloat(t["distance"])
		detected := asDetected(t["detection"])
		if d, ok := t["detected"]; ok {
			detected = asDetected(d)
		}
		return reactive.Ultrasonic{Distance: dist, Detected: detected}
	case []any:
		if len(t) < 2 {
			return reactive.Ultrasonic{}
		}
		dist, ok := asFloat(t[0])
		if !ok {
			return reactive.Ultrasonic{}
		}
		return reactive.Ultrasonic{Distance: dist, Detected: asDetected(t[1])}
	case float64:
		return reactive.Ultrasonic{Distance: t, Detected: t < ultrasonicRange}
	}
	return reactive.Ultrasonic{}
}

func asAccel(v any) reactive.Accel {
	switch t := v.(type) {
	case map[string]any:
		x, _ := asFloat(t["x"])
		y, _ := asFloat(t["y"])
		z, _ := asFloat(t["z"])
		return reactive.Accel{X: x, Y: y, Z: z}
	case []any:
		if len(t) < 3 {
			return reactive.Accel{}
		}
		var out [3]float64
		for i := range out {
			f, ok := asFloat(t[i])
			if !ok {
				return reactive.Accel{}
			}
			out[i] = f
		}
		return reactive.Accel{X: out[0], Y: out[1], Z: out[2]}
	}
	return reactive.Accel{}
}

func asPosition(v any) (Position, bool) {
	switch t := v.(type) {
	case map[string]any:
		x, okX := asFloat(t["x"])
		y, okY := asFloat(t["y"])
		if okX && okY {
			return Position{X: x, Y: y}, true
		}
	case []any:
		if len(t) >= 2 {
			x, okX := asFloat(t[0])
			y, okY := asFloat(t[1])
			if okX && okY {
				return Position{X: x, Y: y}, true
			}
		}
	}
	return Position{}, false
}

func asBattery(v any) (float64, bool) {
	if m, ok := v.(map[string]any); ok {
		return asFloat(m["level"])
	}
	return asFloat(v)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(t, "%")), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
