package store

import (
	"database/sql"
	"time"

	"rovernav/grid"
)

type MissionStep struct {
	ID        int64      `json:"id"`
	MissionID int64      `json:"mission_id"`
	Seq       int        `json:"seq"`
	State     string     `json:"state"`
	Mode      string     `json:"mode"`
	Direction string     `json:"direction"`
	Moved     bool       `json:"moved"`
	PosX      int        `json:"pos_x"`
	PosY      int        `json:"pos_y"`
	Target    *grid.Cell `json:"target,omitempty"`
	Battery   *float64   `json:"battery,omitempty"`
	Hold      string     `json:"hold,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (db *DB) AppendMissionStep(s *MissionStep) error {
	var battery, targetX, targetY any
	if s.Battery != nil {
		battery = *s.Battery
	}
	if s.Target != nil {
		targetX, targetY = s.Target.X, s.Target.Y
	}
	id, err := db.insertID(`INSERT INTO mission_steps (mission_id, seq, state, mode, direction, moved, pos_x, pos_y, target_x, target_y, battery, hold, detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.MissionID, s.Seq, s.State, s.Mode, s.Direction, s.Moved, s.PosX, s.PosY, targetX, targetY, battery, s.Hold, s.Detail)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// ListMissionSteps returns the newest steps first.
func (db *DB) ListMissionSteps(missionID int64, limit int) ([]*MissionStep, error) {
	rows, err := db.Query(db.Q(`SELECT id, mission_id, seq, state, mode, direction, moved, pos_x, pos_y, target_x, target_y, battery, hold, detail, created_at
		FROM mission_steps WHERE mission_id=? ORDER BY seq DESC, id DESC LIMIT ?`), missionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var steps []*MissionStep
	for rows.Next() {
		var s MissionStep
		var battery sql.NullFloat64
		var targetX, targetY sql.NullInt64
		var createdAt any
		if err := rows.Scan(&s.ID, &s.MissionID, &s.Seq, &s.State, &s.Mode, &s.Direction, &s.Moved,
			&s.PosX, &s.PosY, &targetX, &targetY, &battery, &s.Hold, &s.Detail, &createdAt); err != nil {
			return nil, err
		}
		if battery.Valid {
			s.Battery = &battery.Float64
		}
		if targetX.Valid && targetY.Valid {
			s.Target = &grid.Cell{X: int(targetX.Int64), Y: int(targetY.Int64)}
		}
		s.CreatedAt = parseTime(createdAt)
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}
