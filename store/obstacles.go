package store

import (
	"time"

	"rovernav/grid"
)

const (
	ObstacleManual = "manual"
	ObstacleSensor = "sensor"
)

type Obstacle struct {
	ID        int64     `json:"id"`
	MissionID int64     `json:"mission_id"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// AddObstacle records a blocked cell. It reports false when the cell was
// already known for this mission.
func (db *DB) AddObstacle(missionID int64, c grid.Cell, source string) (bool, error) {
	res, err := db.Exec(db.Q(`INSERT INTO obstacles (mission_id, x, y, source) VALUES (?, ?, ?, ?) ON CONFLICT (mission_id, x, y) DO NOTHING`),
		missionID, c.X, c.Y, source)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *DB) ListObstacles(missionID int64) ([]*Obstacle, error) {
	rows, err := db.Query(db.Q(`SELECT id, mission_id, x, y, source, created_at FROM obstacles WHERE mission_id=? ORDER BY id`), missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Obstacle
	for rows.Next() {
		var o Obstacle
		var createdAt any
		if err := rows.Scan(&o.ID, &o.MissionID, &o.X, &o.Y, &o.Source, &createdAt); err != nil {
			return nil, err
		}
		o.CreatedAt = parseTime(createdAt)
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (db *DB) CountObstacles(missionID int64, source string) (int, error) {
	var n int
	err := db.QueryRow(db.Q(`SELECT COUNT(*) FROM obstacles WHERE mission_id=? AND source=?`), missionID, source).Scan(&n)
	return n, err
}
