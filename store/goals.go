package store

import (
	"fmt"
	"time"

	"rovernav/grid"
)

const (
	GoalPending     = "pending"
	GoalReached     = "reached"
	GoalUnreachable = "unreachable"
)

type MissionGoal struct {
	ID        int64      `json:"id"`
	MissionID int64      `json:"mission_id"`
	Seq       int        `json:"seq"`
	X         int        `json:"x"`
	Y         int        `json:"y"`
	Status    string     `json:"status"`
	ReachedAt *time.Time `json:"reached_at,omitempty"`
}

// CreateMissionGoals stores goals in the order given.
func (db *DB) CreateMissionGoals(missionID int64, goals []grid.Cell) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for i, g := range goals {
		if _, err := tx.Exec(db.Q(`INSERT INTO mission_goals (mission_id, seq, x, y) VALUES (?, ?, ?, ?)`),
			missionID, i, g.X, g.Y); err != nil {
			return fmt.Errorf("insert goal %s: %w", g, err)
		}
	}
	return tx.Commit()
}

// MarkGoalReached flags the first pending goal at (x, y).
func (db *DB) MarkGoalReached(missionID int64, x, y int) error {
	_, err := db.Exec(db.Q(`UPDATE mission_goals SET status='reached', reached_at=datetime('now','localtime')
		WHERE id = (SELECT MIN(id) FROM mission_goals WHERE mission_id=? AND x=? AND y=? AND status='pending')`),
		missionID, x, y)
	return err
}

// MarkPendingGoals moves every still pending goal of a mission to status.
func (db *DB) MarkPendingGoals(missionID int64, status string) error {
	_, err := db.Exec(db.Q(`UPDATE mission_goals SET status=? WHERE mission_id=? AND status='pending'`), status, missionID)
	return err
}

func (db *DB) ListMissionGoals(missionID int64) ([]*MissionGoal, error) {
	rows, err := db.Query(db.Q(`SELECT id, mission_id, seq, x, y, status, reached_at FROM mission_goals WHERE mission_id=? ORDER BY seq`), missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var goals []*MissionGoal
	for rows.Next() {
		var g MissionGoal
		var reachedAt any
		if err := rows.Scan(&g.ID, &g.MissionID, &g.Seq, &g.X, &g.Y, &g.Status, &reachedAt); err != nil {
			return nil, err
		}
		g.ReachedAt = parseTimePtr(reachedAt)
		goals = append(goals, &g)
	}
	return goals, rows.Err()
}
