package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Mission struct {
	ID          int64      `json:"id"`
	UUID        string     `json:"uuid"`
	SessionID   string     `json:"session_id"`
	Mode        string     `json:"mode"`
	State       string     `json:"state"`
	StartX      int        `json:"start_x"`
	StartY      int        `json:"start_y"`
	PosX        int        `json:"pos_x"`
	PosY        int        `json:"pos_y"`
	Heading     string     `json:"heading"`
	GridWidth   int        `json:"grid_width"`
	GridHeight  int        `json:"grid_height"`
	Steps       int        `json:"steps"`
	Actor       string     `json:"actor"`
	ErrorDetail string     `json:"error_detail"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal mission states. Anything else counts as in flight.
var terminalStates = []any{"mission_complete", "failed"}

const missionSelectCols = `id, uuid, session_id, mode, state, start_x, start_y, pos_x, pos_y, heading, grid_width, grid_height, steps, actor, error_detail, created_at, updated_at, completed_at`

func scanMission(row interface{ Scan(...any) error }) (*Mission, error) {
	var m Mission
	var createdAt, updatedAt, completedAt any
	err := row.Scan(&m.ID, &m.UUID, &m.SessionID, &m.Mode, &m.State,
		&m.StartX, &m.StartY, &m.PosX, &m.PosY, &m.Heading,
		&m.GridWidth, &m.GridHeight, &m.Steps, &m.Actor, &m.ErrorDetail,
		&createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	m.CompletedAt = parseTimePtr(completedAt)
	return &m, nil
}

func scanMissions(rows *sql.Rows) ([]*Mission, error) {
	var missions []*Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// CreateMission inserts m, assigning a UUID when it has none.
func (db *DB) CreateMission(m *Mission) error {
	if m.UUID == "" {
		m.UUID = uuid.New().String()
	}
	if m.State == "" {
		m.State = "planning"
	}
	if m.Actor == "" {
		m.Actor = "system"
	}
	m.PosX, m.PosY = m.StartX, m.StartY
	id, err := db.insertID(`INSERT INTO missions (uuid, session_id, mode, state, start_x, start_y, pos_x, pos_y, heading, grid_width, grid_height, actor) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UUID, m.SessionID, m.Mode, m.State, m.StartX, m.StartY, m.PosX, m.PosY,
		m.Heading, m.GridWidth, m.GridHeight, m.Actor)
	if err != nil {
		return fmt.Errorf("create mission: %w", err)
	}
	m.ID = id
	return nil
}

func (db *DB) GetMission(id int64) (*Mission, error) {
	row := db.QueryRow(db.Q(`SELECT `+missionSelectCols+` FROM missions WHERE id=?`), id)
	return scanMission(row)
}

func (db *DB) GetMissionByUUID(missionUUID string) (*Mission, error) {
	row := db.QueryRow(db.Q(`SELECT `+missionSelectCols+` FROM missions WHERE uuid=?`), missionUUID)
	return scanMission(row)
}

func (db *DB) ListMissions(limit int) ([]*Mission, error) {
	rows, err := db.Query(db.Q(`SELECT `+missionSelectCols+` FROM missions ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMissions(rows)
}

// ListActiveMissions returns missions that never reached a terminal state.
func (db *DB) ListActiveMissions() ([]*Mission, error) {
	rows, err := db.Query(db.Q(`SELECT `+missionSelectCols+` FROM missions WHERE state NOT IN (?, ?) ORDER BY id`), terminalStates...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMissions(rows)
}

// UpdateMissionProgress records the latest state, pose and step count.
func (db *DB) UpdateMissionProgress(id int64, state, mode string, x, y int, heading string, steps int) error {
	_, err := db.Exec(db.Q(`UPDATE missions SET state=?, mode=?, pos_x=?, pos_y=?, heading=?, steps=?, updated_at=datetime('now','localtime') WHERE id=?`),
		state, mode, x, y, heading, steps, id)
	return err
}

func (db *DB) SetMissionSession(id int64, sessionID string) error {
	_, err := db.Exec(db.Q(`UPDATE missions SET session_id=?, updated_at=datetime('now','localtime') WHERE id=?`), sessionID, id)
	return err
}

// FinishMission moves a mission to a terminal state and stamps completed_at.
func (db *DB) FinishMission(id int64, state, detail string) error {
	_, err := db.Exec(db.Q(`UPDATE missions SET state=?, error_detail=?, updated_at=datetime('now','localtime'), completed_at=datetime('now','localtime') WHERE id=?`),
		state, detail, id)
	return err
}

// FailInterruptedMissions marks every in-flight mission as failed. Called at
// startup; a mission cannot survive a restart.
func (db *DB) FailInterruptedMissions(detail string) (int64, error) {
	res, err := db.Exec(db.Q(`UPDATE missions SET state='failed', error_detail=?, updated_at=datetime('now','localtime'), completed_at=datetime('now','localtime') WHERE state NOT IN (?, ?)`),
		append([]any{detail}, terminalStates...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
