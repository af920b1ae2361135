package livestate

import (
	"context"
	"log"
	"time"

	"rovernav/store"
)

// Manager provides write-through live state: SQL first, then Redis.
// A nil RedisStore runs SQL only.
type Manager struct {
	db      *store.DB
	redis   *RedisStore
	station string
}

func NewManager(db *store.DB, redis *RedisStore, station string) *Manager {
	return &Manager{db: db, redis: redis, station: station}
}

func (m *Manager) Station() string { return m.station }

// Update persists mission progress and mirrors it to Redis.
func (m *Manager) Update(rs *RoverState) error {
	rs.StationID = m.station
	if rs.MissionID != 0 {
		if err := m.db.UpdateMissionProgress(rs.MissionID, rs.State, rs.Mode, rs.X, rs.Y, rs.Heading, rs.Steps); err != nil {
			return err
		}
	}
	if m.redis == nil {
		return nil
	}
	ctx := context.Background()
	rs.UpdatedAt = time.Now()
	if err := m.redis.SetRoverState(ctx, rs); err != nil {
		log.Printf("livestate: redis set %s: %v", m.station, err)
		return nil
	}
	if err := m.redis.AppendTrail(ctx, m.station, TrailPoint{X: rs.X, Y: rs.Y, Step: rs.Steps}); err != nil {
		log.Printf("livestate: redis trail %s: %v", m.station, err)
	}
	return nil
}

// ResetTrail starts a fresh trail for a new mission.
func (m *Manager) ResetTrail() {
	if m.redis == nil {
		return
	}
	if err := m.redis.ClearTrail(context.Background(), m.station); err != nil {
		log.Printf("livestate: clear trail %s: %v", m.station, err)
	}
}

// Get reads the live state from Redis, falls back to the newest mission in SQL.
// Returns nil when nothing is known yet.
func (m *Manager) Get() (*RoverState, error) {
	if m.redis != nil {
		rs, err := m.redis.GetRoverState(context.Background(), m.station)
		if err == nil && rs != nil {
			rs.Source = "redis"
			return rs, nil
		}
	}
	return m.getFromSQL()
}

// Trail returns the visited cells of the current mission. SQL has no trail,
// so without Redis it is derived from the recorded steps.
func (m *Manager) Trail(missionID int64) ([]TrailPoint, error) {
	if m.redis != nil {
		points, err := m.redis.GetTrail(context.Background(), m.station)
		if err == nil && len(points) > 0 {
			return points, nil
		}
	}
	if missionID == 0 {
		return nil, nil
	}
	steps, err := m.db.ListMissionSteps(missionID, trailLength)
	if err != nil {
		return nil, err
	}
	points := make([]TrailPoint, 0, len(steps))
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if !s.Moved {
			continue
		}
		points = append(points, TrailPoint{X: s.PosX, Y: s.PosY, Step: s.Seq})
	}
	return points, nil
}

// SyncRedisFromSQL rebuilds the Redis state from the newest mission. Called on startup.
func (m *Manager) SyncRedisFromSQL() error {
	if m.redis == nil {
		return nil
	}
	ctx := context.Background()
	if err := m.redis.FlushAll(ctx); err != nil {
		return err
	}
	rs, err := m.getFromSQL()
	if err != nil {
		return err
	}
	if rs == nil {
		log.Printf("livestate: no missions to sync")
		return nil
	}
	if err := m.redis.SetRoverState(ctx, rs); err != nil {
		return err
	}
	log.Printf("livestate: synced mission %d to redis", rs.MissionID)
	return nil
}

func (m *Manager) getFromSQL() (*RoverState, error) {
	missions, err := m.db.ListMissions(1)
	if err != nil {
		return nil, err
	}
	if len(missions) == 0 {
		return nil, nil
	}
	mi := missions[0]
	rs := &RoverState{
		StationID:   m.station,
		MissionID:   mi.ID,
		MissionUUID: mi.UUID,
		State:       mi.State,
		Mode:        mi.Mode,
		X:           mi.PosX,
		Y:           mi.PosY,
		Heading:     mi.Heading,
		Steps:       mi.Steps,
		UpdatedAt:   mi.UpdatedAt,
		Source:      "sql",
	}
	steps, err := m.db.ListMissionSteps(mi.ID, 1)
	if err == nil && len(steps) > 0 {
		rs.Battery = steps[0].Battery
	}
	return rs, nil
}
