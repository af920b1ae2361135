package livestate

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rovernav/config"
	"rovernav/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetWithoutMissions(t *testing.T) {
	m := NewManager(testDB(t), nil, "rover-1")
	rs, err := m.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rs != nil {
		t.Errorf("expected nil state, got %+v", rs)
	}
}

func TestUpdateFallsBackToSQL(t *testing.T) {
	db := testDB(t)
	mission := &store.Mission{Mode: "grid", Heading: "forward", GridWidth: 5, GridHeight: 5}
	if err := db.CreateMission(mission); err != nil {
		t.Fatalf("create mission: %v", err)
	}
	m := NewManager(db, nil, "rover-1")

	battery := 64.0
	db.AppendMissionStep(&store.MissionStep{MissionID: mission.ID, Seq: 1, State: "moving", Moved: true, PosX: 0, PosY: 1, Battery: &battery})
	db.AppendMissionStep(&store.MissionStep{MissionID: mission.ID, Seq: 2, State: "planning", Hold: "battery"})
	db.AppendMissionStep(&store.MissionStep{MissionID: mission.ID, Seq: 3, State: "moving", Moved: true, PosX: 1, PosY: 1, Battery: &battery})

	err := m.Update(&RoverState{MissionID: mission.ID, State: "moving", Mode: "grid", X: 1, Y: 1, Heading: "right", Steps: 3})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	rs, err := m.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rs.Source != "sql" {
		t.Errorf("source = %q, want sql", rs.Source)
	}
	if rs.StationID != "rover-1" || rs.X != 1 || rs.Y != 1 || rs.Heading != "right" || rs.Steps != 3 {
		t.Errorf("state = %+v", rs)
	}
	if rs.Battery == nil || *rs.Battery != 64 {
		t.Errorf("battery = %v, want 64", rs.Battery)
	}

	trail, err := m.Trail(mission.ID)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	want := []TrailPoint{{X: 0, Y: 1, Step: 1}, {X: 1, Y: 1, Step: 3}}
	if diff := cmp.Diff(want, trail); diff != "" {
		t.Errorf("trail mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncWithoutRedis(t *testing.T) {
	m := NewManager(testDB(t), nil, "rover-1")
	if err := m.SyncRedisFromSQL(); err != nil {
		t.Errorf("sync: %v", err)
	}
	m.ResetTrail()
}

func TestKeys(t *testing.T) {
	if got := stateKey("rover-1"); got != "rovernav:rover:rover-1:state" {
		t.Errorf("stateKey = %q", got)
	}
	if got := trailKey("rover-1"); got != "rovernav:rover:rover-1:trail" {
		t.Errorf("trailKey = %q", got)
	}
}
