package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	src := Address{Role: RoleControl, Station: "base"}
	dst := Address{Role: RoleRover, Station: "rover-1"}

	start := &MissionStart{
		MissionUUID: "m-123",
		Start:       Point{X: 1, Y: 2},
		Heading:     "right",
		Goals:       []Point{{X: 5, Y: 5}, {X: 3, Y: 9}},
	}
	env, err := NewEnvelope(TypeMissionStart, src, dst, start)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if env.Version != Version {
		t.Errorf("version = %d, want %d", env.Version, Version)
	}
	if env.Src != src {
		t.Errorf("src = %+v, want %+v", env.Src, src)
	}
	if env.ID == "" {
		t.Error("ID should not be empty")
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != TypeMissionStart || decoded.ID != env.ID {
		t.Errorf("decoded = %s/%s, want %s/%s", decoded.Type, decoded.ID, TypeMissionStart, env.ID)
	}

	var got MissionStart
	if err := decoded.DecodePayload(&got); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if diff := cmp.Diff(*start, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestNewReply(t *testing.T) {
	reply, err := NewReply(TypeCommandAck,
		Address{Role: RoleRover, Station: "rover-1"},
		Address{Role: RoleControl},
		"orig-msg-id",
		&CommandAck{Command: TypeMissionStart, Accepted: true},
	)
	if err != nil {
		t.Fatalf("NewReply: %v", err)
	}
	if reply.CorID != "orig-msg-id" {
		t.Errorf("cor = %q, want %q", reply.CorID, "orig-msg-id")
	}
}

func TestExpiry(t *testing.T) {
	env := &Envelope{ExpiresAt: time.Now().UTC().Add(-1 * time.Minute)}
	if !IsExpired(env) {
		t.Error("expected expired envelope to be detected")
	}
	env.ExpiresAt = time.Now().UTC().Add(10 * time.Minute)
	if IsExpired(env) {
		t.Error("expected future-expiry envelope to not be expired")
	}
	env.ExpiresAt = time.Time{}
	if IsExpired(env) {
		t.Error("expected zero-expiry envelope to not be expired")
	}
	if !IsExpiredHeader(&RawHeader{ExpiresAt: time.Now().UTC().Add(-time.Second)}) {
		t.Error("expected expired header to be detected")
	}
}

func TestDefaultTTLFor(t *testing.T) {
	if ttl := DefaultTTLFor(TypeMissionStep); ttl != 2*time.Minute {
		t.Errorf("step TTL = %v, want 2m", ttl)
	}
	if ttl := DefaultTTLFor(TypeMissionCompleted); ttl != 60*time.Minute {
		t.Errorf("completed TTL = %v, want 60m", ttl)
	}
	if ttl := DefaultTTLFor("unknown.type"); ttl != FallbackTTL {
		t.Errorf("unknown TTL = %v, want %v", ttl, FallbackTTL)
	}
}

func encode(t *testing.T, msgType string, dst Address, payload any) []byte {
	t.Helper()
	env, err := NewEnvelope(msgType, Address{Role: RoleControl}, dst, payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestIngestorDispatch(t *testing.T) {
	handler := &testHandler{}
	ing := NewIngestor(handler, nil)

	ing.HandleRaw(encode(t, TypeObstaclesAdd, Address{}, &ObstaclesAdd{Cells: []Point{{X: 4, Y: 2}}}))
	ing.HandleRaw(encode(t, TypeMissionCancel, Address{}, &MissionCancel{Reason: "operator"}))

	if diff := cmp.Diff([]Point{{X: 4, Y: 2}}, handler.obstacles); diff != "" {
		t.Errorf("obstacles mismatch (-want +got):\n%s", diff)
	}
	if handler.cancelReason != "operator" {
		t.Errorf("cancel reason = %q", handler.cancelReason)
	}
}

func TestIngestorFilter(t *testing.T) {
	handler := &testHandler{}
	ing := NewIngestor(handler, StationFilter("rover-1"))

	ing.HandleRaw(encode(t, TypeMissionCancel, Address{Station: "rover-2"}, &MissionCancel{Reason: "a"}))
	if handler.cancelReason != "" {
		t.Error("expected message for another station to be filtered")
	}
	ing.HandleRaw(encode(t, TypeMissionCancel, Address{Station: "*"}, &MissionCancel{Reason: "b"}))
	if handler.cancelReason != "b" {
		t.Errorf("broadcast not delivered: %q", handler.cancelReason)
	}
	ing.HandleRaw(encode(t, TypeMissionCancel, Address{Station: "rover-1"}, &MissionCancel{Reason: "c"}))
	if handler.cancelReason != "c" {
		t.Errorf("direct message not delivered: %q", handler.cancelReason)
	}
}

func TestIngestorDropsExpiredAndFutureVersions(t *testing.T) {
	handler := &testHandler{}
	ing := NewIngestor(handler, nil)

	env, _ := NewEnvelope(TypeMissionCancel, Address{}, Address{}, &MissionCancel{Reason: "late"})
	env.ExpiresAt = time.Now().UTC().Add(-1 * time.Minute)
	data, _ := env.Encode()
	ing.HandleRaw(data)

	env, _ = NewEnvelope(TypeMissionCancel, Address{}, Address{}, &MissionCancel{Reason: "v2"})
	env.Version = Version + 1
	data, _ = env.Encode()
	ing.HandleRaw(data)

	ing.HandleRaw([]byte(`not json`))

	if handler.cancelReason != "" {
		t.Errorf("handler called with %q", handler.cancelReason)
	}
}

func TestWireFormatKeys(t *testing.T) {
	data := encode(t, TypeRoverHeartbeat, Address{}, &RoverHeartbeat{StationID: "r1", Uptime: 60})

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"v", "type", "id", "src", "dst", "ts", "exp", "p"} {
		if _, ok := m[k]; !ok {
			t.Errorf("expected key %q in wire format", k)
		}
	}
	for _, k := range []string{"version", "payload", "timestamp", "expires_at"} {
		if _, ok := m[k]; ok {
			t.Errorf("unexpected long key %q in wire format", k)
		}
	}
}

type testHandler struct {
	NoOpHandler
	obstacles    []Point
	cancelReason string
}

func (h *testHandler) HandleObstaclesAdd(env *Envelope, p *ObstaclesAdd) {
	h.obstacles = append(h.obstacles, p.Cells...)
}

func (h *testHandler) HandleMissionCancel(env *Envelope, p *MissionCancel) {
	h.cancelReason = p.Reason
}
