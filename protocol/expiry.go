package protocol

import "time"

// Step telemetry goes stale quickly; mission outcomes and commands live longer.
var defaultTTLs = map[string]time.Duration{
	TypeRoverHeartbeat:  90 * time.Second,
	TypeMissionStep:     2 * time.Minute,
	TypeRoverBatteryLow: 5 * time.Minute,

	TypeMissionStart:  5 * time.Minute,
	TypeMissionCancel: 5 * time.Minute,
	TypeObstaclesAdd:  5 * time.Minute,
	TypeCommandAck:    5 * time.Minute,

	TypeMissionStarted:     30 * time.Minute,
	TypeMissionGoalReached: 30 * time.Minute,
	TypeMissionFailed:      60 * time.Minute,
	TypeMissionCompleted:   60 * time.Minute,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpired returns true if the envelope has passed its expiry time.
func IsExpired(env *Envelope) bool {
	return expired(env.ExpiresAt)
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	return expired(hdr.ExpiresAt)
}

func expired(exp time.Time) bool {
	if exp.IsZero() {
		return false
	}
	return time.Now().UTC().After(exp)
}
