package livestate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// trailLength caps the visited-cell list per rover.
const trailLength = 500

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func stateKey(station string) string {
	return fmt.Sprintf("rovernav:rover:%s:state", station)
}

func trailKey(station string) string {
	return fmt.Sprintf("rovernav:rover:%s:trail", station)
}

const allRoversKey = "rovernav:rovers"

func (r *RedisStore) SetRoverState(ctx context.Context, rs *RoverState) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, stateKey(rs.StationID), data, 0)
	pipe.SAdd(ctx, allRoversKey, rs.StationID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetRoverState(ctx context.Context, station string) (*RoverState, error) {
	data, err := r.client.Get(ctx, stateKey(station)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rs RoverState
	return &rs, json.Unmarshal(data, &rs)
}

// AppendTrail pushes a visited cell and trims the list to trailLength.
func (r *RedisStore) AppendTrail(ctx context.Context, station string, p TrailPoint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, trailKey(station), data)
	pipe.LTrim(ctx, trailKey(station), -trailLength, -1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetTrail(ctx context.Context, station string) ([]TrailPoint, error) {
	raw, err := r.client.LRange(ctx, trailKey(station), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	points := make([]TrailPoint, 0, len(raw))
	for _, s := range raw {
		var p TrailPoint
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

func (r *RedisStore) ClearTrail(ctx context.Context, station string) error {
	return r.client.Del(ctx, trailKey(station)).Err()
}

func (r *RedisStore) GetAllStations(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, allRoversKey).Result()
}

func (r *RedisStore) RemoveRover(ctx context.Context, station string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, stateKey(station), trailKey(station))
	pipe.SRem(ctx, allRoversKey, station)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	stations, err := r.GetAllStations(ctx)
	if err != nil {
		return err
	}
	for _, s := range stations {
		r.RemoveRover(ctx, s)
	}
	return r.client.Del(ctx, allRoversKey).Err()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
