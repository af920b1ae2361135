// Package rover is a client for the rover simulation HTTP API.
package rover

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"rovernav/reactive"
)

// StartSession opens a new simulation session and keeps its ID for later
// calls.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	data, err := c.post(ctx, "/session/start", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("rover decode session: %w", err)
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("rover: session start returned no session_id")
	}
	c.SetSessionID(resp.SessionID)
	return resp.SessionID, nil
}

func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	q, err := c.sessionQuery()
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, "/rover/status", q)
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("rover decode status: %w", err)
	}
	return parseStatus(raw), nil
}

func (c *Client) GetSensorData(ctx context.Context) (*SensorData, error) {
	q, err := c.sessionQuery()
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, "/rover/sensor-data", q)
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("rover decode sensor data: %w", err)
	}
	return parseSensorData(raw), nil
}

// Move commands one step in dir.
func (c *Client) Move(ctx context.Context, dir reactive.Heading) error {
	if !dir.Valid() {
		return fmt.Errorf("rover: invalid direction %d", int(dir))
	}
	return c.command(ctx, "/rover/move", url.Values{"direction": {dir.String()}})
}

func (c *Client) Stop(ctx context.Context) error {
	return c.command(ctx, "/rover/stop", nil)
}

func (c *Client) Charge(ctx context.Context) error {
	return c.command(ctx, "/rover/charge", nil)
}

func (c *Client) command(ctx context.Context, path string, extra url.Values) error {
	q, err := c.sessionQuery()
	if err != nil {
		return err
	}
	for k, v := range extra {
		q[k] = v
	}
	_, err = c.post(ctx, path, q)
	return err
}
