package engine

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rovernav/config"
	"rovernav/grid"
	"rovernav/livestate"
	"rovernav/messaging"
	"rovernav/navigation"
	"rovernav/store"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Rover      RoverAPI
	LiveState  *livestate.Manager
	MsgClient  *messaging.Client // nil when messaging is disabled
	LogFunc    LogFunc
}

type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	rover      RoverAPI
	liveState  *livestate.Manager
	msgClient  *messaging.Client
	nav        *Navigator
	Events     *EventBus
	logFn      LogFunc
	startTime  time.Time

	stopOnce       sync.Once
	stopChan       chan struct{}
	roverConnected atomic.Bool
	msgConnected   atomic.Bool
}

var _ messaging.Commander = (*Engine)(nil)

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		rover:      c.Rover,
		liveState:  c.LiveState,
		msgClient:  c.MsgClient,
		Events:     NewEventBus(),
		logFn:      logFn,
		stopChan:   make(chan struct{}),
		startTime:  time.Now(),
	}
	e.nav = newNavigator(e)
	e.wireEventHandlers()
	return e
}

func (e *Engine) Start() {
	// A mission cannot survive a restart.
	if n, err := e.db.FailInterruptedMissions("interrupted by restart"); err != nil {
		e.logFn("engine: fail interrupted missions: %v", err)
	} else if n > 0 {
		e.logFn("engine: marked %d interrupted missions as failed", n)
	}
	if e.liveState != nil {
		if err := e.liveState.SyncRedisFromSQL(); err != nil {
			e.logFn("engine: livestate sync: %v", err)
		}
	}

	e.checkConnectionStatus()
	go e.connectionHealthLoop()

	e.nav.Start()
	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.nav.Stop()
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB { return e.db }
func (e *Engine) AppConfig() *config.Config { return e.cfg }
func (e *Engine) ConfigPath() string { return e.configPath }
func (e *Engine) LiveState() *livestate.Manager { return e.liveState }
func (e *Engine) MsgClient() *messaging.Client { return e.msgClient }
func (e *Engine) Navigator() *Navigator { return e.nav }
func (e *Engine) RoverConnected() bool { return e.roverConnected.Load() }
func (e *Engine) MessagingConnected() bool { return e.msgConnected.Load() }
func (e *Engine) Uptime() time.Duration { return time.Since(e.startTime) }
func (e *Engine) Snapshot() navigation.Snapshot { return e.nav.Snapshot() }

// StartMission starts a mission on the rover.
func (e *Engine) StartMission(m navigation.Mission, missionUUID, actor string) (*store.Mission, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Rover.Timeout+5*time.Second)
	defer cancel()
	return e.nav.Begin(ctx, m, missionUUID, actor)
}

// CancelMission fails the running mission at its next step.
func (e *Engine) CancelMission(reason, actor string) error {
	if err := e.nav.Cancel(); err != nil {
		return err
	}
	id, _ := e.nav.Current()
	e.logFn("engine: mission %d cancel requested by %s: %s", id, actor, reason)
	if id != 0 {
		e.db.AppendAudit("mission", id, "cancel_requested", "", reason, actor)
	}
	return nil
}

// StepOnce runs a single step outside the loop.
func (e *Engine) StepOnce(ctx context.Context) (navigation.StepResult, error) {
	return e.nav.Step(ctx)
}

func (e *Engine) AddObstacles(cells []grid.Cell, actor string) (int, error) {
	return e.nav.AddObstacles(cells, actor)
}

func (e *Engine) MarkFromSensor(distance, angle float64, actor string) (grid.Cell, bool, error) {
	return e.nav.MarkFromSensor(distance, angle, actor)
}

// CurrentMission returns the latest mission record, or nil before the first.
func (e *Engine) CurrentMission() (*store.Mission, error) {
	id, _ := e.nav.Current()
	if id == 0 {
		return nil, nil
	}
	return e.db.GetMission(id)
}

// StopRover sends an immediate stop outside of any mission step.
func (e *Engine) StopRover(ctx context.Context, actor string) error {
	if err := e.rover.Stop(ctx); err != nil {
		return err
	}
	e.db.AppendAudit("rover", 0, "stop", "", e.rover.SessionID(), actor)
	return nil
}

func (e *Engine) ChargeRover(ctx context.Context, actor string) error {
	if err := e.rover.Charge(ctx); err != nil {
		return err
	}
	e.db.AppendAudit("rover", 0, "charge", "", e.rover.SessionID(), actor)
	return nil
}

type roverReconfigurer interface {
	BaseURL() string
	Reconfigure(baseURL string, timeout time.Duration)
	SetRetry(retries int, backoff time.Duration)
	SetSessionID(id string)
}

// ReconfigureRover applies the rover section of the config to the client.
// Pointing at another simulator drops the old session.
func (e *Engine) ReconfigureRover() {
	rc, ok := e.rover.(roverReconfigurer)
	if !ok {
		return
	}
	e.cfg.RLock()
	rcfg := e.cfg.Rover
	e.cfg.RUnlock()
	if rc.BaseURL() != strings.TrimRight(rcfg.BaseURL, "/") {
		rc.SetSessionID("")
	}
	rc.Reconfigure(rcfg.BaseURL, rcfg.Timeout)
	rc.SetRetry(rcfg.Retries, rcfg.RetryBackoff)
	e.logFn("engine: rover reconfigured (%s)", rcfg.BaseURL)
	e.checkConnectionStatus()
}

// ReconfigureMessaging reconnects messaging with current config.
func (e *Engine) ReconfigureMessaging() {
	if e.msgClient == nil {
		e.logFn("engine: messaging was disabled at startup, restart to enable it")
		return
	}
	if err := e.msgClient.Reconfigure(&e.cfg.Messaging); err != nil {
		e.logFn("engine: messaging reconfigure error: %v", err)
	} else {
		e.logFn("engine: messaging reconfigured")
	}
	e.checkConnectionStatus()
}

// HeartbeatStatus feeds the messaging heartbeater.
func (e *Engine) HeartbeatStatus() (string, string, bool) {
	_, uuid := e.nav.Current()
	return string(e.nav.Snapshot().State), uuid, e.RoverConnected()
}

func (e *Engine) checkConnectionStatus() {
	// Rover
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Rover.Timeout)
	defer cancel()
	if e.rover.SessionID() == "" {
		if _, err := e.rover.StartSession(ctx); err != nil {
			e.setRoverConnected(false, err.Error())
		} else {
			e.setRoverConnected(true, "rover session started")
		}
	} else if _, err := e.rover.GetStatus(ctx); err != nil {
		e.setRoverConnected(false, err.Error())
	} else {
		e.setRoverConnected(true, "rover connected")
	}

	// Messaging
	if e.msgClient == nil {
		return
	}
	if e.msgClient.IsConnected() {
		if !e.msgConnected.Swap(true) {
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else if e.msgConnected.Swap(false) {
		e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
	}
}

func (e *Engine) setRoverConnected(ok bool, detail string) {
	was := e.roverConnected.Swap(ok)
	switch {
	case ok && !was:
		e.Events.Emit(Event{Type: EventRoverConnected, Payload: ConnectionEvent{Detail: detail}})
	case !ok && was:
		e.Events.Emit(Event{Type: EventRoverDisconnected, Payload: ConnectionEvent{Detail: detail}})
	}
}

func (e *Engine) connectionHealthLoop() {
	interval := e.cfg.Rover.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}
