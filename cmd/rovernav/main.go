package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"rovernav/config"
	"rovernav/engine"
	"rovernav/livestate"
	"rovernav/messaging"
	"rovernav/rover"
	"rovernav/store"
	"rovernav/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "rovernav.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("rovernav", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("rovernav: database open (%s)", cfg.Database.Driver)

	// Redis (optional live state mirror)
	var redisStore *livestate.RedisStore
	if cfg.Redis.Address != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("rovernav: redis not available (%v), running without cache", err)
		} else {
			log.Printf("rovernav: redis connected (%s)", cfg.Redis.Address)
			redisStore = livestate.NewRedisStore(redisClient)
		}
		cancel()
	}
	liveState := livestate.NewManager(db, redisStore, cfg.Messaging.StationID)

	// Rover simulation API
	roverClient := rover.NewClient(cfg.Rover.BaseURL, cfg.Rover.Timeout)
	roverClient.SetRetry(cfg.Rover.Retries, cfg.Rover.RetryBackoff)

	// Messaging client
	var msgClient *messaging.Client
	if cfg.Messaging.Backend != "" {
		msgClient = messaging.NewClient(&cfg.Messaging)
		if err := msgClient.Connect(); err != nil {
			log.Printf("rovernav: messaging connect failed (%v)", err)
		} else {
			log.Printf("rovernav: messaging connected (%s)", cfg.Messaging.Backend)
		}
		defer msgClient.Close()
	}

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		Rover:      roverClient,
		LiveState:  liveState,
		MsgClient:  msgClient,
	})
	eng.Start()
	defer eng.Stop()

	if msgClient != nil {
		// Inbound commands from the control station
		cmdHandler := messaging.NewCommandHandler(db, eng, cfg.Messaging.StationID, cfg.Messaging.TelemetryTopic)
		ingestor := cmdHandler.Ingestor()
		if err := msgClient.Subscribe(cfg.Messaging.CommandTopic, func(_ string, data []byte) {
			ingestor.HandleRaw(data)
		}); err != nil {
			log.Printf("rovernav: command subscribe failed: %v", err)
		} else {
			log.Printf("rovernav: listening for commands on %s", cfg.Messaging.CommandTopic)
		}

		// Outbound telemetry
		drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
		drainer.Start()
		defer drainer.Stop()

		heartbeater := messaging.NewHeartbeater(msgClient, cfg.Messaging.StationID, cfg.Messaging.TelemetryTopic, eng.HeartbeatStatus)
		heartbeater.Start()
		defer heartbeater.Stop()
	}

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("rovernav: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("rovernav: ready (rover %s)", cfg.Rover.BaseURL)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("rovernav: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	// Leave the rover parked on exit.
	eng.Stop()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Rover.Timeout)
	defer stopCancel()
	if err := roverClient.Stop(stopCtx); err != nil {
		log.Printf("rovernav: stop rover on exit: %v", err)
	}

	log.Printf("rovernav: stopped")
}
