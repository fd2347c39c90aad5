// Package main is the entry point for the Backlot studio server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/infra/cache"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/infra/storage"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/network"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/config"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/metrics"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/random"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/tuning"
)

// studioID keys the single studio this process runs.
const studioID = "STUDIO_1"

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	appLogger := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	appLogger.Info("Initializing Backlot studio server...")

	profile, err := tuning.ByName(cfg.Tuning)
	if err != nil {
		config.Exitf("tuning: %v", err)
	}
	sendBuffer := cfg.ClientBuffer
	if sendBuffer == 0 {
		sendBuffer = profile.ClientSendBuffer
	}
	m := metrics.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Initializing SQLite database " + cfg.DBPath + "...")
	db, err := storage.InitSQLite(cfg.DBPath)
	if err != nil {
		config.Exitf("sqlite: %v", err)
	}
	defer db.Close()
	eventRepo := storage.NewSQLiteEventRepository(db)
	snapRepo := storage.NewSQLiteSnapshotRepository(db)

	if prev, err := snapRepo.Get(ctx, studioID); err != nil {
		appLogger.Warn("Could not read previous snapshot: " + err.Error())
	} else if prev != nil {
		appLogger.Info(fmt.Sprintf("Previous run reached week %d with $%s, starting a fresh studio",
			prev.Week, humanize.Comma(prev.Cash)))
	}

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(storage.NewEventPersister(eventRepo, studioID, m))

	rng, seed, err := random.Source(cfg.Seed)
	if err != nil {
		config.Exitf("seed: %v", err)
	}
	appLogger.With("seed", seed).Info("Simulation RNG seeded")

	appLogger.Info("Bootstrapping Engine Subsystems...")
	studio := engine.NewEngine(engine.Options{
		StartingCash:       cfg.StartingCash,
		StartingReputation: cfg.StartingRep,
		TransactionLogCap:  cfg.TransactionLogCap,
		Roller:             rng,
		Calendar:           engine.FixedCalendar{StartYear: cfg.StartYear},
		Facilities:         engine.BasicLot{MaxProductions: cfg.MaxProductions},
	}, eventLog, appLogger)

	var (
		studioCache *cache.StudioCache
		snapCache   network.SnapshotCache
	)
	if cfg.RedisAddr != "" {
		client, err := cache.NewGoRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, profile.RedisPoolSize)
		if err != nil {
			appLogger.Warn("Redis unavailable, serving snapshots live: " + err.Error())
		} else {
			defer client.Close()
			studioCache = cache.NewStudioCache(client)
			snapCache = studioCache
			appLogger.Info("Snapshot cache connected at " + cfg.RedisAddr)
		}
	}

	appLogger.Info(fmt.Sprintf("Bootstrapping WebSocket Hub (%s profile)...", profile.Name))
	dispatcher := network.NewDispatcher(studio, appLogger, m)
	hub := network.NewHub(dispatcher, sendBuffer, appLogger, m)
	hub.SetMaxClients(profile.MaxClients)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog, profile.EventPollInterval)

	// Weeks closed by a client and by the ticker go through the same hooks.
	saveWeek := func(report engine.WeekReport) {
		if report.Suspended {
			return
		}
		saveSnapshot(ctx, studio, snapRepo, appLogger)
	}
	dispatcher.OnWeek(hub.BroadcastWeek)
	dispatcher.OnWeek(saveWeek)
	dispatcher.OnWeek(func(report engine.WeekReport) {
		if !report.Suspended {
			m.RecordWeek(report.CashAfter, len(report.Crises), len(report.Completed), len(report.Archived), report.Revenue)
		}
	})

	if studioCache != nil {
		go syncCache(ctx, eventLog, studio, studioCache, appLogger)
	}

	if cfg.AutoAdvance {
		ticker := engine.NewTicker(studio, cfg.TickInterval, appLogger, m)
		ticker.OnWeek(hub.BroadcastWeek)
		ticker.OnWeek(saveWeek)
		go ticker.Start(ctx)
	}

	go adviseTuning(ctx, profile, hub, m, appLogger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	network.NewAPI(studioID, studio, dispatcher, eventLog, snapCache, storage.NewReconstructor(eventRepo), appLogger).
		RegisterRoutes(mux)
	mux.HandleFunc("/metrics", m.Handler())
	mux.HandleFunc("/metrics/prometheus", m.PrometheusHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := map[string]interface{}{"status": "ok", "week": studio.Snapshot().Week, "clients": hub.ClientCount()}
		if err := studio.Halted(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			status["status"] = "halted"
			status["error"] = err.Error()
		}
		json.NewEncoder(w).Encode(status)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLogger.Info("Studio server listening on " + cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed: " + err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down studio server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Graceful shutdown failed: " + err.Error())
	}
	saveSnapshot(shutdownCtx, studio, snapRepo, appLogger)
	appLogger.Info("Studio server stopped.")
}

func saveSnapshot(ctx context.Context, studio *engine.Engine, repo *storage.SQLiteSnapshotRepository, log *logger.Logger) {
	snap := studio.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Error("Failed to serialize snapshot: " + err.Error())
		return
	}
	err = repo.Upsert(ctx, storage.StudioSnapshot{
		StudioID: studioID,
		Week:     snap.Week,
		Cash:     snap.Cash,
		Payload:  payload,
	})
	if err != nil {
		log.Error("Failed to save snapshot: " + err.Error())
	}
}

// syncCache refreshes the Redis snapshot whenever the event log grows.
// Subscribers run inside engine calls, so the subscriber only signals.
func syncCache(ctx context.Context, eventLog *events.EventLog, studio *engine.Engine, c *cache.StudioCache, log *logger.Logger) {
	dirty := make(chan struct{}, 1)
	eventLog.Subscribe(func(events.StudioEvent) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})

	store := func() {
		if err := c.Store(ctx, studioID, studio.Snapshot()); err != nil && ctx.Err() == nil {
			log.Warn("Snapshot cache refresh failed: " + err.Error())
		}
	}
	store()
	for {
		select {
		case <-ctx.Done():
			return
		case <-dirty:
			store()
		}
	}
}

// adviseTuning reviews the metrics once a minute and raises the client cap
// when the hub is close to full.
func adviseTuning(ctx context.Context, profile *tuning.Profile, hub *network.Hub, m *metrics.Collector, log *logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rec := tuning.Analyze(profile, m.Snapshot())
			if rec.Empty() {
				continue
			}
			for _, note := range rec.Notes {
				log.Warn("tuning: " + note)
			}
			if rec.RaiseClientCap {
				profile = tuning.Apply(profile, &tuning.Recommendations{RaiseClientCap: true})
				hub.SetMaxClients(profile.MaxClients)
				log.Info(fmt.Sprintf("tuning: client cap raised to %d", profile.MaxClients))
			}
		}
	}
}
