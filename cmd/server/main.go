package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"mmo-avatar/internal/api"
	"mmo-avatar/internal/config"
	"mmo-avatar/internal/content"
	"mmo-avatar/internal/game"
	"mmo-avatar/internal/logging"
	"mmo-avatar/internal/persist"
	"mmo-avatar/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file from parent directory
	envErr := godotenv.Load("../.env")
	if envErr != nil {
		// Try current directory as fallback
		envErr = godotenv.Load(".env")
	}

	appConfig, err := config.Load()
	if err != nil {
		return err
	}

	log, syncLog, err := logging.New(appConfig.Logging)
	if err != nil {
		return err
	}
	defer syncLog()
	if envErr != nil {
		log.Info("no .env file found, using environment variables only")
	}

	catalog, zone, err := loadContent(appConfig.Content)
	if err != nil {
		return err
	}
	log.Info("content loaded",
		zap.String("zone", zone.Map().Name),
		zap.Int("skills", len(catalog.Skills())),
		zap.Int("monsterSpawns", len(zone.Map().Monsters)))

	ctx := context.Background()
	if dir := filepath.Dir(appConfig.Persistence.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := persist.Open(ctx, appConfig.Persistence.Path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	journal := game.NewJournal(log.Named("journal"))
	if err := journal.Start(appConfig.Content.JournalPath); err != nil {
		log.Warn("journal file disabled", zap.String("path", appConfig.Content.JournalPath), zap.Error(err))
		journal.Start("")
	}
	defer journal.Stop()

	// The hub is the engine's outbox and the engine is the hub's session
	// backend; bind after both exist.
	hub := api.NewHub(appConfig.Server, appConfig.RateLimit, log)
	engine, err := game.NewEngine(engineConfig(appConfig), game.Deps{
		Zone:    zone,
		Catalog: catalog,
		Store:   store,
		Outbox:  hub,
		Metrics: api.PromMetrics{},
		Journal: journal,
		Log:     log,
	})
	if err != nil {
		return err
	}
	hub.Bind(engine)

	var debugServer *http.Server
	if appConfig.Observability.Enabled {
		debugServer = api.NewDebugServer(appConfig.Observability, log.Named("debug"))
		api.StartDebugServer(debugServer, log.Named("debug"))
	}

	server := api.NewServer(engine, hub, store, appConfig, log)

	engine.Start()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info("server ready", zap.Int("port", appConfig.Server.Port))
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.Stringer("signal", sig))
	case err := <-serveErr:
		log.Error("api server stopped", zap.Error(err))
	}

	// Sessions leave the engine as they close; the engine then saves
	// everyone still online before the store closes.
	shutdownCtx, cancel := context.WithTimeout(ctx, appConfig.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("api shutdown", zap.Error(err))
	}
	engine.Stop()
	if debugServer != nil {
		debugServer.Shutdown(shutdownCtx)
	}
	log.Info("goodbye")
	return nil
}

// loadContent reads the catalog and map, falling back to the built-in
// ones when no path is configured.
func loadContent(cfg config.ContentConfig) (*content.Catalog, *world.Zone, error) {
	var (
		catalog *content.Catalog
		err     error
	)
	if cfg.CatalogPath != "" {
		catalog, err = content.Load(cfg.CatalogPath)
	} else {
		catalog, err = content.Default()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}

	var zone *world.Zone
	if cfg.MapPath != "" {
		m, err := world.LoadMap(cfg.MapPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load map: %w", err)
		}
		zone, err = world.NewZone(m)
		if err != nil {
			return nil, nil, fmt.Errorf("build zone: %w", err)
		}
	} else {
		zone, err = world.Default()
		if err != nil {
			return nil, nil, fmt.Errorf("load default zone: %w", err)
		}
	}
	return catalog, zone, nil
}

func engineConfig(c config.AppConfig) game.Config {
	sim := c.Simulation
	rules := game.DefaultRules()
	rules.TickInterval = sim.TickInterval()
	rules.SyncInterval = sim.SyncInterval
	rules.InteractionRange = sim.InteractionRange
	rules.DeathExperienceLoss = sim.DeathExperienceLoss
	rules.RespawnHealthFraction = sim.RespawnHealthFraction
	rules.RiskyActionCooldown = sim.RiskyActionCooldown
	rules.MaxLevelDifference = sim.MaxLevelDifference
	rules.PartyExperienceBonus = sim.PartyExperienceBonus
	rules.TradeSlots = sim.TradeSlots
	rules.RecipeSize = sim.RecipeSize

	return game.Config{
		Rules: rules,
		Limits: game.ResourceLimits{
			MaxAvatars: sim.MaxAvatars,
			InboxSize:  sim.InboxSize,
			MaxName:    sim.MaxNameLength,
		},
		AutosaveInterval: c.Persistence.AutosaveInterval,
		SaveTimeout:      c.Persistence.SaveTimeout,
		Seed:             sim.Seed,
	}
}
