package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/diag"
	"github.com/lawnchairsociety/tilefilter/internal/engine"
	"github.com/lawnchairsociety/tilefilter/internal/logger"
	"github.com/lawnchairsociety/tilefilter/internal/longevent"
	"github.com/lawnchairsociety/tilefilter/internal/server"
	"github.com/lawnchairsociety/tilefilter/internal/store"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

func main() {
	configFile := flag.String("config", "data/tilefilterd.yaml", "Path to server configuration file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging configuration file")
	addr := flag.String("addr", "", "Listen address (overrides http.address)")
	worldFile := flag.String("world", "", "World YAML file to load at startup (overrides world.path)")
	fingerprint := flag.String("fingerprint", "", "Stored world to load at startup (overrides world.fingerprint)")
	flag.Parse()

	// Initialize logging first
	logConfig, err := logger.LoadConfig(*loggingConfig)
	if err != nil {
		log.Printf("Failed to load logging config, using defaults: %v", err)
	}
	if err := logger.Initialize(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Warning("Failed to load server config, using defaults", "path", *configFile, "error", err)
		cfg = config.DefaultConfig()
	}
	if *addr != "" {
		cfg.HTTP.Address = *addr
	}
	if *worldFile != "" {
		cfg.World.Path = *worldFile
	}
	if *fingerprint != "" {
		cfg.World.Fingerprint = *fingerprint
	}

	logger.Info("Starting tile filter daemon", "address", cfg.HTTP.Address)

	var st *store.Store
	if cfg.Database.Enabled() {
		st, err = store.Open(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer st.Close()
		logger.Info("Database opened", "driver", cfg.Database.Driver)
	} else {
		logger.Info("Database disabled, world persistence and run history unavailable")
	}

	if len(cfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if len(cfg.WebSocket.AllowedOrigins) == 1 && cfg.WebSocket.AllowedOrigins[0] == "*" {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", cfg.WebSocket.AllowedOrigins)
	}

	queue := longevent.NewQueue()
	queue.Start()

	eng := engine.New(engine.Deps{
		Options: config.NewOptions(cfg.Filter.FilterOptions),
		Queue:   queue,
		Seed:    cfg.Filter.RandomSeed,
		Sink:    diag.LoggerSink{Logger: logger.Component("filter")},
	})
	defer eng.Close()

	srv := server.New(cfg, eng, st)
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := initialWorld(ctx, cfg.World, st)
	if err != nil {
		log.Fatalf("Failed to prepare world: %v", err)
	}
	if err := srv.LoadWorld(ctx, w); err != nil {
		log.Fatalf("Failed to load world: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		srv.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	logger.Info("Tile filter daemon running", "address", cfg.HTTP.Address)
	logger.Info("Press Ctrl+C to shutdown")

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// initialWorld reads the configured world file, loads the configured stored
// world, or generates one.
func initialWorld(ctx context.Context, cfg config.WorldConfig, st *store.Store) (*world.World, error) {
	switch {
	case cfg.Path != "":
		logger.Info("Loading world from file", "path", cfg.Path)
		return world.LoadFromYAML(cfg.Path)
	case cfg.Fingerprint != "":
		if st == nil {
			return nil, fmt.Errorf("world %s requested but the database is disabled", cfg.Fingerprint)
		}
		logger.Info("Loading world from database", "fingerprint", cfg.Fingerprint)
		return st.LoadWorld(ctx, cfg.Fingerprint)
	default:
		gen := world.DefaultGeneratorConfig(cfg.Seed)
		gen.TileCount = cfg.TileCount
		gen.Coverage = cfg.Coverage
		logger.Info("Generating world", "seed", gen.Seed, "tiles", gen.TileCount, "coverage", gen.Coverage)
		return world.Generate(gen)
	}
}
