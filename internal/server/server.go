// Package server exposes a filter engine over a REST API and a live
// WebSocket channel.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/engine"
	"github.com/lawnchairsociety/tilefilter/internal/logger"
	"github.com/lawnchairsociety/tilefilter/internal/store"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// recordTimeout bounds writing one run to the history.
const recordTimeout = 5 * time.Second

// Server serves one engine. The store is optional; without it world
// persistence and run history are unavailable.
type Server struct {
	cfg         *config.ServerConfig
	engine      *engine.Engine
	store       *store.Store
	hub         *Hub
	connLimiter *ConnLimiter
	log         *slog.Logger

	worldMu     sync.RWMutex
	fingerprint string

	unsubscribe []func()
}

// New creates a server and subscribes it to the engine's results.
func New(cfg *config.ServerConfig, eng *engine.Engine, st *store.Store) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := logger.Component("server")
	s := &Server{
		cfg:         cfg,
		engine:      eng,
		store:       st,
		hub:         NewHub(log),
		connLimiter: NewConnLimiter(cfg.WebSocket),
		log:         log,
	}

	s.unsubscribe = append(s.unsubscribe,
		eng.OnFiltered(s.onFiltered),
		eng.OnPrefilterDone(s.onPrefilterDone),
	)
	return s
}

// Close disconnects WebSocket clients and detaches from the engine.
func (s *Server) Close() {
	for _, fn := range s.unsubscribe {
		fn()
	}
	s.unsubscribe = nil
	s.hub.Close()
}

// Hub returns the WebSocket client hub
func (s *Server) Hub() *Hub { return s.hub }

// Fingerprint returns the fingerprint of the loaded world, or "".
func (s *Server) Fingerprint() string {
	s.worldMu.RLock()
	defer s.worldMu.RUnlock()
	return s.fingerprint
}

// LoadWorld saves w to the store when there is one, hands it to the engine
// and waits for the prefilter pass.
func (s *Server) LoadWorld(ctx context.Context, w *world.World) error {
	fingerprint := world.Fingerprint(w)
	if s.store != nil {
		if _, err := s.store.SaveWorld(ctx, w); err != nil {
			return fmt.Errorf("failed to save world: %w", err)
		}
	}

	task, err := s.engine.LoadWorld(w)
	if err != nil {
		return fmt.Errorf("failed to load world: %w", err)
	}

	s.worldMu.Lock()
	s.fingerprint = fingerprint
	s.worldMu.Unlock()

	s.log.Info("world ready", "name", w.Info().Name, "fingerprint", fingerprint)
	if task == nil {
		return nil
	}
	return task.Wait(ctx)
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.recovery)

	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Get("/world", s.getWorld)
		r.Post("/world", s.loadWorld)
		r.Get("/worlds", s.listWorlds)
		r.Delete("/worlds/{fingerprint}", s.deleteWorld)

		r.Get("/options", s.getOptions)
		r.Put("/options", s.putOptions)

		r.Get("/constraints", s.getConstraints)
		r.Put("/constraints", s.putConstraints)
		r.Delete("/constraints", s.resetConstraints)

		r.Post("/filter", s.filter)
		r.Get("/report", s.getReport)

		r.Route("/tiles", func(r chi.Router) {
			r.Get("/matching", s.tileList(s.engine.Matching))
			r.Delete("/matching", s.clearMatching)
			r.Get("/viable", s.tileList(s.engine.Viable))
			r.Get("/roads", s.tileList(s.engine.TilesWithRoad))
			r.Get("/rivers", s.tileList(s.engine.TilesWithRiver))
			r.Get("/random", s.randomTile)
			r.Get("/{id}", s.getTile)
		})

		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
	})

	return r
}

func (s *Server) onFiltered(r *engine.Report) {
	s.hub.Broadcast(Event{Type: EventReport, Report: r})
	s.recordRun(r)
}

func (s *Server) onPrefilterDone(viable int) {
	s.hub.Broadcast(Event{Type: EventPrefilter, Viable: &viable})
}

// recordRun appends r to the history of the loaded world.
func (s *Server) recordRun(r *engine.Report) {
	fingerprint := s.Fingerprint()
	if s.store == nil || fingerprint == "" {
		return
	}

	doc := constraint.FromValues(s.engine.Constraints().Snapshot())
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := s.store.RecordRun(ctx, fingerprint, r, doc); err != nil {
		s.log.Error("failed to record filter run", "run", r.ID, "error", err)
	}
}
