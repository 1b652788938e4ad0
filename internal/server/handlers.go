package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/diag"
	"github.com/lawnchairsociety/tilefilter/internal/engine"
	"github.com/lawnchairsociety/tilefilter/internal/logger"
	"github.com/lawnchairsociety/tilefilter/internal/longevent"
	"github.com/lawnchairsociety/tilefilter/internal/store"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

const (
	maxBodyBytes    = 1 << 20
	defaultRunLimit = 20
)

var errNoStore = errors.New("no database configured")

type worldResponse struct {
	Name        string  `json:"name"`
	Fingerprint string  `json:"fingerprint"`
	Seed        int64   `json:"seed"`
	Coverage    float64 `json:"coverage"`
	TileCount   int     `json:"tile_count"`
	Prefiltered bool    `json:"prefiltered"`
	Viable      int     `json:"viable"`
	State       string  `json:"state"`
}

type loadWorldRequest struct {
	// Fingerprint loads a stored world; the other fields are ignored.
	Fingerprint string `json:"fingerprint,omitempty"`

	Name        string   `json:"name,omitempty"`
	Seed        int64    `json:"seed"`
	TileCount   int      `json:"tile_count,omitempty"`
	Coverage    *float64 `json:"coverage,omitempty"`
	Settlements *int     `json:"settlements,omitempty"`
}

type filterResponse struct {
	Report *engine.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type tileListResponse struct {
	Total  int   `json:"total"`
	Offset int   `json:"offset"`
	Tiles  []int `json:"tiles"`
}

type tileResponse struct {
	ID         int            `json:"id"`
	TimeZone   int            `json:"time_zone"`
	Settleable bool           `json:"settleable"`
	Tile       world.TileData `json:"tile"`
}

type reportResponse struct {
	Summary  string         `json:"summary,omitempty"`
	Last     *engine.Report `json:"last,omitempty"`
	Messages []diag.Message `json:"messages"`
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps engine and store errors to HTTP status codes.
func statusFor(err error) int {
	var userErr *engine.UserConstraintError
	var perfErr *engine.PreconditionPerformanceError
	var emptyErr *engine.EmptyResultError

	switch {
	case errors.As(err, &userErr):
		return http.StatusBadRequest
	case errors.As(err, &perfErr):
		return http.StatusConflict
	case errors.As(err, &emptyErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrNoWorld), errors.Is(err, engine.ErrNothingFiltered):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNoRandomTile), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNoStore), errors.Is(err, longevent.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

// health handles GET /api/health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"state":       s.engine.State().String(),
		"world":       s.Fingerprint(),
		"clients":     s.hub.Len(),
		"connections": s.connLimiter.Stats(),
	})
}

func (s *Server) worldInfo() (worldResponse, bool) {
	w := s.engine.World()
	if w == nil {
		return worldResponse{}, false
	}
	info := w.Info()
	return worldResponse{
		Name:        info.Name,
		Fingerprint: s.Fingerprint(),
		Seed:        info.Seed,
		Coverage:    info.Coverage,
		TileCount:   w.TileCount(),
		Prefiltered: s.engine.Prefiltered(),
		Viable:      len(s.engine.Viable()),
		State:       s.engine.State().String(),
	}, true
}

// getWorld handles GET /api/world
func (s *Server) getWorld(w http.ResponseWriter, r *http.Request) {
	info, ok := s.worldInfo()
	if !ok {
		respondError(w, http.StatusNotFound, engine.ErrNoWorld.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// loadWorld handles POST /api/world - loads a stored world or generates one
func (s *Server) loadWorld(w http.ResponseWriter, r *http.Request) {
	var req loadWorldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var next *world.World
	if req.Fingerprint != "" {
		if s.store == nil {
			respondError(w, http.StatusServiceUnavailable, errNoStore.Error())
			return
		}
		loaded, err := s.store.LoadWorld(r.Context(), req.Fingerprint)
		if err != nil {
			respondError(w, statusFor(err), err.Error())
			return
		}
		next = loaded
	} else {
		gen := world.DefaultGeneratorConfig(req.Seed)
		if req.Name != "" {
			gen.Name = req.Name
		}
		if req.TileCount > 0 {
			gen.TileCount = req.TileCount
		}
		if req.Coverage != nil {
			if *req.Coverage <= 0 || *req.Coverage > 1 {
				respondError(w, http.StatusBadRequest, "coverage must be in (0, 1]")
				return
			}
			gen.Coverage = *req.Coverage
		}
		if req.Settlements != nil {
			gen.SettlementCount = *req.Settlements
		}
		generated, err := world.Generate(gen)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		next = generated
	}

	if err := s.LoadWorld(r.Context(), next); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	info, _ := s.worldInfo()
	respondJSON(w, http.StatusCreated, info)
}

// listWorlds handles GET /api/worlds
func (s *Server) listWorlds(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, errNoStore.Error())
		return
	}
	worlds, err := s.store.ListWorlds(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, worlds)
}

// deleteWorld handles DELETE /api/worlds/{fingerprint}
func (s *Server) deleteWorld(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, errNoStore.Error())
		return
	}
	fingerprint := chi.URLParam(r, "fingerprint")
	if fingerprint == s.Fingerprint() {
		respondError(w, http.StatusConflict, "cannot delete the loaded world")
		return
	}
	if err := s.store.DeleteWorld(r.Context(), fingerprint); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getOptions handles GET /api/options
func (s *Server) getOptions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Options().Values())
}

// putOptions handles PUT /api/options. The body maps option keys to values;
// unknown keys reject the whole request.
func (s *Server) putOptions(w http.ResponseWriter, r *http.Request) {
	var changes map[config.OptionKey]bool
	if err := decodeJSON(w, r, &changes); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	current := s.engine.Options().Values()
	for key := range changes {
		if _, err := current.Get(key); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	for _, key := range config.OptionKeys {
		value, ok := changes[key]
		if !ok {
			continue
		}
		if err := s.engine.Options().Set(key, value); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, s.engine.Options().Values())
}

// getConstraints handles GET /api/constraints
func (s *Server) getConstraints(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, constraint.FromValues(s.engine.Constraints().Snapshot()))
}

// putConstraints handles PUT /api/constraints. Fields absent from the
// document keep their value.
func (s *Server) putConstraints(w http.ResponseWriter, r *http.Request) {
	var doc constraint.Document
	if err := decodeJSON(w, r, &doc); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := doc.Apply(s.engine.Constraints()); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, constraint.FromValues(s.engine.Constraints().Snapshot()))
}

// resetConstraints handles DELETE /api/constraints
func (s *Server) resetConstraints(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ResetConstraints(); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, constraint.FromValues(s.engine.Constraints().Snapshot()))
}

// filter handles POST /api/filter. A queued pass is waited for, so the
// response always carries the pass's report.
func (s *Server) filter(w http.ResponseWriter, r *http.Request) {
	report, task, err := s.engine.Filter()
	if task != nil {
		err = task.Wait(r.Context())
		report = s.engine.LastRun()
	}

	if err != nil {
		respondJSON(w, statusFor(err), filterResponse{Report: report, Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, filterResponse{Report: report})
}

// getReport handles GET /api/report. ?format=text returns the log as lines.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s.engine.Report().Text()))
		return
	}

	resp := reportResponse{Messages: s.engine.Report().Messages()}
	if last := s.engine.LastRun(); last != nil {
		resp.Last = last
		resp.Summary = last.Summary()
	}
	respondJSON(w, http.StatusOK, resp)
}

// tileList serves one of the engine's tile sets, paged by ?offset= and ?limit=.
func (s *Server) tileList(set func() []int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		ids := set()
		page := []int{}
		if offset < len(ids) {
			page = ids[offset:]
		}
		if limit > 0 && limit < len(page) {
			page = page[:limit]
		}
		respondJSON(w, http.StatusOK, tileListResponse{Total: len(ids), Offset: offset, Tiles: page})
	}
}

// clearMatching handles DELETE /api/tiles/matching
func (s *Server) clearMatching(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearMatchingTiles()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) describeTile(id int) (*tileResponse, error) {
	w := s.engine.World()
	if w == nil {
		return nil, engine.ErrNoWorld
	}
	tile := w.Tile(id)
	if tile == nil {
		return nil, fmt.Errorf("tile %d: %w", id, store.ErrNotFound)
	}
	return &tileResponse{
		ID:         id,
		TimeZone:   tile.TimeZone(),
		Settleable: w.IsValidTileForNewSettlement(id),
		Tile:       world.SerializeTile(tile),
	}, nil
}

// getTile handles GET /api/tiles/{id}
func (s *Server) getTile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tile id")
		return
	}
	tile, err := s.describeTile(id)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tile)
}

// randomTile handles GET /api/tiles/random
func (s *Server) randomTile(w http.ResponseWriter, r *http.Request) {
	id, err := s.engine.RandomFilteredTile()
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	tile, err := s.describeTile(id)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tile)
}

// listRuns handles GET /api/runs. ?world= selects another stored world.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, errNoStore.Error())
		return
	}
	limit, err := queryInt(r, "limit", defaultRunLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	fingerprint := r.URL.Query().Get("world")
	if fingerprint == "" {
		fingerprint = s.Fingerprint()
	}
	if fingerprint == "" {
		respondError(w, statusFor(engine.ErrNoWorld), engine.ErrNoWorld.Error())
		return
	}

	runs, err := s.store.ListRuns(r.Context(), fingerprint, limit)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

// getRun handles GET /api/runs/{id}
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, errNoStore.Error())
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, run)
}
