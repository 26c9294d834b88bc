// Package api provides the HTTP API for browsing stored tiles and running
// pipelines.
// GET endpoints are public (read-only).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/terrasmith/internal/export"
	"github.com/talgya/terrasmith/internal/heightmap"
	"github.com/talgya/terrasmith/internal/noise"
	"github.com/talgya/terrasmith/internal/persistence"
	"github.com/talgya/terrasmith/internal/pipeline"
	"github.com/talgya/terrasmith/internal/terrain"
)

const maxPipelineBody = 1 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Events are public; the stream carries no credentials.
	},
}

// Server serves stored tiles and pipeline runs over HTTP.
type Server struct {
	DB       *persistence.DB
	Runner   *pipeline.Runner
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	hub             *Hub
	pipelineLimiter *RateLimiter
	started         time.Time
}

// New creates a Server and subscribes its event hub to the runner.
func New(db *persistence.DB, runner *pipeline.Runner, port int, adminKey string) *Server {
	s := &Server{
		DB:              db,
		Runner:          runner,
		Port:            port,
		AdminKey:        adminKey,
		hub:             NewHub(),
		pipelineLimiter: NewRateLimiter(30, time.Hour),
		started:         time.Now(),
	}

	prev := runner.OnEvent
	runner.OnEvent = func(e pipeline.Event) {
		if prev != nil {
			prev(e)
		}
		s.hub.Broadcast(e)
	}
	return s
}

// Hub returns the server's event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/tiles", s.handleTiles)
	mux.HandleFunc("/api/v1/tile/", s.handleTileRoutes)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/pipeline", postOnly(s.adminOnly(RateLimitMiddleware(s.pipelineLimiter, s.handlePipeline))))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// postOnly rejects other methods before auth or rate limiting run.
func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no TERRASMITH_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":           "terrasmith",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"running":        s.Runner.Running(),
		"stream_clients": s.hub.Count(),
	}
	if tiles, err := s.DB.ListTiles(r.Context()); err == nil {
		status["tiles"] = len(tiles)
	}
	if runs, err := s.DB.RecentRuns(r.Context(), 1); err == nil && len(runs) > 0 {
		status["last_run"] = runSummary(runs[0])
	}
	writeJSON(w, status)
}

func (s *Server) handleTiles(w http.ResponseWriter, r *http.Request) {
	tiles, err := s.DB.ListTiles(r.Context())
	if err != nil {
		slog.Error("list tiles", "error", err)
		http.Error(w, "failed to list tiles", http.StatusInternalServerError)
		return
	}
	if tiles == nil {
		tiles = []persistence.TileInfo{}
	}
	writeJSON(w, tiles)
}

// handleTileRoutes dispatches /api/v1/tile/:name, /api/v1/tile/:name/image,
// and /api/v1/tile/:name/splat.
func (s *Server) handleTileRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/tile/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}

	tile, err := s.DB.LoadTile(r.Context(), parts[0])
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "tile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load tile", "tile", parts[0], "error", err)
		http.Error(w, "failed to load tile", http.StatusInternalServerError)
		return
	}

	if len(parts) == 1 {
		s.handleTileDetail(w, r, tile)
		return
	}
	switch parts[1] {
	case "image":
		s.handleTileImage(w, r, tile)
	case "splat":
		s.handleTileSplat(w, r, tile)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleTileDetail(w http.ResponseWriter, r *http.Request, t *persistence.Tile) {
	detail := map[string]any{
		"id":         t.ID,
		"name":       t.Name,
		"x":          t.X,
		"z":          t.Z,
		"size":       t.Size,
		"stats":      t.Grid.Stats(),
		"updated_at": t.UpdatedAt,
	}
	if r.URL.Query().Get("heights") != "false" {
		detail["heights"] = t.Grid.Rows()
	}
	writeJSON(w, detail)
}

func (s *Server) handleTileImage(w http.ResponseWriter, r *http.Request, t *persistence.Tile) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", t.Name+"."+string(format)))
	if err := export.Write(w, t.Grid, format); err != nil {
		slog.Error("write tile image", "tile", t.Name, "error", err)
	}
}

// splatBands is the texture layering reported by the splat endpoint.
var splatBands = []terrain.SplatLayer{
	{Name: "sand", MinHeight: 0, MaxHeight: 0.12, MinSlope: 0, MaxSlope: 25, Offset: 0.02, NoiseXScale: 0.05, NoiseYScale: 0.05, NoiseZScale: 0.05},
	{Name: "grass", MinHeight: 0.1, MaxHeight: 0.55, MinSlope: 0, MaxSlope: 35, Offset: 0.05, NoiseXScale: 0.05, NoiseYScale: 0.05, NoiseZScale: 0.1},
	{Name: "rock", MinHeight: 0, MaxHeight: 1, MinSlope: 30, MaxSlope: 90},
	{Name: "snow", MinHeight: 0.75, MaxHeight: 1, MinSlope: 0, MaxSlope: 45, Offset: 0.05, NoiseXScale: 0.1, NoiseYScale: 0.1, NoiseZScale: 0.1},
}

// handleTileSplat reports how much of the tile each texture band covers.
func (s *Server) handleTileSplat(w http.ResponseWriter, r *http.Request, t *persistence.Tile) {
	weights := terrain.SplatWeights(t.Grid, splatBands, noise.NewPerlin(1))

	coverage := make(map[string]float64, len(splatBands))
	uncovered := 0
	for _, cell := range weights {
		total := 0.0
		for i, wgt := range cell {
			coverage[splatBands[i].Name] += wgt
			total += wgt
		}
		if total == 0 {
			uncovered++
		}
	}
	n := float64(len(weights))
	for name := range coverage {
		coverage[name] /= n
	}
	writeJSON(w, map[string]any{
		"tile":      t.Name,
		"coverage":  coverage,
		"uncovered": float64(uncovered) / n,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.DB.RecentRuns(r.Context(), 20)
	if err != nil {
		slog.Error("recent runs", "error", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, len(runs))
	for i, run := range runs {
		out[i] = runSummary(run)
	}
	writeJSON(w, out)
}

func runSummary(run persistence.Run) map[string]any {
	summary := map[string]any{
		"id":         run.ID,
		"seed":       run.Seed,
		"status":     run.Status,
		"started_at": run.StartedAt(),
	}
	if f := run.FinishedAt(); !f.IsZero() {
		summary["finished_at"] = f
	}
	return summary
}

// handlePipeline runs the YAML pipeline in the request body and waits for it.
func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPipelineBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	cfg, err := pipeline.Parse(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.Runner.Run(r.Context(), cfg)
	if errors.Is(err, pipeline.ErrBusy) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("pipeline failed: %v", err), http.StatusInternalServerError)
		return
	}

	type tileResult struct {
		Name  string          `json:"name"`
		Stats heightmap.Stats `json:"stats"`
	}
	tiles := make([]tileResult, len(res.Tiles))
	for i, t := range res.Tiles {
		tiles[i] = tileResult{Name: t.Name, Stats: t.Grid.Stats()}
	}
	writeJSON(w, map[string]any{
		"run_id":     res.RunID,
		"seed":       res.Seed,
		"elapsed_ms": res.Elapsed.Milliseconds(),
		"tiles":      tiles,
	})
}

// handleStream upgrades to a WebSocket and pushes pipeline events as JSON.
// Clients first receive the recent backlog.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if !s.hub.add(conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many stream connections"))
		return
	}
	defer s.hub.remove(conn)
	slog.Info("stream client connected", "remote", conn.RemoteAddr().String())

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			slog.Info("stream client disconnected", "remote", conn.RemoteAddr().String())
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
