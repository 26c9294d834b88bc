package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/terrasmith/internal/blend"
	"github.com/talgya/terrasmith/internal/entropy"
	"github.com/talgya/terrasmith/internal/erosion"
	"github.com/talgya/terrasmith/internal/heightmap"
	"github.com/talgya/terrasmith/internal/noise"
	"github.com/talgya/terrasmith/internal/persistence"
	"github.com/talgya/terrasmith/internal/terrain"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("pipeline: a run is already in progress")

// Store is the tile storage a Runner reads from and commits to.
type Store interface {
	LoadTile(ctx context.Context, name string) (*persistence.Tile, error)
	SaveTiles(ctx context.Context, tiles []*persistence.Tile) error
	StartRun(ctx context.Context, seed int64, config string) (string, error)
	FinishRun(ctx context.Context, id, status string) error
}

// Runner executes pipeline configs one at a time.
type Runner struct {
	Store Store // nil runs without persistence

	// Callbacks, populated during setup.
	OnEvent func(Event) // Every run, stage, and tile transition

	mu      sync.Mutex
	running bool
}

// NewRunner creates a Runner over store.
func NewRunner(store Store) *Runner {
	return &Runner{Store: store}
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Result is the outcome of a completed run.
type Result struct {
	RunID   string
	Seed    int64
	Tiles   []blend.Tile
	Elapsed time.Duration
}

// tileState is a tile's working grid plus its own random stream.
type tileState struct {
	spec   TileSpec
	grid   *heightmap.Grid
	id     string
	gen    *terrain.Generator
	eroder *erosion.Engine
}

// Run validates cfg, executes every stage in order, and commits the tiles to
// the store. Cancellation is checked between stages; a cancelled run commits
// nothing. Only one run may execute at a time.
func (r *Runner) Run(ctx context.Context, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrBusy
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	start := time.Now()
	root := entropy.NewSeeded(cfg.Seed)
	kernel, err := noise.New(cfg.Noise, root.Seed())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	runID := ""
	if r.Store != nil {
		raw, err := cfg.Marshal()
		if err != nil {
			return nil, fmt.Errorf("serialize pipeline: %w", err)
		}
		runID, err = r.Store.StartRun(ctx, root.Seed(), string(raw))
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}
	r.emit(Event{Type: EventRunStarted, RunID: runID, Seed: root.Seed()})
	slog.Info("pipeline started", "run", runID, "seed", root.Seed(), "tiles", len(cfg.Tiles), "stages", len(cfg.Stages))

	tiles, err := r.prepareTiles(ctx, cfg, root, kernel)
	if err == nil {
		err = r.runStages(ctx, cfg, runID, tiles)
	}
	if err == nil {
		err = r.commit(ctx, cfg, tiles)
	}

	elapsed := time.Since(start)
	if err != nil {
		status := persistence.RunFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = persistence.RunCanceled
		}
		r.finish(runID, status)
		r.emit(Event{Type: EventRunFailed, RunID: runID, Seed: root.Seed(), Error: err.Error(), ElapsedMs: elapsed.Milliseconds()})
		slog.Error("pipeline failed", "run", runID, "status", status, "error", err)
		return nil, err
	}

	r.finish(runID, persistence.RunDone)
	r.emit(Event{Type: EventRunDone, RunID: runID, Seed: root.Seed(), ElapsedMs: elapsed.Milliseconds()})
	slog.Info("pipeline finished", "run", runID, "elapsed", elapsed)

	return &Result{RunID: runID, Seed: root.Seed(), Tiles: blendTiles(cfg, tiles), Elapsed: elapsed}, nil
}

// prepareTiles loads each tile from the store when a stored grid of the
// configured resolution exists, and starts from a zero grid otherwise.
// Every tile draws from its own stream derived from the run seed.
func (r *Runner) prepareTiles(ctx context.Context, cfg *Config, root *entropy.Seeded, kernel noise.Kernel) ([]*tileState, error) {
	tiles := make([]*tileState, len(cfg.Tiles))
	for i, spec := range cfg.Tiles {
		rng := root.Derive(int64(i + 1))
		st := &tileState{
			spec:   spec,
			grid:   heightmap.MustNew(cfg.Resolution),
			gen:    terrain.NewGenerator(rng, kernel),
			eroder: erosion.NewEngine(rng, kernel),
		}

		if r.Store != nil {
			stored, err := r.Store.LoadTile(ctx, spec.Name)
			switch {
			case err == nil && stored.Grid.Resolution() == cfg.Resolution:
				st.grid = stored.Grid
				st.id = stored.ID
			case err == nil:
				slog.Warn("stored tile resolution differs, starting fresh",
					"tile", spec.Name, "stored", stored.Grid.Resolution(), "want", cfg.Resolution)
				st.id = stored.ID
			case errors.Is(err, persistence.ErrNotFound):
			default:
				return nil, fmt.Errorf("load tile %q: %w", spec.Name, err)
			}
		}
		tiles[i] = st
	}
	return tiles, nil
}

func (r *Runner) runStages(ctx context.Context, cfg *Config, runID string, tiles []*tileState) error {
	for i, stage := range cfg.Stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
		start := time.Now()

		if stage.Type == StageBlend {
			if err := blend.Blend(blendTiles(cfg, tiles), stage.Blend); err != nil {
				return fmt.Errorf("stage %d (blend): %w", i, err)
			}
		} else {
			for _, t := range tiles {
				out, err := applyStage(t, stage)
				if err != nil {
					return fmt.Errorf("stage %d (%s) tile %q: %w", i, stage.Type, t.spec.Name, err)
				}
				t.grid = out
			}
		}

		for _, t := range tiles {
			stats := t.grid.Stats()
			r.emit(Event{
				Type:      EventStageDone,
				RunID:     runID,
				Stage:     i,
				StageType: stage.Type,
				Tile:      t.spec.Name,
				Stats:     &stats,
			})
		}
		slog.Info("stage done", "run", runID, "stage", i, "type", stage.Type, "elapsed", time.Since(start))
	}
	return nil
}

// applyStage runs a per-tile stage and returns the tile's new grid.
func applyStage(t *tileState, s Stage) (*heightmap.Grid, error) {
	switch s.Type {
	case StagePerlin:
		return t.gen.Perlin(t.grid, s.Layers, s.Reset, s.RandomizeOffsets), nil
	case StageVoronoi:
		return t.gen.RadialPeaks(t.grid, s.Peaks, s.Reset), nil
	case StageMidpoint:
		return t.gen.MidpointDisplacement(t.grid, s.Displacement, s.Reset), nil
	case StageSmooth:
		return terrain.Smooth(t.grid, s.Radius), nil
	case StageErode:
		p, err := s.Erosion.Params()
		if err != nil {
			return nil, err
		}
		return t.eroder.Erode(t.grid, p)
	case StageReset:
		return terrain.Reset(t.grid), nil
	case StageClamp:
		out := t.grid.Clone()
		out.Clamp01()
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown stage type %q", ErrInvalidConfig, s.Type)
}

func (r *Runner) commit(ctx context.Context, cfg *Config, tiles []*tileState) error {
	if r.Store == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	records := make([]*persistence.Tile, len(tiles))
	for i, t := range tiles {
		records[i] = &persistence.Tile{
			ID:   t.id,
			Name: t.spec.Name,
			X:    t.spec.X,
			Z:    t.spec.Z,
			Size: cfg.TileSize,
			Grid: t.grid,
		}
	}
	if err := r.Store.SaveTiles(ctx, records); err != nil {
		return fmt.Errorf("commit tiles: %w", err)
	}
	for i, rec := range records {
		tiles[i].id = rec.ID
	}
	return nil
}

// finish records the run's final status. It uses a fresh context so a
// cancelled run is still marked as such.
func (r *Runner) finish(runID, status string) {
	if r.Store == nil || runID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Store.FinishRun(ctx, runID, status); err != nil {
		slog.Warn("failed to record run status", "run", runID, "status", status, "error", err)
	}
}

func (r *Runner) emit(e Event) {
	if r.OnEvent == nil {
		return
	}
	e.Time = time.Now()
	r.OnEvent(e)
}

func blendTiles(cfg *Config, tiles []*tileState) []blend.Tile {
	out := make([]blend.Tile, len(tiles))
	for i, t := range tiles {
		out[i] = blend.Tile{
			Name:     t.spec.Name,
			Position: mgl64.Vec2{t.spec.X, t.spec.Z},
			Size:     cfg.TileSize,
			Grid:     t.grid,
		}
	}
	return out
}
