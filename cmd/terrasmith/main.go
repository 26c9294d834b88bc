// Command terrasmith generates, erodes, and blends terrain heightmap tiles,
// stores them in SQLite, and serves them over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/xlab/closer"

	"github.com/talgya/terrasmith/internal/api"
	"github.com/talgya/terrasmith/internal/export"
	"github.com/talgya/terrasmith/internal/persistence"
	"github.com/talgya/terrasmith/internal/pipeline"
	"github.com/talgya/terrasmith/internal/remote"
)

// lastPipelineKey stores the YAML of the most recent CLI run.
const lastPipelineKey = "last_pipeline"

const usage = `usage: terrasmith <command> [flags]

commands:
  init     write the default pipeline to a YAML file
  run      run a pipeline and store the tiles
  serve    serve stored tiles and pipeline runs over HTTP
  submit   send a pipeline to a running server
  tiles    list stored tiles
  export   write a stored tile as a 16-bit TIFF or PNG
  import   store a grayscale image as a tile
  delete   remove a stored tile
`

func main() {
	setupLogging()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "init":
		err = cmdInit(args)
	case "run":
		err = cmdRun(args)
	case "serve":
		err = cmdServe(args)
	case "submit":
		err = cmdSubmit(args)
	case "tiles":
		err = cmdTiles(args)
	case "export":
		err = cmdExport(args)
	case "import":
		err = cmdImport(args)
	case "delete":
		err = cmdDelete(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		slog.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

// setupLogging writes text logs to terminals and JSON logs otherwise.
// TERRASMITH_LOG_LEVEL=debug enables stage-level detail.
func setupLogging() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if strings.EqualFold(os.Getenv("TERRASMITH_LOG_LEVEL"), "debug") {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func dbFlag(fs *flag.FlagSet) *string {
	return fs.String("db", envOrDefault("TERRASMITH_DB", "data/terrasmith.db"), "SQLite database path")
}

func openDB(path string) (*persistence.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", path)
	return db, nil
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	out := fs.String("out", "pipeline.yaml", "output file")
	small := fs.Bool("small", false, "write the small two-tile pipeline")
	fs.Parse(args)

	cfg := pipeline.DefaultConfig()
	if *small {
		cfg = pipeline.SmallTestConfig()
	}
	if err := cfg.Save(*out); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d tiles, %d stages).\n", *out, len(cfg.Tiles), len(cfg.Stages))
	return nil
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dbPath := dbFlag(fs)
	cfgPath := fs.String("config", "", "pipeline YAML (default: built-in pipeline)")
	last := fs.Bool("last", false, "rerun the most recent pipeline from the database")
	seed := fs.Int64("seed", -1, "override the pipeline seed (0 draws a random seed)")
	fs.Parse(args)

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg *pipeline.Config
	switch {
	case *last:
		raw, err := db.GetMeta(ctx, lastPipelineKey)
		if errors.Is(err, persistence.ErrNotFound) {
			return errors.New("no previous pipeline recorded")
		}
		if err != nil {
			return err
		}
		cfg, err = pipeline.Parse([]byte(raw))
		if err != nil {
			return err
		}
	case *cfgPath != "":
		cfg, err = pipeline.Load(*cfgPath)
		if err != nil {
			return err
		}
	default:
		cfg = pipeline.DefaultConfig()
	}
	if *seed >= 0 {
		cfg.Seed = *seed
	}

	runner := pipeline.NewRunner(db)
	runner.OnEvent = func(e pipeline.Event) {
		if e.Type == pipeline.EventStageDone && e.Stats != nil {
			slog.Debug("stage done", "stage", e.Stage, "type", e.StageType, "tile", e.Tile,
				"min", e.Stats.Min, "max", e.Stats.Max, "mean", e.Stats.Mean)
		}
	}

	res, err := runner.Run(ctx, cfg)
	if err != nil {
		return err
	}

	if raw, err := cfg.Marshal(); err == nil {
		if err := db.SaveMeta(ctx, lastPipelineKey, string(raw)); err != nil {
			slog.Warn("failed to record pipeline", "error", err)
		}
	}

	fmt.Printf("\nRun %s finished in %s (seed %d).\n", res.RunID, res.Elapsed.Round(time.Millisecond), res.Seed)
	for _, t := range res.Tiles {
		s := t.Grid.Stats()
		fmt.Printf("  %-12s %dx%d  min %.3f  max %.3f  mean %.3f\n", t.Name, s.Resolution, s.Resolution, s.Min, s.Max, s.Mean)
	}
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := dbFlag(fs)
	port := fs.Int("port", envIntOrDefault("TERRASMITH_PORT", 8080), "HTTP port")
	fs.Parse(args)

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}

	adminKey := os.Getenv("TERRASMITH_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("TERRASMITH_ADMIN_KEY not set, POST /api/v1/pipeline is disabled")
	}

	srv := api.New(db, pipeline.NewRunner(db), *port, adminKey).Start()

	closer.Bind(func() {
		slog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("HTTP shutdown failed", "error", err)
		}
		if err := db.Close(); err != nil {
			slog.Error("database close failed", "error", err)
		}
	})

	fmt.Printf("API: http://localhost:%d/api/v1/status\n", *port)
	fmt.Println("Serving... (Ctrl+C to stop)")
	closer.Hold()
	return nil
}

func cmdSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	url := fs.String("url", envOrDefault("TERRASMITH_API_URL", "http://localhost:8080"), "API base URL")
	cfgPath := fs.String("config", "", "pipeline YAML (required)")
	wait := fs.Duration("wait", 2*time.Minute, "how long to wait for the API to come up")
	fs.Parse(args)

	if *cfgPath == "" {
		return errors.New("-config is required")
	}
	adminKey := os.Getenv("TERRASMITH_ADMIN_KEY")
	if adminKey == "" {
		return errors.New("TERRASMITH_ADMIN_KEY is required")
	}

	// Validate locally so typos fail before the round trip.
	cfg, err := pipeline.Load(*cfgPath)
	if err != nil {
		return err
	}
	raw, err := cfg.Marshal()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := remote.NewClient(*url, adminKey)
	waitCtx, cancel := context.WithTimeout(ctx, *wait)
	err = client.WaitReady(waitCtx, 2*time.Second, 30*time.Second)
	cancel()
	if err != nil {
		return err
	}

	res, err := client.Submit(ctx, raw)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s finished in %dms (seed %d), %d tiles stored.\n", res.RunID, res.ElapsedMs, res.Seed, len(res.Tiles))
	return nil
}

func cmdTiles(args []string) error {
	fs := flag.NewFlagSet("tiles", flag.ExitOnError)
	dbPath := dbFlag(fs)
	fs.Parse(args)

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	tiles, err := db.ListTiles(context.Background())
	if err != nil {
		return err
	}
	if len(tiles) == 0 {
		fmt.Println("No tiles stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPOSITION\tSIZE\tRESOLUTION\tDATA\tUPDATED")
	for _, t := range tiles {
		fmt.Fprintf(w, "%s\t(%g, %g)\t%g\t%d\t%s\t%s\n",
			t.Name, t.X, t.Z, t.Size, t.Resolution, humanize.Bytes(uint64(t.Bytes)), humanize.Time(t.UpdatedAt))
	}
	return w.Flush()
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := dbFlag(fs)
	name := fs.String("tile", "", "tile name (required)")
	out := fs.String("out", "", "output file (default: <tile>.tiff)")
	format := fs.String("format", "", "tiff or png (default: from -out extension)")
	fs.Parse(args)

	if *name == "" {
		return errors.New("-tile is required")
	}
	if *out == "" {
		*out = *name + ".tiff"
	}
	f := *format
	if f == "" {
		f = filepath.Ext(*out)
	}
	fmtOut, err := export.ParseFormat(f)
	if err != nil {
		return err
	}

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	tile, err := db.LoadTile(context.Background(), *name)
	if err != nil {
		return err
	}

	file, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if err := export.Write(file, tile.Grid, fmtOut); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *out, err)
	}

	info, _ := os.Stat(*out)
	size := uint64(0)
	if info != nil {
		size = uint64(info.Size())
	}
	slog.Info("tile exported", "tile", *name, "file", *out, "format", fmtOut, "size", humanize.Bytes(size))
	return nil
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := dbFlag(fs)
	name := fs.String("tile", "", "tile name (default: file name without extension)")
	in := fs.String("in", "", "input TIFF or PNG (required)")
	x := fs.Float64("x", 0, "world X of the tile origin")
	z := fs.Float64("z", 0, "world Z of the tile origin")
	size := fs.Float64("size", 1000, "world side length")
	fs.Parse(args)

	if *in == "" {
		return errors.New("-in is required")
	}
	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
	}
	if *size <= 0 {
		return errors.New("-size must be > 0")
	}

	file, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("open %s: %w", *in, err)
	}
	defer file.Close()

	g, err := export.Read(file)
	if err != nil {
		return err
	}

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveTile(context.Background(), &persistence.Tile{Name: *name, X: *x, Z: *z, Size: *size, Grid: g}); err != nil {
		return err
	}
	slog.Info("tile imported", "tile", *name, "resolution", g.Resolution(), "stats", g.Stats())
	return nil
}

func cmdDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	dbPath := dbFlag(fs)
	name := fs.String("tile", "", "tile name (required)")
	fs.Parse(args)

	if *name == "" {
		return errors.New("-tile is required")
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteTile(context.Background(), *name); err != nil {
		return err
	}
	fmt.Printf("Deleted %s.\n", *name)
	return nil
}
