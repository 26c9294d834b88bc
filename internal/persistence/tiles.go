package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/terrasmith/internal/heightmap"
)

// Tile is a stored heightmap with its world placement.
type Tile struct {
	ID        string
	Name      string
	X, Z      float64 // World position of the tile origin
	Size      float64 // World side length
	Grid      *heightmap.Grid
	UpdatedAt time.Time
}

// TileInfo is a tile's row without the height data.
type TileInfo struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	X          float64   `db:"pos_x" json:"x"`
	Z          float64   `db:"pos_z" json:"z"`
	Size       float64   `db:"size" json:"size"`
	Resolution int       `db:"resolution" json:"resolution"`
	Bytes      int       `db:"bytes" json:"bytes"`
	UpdatedAt  time.Time `db:"-" json:"updated_at"`
	UpdatedMs  int64     `db:"updated_at" json:"-"`
}

type tileRow struct {
	ID         string  `db:"id"`
	Name       string  `db:"name"`
	X          float64 `db:"pos_x"`
	Z          float64 `db:"pos_z"`
	Size       float64 `db:"size"`
	Resolution int     `db:"resolution"`
	Heights    []byte  `db:"heights"`
	UpdatedMs  int64   `db:"updated_at"`
}

const upsertTile = `INSERT INTO tiles
	(id, name, pos_x, pos_z, size, resolution, heights, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		pos_x = excluded.pos_x,
		pos_z = excluded.pos_z,
		size = excluded.size,
		resolution = excluded.resolution,
		heights = excluded.heights,
		updated_at = excluded.updated_at`

// SaveTiles writes every tile in one transaction. Tiles are keyed by name;
// an existing tile keeps its ID and has everything else replaced. Tiles
// without an ID get a fresh one, written back into the slice.
func (db *DB) SaveTiles(ctx context.Context, tiles []*Tile) error {
	if len(tiles) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertTile)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	total := 0
	for _, t := range tiles {
		if t.Grid == nil {
			return fmt.Errorf("save tile %q: no grid", t.Name)
		}
		if t.ID == "" {
			// Keep the stored ID when the name already exists.
			var existing string
			err := tx.GetContext(ctx, &existing, "SELECT id FROM tiles WHERE name = ?", t.Name)
			switch {
			case err == nil:
				t.ID = existing
			case errors.Is(err, sql.ErrNoRows):
				t.ID = uuid.NewString()
			default:
				return fmt.Errorf("lookup tile %q: %w", t.Name, err)
			}
		}

		blob := EncodeHeights(t.Grid)
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Name, t.X, t.Z, t.Size, t.Grid.Resolution(), blob, now.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert tile %q: %w", t.Name, err)
		}
		t.UpdatedAt = now
		total += len(blob)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("tiles saved", "count", len(tiles), "size", humanize.Bytes(uint64(total)))
	return nil
}

// SaveTile writes a single tile.
func (db *DB) SaveTile(ctx context.Context, t *Tile) error {
	return db.SaveTiles(ctx, []*Tile{t})
}

// LoadTile reads a tile by name. Missing tiles return ErrNotFound.
func (db *DB) LoadTile(ctx context.Context, name string) (*Tile, error) {
	var row tileRow
	err := db.conn.GetContext(ctx, &row,
		"SELECT id, name, pos_x, pos_z, size, resolution, heights, updated_at FROM tiles WHERE name = ?",
		name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tile %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load tile %q: %w", name, err)
	}

	g, err := DecodeHeights(row.Resolution, row.Heights)
	if err != nil {
		return nil, fmt.Errorf("load tile %q: %w", name, err)
	}
	return &Tile{
		ID:        row.ID,
		Name:      row.Name,
		X:         row.X,
		Z:         row.Z,
		Size:      row.Size,
		Grid:      g,
		UpdatedAt: time.UnixMilli(row.UpdatedMs),
	}, nil
}

// ListTiles returns every stored tile without height data, ordered by name.
func (db *DB) ListTiles(ctx context.Context) ([]TileInfo, error) {
	var infos []TileInfo
	err := db.conn.SelectContext(ctx, &infos,
		`SELECT id, name, pos_x, pos_z, size, resolution, length(heights) AS bytes, updated_at
		 FROM tiles ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tiles: %w", err)
	}
	for i := range infos {
		infos[i].UpdatedAt = time.UnixMilli(infos[i].UpdatedMs)
	}
	return infos, nil
}

// DeleteTile removes a tile by name. Missing tiles return ErrNotFound.
func (db *DB) DeleteTile(ctx context.Context, name string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM tiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete tile %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("tile %q: %w", name, ErrNotFound)
	}
	return nil
}
