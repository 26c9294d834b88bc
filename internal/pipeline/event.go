package pipeline

import (
	"time"

	"github.com/talgya/terrasmith/internal/heightmap"
)

// Event types.
const (
	EventRunStarted = "run_started"
	EventStageDone  = "stage_done"
	EventRunDone    = "run_done"
	EventRunFailed  = "run_failed"
)

// Event reports pipeline progress to observers.
type Event struct {
	Type      string           `json:"type"`
	RunID     string           `json:"run_id,omitempty"`
	Seed      int64            `json:"seed,omitempty"`
	Stage     int              `json:"stage"`
	StageType string           `json:"stage_type,omitempty"`
	Tile      string           `json:"tile,omitempty"`
	Stats     *heightmap.Stats `json:"stats,omitempty"`
	Error     string           `json:"error,omitempty"`
	ElapsedMs int64            `json:"elapsed_ms,omitempty"`
	Time      time.Time        `json:"time"`
}
