package api

import (
	"encoding/json"
	"image"
	_ "image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/terrasmith/internal/persistence"
	"github.com/talgya/terrasmith/internal/pipeline"
)

const testPipeline = `
seed: 3
resolution: 9
tile_size: 10
tiles:
  - {name: west, x: 0, z: 0}
  - {name: east, x: 10, z: 0}
stages:
  - type: perlin
    layers:
      - {x_scale: 0.1, y_scale: 0.1}
  - type: voronoi
  - type: erode
    erosion: {type: thermal, iterations: 2}
  - type: blend
`

func newTestServer(t *testing.T, adminKey string) (*Server, *httptest.Server) {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s := New(db, pipeline.NewRunner(db), 0, adminKey)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postPipeline(t *testing.T, ts *httptest.Server, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/pipeline", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func TestPipelineAuth(t *testing.T) {
	_, disabled := newTestServer(t, "")
	resp := postPipeline(t, disabled, "anything", testPipeline)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("no admin key: status %d, want 403", resp.StatusCode)
	}

	_, ts := newTestServer(t, "secret")
	resp = postPipeline(t, ts, "wrong", testPipeline)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: status %d, want 401", resp.StatusCode)
	}

	resp = postPipeline(t, ts, "secret", "resolution: 1")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid config: status %d, want 400", resp.StatusCode)
	}
}

func TestPipelineAndTiles(t *testing.T) {
	_, ts := newTestServer(t, "secret")

	resp := postPipeline(t, ts, "secret", testPipeline)
	var result struct {
		RunID string `json:"run_id"`
		Seed  int64  `json:"seed"`
		Tiles []struct {
			Name string `json:"name"`
		} `json:"tiles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if result.RunID == "" || result.Seed != 3 || len(result.Tiles) != 2 {
		t.Fatalf("result = %+v", result)
	}

	var tiles []persistence.TileInfo
	if code := getJSON(t, ts.URL+"/api/v1/tiles", &tiles); code != http.StatusOK {
		t.Fatalf("tiles status %d", code)
	}
	if len(tiles) != 2 || tiles[0].Name != "east" || tiles[1].Resolution != 9 {
		t.Errorf("tiles = %+v", tiles)
	}

	var detail struct {
		Name    string      `json:"name"`
		Heights [][]float64 `json:"heights"`
	}
	if code := getJSON(t, ts.URL+"/api/v1/tile/west", &detail); code != http.StatusOK {
		t.Fatalf("tile status %d", code)
	}
	if detail.Name != "west" || len(detail.Heights) != 9 || len(detail.Heights[0]) != 9 {
		t.Errorf("detail = %s with %d rows", detail.Name, len(detail.Heights))
	}

	var runs []map[string]any
	getJSON(t, ts.URL+"/api/v1/runs", &runs)
	if len(runs) != 1 || runs[0]["status"] != persistence.RunDone {
		t.Errorf("runs = %v", runs)
	}

	var status map[string]any
	getJSON(t, ts.URL+"/api/v1/status", &status)
	if status["tiles"] != float64(2) || status["running"] != false {
		t.Errorf("status = %v", status)
	}
}

func TestTileImageAndSplat(t *testing.T) {
	_, ts := newTestServer(t, "secret")
	postPipeline(t, ts, "secret", testPipeline).Body.Close()

	resp, err := http.Get(ts.URL + "/api/v1/tile/east/image?format=png")
	if err != nil {
		t.Fatal(err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type %q", ct)
	}
	img, _, err := image.Decode(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 9 || b.Dy() != 9 {
		t.Errorf("image bounds %v", b)
	}

	resp, err = http.Get(ts.URL + "/api/v1/tile/east/image")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/tiff" {
		t.Errorf("default content type %q", ct)
	}

	resp, err = http.Get(ts.URL + "/api/v1/tile/east/image?format=jpeg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("jpeg: status %d, want 400", resp.StatusCode)
	}

	var splat struct {
		Coverage  map[string]float64 `json:"coverage"`
		Uncovered float64            `json:"uncovered"`
	}
	if code := getJSON(t, ts.URL+"/api/v1/tile/east/splat", &splat); code != http.StatusOK {
		t.Fatalf("splat status %d", code)
	}
	total := splat.Uncovered
	for _, c := range splat.Coverage {
		total += c
	}
	if total < 0.999 || total > 1.001 {
		t.Errorf("coverage plus uncovered = %v, want 1", total)
	}
}

func TestUnknownTile(t *testing.T) {
	_, ts := newTestServer(t, "")
	for _, path := range []string{"/api/v1/tile/nowhere", "/api/v1/tile/nowhere/image", "/api/v1/tile/"} {
		if code := getJSON(t, ts.URL+path, nil); code != http.StatusNotFound {
			t.Errorf("%s: status %d, want 404", path, code)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other clients have their own allowance")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Errorf("RetryAfter = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("allowance should reset after the window")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pipeline", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: status %d, want %d", i, rec.Code, want)
		}
		if want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Error("missing Retry-After")
		}
	}
}

func TestPipelineWrongMethodSpendsNoAllowance(t *testing.T) {
	s, ts := newTestServer(t, "secret")
	s.pipelineLimiter.maxRate = 1

	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/v1/pipeline")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("GET %d: status %d, want 405", i, resp.StatusCode)
		}
	}

	resp := postPipeline(t, ts, "secret", testPipeline)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST after GETs: status %d, want 200", resp.StatusCode)
	}
	resp = postPipeline(t, ts, "secret", testPipeline)
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second POST: status %d, want 429", resp.StatusCode)
	}
}

func TestStreamReceivesEvents(t *testing.T) {
	s, ts := newTestServer(t, "secret")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for s.Hub().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp := postPipeline(t, ts, "secret", testPipeline)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pipeline status %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var types []string
	for {
		var e pipeline.Event
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("read after %v: %v", types, err)
		}
		types = append(types, e.Type)
		if e.Type == pipeline.EventRunDone {
			break
		}
	}
	if types[0] != pipeline.EventRunStarted {
		t.Errorf("first event %q, want %q", types[0], pipeline.EventRunStarted)
	}

	// Late subscribers catch up from the backlog.
	if got := len(s.Hub().Recent()); got != len(types) {
		t.Errorf("backlog holds %d events, want %d", got, len(types))
	}
}

func TestCORS(t *testing.T) {
	_, ts := newTestServer(t, "")
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin %q", got)
	}
}
