package tools

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/apiaryworks/hivemind/internal/manual"
	"github.com/apiaryworks/hivemind/internal/readings"

	_ "modernc.org/sqlite"
)

// stubEmbedder returns a fixed vector for every text.
type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) Generate(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func setupRegistry(t *testing.T, embedder manual.Embedder) (*Registry, *readings.Store, *manual.Store) {
	t.Helper()

	openDB := func() *sql.DB {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		return db
	}

	rs, err := readings.NewStoreWithDB(openDB())
	if err != nil {
		t.Fatalf("readings store: %v", err)
	}
	ms, err := manual.NewStoreWithDB(openDB())
	if err != nil {
		t.Fatalf("manual store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewRegistry(rs, ms, embedder, "", logger), rs, ms
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func seedReadings(t *testing.T, rs *readings.Store) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := rs.InsertBatch(context.Background(), []readings.SensorReading{
		{SensorID: "S1", Timestamp: base, Type: readings.MeasurementTemperature, Value: 34.2, Unit: "C"},
		{SensorID: "S2", Timestamp: base, Type: readings.MeasurementHumidity, Value: 58.5, Unit: "%"},
		{SensorID: "S3", Timestamp: base, Type: readings.MeasurementWeight, Value: 45.1, Unit: "kg"},
	})
	if err != nil {
		t.Fatalf("seed readings: %v", err)
	}
}

func TestClassifyMeasurement(t *testing.T) {
	tests := []struct {
		query string
		want  readings.Measurement
	}{
		{"what is the temperature", readings.MeasurementTemperature},
		{"current TEMP please", readings.MeasurementTemperature},
		{"how humid is the hive", readings.MeasurementHumidity},
		{"hive weight trend", readings.MeasurementWeight},
		{"show me everything", ""},
		// First matching rule wins.
		{"compare temperature and humidity", readings.MeasurementTemperature},
		{"humidity and weight", readings.MeasurementHumidity},
	}
	for _, tt := range tests {
		if got := classifyMeasurement(tt.query); got != tt.want {
			t.Errorf("classifyMeasurement(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestGetHiveDataFiltered(t *testing.T) {
	reg, rs, _ := setupRegistry(t, &stubEmbedder{})
	seedReadings(t, rs)

	out, err := reg.Execute(context.Background(), "get_hive_data", map[string]any{"query": "what is the temperature?"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Sensor S1 (temperature): 34.2C") {
		t.Errorf("output missing temperature line: %q", out)
	}
	if strings.Contains(out, "S2") || strings.Contains(out, "S3") {
		t.Errorf("filtered output contains other sensors: %q", out)
	}
}

func TestGetHiveDataUnfiltered(t *testing.T) {
	reg, rs, _ := setupRegistry(t, &stubEmbedder{})
	seedReadings(t, rs)

	out, err := reg.Execute(context.Background(), "get_hive_data", map[string]any{"query": "how is the hive doing"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), out)
	}
	// One line per sensor, ordered by sensor ID.
	for i, prefix := range []string{"Sensor S1", "Sensor S2", "Sensor S3"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
}

func TestGetHiveDataEmpty(t *testing.T) {
	reg, _, _ := setupRegistry(t, &stubEmbedder{})

	out, err := reg.Execute(context.Background(), "get_hive_data", map[string]any{"query": "temperature"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "No sensor data found." {
		t.Errorf("output = %q, want no-data sentinel", out)
	}
}

func TestSearchBeeManual(t *testing.T) {
	emb := &stubEmbedder{vector: []float32{1, 0}}
	reg, _, ms := setupRegistry(t, emb)

	err := ms.Replace(context.Background(), []manual.Chunk{
		{Source: "m.md", Content: "brood nest should be 34-35C", Embedding: []float32{1, 0}},
		{Source: "m.md", Content: "feed syrup in autumn", Embedding: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}

	out, err := reg.Execute(context.Background(), "search_bee_manual", map[string]any{"query": "ideal brood temperature"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out, "From Bee Manual:\n") {
		t.Errorf("output missing prefix: %q", out)
	}
	if !strings.Contains(out, "brood nest should be 34-35C") {
		t.Errorf("output missing top chunk: %q", out)
	}
	if !strings.Contains(out, "\n---\n") {
		t.Errorf("multiple chunks not separated: %q", out)
	}
}

func TestSearchBeeManualEmptyStore(t *testing.T) {
	reg, _, _ := setupRegistry(t, &stubEmbedder{vector: []float32{1, 0}})

	out, err := reg.Execute(context.Background(), "search_bee_manual", map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "No relevant info found in the Bee Manual." {
		t.Errorf("output = %q, want no-results sentinel", out)
	}
}

func TestSearchBeeManualNotInitialized(t *testing.T) {
	emb := &stubEmbedder{}
	reg, _, _ := setupRegistry(t, emb)
	reg.manualPath = "/nonexistent/bee_manual.db"

	out, err := reg.Execute(context.Background(), "search_bee_manual", map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "Error: Vector database not initialized. (Run 'hivemind init' first.)" {
		t.Errorf("output = %q, want not-initialized sentinel", out)
	}
	// A missing database must short-circuit before any embedding call.
	if emb.calls != 0 {
		t.Errorf("embedder called %d times, want 0", emb.calls)
	}
}

func TestSearchBeeManualEmbedFailure(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("embeddings API returned status 500")}
	reg, _, ms := setupRegistry(t, emb)

	err := ms.Replace(context.Background(), []manual.Chunk{
		{Source: "m.md", Content: "content", Embedding: []float32{1}},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}

	out, err := reg.Execute(context.Background(), "search_bee_manual", map[string]any{"query": "q"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out, "Error querying Vector DB: ") {
		t.Errorf("output = %q, want vector-db error prefix", out)
	}
	if !strings.Contains(out, "status 500") {
		t.Errorf("output does not carry the underlying error: %q", out)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	reg, _, _ := setupRegistry(t, &stubEmbedder{})

	_, err := reg.Execute(context.Background(), "open_pod_bay_doors", nil)
	var unavailable *ErrToolUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want ErrToolUnavailable", err)
	}
	if unavailable.ToolName != "open_pod_bay_doors" {
		t.Errorf("ToolName = %q", unavailable.ToolName)
	}
}

func TestListShape(t *testing.T) {
	reg, _, _ := setupRegistry(t, &stubEmbedder{})

	defs := reg.List()
	if len(defs) != 2 {
		t.Fatalf("expected 2 tool definitions, got %d", len(defs))
	}
	var names []string
	for _, d := range defs {
		if d["type"] != "function" {
			t.Errorf("definition type = %v", d["type"])
		}
		fn, ok := d["function"].(map[string]any)
		if !ok {
			t.Fatalf("function field missing: %v", d)
		}
		names = append(names, fn["name"].(string))
		if fn["parameters"] == nil {
			t.Errorf("tool %v has no parameters schema", fn["name"])
		}
	}
	// Stable, name-sorted order on every call.
	if names[0] != "get_hive_data" || names[1] != "search_bee_manual" {
		t.Errorf("tool names = %v, want sorted [get_hive_data search_bee_manual]", names)
	}
}
