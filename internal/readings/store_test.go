package readings

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStoreWithDB(db)
	if err != nil {
		t.Fatalf("NewStoreWithDB: %v", err)
	}
	return store
}

func TestInsertAndLatest(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	readings := []SensorReading{
		{SensorID: "S1", Timestamp: base, Type: MeasurementTemperature, Value: 33.5, Unit: "C", UploadFreq: "15min"},
		{SensorID: "S1", Timestamp: base.Add(15 * time.Minute), Type: MeasurementTemperature, Value: 34.2, Unit: "C", UploadFreq: "15min"},
		{SensorID: "S2", Timestamp: base, Type: MeasurementHumidity, Value: 58.0, Unit: "%", UploadFreq: "15min"},
	}
	for _, r := range readings {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	latest, err := store.Latest(ctx, "")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 latest readings, got %d", len(latest))
	}

	// Ordered by sensor_id, newest row per sensor.
	if latest[0].SensorID != "S1" || latest[0].Value != 34.2 {
		t.Errorf("latest[0] = %+v, want S1 value 34.2", latest[0])
	}
	if latest[1].SensorID != "S2" || latest[1].Value != 58.0 {
		t.Errorf("latest[1] = %+v, want S2 value 58.0", latest[1])
	}
	if !latest[0].Timestamp.Equal(base.Add(15 * time.Minute)) {
		t.Errorf("latest[0] timestamp = %v, want %v", latest[0].Timestamp, base.Add(15*time.Minute))
	}
}

func TestLatestFiltersByType(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.InsertBatch(ctx, []SensorReading{
		{SensorID: "S1", Timestamp: base, Type: MeasurementTemperature, Value: 34.0, Unit: "C"},
		{SensorID: "S2", Timestamp: base, Type: MeasurementHumidity, Value: 60.0, Unit: "%"},
		{SensorID: "S3", Timestamp: base, Type: MeasurementWeight, Value: 45.1, Unit: "kg"},
	}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	got, err := store.Latest(ctx, MeasurementHumidity)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 humidity reading, got %d", len(got))
	}
	if got[0].SensorID != "S2" || got[0].Type != MeasurementHumidity {
		t.Errorf("got %+v, want S2 humidity", got[0])
	}
}

func TestLatestEmptyStore(t *testing.T) {
	store := setupStore(t)

	got, err := store.Latest(context.Background(), "")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no readings, got %d", len(got))
	}
}

func TestInsertReplacesDuplicateKey(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := SensorReading{SensorID: "S1", Timestamp: ts, Type: MeasurementTemperature, Value: 33.0, Unit: "C"}
	second := SensorReading{SensorID: "S1", Timestamp: ts, Type: MeasurementTemperature, Value: 35.0, Unit: "C"}

	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, second); err != nil {
		t.Fatalf("Insert duplicate key: %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row after replace, got %d", n)
	}

	latest, err := store.Latest(ctx, "")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest[0].Value != 35.0 {
		t.Errorf("value = %v, want replaced value 35.0", latest[0].Value)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 12, 34, 56, 789000000, time.UTC)
	if err := store.Insert(ctx, SensorReading{
		SensorID: "S1", Timestamp: ts, Type: MeasurementTemperature, Value: 34.0, Unit: "C",
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Latest(ctx, "")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !got[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, ts)
	}
}

func TestLatestMixedPrecisionTimestamps(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// A whole-second and a fractional-second reading in the same second.
	// The stored encoding must still order these correctly.
	whole := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	frac := whole.Add(500 * time.Millisecond)
	if err := store.InsertBatch(ctx, []SensorReading{
		{SensorID: "S1", Timestamp: whole, Type: MeasurementTemperature, Value: 1.0, Unit: "C"},
		{SensorID: "S1", Timestamp: frac, Type: MeasurementTemperature, Value: 2.0, Unit: "C"},
	}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	latest, err := store.Latest(ctx, "")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 1 {
		t.Fatalf("expected 1 latest reading, got %d", len(latest))
	}
	if latest[0].Value != 2.0 {
		t.Errorf("value = %v, want 2.0 from the fractional-second reading", latest[0].Value)
	}
	if !latest[0].Timestamp.Equal(frac) {
		t.Errorf("timestamp = %v, want %v", latest[0].Timestamp, frac)
	}
}

func TestLatestNormalizesZones(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Same instant expressed in a non-UTC zone must not create a
	// second row or disturb ordering against a later UTC reading.
	zone := time.FixedZone("CEST", 2*60*60)
	early := time.Date(2026, 3, 1, 14, 0, 0, 0, zone) // 12:00 UTC
	late := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if err := store.InsertBatch(ctx, []SensorReading{
		{SensorID: "S1", Timestamp: early, Type: MeasurementTemperature, Value: 1.0, Unit: "C"},
		{SensorID: "S1", Timestamp: late, Type: MeasurementTemperature, Value: 2.0, Unit: "C"},
	}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	latest, err := store.Latest(ctx, "")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 1 || latest[0].Value != 2.0 {
		t.Errorf("latest = %+v, want one S1 reading with value 2.0", latest)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	n, err := store.Seed(ctx, now)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if n != 50 {
		t.Fatalf("seeded %d readings, want 50", n)
	}

	// Second run must not add rows.
	n, err = store.Seed(ctx, now)
	if err != nil {
		t.Fatalf("Seed (second run): %v", err)
	}
	if n != 0 {
		t.Errorf("second seed inserted %d readings, want 0", n)
	}

	total, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 50 {
		t.Errorf("count = %d, want 50", total)
	}

	latest, err := store.Latest(ctx, "")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 5 {
		t.Fatalf("expected 5 latest readings (one per sensor), got %d", len(latest))
	}
	for _, r := range latest {
		if !r.Timestamp.Equal(now) {
			t.Errorf("sensor %s latest timestamp = %v, want %v", r.SensorID, r.Timestamp, now)
		}
		if r.UploadFreq != "15min" {
			t.Errorf("sensor %s upload_freq = %q, want 15min", r.SensorID, r.UploadFreq)
		}
	}
}
