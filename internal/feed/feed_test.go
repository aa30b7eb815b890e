package feed

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/apiaryworks/hivemind/internal/readings"
)

func TestParseReading(t *testing.T) {
	payload := []byte(`{
		"sensor_id": "S7",
		"insert_timestamp": "2026-03-01T12:00:00Z",
		"type": "temperature",
		"value": 34.7,
		"unit": "C",
		"upload_freq": "15min"
	}`)

	r, err := parseReading(payload)
	if err != nil {
		t.Fatalf("parseReading: %v", err)
	}
	if r.SensorID != "S7" || r.Type != readings.MeasurementTemperature {
		t.Errorf("reading = %+v", r)
	}
	if r.Value != 34.7 || r.Unit != "C" || r.UploadFreq != "15min" {
		t.Errorf("reading = %+v", r)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", r.Timestamp, want)
	}
}

func TestParseReadingStampsMissingTimestamp(t *testing.T) {
	before := time.Now().UTC()
	r, err := parseReading([]byte(`{"sensor_id":"S1","type":"humidity","value":60,"unit":"%"}`))
	if err != nil {
		t.Fatalf("parseReading: %v", err)
	}
	after := time.Now().UTC()

	if r.Timestamp.Before(before) || r.Timestamp.After(after) {
		t.Errorf("timestamp %v not stamped on arrival", r.Timestamp)
	}
}

func TestParseReadingRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `hello`},
		{"missing sensor_id", `{"type":"temperature","value":34}`},
		{"missing type", `{"sensor_id":"S1","value":34}`},
		{"bad timestamp", `{"sensor_id":"S1","type":"temperature","insert_timestamp":"yesterday"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseReading([]byte(tt.payload)); err == nil {
				t.Errorf("parseReading(%q) succeeded, want error", tt.payload)
			}
		})
	}
}

func TestReadingLimiterAllow(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := newReadingLimiter(3, time.Minute, logger)

	for i := 0; i < 3; i++ {
		if !l.allow() {
			t.Fatalf("reading %d dropped under limit", i)
		}
	}
	if l.allow() {
		t.Error("reading over limit was allowed")
	}
	if dropped := l.dropped.Load(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if accepted := l.accepted.Load(); accepted != 3 {
		t.Errorf("accepted = %d, want 3", accepted)
	}
}
