package readings

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// seedProfile describes one synthetic sensor for demo seeding.
type seedProfile struct {
	sensorID string
	typ      Measurement
	base     float64
	jitter   float64
	unit     string
}

var seedProfiles = []seedProfile{
	{"S1", MeasurementTemperature, 34.0, 2.0, "C"},
	{"S2", MeasurementHumidity, 60.0, 5.0, "%"},
	{"S3", MeasurementWeight, 45.0, 0.5, "kg"},
	{"S4", MeasurementAcoustics, 50.0, 10.0, "dB"},
	{"S5", MeasurementCO2, 400.0, 50.0, "ppm"},
}

const (
	seedReadingsPerSensor = 10
	seedInterval          = 15 * time.Minute
)

// Seed populates the store with synthetic readings for five demo
// sensors, ten readings each at fifteen-minute intervals ending at now.
// A store that already holds data is left untouched, so repeated init
// runs are safe.
func (s *Store) Seed(ctx context.Context, now time.Time) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	var batch []SensorReading
	for _, p := range seedProfiles {
		for i := 0; i < seedReadingsPerSensor; i++ {
			offset := time.Duration(seedReadingsPerSensor-1-i) * seedInterval
			value := p.base + (rand.Float64()*2-1)*p.jitter
			batch = append(batch, SensorReading{
				SensorID:   p.sensorID,
				Timestamp:  now.Add(-offset),
				Type:       p.typ,
				Value:      math.Round(value*100) / 100,
				Unit:       p.unit,
				UploadFreq: "15min",
			})
		}
	}

	if err := s.InsertBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("seed readings: %w", err)
	}
	return len(batch), nil
}
