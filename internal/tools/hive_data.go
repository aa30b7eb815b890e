package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/apiaryworks/hivemind/internal/readings"
)

// measurementRules maps query keywords to measurement filters. Rules are
// checked in order and the first match wins, so "compare temperature and
// humidity" filters to temperature.
var measurementRules = []struct {
	keyword     string
	measurement readings.Measurement
}{
	{"temp", readings.MeasurementTemperature},
	{"humid", readings.MeasurementHumidity},
	{"weight", readings.MeasurementWeight},
}

// classifyMeasurement picks a measurement filter from free-form query
// text. An empty result means no filter (all sensors).
func classifyMeasurement(query string) readings.Measurement {
	q := strings.ToLower(query)
	for _, rule := range measurementRules {
		if strings.Contains(q, rule.keyword) {
			return rule.measurement
		}
	}
	return ""
}

func (r *Registry) handleGetHiveData(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	measurement := classifyMeasurement(query)

	r.logger.Debug("hive data lookup", "query", query, "filter", string(measurement))

	rows, err := r.readings.Latest(ctx, measurement)
	if err != nil {
		return "", fmt.Errorf("query sensor data: %w", err)
	}

	if len(rows) == 0 {
		return "No sensor data found.", nil
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = row.String()
	}
	return strings.Join(lines, "\n"), nil
}
