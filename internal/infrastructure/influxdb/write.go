package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEntityMetric writes a single entity measurement to InfluxDB.
//
// This is the primary method for recording printer telemetry data.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - entityID: Unique identifier for the entity (e.g., "extruder_temperature")
//   - measurement: The metric name (e.g., "temperature_c", "progress_percent")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteEntityMetric("extruder_temperature", "temperature_c", 215.3)
//	client.WriteEntityMetric("print_progress", "progress_percent", 42.0)
func (c *Client) WriteEntityMetric(entityID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"entity_metrics",
		map[string]string{
			"entity_id":   entityID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteTemperature writes a heater temperature measurement with its target.
//
// Used for the extruder and heated bed where actual and target values
// belong in the same point for graphing.
//
// Parameters:
//   - heater: Heater identifier (e.g., "extruder", "heater_bed")
//   - actual: Current temperature in Celsius
//   - target: Target temperature in Celsius (0 when the heater is off)
func (c *Client) WriteTemperature(heater string, actual float64, target float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"temperature",
		map[string]string{
			"heater": heater,
		},
		map[string]interface{}{
			"actual": actual,
			"target": target,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteJobMetric writes a print-job measurement.
//
// Used for tracking progress, durations and filament usage against
// the job the printer is currently running.
//
// Parameters:
//   - filename: The gcode file being printed
//   - metricName: Job metric (e.g., "progress", "print_duration", "filament_used")
//   - value: The metric value
func (c *Client) WriteJobMetric(filename string, metricName string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"print_job",
		map[string]string{
			"filename": filename,
			"metric":   metricName,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("bridge_stats",
//	    map[string]string{"instance": "moonbridge"},
//	    map[string]interface{}{"messages_received": 1532, "reconnects": 2})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
