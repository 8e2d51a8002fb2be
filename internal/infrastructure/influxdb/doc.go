// Package influxdb provides InfluxDB connectivity for Gray Latch Core.
//
// It wraps the official influxdb-client-go v2 library with Gray Latch-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Access events (slot usage over time)
//   - Sync operation outcomes and latencies
//   - Controller runtime telemetry
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "graylatch",
//	    Bucket: "metrics",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write an access event
//	client.WritePointWithTime("access_event",
//	    map[string]string{"slot": "3", "credential_type": "pin"},
//	    map[string]interface{}{"count": 1},
//	    eventTime)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead when the lock sees frequent access traffic.
package influxdb
