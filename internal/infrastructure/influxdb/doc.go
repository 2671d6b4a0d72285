// Package influxdb records printer probe telemetry in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Two measurements are
// written:
//
//	printer_probe       tags: printer_id, protocol, method
//	                    fields: ok, elapsed_ms, status (HTTP only)
//	printer_connection  tags: printer_id
//	                    fields: connected
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteProbeResult(influxdb.ProbeSample{PrinterID: id, Protocol: "raw9100", Method: "tcp", OK: true})
//
// # Error Handling
//
// Writes are batched per batch_size and flush_interval and never block the
// caller. Batch failures are delivered to the SetOnError callback.
package influxdb
