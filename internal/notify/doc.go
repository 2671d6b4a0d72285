// Package notify forwards printer registry events to external systems.
//
// Each adapter implements printer.EventSink and depends only on a narrow
// interface of the infrastructure client it drives, so the registry never
// imports broker or database packages directly:
//
//	printer.Manager ──emit──▶ MQTTSink   ──▶ mqtt.Client
//	                    └───▶ InfluxSink ──▶ influxdb.Client
//
// Sinks run on the request goroutine after the change is committed. Publish
// failures are logged and never surface to the API caller.
package notify
