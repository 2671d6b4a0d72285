// Package logging provides structured logging for Workbench Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the application.
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.Component("printer").Warn("probe failed", "printer_id", id)
//
// # Security
//
// Never log secrets, tokens, or password hashes. Printer hosts and ports
// are fine to log; they are shop-LAN addresses.
package logging
