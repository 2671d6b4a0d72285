package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/workbench-core/internal/infrastructure/config"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second

	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// Client writes printer telemetry to a single bucket. Writes are batched and
// never block the caller; batch failures go to the SetOnError callback.
type Client struct {
	influx influxdb2.Client
	writes api.WriteAPI

	closed  atomic.Bool
	onError atomic.Pointer[func(error)]
}

// Connect pings the server and opens the batched write API. It returns
// ErrDisabled when the influxdb section is off, and ErrConnectionFailed if
// the ping fails within ctx and the connect timeout.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))
	if err := ping(ctx, influx, connectTimeout); err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		influx: influx,
		writes: influx.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.forwardErrors(c.writes.Errors())
	return c, nil
}

// clientOptions maps batch settings, using the defaults for zero or
// negative values.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize) // #nosec G115 -- positive
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive
}

func ping(ctx context.Context, influx influxdb2.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	healthy, err := influx.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return errUnhealthy
	}
	return nil
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		if fn := c.onError.Load(); fn != nil {
			(*fn)(err)
		}
	}
}

// Close flushes buffered points and releases the client. Safe to call
// more than once.
func (c *Client) Close() error {
	if c.influx == nil || c.closed.Swap(true) {
		return nil
	}
	c.writes.Flush()
	c.influx.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ping(ctx, c.influx, pingTimeout); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected is true between a successful Connect and Close. It does not
// reflect server outages; HealthCheck does.
func (c *Client) IsConnected() bool {
	return c.influx != nil && !c.closed.Load()
}

// SetOnError sets the callback for asynchronous batch write failures.
func (c *Client) SetOnError(fn func(err error)) {
	c.onError.Store(&fn)
}

// Flush blocks until buffered points are sent. A no-op after Close.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writes.Flush()
	}
}
