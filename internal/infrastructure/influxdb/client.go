package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/litterbridge/internal/infrastructure/config"
)

var (
	// ErrConnectionFailed wraps every Connect failure.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck once the client is closed.
	ErrNotConnected = errors.New("influxdb: not connected")
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Fallbacks for a config that leaves batching unset.
	fallbackBatchSize     = 100
	fallbackFlushInterval = 10 * time.Second
)

// Client records robot state as InfluxDB points. Writes are batched and
// sent in the background; their failures go to the SetOnError callback.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - A nil *Client drops writes and closes cleanly.
type Client struct {
	influx influxdb2.Client
	writes api.WriteAPI

	open    atomic.Bool
	onError atomic.Pointer[func(error)]
}

// Connect pings cfg.URL and prepares the batching writer for cfg.Bucket.
// Whether telemetry is enabled at all is the caller's decision.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	healthy, err := influx.Ping(pingCtx)
	switch {
	case err != nil:
		influx.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnectionFailed, cfg.URL, err)
	case !healthy:
		influx.Close()
		return nil, fmt.Errorf("%w: %s reports unhealthy", ErrConnectionFailed, cfg.URL)
	}

	c := &Client{
		influx: influx,
		writes: influx.WriteAPI(cfg.Org, cfg.Bucket),
	}
	c.open.Store(true)

	go c.drainErrors(c.writes.Errors())
	return c, nil
}

// writeOptions applies the configured batching, falling back to defaults
// for unset values.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(fallbackBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := fallbackFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive by construction
}

// drainErrors forwards write failures until the write API shuts down.
func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		if fn := c.onError.Load(); fn != nil {
			(*fn)(err)
		}
	}
}

// SetOnError registers the callback for failed background writes.
func (c *Client) SetOnError(fn func(err error)) {
	c.onError.Store(&fn)
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.isOpen() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.influx.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !healthy {
		return errors.New("influxdb health check: server unhealthy")
	}
	return nil
}

// Close flushes buffered points and releases the client. Writes after Close
// are dropped.
func (c *Client) Close() error {
	if c == nil || !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writes.Flush()
	c.influx.Close()
	return nil
}

func (c *Client) isOpen() bool {
	return c != nil && c.open.Load()
}
