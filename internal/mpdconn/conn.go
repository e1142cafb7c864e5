// Package mpdconn adapts the MPD client library to the interfaces the rest
// of the system depends on: an ordered command submitter for the batcher and
// an idle-loop track feed for the event bus and listening history.
package mpdconn

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"aria/internal/config"
	"aria/internal/logging"
)

// Client is a lazily connected MPD connection shared by command submission.
// All protocol traffic is serialized on one connection; the MPD protocol is
// strictly request/response so interleaving would corrupt the stream.
type Client struct {
	addr     string
	password string
	timeout  time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	conn *mpd.Client
}

// NewClient builds a client from the MPD section of the configuration. No
// connection is made until the first use.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		addr:     fmt.Sprintf("%s:%d", cfg.MPD.Host, cfg.MPD.Port),
		password: cfg.MPD.Password,
		timeout:  time.Duration(cfg.MPD.Timeout) * time.Second,
		logger:   logging.NewComponentLogger(logger, "mpd"),
	}
}

// Addr returns the daemon address this client targets.
func (c *Client) Addr() string { return c.addr }

// Ping verifies the daemon is reachable.
func (c *Client) Ping() error {
	return c.withConn(func(conn *mpd.Client) error {
		return conn.Ping()
	})
}

// Close tears down the connection if one is open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// withConn runs fn against a live connection, dialing on demand. A protocol
// error drops the connection so the next call redials.
func (c *Client) withConn(fn func(conn *mpd.Client) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := c.dial()
		if err != nil {
			return fmt.Errorf("dial mpd at %s: %w", c.addr, err)
		}
		c.conn = conn
	}

	if err := fn(c.conn); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) dial() (*mpd.Client, error) {
	if c.password != "" {
		return mpd.DialAuthenticated("tcp", c.addr, c.password)
	}
	return mpd.Dial("tcp", c.addr)
}
