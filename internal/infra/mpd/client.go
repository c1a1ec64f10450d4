// Package mpd drives a Music Player Daemon as the playback output.
package mpd

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned by Ping before Connect succeeded.
var ErrNotConnected = errors.New("mpd: not connected")

// watchRetryDelay throttles watcher error logging.
const watchRetryDelay = time.Second

// Client is a command connection to MPD. A connection found dead before a
// command is redialed once.
type Client struct {
	addr     string
	password string

	mu      sync.Mutex
	conn    *mpd.Client
	watcher *mpd.Watcher
	done    chan struct{}
}

// NewClient creates a client for the daemon at host:port.
func NewClient(host string, port int, password string) *Client {
	return &Client{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		password: password,
		done:     make(chan struct{}),
	}
}

// Connect dials the daemon.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialLocked()
}

func (c *Client) dialLocked() error {
	conn, err := mpd.DialAuthenticated("tcp", c.addr, c.password)
	if err != nil {
		return fmt.Errorf("mpd dial %s: %w", c.addr, err)
	}
	c.conn = conn
	log.Info().Str("addr", c.addr).Msg("Connected to MPD")
	return nil
}

// liveLocked returns a connection that answered a ping, redialing if needed.
func (c *Client) liveLocked() (*mpd.Client, error) {
	if c.conn != nil {
		if err := c.conn.Ping(); err == nil {
			return c.conn, nil
		}
		log.Warn().Str("addr", c.addr).Msg("MPD connection lost, redialing")
		c.conn.Close()
		c.conn = nil
	}
	if err := c.dialLocked(); err != nil {
		return nil, err
	}
	return c.conn, nil
}

// exec runs fn on a live connection. Commands are serialized.
func (c *Client) exec(op string, fn func(*mpd.Client) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.liveLocked()
	if err != nil {
		return err
	}
	if err := fn(conn); err != nil {
		return fmt.Errorf("mpd %s: %w", op, err)
	}
	return nil
}

// Ping checks the current connection without redialing.
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.Ping()
}

// Close stops the watcher and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if c.watcher != nil {
		c.watcher.Close()
		c.watcher = nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Status returns the player status attributes.
func (c *Client) Status() (mpd.Attrs, error) {
	var attrs mpd.Attrs
	err := c.exec("status", func(m *mpd.Client) (err error) {
		attrs, err = m.Status()
		return err
	})
	return attrs, err
}

// Replace makes uri the only queue entry and starts playing it.
func (c *Client) Replace(uri string) error {
	return c.exec("replace", func(m *mpd.Client) error {
		if err := m.Clear(); err != nil {
			return err
		}
		if err := m.Add(uri); err != nil {
			return err
		}
		return m.Play(0)
	})
}

// Play starts the queue entry at pos.
func (c *Client) Play(pos int) error {
	return c.exec("play", func(m *mpd.Client) error { return m.Play(pos) })
}

// Pause pauses or unpauses.
func (c *Client) Pause(pause bool) error {
	return c.exec("pause", func(m *mpd.Client) error { return m.Pause(pause) })
}

// Stop stops playback.
func (c *Client) Stop() error {
	return c.exec("stop", func(m *mpd.Client) error { return m.Stop() })
}

// SeekCur seeks to d within the current song.
func (c *Client) SeekCur(d time.Duration) error {
	return c.exec("seek", func(m *mpd.Client) error { return m.SeekCur(d, false) })
}

// Watch opens an idle connection and forwards changed subsystem names.
// The channel closes when the client is closed.
func (c *Client) Watch(subsystems ...string) (<-chan string, error) {
	w, err := mpd.NewWatcher("tcp", c.addr, c.password, subsystems...)
	if err != nil {
		return nil, fmt.Errorf("mpd watch: %w", err)
	}

	c.mu.Lock()
	c.watcher = w
	c.mu.Unlock()

	out := make(chan string, 8)
	go func() {
		defer close(out)
		for {
			select {
			case <-c.done:
				return
			case name, ok := <-w.Event:
				if !ok {
					return
				}
				select {
				case out <- name:
				case <-c.done:
					return
				}
			case err, ok := <-w.Error:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("MPD watcher error")
				time.Sleep(watchRetryDelay)
			}
		}
	}()
	return out, nil
}
