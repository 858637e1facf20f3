// Package socket connects to the ordering API's live channel and exposes
// the correlation id the server assigns to the connection.
package socket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrHandshake is returned when the first frame is not a connected event.
	ErrHandshake = errors.New("live channel handshake failed")
	// ErrClosed is returned by operations on a closed channel.
	ErrClosed = errors.New("live channel closed")
)

// Config holds live channel configuration.
type Config struct {
	// ConnectTimeout bounds the websocket handshake and the wait for the
	// connected event.
	ConnectTimeout time.Duration
	// PingInterval is the keepalive period. Zero disables pings.
	PingInterval time.Duration
}

// DefaultConfig returns the default live channel configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		PingInterval:   25 * time.Second,
	}
}

// Event is a frame received on the channel.
type Event struct {
	Event string `json:"event"`
	ID    string `json:"id,omitempty"`
}

// Channel is a connected live channel.
type Channel struct {
	conn      *websocket.Conn
	id        string
	config    Config
	logger    zerolog.Logger
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to rawURL, authenticating with token, and waits for the
// server's connected event.
func Dial(ctx context.Context, rawURL, token string, cfg Config) (*Channel, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.ConnectTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	header := make(http.Header)
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial live channel (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial live channel: %w", err)
	}

	deadline := time.Now().Add(cfg.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	var first Event
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if first.Event != "connected" || first.ID == "" {
		conn.Close()
		return nil, fmt.Errorf("%w: unexpected first event %q", ErrHandshake, first.Event)
	}
	conn.SetReadDeadline(time.Time{})

	c := &Channel{
		conn:   conn,
		id:     first.ID,
		config: cfg,
		logger: log.With().Str("component", "live-channel").Str("socket_id", first.ID).Logger(),
		done:   make(chan struct{}),
	}

	go c.readLoop()
	if cfg.PingInterval > 0 {
		go c.pingLoop()
	}

	c.logger.Info().Msg("Live channel connected")
	return c, nil
}

// ID returns the server-assigned correlation id, or "" when the channel is
// nil or closed.
func (c *Channel) ID() string {
	if c == nil {
		return ""
	}
	select {
	case <-c.done:
		return ""
	default:
		return c.id
	}
}

// Done is closed when the connection ends.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and tears the connection down.
func (c *Channel) Close() error {
	if c == nil {
		return nil
	}
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

// readLoop drains server frames so control messages are processed.
// Frames that are not JSON events are logged and skipped.
func (c *Channel) readLoop() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn().Err(err).Msg("Live channel dropped")
				}
				c.Close()
			}
			return
		}

		ev, ok := decodeEvent(msgType, data)
		if !ok {
			c.logger.Debug().Int("bytes", len(data)).Msg("Skipping non-event frame")
			continue
		}
		c.logger.Debug().Str("event", ev.Event).Msg("Live channel event")
	}
}

// decodeEvent parses a text frame holding a JSON object with an event name.
func decodeEvent(msgType int, data []byte) (Event, bool) {
	if msgType != websocket.TextMessage {
		return Event{}, false
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil || ev.Event == "" {
		return Event{}, false
	}
	return ev, true
}

func (c *Channel) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.ConnectTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Warn().Err(err).Msg("Live channel ping failed")
				c.Close()
				return
			}
		}
	}
}
