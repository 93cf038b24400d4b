package station

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"
)

const (
	pingAfter        = 10 * time.Second
	disconnectAfter  = 120 * time.Second
	heartbeatCheckAt = 20 * time.Second

	reconnectMin = 1 * time.Second
	reconnectMax = 60 * time.Second

	// notificationBuffer bounds the queue between the channel and the
	// engine. Notifications carry no payload, only "something changed",
	// so dropping under backpressure loses nothing: the next sync picks
	// up the same state.
	notificationBuffer = 64
)

// inboundFrame wraps a message read from the WebSocket by the reader
// goroutine.
type inboundFrame struct {
	typ  websocket.MessageType
	data []byte
	err  error
}

// Realtime maintains the optional push channel to a station. A reader
// goroutine feeds inbound frames to a single event loop that dispatches
// "room updated" notifications and owns all writes (pings), so no write
// mutex is needed. The channel's absence degrades gracefully: the engine
// polls while Connected reports false.
type Realtime struct {
	url    string
	logger *slog.Logger

	conn      *websocket.Conn
	inboundCh chan inboundFrame
	notifCh   chan Notification

	lastMessage time.Time
	lastMsgMu   sync.Mutex

	connected   bool
	connectedMu sync.RWMutex
}

// NewRealtime creates a push channel client for the given ws:// or
// wss:// URL. Run must be called to connect.
func NewRealtime(url string, logger *slog.Logger) *Realtime {
	return &Realtime{
		url:     url,
		logger:  logger,
		notifCh: make(chan Notification, notificationBuffer),
	}
}

// Notifications returns the stream of push notifications. The channel is
// never closed; consumers select against their context.
func (r *Realtime) Notifications() <-chan Notification {
	return r.notifCh
}

// Connected reports whether the push channel is currently live. The
// engine arms its poll timer whenever this is false.
func (r *Realtime) Connected() bool {
	r.connectedMu.RLock()
	defer r.connectedMu.RUnlock()

	return r.connected
}

// Run connects and processes frames until ctx is cancelled, reconnecting
// with exponential backoff and jitter after connection loss. A failed
// initial dial is not fatal; it just starts in the backoff loop.
func (r *Realtime) Run(ctx context.Context) error {
	backoff := reconnectMin

	for {
		err := r.connect(ctx)
		if err == nil {
			backoff = reconnectMin
			err = r.eventLoop(ctx)
		}

		r.setConnected(false)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.logger.Debug("realtime channel down, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)

		jitter := time.Duration(rand.Int64N(int64(backoff) / 2))
		timer := time.NewTimer(backoff + jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = min(backoff*2, reconnectMax)
	}
}

// connect dials the WebSocket and starts the reader goroutine.
func (r *Realtime) connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", r.url, err)
	}

	conn.SetReadLimit(1024 * 1024)

	r.conn = conn
	r.touchLastMessage()
	r.startReader(ctx)
	r.setConnected(true)

	r.logger.Info("realtime channel connected", slog.String("url", r.url))

	return nil
}

// startReader launches a goroutine feeding inboundCh. The goroutine
// captures the channel by value so a stale reader from a previous
// connection cannot send into the new one.
func (r *Realtime) startReader(ctx context.Context) {
	ch := make(chan inboundFrame, 16)
	r.inboundCh = ch
	conn := r.conn

	go func() {
		for {
			typ, data, err := conn.Read(ctx)
			select {
			case ch <- inboundFrame{typ: typ, data: data, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

// eventLoop processes inbound frames and heartbeat ticks for one
// connection. Returns on read error or context cancellation.
func (r *Realtime) eventLoop(ctx context.Context) error {
	ticker := time.NewTicker(heartbeatCheckAt)
	defer ticker.Stop()

	for {
		select {
		case frame := <-r.inboundCh:
			if frame.err != nil {
				return fmt.Errorf("reading frame: %w", frame.err)
			}
			r.touchLastMessage()

			if frame.typ != websocket.MessageText {
				r.logger.Debug("unexpected binary frame", slog.Int("bytes", len(frame.data)))
				continue
			}

			r.handleFrame(frame.data)

		case <-ticker.C:
			r.lastMsgMu.Lock()
			elapsed := time.Since(r.lastMessage)
			r.lastMsgMu.Unlock()

			if elapsed > disconnectAfter {
				r.logger.Warn("realtime channel timed out, closing")
				r.conn.Close(websocket.StatusGoingAway, "timeout")
				return fmt.Errorf("heartbeat timeout")
			}

			if elapsed > pingAfter {
				if err := r.writeJSON(ctx, map[string]string{"op": "ping"}); err != nil {
					return fmt.Errorf("sending ping: %w", err)
				}
			}

		case <-ctx.Done():
			r.conn.Close(websocket.StatusNormalClosure, "bye")
			return ctx.Err()
		}
	}
}

// handleFrame dispatches one inbound text frame by its op field.
func (r *Realtime) handleFrame(data []byte) {
	op := gjson.GetBytes(data, "op").Str

	switch {
	case op == "pong":
		return

	case op == "notify" || gjson.GetBytes(data, "collectionType").Exists():
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			r.logger.Debug("unparseable notification", slog.Int("bytes", len(data)))
			return
		}

		select {
		case r.notifCh <- n:
		default:
			// Buffer full. The pending notifications already force a
			// sync, which will observe this change too.
			r.logger.Debug("dropping notification, buffer full",
				slog.String("path", n.Path))
		}

	default:
		r.logger.Debug("unexpected frame", slog.String("op", op))
	}
}

func (r *Realtime) writeJSON(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling message: %w", err)
	}

	return r.conn.Write(ctx, websocket.MessageText, data)
}

func (r *Realtime) setConnected(v bool) {
	r.connectedMu.Lock()
	r.connected = v
	r.connectedMu.Unlock()
}

func (r *Realtime) touchLastMessage() {
	r.lastMsgMu.Lock()
	r.lastMessage = time.Now()
	r.lastMsgMu.Unlock()
}
