package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"still_controller/internal/telemetry"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000 // 10s in ms
)

// Envelope used for polled WebSocket messages. Same shape as the telemetry frames.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Telemetry stream
// @Description  Upgrades to a WebSocket. Snapshot frames are pushed every control tick when the
// @Description  controller stream is attached, otherwise polled every ?interval. Clients that pass
// @Description  a valid ?token may send commands on the same socket: JSON text frames
// @Description  ({"type":"SET_PHASE","phase":"HEATING"}) always work, binary frames must use the configured codec.
// @Tags         telemetry
// @Param        token        query  string  false  "JWT; required to send commands"
// @Param        interval     query  string  false  "Polling interval when no stream is attached, e.g. 500ms"
// @Param        interval_ms  query  int     false  "Polling interval in milliseconds"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)
	canCommand := h.commandAllowed(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done, canCommand)

	if h.stream != nil {
		h.pushFrames(c.Request.Context(), conn, done)
		return
	}
	h.pollState(c.Request.Context(), conn, done, interval)
}

// pushFrames forwards every telemetry frame published by the control loop, starting
// with the most recent one.
func (h *Handler) pushFrames(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	sub, err := h.stream.Subscribe()
	if err != nil {
		if h.log != nil {
			h.log.Infow("ws_subscribe_failed", "err", err)
		}
		return
	}
	defer h.stream.Unsubscribe(sub)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if latest := h.stream.Latest(); latest != nil {
		if err := h.writeFrame(conn, latest); err != nil {
			if h.log != nil {
				h.log.Infow("ws_write_failed_initial", "err", err)
			}
			return
		}
	} else if err := h.sendState(ctx, conn); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := writePing(conn); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case frame, ok := <-sub.Frames():
			if !ok {
				// hub closed or we were dropped
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "controller stopped"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.writeFrame(conn, frame); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// pollState is the fallback when no stream is attached: Monitoring is sampled on a ticker.
func (h *Handler) pollState(ctx context.Context, conn *websocket.Conn, done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	// Send initial state immediately.
	if err := h.sendState(ctx, conn); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := writePing(conn); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-ticker.C:
			if err := h.sendState(ctx, conn); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// Helper: parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	interval := defaultInterval

	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return interval
}

// commandAllowed reports whether the connection may enqueue commands: a stream must be
// attached and ?token must parse.
func (h *Handler) commandAllowed(c *gin.Context) bool {
	tok := c.Query("token")
	if h.stream == nil || tok == "" || h.services == nil || h.services.Authorization == nil {
		return false
	}
	uid, err := h.services.ParseToken(tok)
	if err != nil {
		if h.log != nil {
			h.log.Infow("ws_token_rejected", "err", err)
		}
		return false
	}
	if h.log != nil {
		h.log.Debugw("ws_command_channel_open", "user_id", uid)
	}
	return true
}

// Helper: startReader drains incoming messages, forwarding them to the inbound queue
// when the client may command, and detects closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}, canCommand bool) {
	defer close(done)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
		if !canCommand {
			continue
		}
		// Validation happens in the control loop; a malformed payload is counted there.
		if err := h.stream.Enqueue(payload); err != nil && h.log != nil {
			h.log.Warnw("ws_command_dropped", "err", err, "bytes", len(payload))
		}
	}
}

func (h *Handler) writeFrame(conn *websocket.Conn, frame []byte) error {
	msgType := websocket.TextMessage
	if h.binaryFrames {
		msgType = websocket.BinaryMessage
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(msgType, frame)
}

func writePing(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// Helper: sendState fetches and writes the current state with a write deadline.
func (h *Handler) sendState(ctx context.Context, conn *websocket.Conn) error {
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_get_state_failed", "err", err)
		}
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: telemetry.FrameSnapshot, Data: st})
}
