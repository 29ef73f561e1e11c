package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nugget/gotravel-agent/internal/agent"
)

const (
	wsMaxPayloadBytes = 16 << 10
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 60 * time.Second
	wsPingInterval    = (wsPongWait * 9) / 10
)

// handleChatWS serves chat over a websocket. Each text frame carries a
// ChatRequest and is answered with a ChatResponse or ErrorResponse.
// Frames without a session_id continue the connection's session, so a
// client can hold one conversation without tracking the id itself.
// Turns on one connection run one at a time, in arrival order.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.allowOrigin(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &wsConn{server: s, conn: conn, ctx: ctx, cancel: cancel}
	c.run()
}

type wsConn struct {
	server *Server
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	writeMu   sync.Mutex
	sessionID string
}

func (c *wsConn) run() {
	defer c.close()
	go c.pingLoop()
	c.readLoop()
}

func (c *wsConn) close() {
	c.cancel()
	_ = c.conn.Close()
}

func (c *wsConn) readLoop() {
	c.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		// A turn can outlast the pong window; the client is busy
		// waiting on us, not gone.
		_ = c.conn.SetReadDeadline(time.Time{})
		c.handleFrame(data)
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}

func (c *wsConn) handleFrame(data []byte) {
	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send(ErrorResponse{Error: "Invalid JSON: " + err.Error(), Timestamp: c.server.now()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = c.sessionID
	}
	if req.SessionID == "" {
		req.SessionID = agent.NewSessionID()
	}

	// Later frames without an id continue this session even if this
	// turn fails.
	c.sessionID = req.SessionID

	resp, _, errBody := c.server.converse(c.ctx, req)
	if errBody != nil {
		if errBody.SessionID == "" {
			errBody.SessionID = req.SessionID
		}
		errBody.Timestamp = c.server.now()
		c.send(*errBody)
		return
	}
	c.send(resp)
}

func (c *wsConn) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.server.logger.Error("websocket encode failed", "error", err)
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.server.logger.Debug("websocket write failed", "error", err)
		c.cancel()
	}
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			c.writeMu.Unlock()
			if err != nil {
				c.cancel()
				return
			}
		}
	}
}
