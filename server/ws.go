package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/arbiterhq/switchboard/store"
)

// wsConn serializes writes to one WebSocket connection. The loop goroutine
// and the handler may both touch the socket, so writes take a mutex.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// handleStreamWS upgrades the connection, reads a single request frame and
// streams loop events back as JSON text messages. Protocol errors close the
// socket with an unsupported-data status; a completed stream closes normally.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	ws := &wsConn{conn: conn}
	ctx := r.Context()

	_, data, err := conn.Read(ctx)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "expected request frame")
		return
	}
	var req streamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		_ = ws.writeJSON(ctx, errorResponse{Error: "invalid request frame: " + err.Error()})
		conn.Close(websocket.StatusUnsupportedData, "invalid request frame")
		return
	}
	if req.TenantID == "" {
		_ = ws.writeJSON(ctx, errorResponse{Error: "tenant_id is required"})
		conn.Close(websocket.StatusUnsupportedData, "tenant_id is required")
		return
	}

	events, err := s.loop.Run(ctx, req.Messages, store.TenantContext{TenantID: req.TenantID, UserID: req.UserID})
	if err != nil {
		_ = ws.writeJSON(ctx, errorResponse{Error: err.Error()})
		conn.Close(websocket.StatusUnsupportedData, "invalid conversation")
		return
	}

	for ev := range events {
		if err := ws.writeJSON(ctx, ev); err != nil {
			// Client went away. Context cancellation stops the loop;
			// drain so the composer goroutine can exit.
			for range events {
			}
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "stream complete")
}
