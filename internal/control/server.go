// File: internal/control/server.go
package control

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	// commandTimeout bounds a single command; a wedged detection cycle must
	// not pin the connection forever.
	commandTimeout = 30 * time.Second
)

// Server owns the websocket listener.
type Server struct {
	agent Agent
	log   *zap.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// NewServer builds a server around the agent.
func NewServer(agent Agent, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		agent: agent,
		log:   log.Named("control"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The surface binds to loopback; the collaborator is a local
			// process, not a page script.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler exposes the endpoint for embedding and tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.handleControl)
	return mux
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("control: listening on %s: %w", addr, err)
	}
	s.httpSrv = &http.Server{Handler: s.Handler()}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("Control server stopped unexpectedly.", zap.Error(err))
		}
	}()
	s.log.Info("Control surface listening.", zap.String("addr", ln.Addr().String()))
	return nil
}

// Shutdown stops accepting commands and drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed.", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	s.log.Debug("Control client connected.", zap.String("remote", conn.RemoteAddr().String()))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Control client read error.", zap.Error(err))
			}
			return
		}

		var cmd Command
		resp := Response{}
		if err := json.Unmarshal(raw, &cmd); err != nil {
			resp.ID = uuid.New().String()
			resp.Error = "malformed command"
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
			resp = dispatch(ctx, s.agent, cmd)
			cancel()
		}

		payload, err := json.Marshal(resp)
		if err != nil {
			s.log.Error("Response marshal failed.", zap.Error(err))
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.log.Debug("Control client write error.", zap.Error(err))
			return
		}
	}
}
