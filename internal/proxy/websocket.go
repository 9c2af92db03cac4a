// Package proxy relays a session's CDP websocket to live view clients.
package proxy

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

const dialTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Leases resolves a session id to the lease of its browser
type Leases interface {
	Lease(sessionID string) (*models.Lease, error)
}

type Server struct {
	leases Leases
	dialer *websocket.Dialer
}

func NewServer(leases Leases) *Server {
	return &Server{
		leases: leases,
		dialer: websocket.DefaultDialer,
	}
}

// HandleLiveView upgrades the request and pipes frames between the client
// and the session's browser until either side hangs up
func (s *Server) HandleLiveView(w http.ResponseWriter, r *http.Request, sessionID string) {
	lease, err := s.leases.Lease(sessionID)
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if lease == nil || lease.ConnectURL == "" {
		http.Error(w, "Session has no browser endpoint", http.StatusGone)
		return
	}

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer clientConn.Close()

	log.Printf("✅ Live view client connected to session %s", sessionID)

	ctx, cancel := context.WithTimeout(r.Context(), dialTimeout)
	defer cancel()

	header := http.Header{}
	for k, v := range lease.Headers {
		header.Set(k, v)
	}

	browserConn, _, err := s.dialer.DialContext(ctx, lease.ConnectURL, header)
	if err != nil {
		log.Printf("❌ Failed to connect to browser for session %s: %v", sessionID, err)
		clientConn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("Error connecting: %v", err)))
		return
	}
	defer browserConn.Close()

	errChan := make(chan error, 2)

	go func() {
		errChan <- relay(clientConn, browserConn, "client→browser")
	}()

	go func() {
		errChan <- relay(browserConn, clientConn, "browser→client")
	}()

	err = <-errChan
	if err != nil && err != io.EOF && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		log.Printf("Proxy error for session %s: %v", sessionID, err)
	}

	log.Printf("Live view client disconnected from session %s", sessionID)
}

func relay(src, dst *websocket.Conn, direction string) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error (%s): %v", direction, err)
			}
			return err
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			log.Printf("Failed to write message (%s): %v", direction, err)
			return err
		}
	}
}
