package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsWriteWait      = 10 * time.Second
	wsMinBackoff     = time.Second
	wsMaxBackoff     = 30 * time.Second
	wsMaxMessageSize = 1 << 20
)

// WebSocketSource reads push events from the platform WebSocket and hands
// every text frame to handler. It reconnects with exponential backoff until
// stopped.
type WebSocketSource struct {
	url     string
	token   string
	handler func([]byte)
	dialer  *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebSocketSource creates an unstarted source
func NewWebSocketSource(url, token string, handler func([]byte)) *WebSocketSource {
	return &WebSocketSource{
		url:     url,
		token:   token,
		handler: handler,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
	}
}

// Start launches the connect-read loop
func (s *WebSocketSource) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run(ctx)
	logrus.Infof("WebSocket event source started (%s)", s.url)
}

// Stop closes the connection and waits for the loop to exit
func (s *WebSocketSource) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	logrus.Info("WebSocket event source stopped")
}

func (s *WebSocketSource) run(ctx context.Context) {
	defer s.wg.Done()

	backoff := wsMinBackoff
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = wsMinBackoff
		}
		logrus.Warnf("WebSocket event source disconnected: %v (retrying in %v)", err, backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsMaxBackoff {
			backoff = wsMaxBackoff
		}
	}
}

// session dials once and reads until the connection fails
func (s *WebSocketSource) session(ctx context.Context) (bool, error) {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return false, ctx.Err()
	}
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	logrus.Info("WebSocket event source connected")

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		if msgType == websocket.TextMessage {
			s.handler(msg)
		}
	}
}
