package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// wsSession is the WebSocket transport. One goroutine owns the read side
// of the connection; writes are serialized under a mutex.
type wsSession struct {
	eventSender

	conn      *websocket.Conn
	logger    *slog.Logger
	closeCh   chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once

	writeMu sync.Mutex

	mu        sync.Mutex
	sessionID string
}

type eventOrError struct {
	event *ServerEvent
	err   error
}

func (c *Client) connectWebSocket(ctx context.Context, config *ConnectConfig) (*wsSession, error) {
	if config == nil {
		config = &ConnectConfig{}
	}
	model := config.Model
	if model == "" {
		model = ModelGPT4oRealtimePreview
	}

	url := fmt.Sprintf("%s?model=%s", c.config.wsURL, model)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.config.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")
	if c.config.organization != "" {
		headers.Set("OpenAI-Organization", c.config.organization)
	}
	if c.config.project != "" {
		headers.Set("OpenAI-Project", c.config.project)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.httpClient.Timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("dial %s: %v", url, err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}

	s := &wsSession{
		conn:     conn,
		logger:   c.config.logger,
		closeCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
	}
	s.eventSender = eventSender{write: s.writeEvent}

	go s.readLoop()

	return s, nil
}

// writeEvent marshals and sends one client event. Writes are serialized;
// a closed session refuses further writes.
func (s *wsSession) writeEvent(event any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.closeCh:
		return ErrSessionClosed
	default:
	}

	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		if b, err := json.Marshal(event); err == nil {
			s.logger.Debug("realtime: send", "event", truncateForLog(b, 500))
		}
	}
	return s.conn.WriteJSON(event)
}

// readLoop is the only reader of the connection. It decodes messages and
// feeds the event channel until the connection fails or Close is called.
func (s *wsSession) readLoop() {
	defer close(s.eventsCh)

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
			case s.eventsCh <- eventOrError{err: fmt.Errorf("realtime: read: %w", err)}:
			}
			return
		}

		if s.logger.Enabled(context.Background(), slog.LevelDebug) {
			s.logger.Debug("realtime: recv", "len", len(message), "event", truncateForLog(message, 1000))
		}

		event, err := parseServerEvent(message)
		if err != nil {
			select {
			case <-s.closeCh:
				return
			case s.eventsCh <- eventOrError{err: err}:
			}
			continue
		}

		if event.Type == EventSessionCreated && event.Session != nil {
			s.mu.Lock()
			s.sessionID = event.Session.ID
			s.mu.Unlock()
		}

		select {
		case <-s.closeCh:
			return
		case s.eventsCh <- eventOrError{event: event}:
		}
	}
}

// Events yields server events until the session closes. A transport
// failure is yielded once as the final error.
func (s *wsSession) Events() iter.Seq2[*ServerEvent, error] {
	return func(yield func(*ServerEvent, error) bool) {
		for {
			select {
			case <-s.closeCh:
				return
			case item, ok := <-s.eventsCh:
				if !ok {
					return
				}
				if !yield(item.event, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}

// SessionID returns the ID observed in session.created.
func (s *wsSession) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Close shuts the connection down. Idempotent.
func (s *wsSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close()
	})
	return err
}

var _ Session = (*wsSession)(nil)
