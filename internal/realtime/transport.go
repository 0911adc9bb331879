package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BranchManager69/degenduel-realtime/internal/protocol"
)

// CloseInfo describes how a transport ended. Err is non-nil when the read
// failed for a reason other than a well-formed close frame.
type CloseInfo struct {
	Code   int
	Reason string
	Err    error
}

// Transport is a single bidirectional connection. Frames delivers inbound
// text frames; Done delivers exactly one CloseInfo when the read side ends.
// The Manager is the only component holding a Transport reference.
type Transport interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	Close() error
	Frames() <-chan []byte
	Done() <-chan CloseInfo
	IsOpen() bool
}

// TransportConfig configures a WebSocket transport.
type TransportConfig struct {
	URL          string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

// TransportFactory builds a Transport for a target address. Injected in
// tests to run the Manager against a fake.
type TransportFactory func(cfg TransportConfig, logger *slog.Logger) Transport

// wsTransport implements Transport over gorilla/websocket.
type wsTransport struct {
	cfg    TransportConfig
	logger *slog.Logger

	conn *websocket.Conn

	frames chan []byte
	done   chan CloseInfo
	quit   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu     sync.RWMutex
	open   bool
	closed bool
}

// NewWSTransport creates a gorilla-backed transport. It is the default
// TransportFactory.
func NewWSTransport(cfg TransportConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 1000
	}
	return &wsTransport{
		cfg:    cfg,
		logger: logger,
		frames: make(chan []byte, cfg.BufferSize),
		done:   make(chan CloseInfo, 1),
		quit:   make(chan struct{}),
	}
}

// Connect dials the endpoint and starts the read loop.
func (t *wsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.DialTimeout,
	}

	header := http.Header{}
	header.Set("Accept", "application/json")

	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.open = true
	t.mu.Unlock()

	go t.readLoop()

	t.logger.Debug("websocket connected", "url", t.cfg.URL)
	return nil
}

// Close gracefully closes the connection. Idempotent.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.open = false
	conn := t.conn
	t.mu.Unlock()

	close(t.quit)

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

// Send writes a text frame.
func (t *wsTransport) Send(data []byte) error {
	t.mu.RLock()
	if !t.open {
		t.mu.RUnlock()
		return ErrNotConnected
	}
	conn := t.conn
	t.mu.RUnlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Frames() <-chan []byte {
	return t.frames
}

func (t *wsTransport) Done() <-chan CloseInfo {
	return t.done
}

func (t *wsTransport) IsOpen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.open
}

// readLoop reads frames until the connection ends, then emits one CloseInfo.
func (t *wsTransport) readLoop() {
	defer func() {
		t.mu.Lock()
		t.open = false
		t.mu.Unlock()
	}()

	for {
		select {
		case <-t.quit:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		if err != nil {
			// A deliberate Close races the read error; suppress the event.
			select {
			case <-t.quit:
				return
			default:
			}

			t.done <- closeInfoFromErr(err)
			return
		}

		select {
		case t.frames <- data:
		case <-t.quit:
			return
		default:
			t.logger.Warn("frame buffer full, dropping frame")
		}
	}
}

// closeInfoFromErr maps a read error onto a close code and reason.
func closeInfoFromErr(err error) CloseInfo {
	if ce, ok := err.(*websocket.CloseError); ok {
		info := CloseInfo{Code: ce.Code, Reason: ce.Text}
		if ce.Code != protocol.CloseNormal && ce.Code != protocol.CloseGoingAway {
			info.Err = err
		}
		return info
	}
	return CloseInfo{Code: protocol.CloseAbnormal, Reason: err.Error(), Err: err}
}
