package module

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi-go/protocol"
)

// Status codes carried in module replies, following HTTP conventions.
const (
	StatusSuccess          = 200
	StatusBadRequest       = 400
	StatusNotFound         = 404
	StatusMethodNotAllowed = 405
	StatusInternalError    = 500
)

// HandlerFunc executes one command and returns the reply data. A returned
// error becomes a status 500 reply.
type HandlerFunc func(cmd protocol.Command) (map[string]any, error)

// Config describes one module endpoint.
type Config struct {
	// ID is the module identity; empty gets a generated one.
	ID string

	Type protocol.ModuleType

	// Addr is the UDP listen address, defaulting to the protocol port on
	// all interfaces. Use ":0" for an ephemeral port.
	Addr string
}

// Endpoint is one addressable module: it listens on a UDP port, answers
// discovery, and dispatches commands addressed to its ID or "*" to
// registered action handlers.
type Endpoint struct {
	id  string
	typ protocol.ModuleType

	conn *net.UDPConn

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	closeOnce sync.Once
}

// New binds the endpoint's UDP listener.
func New(cfg Config) (*Endpoint, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if !cfg.Type.Valid() {
		return nil, fmt.Errorf("%w: invalid module_type %q", protocol.ErrValidation, cfg.Type)
	}
	if cfg.Addr == "" {
		cfg.Addr = fmt.Sprintf(":%d", protocol.DefaultPort)
	}

	laddr, err := net.ResolveUDPAddr("udp4", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", protocol.ErrConnection, cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %v", protocol.ErrConnection, cfg.Addr, err)
	}

	return &Endpoint{
		id:       cfg.ID,
		typ:      cfg.Type,
		conn:     conn,
		handlers: make(map[string]HandlerFunc),
	}, nil
}

// ID returns the module identity.
func (e *Endpoint) ID() string { return e.id }

// Addr returns the bound listen address.
func (e *Endpoint) Addr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Handle registers fn for one action, replacing any previous handler.
func (e *Endpoint) Handle(action string, fn HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[action] = fn
}

// Serve reads and answers datagrams until Close. It returns nil after a
// clean shutdown.
func (e *Endpoint) Serve() error {
	buf := make([]byte, readBufferSize)
	for {
		n, source, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("%w: read: %v", protocol.ErrConnection, err)
		}
		e.process(buf[:n], source)
	}
}

const readBufferSize = 2048

func (e *Endpoint) process(data []byte, source *net.UDPAddr) {
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		log.Debug().Str("module", e.id).Err(err).Msg("module: dropping invalid message")
		e.reply(source, StatusBadRequest, "invalid message format", nil, nil)
		return
	}

	for _, cmd := range msg.Commands {
		if cmd.ModuleID != e.id && cmd.ModuleID != "*" {
			continue
		}
		e.handleCommand(cmd, msg.Sequence, source)
	}
}

func (e *Endpoint) handleCommand(cmd protocol.Command, seq *int32, source *net.UDPAddr) {
	if cmd.Action == "discover" {
		e.reply(source, StatusSuccess, "discovery response",
			map[string]any{"module_type": string(e.typ)}, seq)
		return
	}

	e.mu.RLock()
	fn, ok := e.handlers[cmd.Action]
	e.mu.RUnlock()
	if !ok {
		e.reply(source, StatusMethodNotAllowed,
			fmt.Sprintf("no handler for action %q", cmd.Action), nil, seq)
		return
	}

	data, err := fn(cmd)
	if err != nil {
		e.reply(source, StatusInternalError, err.Error(), nil, seq)
		return
	}
	e.reply(source, StatusSuccess, "ok", data, seq)
}

func (e *Endpoint) reply(source *net.UDPAddr, status int, message string, data map[string]any, seq *int32) {
	if seq != nil {
		if data == nil {
			data = make(map[string]any, 1)
		}
		data["sequence"] = *seq
	}
	resp := protocol.Response{
		Status:    status,
		Message:   message,
		ModuleID:  e.id,
		Timestamp: protocol.Timestamp(),
		Data:      data,
	}
	payload, err := protocol.EncodeResponse(resp)
	if err != nil {
		log.Warn().Str("module", e.id).Err(err).Msg("module: reply encode failed")
		return
	}
	if _, err := e.conn.WriteToUDP(payload, source); err != nil {
		log.Warn().Str("module", e.id).Err(err).Msg("module: reply send failed")
	}
}

// Close stops the listener. Idempotent.
func (e *Endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.conn.Close()
	})
	return err
}
