package controller

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi-go/internal/observability"
	"github.com/qubi-project/qubi-go/protocol"
)

const readBufferSize = 4096

// Controller owns one UDP endpoint with a fixed remote module address and
// sends command batches over it. Only one correlation is awaited at a time
// per controller; callers needing concurrency run controllers from separate
// goroutines.
type Controller struct {
	host string
	port int
	opts Options

	conn     *net.UDPConn
	seq      *sequencer
	registry *handlerRegistry

	rngMu sync.Mutex
	rng   *rand.Rand

	closeMu sync.Mutex
	closed  bool
}

// New validates the target address and binds a UDP endpoint towards it.
func New(host string, port int, opts Options) (*Controller, error) {
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("%w: invalid IP address %q", protocol.ErrValidation, host)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: invalid port %d", protocol.ErrValidation, port)
	}
	opts = opts.WithDefaults()

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip, Port: port})
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s:%d: %v", protocol.ErrConnection, host, port, err)
	}

	return &Controller{
		host:     host,
		port:     port,
		opts:     opts,
		conn:     conn,
		seq:      newSequencer(!opts.DisableSequenceTracking),
		registry: newHandlerRegistry(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Host returns the target host.
func (c *Controller) Host() string { return c.host }

// Port returns the target port.
func (c *Controller) Port() int { return c.port }

// Connected reports whether the endpoint is still open.
func (c *Controller) Connected() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return !c.closed
}

// AddResponseHandler registers an observer for every decoded inbound
// datagram and returns a token for removal.
func (c *Controller) AddResponseHandler(fn ResponseHandler) int {
	return c.registry.addResponse(fn)
}

// RemoveResponseHandler drops the observer registered under id.
func (c *Controller) RemoveResponseHandler(id int) {
	c.registry.removeResponse(id)
}

// AddErrorHandler registers an observer for dispatch failures.
func (c *Controller) AddErrorHandler(fn ErrorHandler) int {
	return c.registry.addError(fn)
}

// RemoveErrorHandler drops the observer registered under id.
func (c *Controller) RemoveErrorHandler(id int) {
	c.registry.removeError(id)
}

// Send delivers a single command and waits for its reply.
func (c *Controller) Send(cmd protocol.Command) (*protocol.Response, error) {
	return c.SendBatch([]protocol.Command{cmd})
}

// SendBatch delivers commands in one message. With sequence tracking on it
// blocks until the matching reply arrives or the retry budget exhausts;
// with tracking off no sequence goes on the wire and the send is
// fire-and-forget with a nil response.
// Encoding and validation failures surface immediately without touching
// the network.
func (c *Controller) SendBatch(commands []protocol.Command) (*protocol.Response, error) {
	if !c.Connected() {
		return nil, fmt.Errorf("%w: controller", protocol.ErrClosed)
	}

	tracking := !c.opts.DisableSequenceTracking
	var seq int32
	var seqRef *int32
	if tracking {
		seq = c.seq.Next()
		seqRef = &seq
	}
	payload, err := protocol.EncodeMessage(protocol.NewMessage(commands, seqRef))
	if err != nil {
		return nil, err
	}

	return c.sendWithRetry(payload, seq, tracking, len(commands))
}

func (c *Controller) sendWithRetry(payload []byte, seq int32, tracking bool, ncmds int) (*protocol.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			observability.RecordSendRetry(c.host)
			c.rngMu.Lock()
			delay := NextBackoffDelay(c.opts.Backoff, attempt, c.rng)
			c.rngMu.Unlock()
			log.Debug().
				Int("attempt", attempt).
				Dur("backoff", delay).
				Str("host", c.host).
				Msg("controller: retrying send")
			time.Sleep(delay)
		}

		resp, err := c.attempt(payload, seq, tracking, ncmds)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		log.Warn().
			Int("attempt", attempt).
			Str("host", c.host).
			Err(err).
			Msg("controller: delivery attempt failed")
	}
	return nil, lastErr
}

// retryable reports whether err is transient. Validation and protocol
// defects, definitive remote answers, and a closed session are final.
func retryable(err error) bool {
	return errors.Is(err, protocol.ErrTimeout) || errors.Is(err, protocol.ErrConnection)
}

func (c *Controller) attempt(payload []byte, seq int32, tracking bool, ncmds int) (*protocol.Response, error) {
	if _, err := c.conn.Write(payload); err != nil {
		if !c.Connected() || errors.Is(err, net.ErrClosed) {
			return nil, fmt.Errorf("%w: send aborted", protocol.ErrClosed)
		}
		return nil, fmt.Errorf("%w: send: %v", protocol.ErrConnection, err)
	}
	observability.RecordCommandsSent(c.host, tracking, ncmds)

	if !tracking {
		return nil, nil
	}
	return c.waitForReply(seq)
}

// waitForReply reads datagrams until the reply window elapses. Every
// decodable datagram is dispatched to the response observers, matched or
// not; only a datagram echoing seq resolves the wait.
func (c *Controller) waitForReply(seq int32) (*protocol.Response, error) {
	deadline := time.Now().Add(c.opts.Timeout)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: set read deadline: %v", protocol.ErrConnection, err)
	}

	buf := make([]byte, readBufferSize)
	for {
		n, source, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if !c.Connected() || errors.Is(err, net.ErrClosed) {
				return nil, fmt.Errorf("%w: wait aborted", protocol.ErrClosed)
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				observability.RecordSendTimeout(c.host)
				return nil, fmt.Errorf("%w: no matching reply within %v", protocol.ErrTimeout, c.opts.Timeout)
			}
			return nil, fmt.Errorf("%w: read: %v", protocol.ErrConnection, err)
		}

		resp, derr := protocol.DecodeResponse(buf[:n])
		if derr != nil {
			// Undecodable datagrams are skipped; the wait continues.
			continue
		}

		c.registry.dispatchResponse(resp, source)

		got, ok := resp.Sequence()
		if !ok || got != seq {
			continue
		}
		if resp.Status >= 400 {
			observability.RecordRemoteError(c.host, strconv.Itoa(resp.Status))
			return nil, &protocol.RemoteError{
				Status:   resp.Status,
				Message:  resp.Message,
				ModuleID: resp.ModuleID,
			}
		}
		return &resp, nil
	}
}

// Close releases the endpoint. Any in-flight wait fails with ErrClosed.
// Idempotent.
func (c *Controller) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
