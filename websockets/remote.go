// Package websockets is a ledger server session over a websocket:
// request/response correlation by id plus a stream of pushed messages.
package websockets

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/params"
	"github.com/leasenet/ledgerclient/types"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to connect to server.
	defaultDialTimeout = 5 * time.Second

	// Default ping period; the pong wait is derived from it.
	defaultPingPeriod = 30 * time.Second

	incomingBuffer = 1000
	outgoingBuffer = 10
)

var logger = log.New("websockets")

// Options tune one session.
type Options struct {
	DialTimeout  time.Duration
	PingInterval time.Duration
}

// OptionsFromEndpoint converts a configured endpoint into session options.
func OptionsFromEndpoint(e *params.ServerEndpoint) Options {
	return Options{DialTimeout: e.DialTimeout(), PingInterval: e.PingInterval()}
}

// Remote is a session with one ledger server.
type Remote struct {
	endpoint string
	incoming chan interface{}
	outgoing chan Syncer
	ws       *websocket.Conn

	pingPeriod time.Duration
	pongWait   time.Duration

	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// NewRemote returns a new remote session connected to the specified
// server endpoint URI. To close the connection, use Close().
func NewRemote(ctx context.Context, endpoint string, opts Options) (*Remote, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingPeriod
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: opts.DialTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		Proxy:            http.ProxyFromEnvironment,
	}
	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	header := http.Header{}
	header.Set("User-Agent", params.UserAgent())
	ws, _, err := dialer.DialContext(dialCtx, endpoint, header)
	if err != nil {
		return nil, types.WrapError(types.KindTransport, err, "dial "+endpoint)
	}
	r := &Remote{
		endpoint:   endpoint,
		incoming:   make(chan interface{}, incomingBuffer),
		outgoing:   make(chan Syncer, outgoingBuffer),
		ws:         ws,
		pingPeriod: opts.PingInterval,
		pongWait:   opts.PingInterval * 10 / 9,
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	logger.Info("connected", "endpoint", endpoint)

	go r.run()
	return r, nil
}

// Endpoint returns the server url.
func (r *Remote) Endpoint() string {
	return r.endpoint
}

// Notifications delivers *LedgerStreamMsg and *TransactionStreamMsg in
// the order the server sent them. It is closed when the session ends.
func (r *Remote) Notifications() <-chan interface{} {
	return r.incoming
}

// Done is closed once the session has ended for any reason.
func (r *Remote) Done() <-chan struct{} {
	return r.done
}

// Err returns why the session ended, nil after a local Close.
func (r *Remote) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Remote) setErr(err error) {
	select {
	case <-r.closing:
		return
	default:
	}
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

// Close shuts down the session. Any commands that are pending a
// response return with a transport error.
func (r *Remote) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
}

// Call sends command with params and decodes the result into result.
// Server side failures are returned as *CommandError, connection
// failures as a TransportError.
func (r *Remote) Call(ctx context.Context, command string, params map[string]interface{}, result interface{}) error {
	cmd := newRequestCommand(command, params)
	select {
	case <-r.done:
		return types.NewError(types.KindTransport, "%v: connection closed", command)
	default:
	}
	select {
	case r.outgoing <- cmd:
	case <-r.done:
		return types.NewError(types.KindTransport, "%v: connection closed", command)
	case <-ctx.Done():
		return types.WrapError(types.KindTransport, ctx.Err(), command)
	}
	select {
	case <-cmd.Ready:
	case <-r.done:
		// a response may have landed just before shutdown
		select {
		case <-cmd.Ready:
		default:
			return types.NewError(types.KindTransport, "%v: connection closed", command)
		}
	case <-ctx.Done():
		return types.WrapError(types.KindTransport, ctx.Err(), command)
	}
	if cmd.CommandError != nil {
		if cmd.CommandError.IsClientError() {
			return types.WrapError(types.KindTransport, cmd.CommandError, command)
		}
		return errors.WithStack(cmd.CommandError)
	}
	if result == nil || len(cmd.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(cmd.Result, result); err != nil {
		return types.WrapError(types.KindMalformedLayout, err, command+" result")
	}
	return nil
}

// run spawns the read/write pumps and then runs until Close() is called
// or the connection fails.
func (r *Remote) run() {
	outbound := make(chan interface{})
	inbound := make(chan []byte)
	pending := make(map[uint64]Syncer)

	defer func() {
		close(outbound) // Shuts down the writePump
		close(r.incoming)

		// Cancel all pending commands with an error
		for _, c := range pending {
			c.Fail("Connection Closed")
		}
		// and the commands still queued
		for len(r.outgoing) > 0 {
			(<-r.outgoing).Fail("Connection Closed")
		}
		// Unblock the readPump if it is still reading.
		r.ws.Close()
		for range inbound {
		}
		close(r.done)
		logger.Info("disconnected", "endpoint", r.endpoint, "err", r.Err())
	}()

	go r.writePump(outbound)
	go func() {
		defer close(inbound)
		r.readPump(inbound)
	}()

	for {
		select {
		case <-r.closing:
			return

		case command := <-r.outgoing:
			select {
			case outbound <- command:
			case <-r.closing:
				command.Fail("Connection Closed")
				return
			}
			pending[command.ID()] = command

		case in, ok := <-inbound:
			if !ok {
				r.setErr(errors.New("connection closed by server"))
				return
			}
			var env envelope
			if err := json.Unmarshal(in, &env); err != nil {
				logger.Warn("malformed message", "err", err)
				continue
			}
			// Stream message
			if factory, ok := streamMessageFactory[env.Type]; ok {
				msg := factory()
				if err := json.Unmarshal(in, msg); err != nil {
					logger.Warn("malformed stream message", "type", env.Type, "err", err)
					continue
				}
				select {
				case r.incoming <- msg:
				case <-r.closing:
					return
				}
				continue
			}

			// Command response message
			cmd, ok := pending[env.Id]
			if !ok {
				logger.Debug("unexpected message", "type", env.Type, "id", env.Id)
				continue
			}
			delete(pending, env.Id)
			if err := json.Unmarshal(in, cmd); err != nil {
				cmd.Fail(err.Error())
				continue
			}
			cmd.Done()
		}
	}
}

// readPump reads from the websocket and sends to inbound channel.
// Expects to receive PONGs at specified interval, or logs an error and returns.
func (r *Remote) readPump(inbound chan<- []byte) {
	_ = r.ws.SetReadDeadline(time.Now().Add(r.pongWait))
	r.ws.SetPongHandler(func(string) error { return r.ws.SetReadDeadline(time.Now().Add(r.pongWait)) })
	for {
		_, message, err := r.ws.ReadMessage()
		if err != nil {
			r.setErr(err)
			return
		}
		logger.Trace("recv", "msg", string(message))
		_ = r.ws.SetReadDeadline(time.Now().Add(r.pongWait))
		inbound <- message
	}
}

// Consumes from the outbound channel and sends them over the websocket.
// Also sends PING messages at the specified interval.
// Returns when outbound channel is closed, or an error is encountered.
func (r *Remote) writePump(outbound <-chan interface{}) {
	ticker := time.NewTicker(r.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		// An outbound message is available to send
		case message, ok := <-outbound:
			if !ok {
				_ = r.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}

			b, err := json.Marshal(message)
			if err != nil {
				// Outbound message cannot be JSON serialized (log it and continue)
				logger.Error("marshal request failed", err)
				continue
			}

			logger.Trace("send", "msg", string(b))
			_ = r.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				r.setErr(err)
				r.ws.Close()
				drain(outbound)
				return
			}

		// Time to send a ping
		case <-ticker.C:
			if err := r.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				r.setErr(err)
				r.ws.Close()
				drain(outbound)
				return
			}
		}
	}
}

func drain(outbound <-chan interface{}) {
	for range outbound {
	}
}
