package connection

import (
	"context"

	"github.com/leasenet/ledgerclient/params"
	"github.com/leasenet/ledgerclient/websockets"
)

// Push notification payloads delivered by a Transport.
type (
	LedgerStreamMsg      = websockets.LedgerStreamMsg
	TransactionStreamMsg = websockets.TransactionStreamMsg
)

// Transport is one live session with a ledger server.
type Transport interface {
	// Call issues command with params and decodes the reply into result.
	Call(ctx context.Context, command string, params map[string]interface{}, result interface{}) error
	// Notifications yields *LedgerStreamMsg and *TransactionStreamMsg in
	// server order and is closed when the session ends.
	Notifications() <-chan interface{}
	// Done is closed when the session ends.
	Done() <-chan struct{}
	// Err is the reason the session ended, nil after Close.
	Err() error
	Close()
	Endpoint() string
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, endpoint *params.ServerEndpoint) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, endpoint *params.ServerEndpoint) (Transport, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, endpoint *params.ServerEndpoint) (Transport, error) {
	return f(ctx, endpoint)
}

// WebsocketDialer dials websocket sessions.
var WebsocketDialer = DialerFunc(func(ctx context.Context, endpoint *params.ServerEndpoint) (Transport, error) {
	remote, err := websockets.NewRemote(ctx, endpoint.URL, websockets.OptionsFromEndpoint(endpoint))
	if err != nil {
		return nil, err
	}
	return remote, nil
})
