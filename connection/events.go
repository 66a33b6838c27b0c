package connection

import (
	"github.com/iotaledger/hive.go/events"
)

// disconnect codes
const (
	// CodeNormal the client called Disconnect.
	CodeNormal = 1000
	// CodeConnectionLost the active session ended unexpectedly.
	CodeConnectionLost = 1006
	// CodeUnreachable no server could be reached on the initial connect.
	CodeUnreachable = 4001
)

// Events represents events happening on a connection manager.
type Events struct {
	// Fired when a server session becomes the active one.
	Connected *events.Event
	// Fired when the active session is lost or closed.
	Disconnected *events.Event
	// Fired for every ledger closed on the active session.
	LedgerClosed *events.Event
	// Fired for every account transaction pushed on the active session.
	Transaction *events.Event
}

// ConnectedEvent is passed along with triggering a Connected event.
type ConnectedEvent struct {
	Endpoint    string
	Primary     bool
	LedgerIndex uint32
}

// DisconnectedEvent is passed along with triggering a Disconnected event.
type DisconnectedEvent struct {
	Code   int
	Reason string
}

// LedgerClosedEvent is passed along with triggering a LedgerClosed event.
type LedgerClosedEvent struct {
	LedgerIndex uint32
	LedgerHash  string
	LedgerTime  uint32
	TxnCount    uint32
}

// NewEvents returns an unattached set of connection events.
func NewEvents() *Events {
	return &Events{
		Connected:    events.NewEvent(connectedCaller),
		Disconnected: events.NewEvent(disconnectedCaller),
		LedgerClosed: events.NewEvent(ledgerClosedCaller),
		Transaction:  events.NewEvent(transactionCaller),
	}
}

func connectedCaller(handler interface{}, params ...interface{}) {
	handler.(func(*ConnectedEvent))(params[0].(*ConnectedEvent))
}

func disconnectedCaller(handler interface{}, params ...interface{}) {
	handler.(func(*DisconnectedEvent))(params[0].(*DisconnectedEvent))
}

func ledgerClosedCaller(handler interface{}, params ...interface{}) {
	handler.(func(*LedgerClosedEvent))(params[0].(*LedgerClosedEvent))
}

func transactionCaller(handler interface{}, params ...interface{}) {
	handler.(func(*TransactionStreamMsg))(params[0].(*TransactionStreamMsg))
}
