// Package subscription routes validated account transactions to the
// handlers subscribed to their destination.
package subscription

import (
	"fmt"
	"sync"

	"github.com/leasenet/ledgerclient/protocol"
	"github.com/leasenet/ledgerclient/types"
)

// EventFunc handles a decoded event.
type EventFunc func(ev protocol.Event)

// ErrorFunc handles a transaction that could not be turned into an event:
// a *TxFailure when the network did not apply it, a MalformedLayout error
// when its payload did not decode.
type ErrorFunc func(tx *types.Transaction, err error)

// TxFailure is a validated transaction whose engine result is not the
// success code. Event is the event it would have produced, if any.
type TxFailure struct {
	Transaction  *types.Transaction
	EngineResult string
	Message      string
	Event        protocol.Event
}

func (f *TxFailure) Error() string {
	return fmt.Sprintf("transaction %v failed: %v %v", f.Transaction.Hash, f.EngineResult, f.Message)
}

// Handler is a set of callbacks keyed by event kind. A Handler is
// identified by its pointer when subscribing and unsubscribing.
type Handler struct {
	mu      sync.RWMutex
	byKind  map[protocol.EventKind][]EventFunc
	any     []EventFunc
	onError []ErrorFunc
}

// NewHandler returns an empty handler.
func NewHandler() *Handler {
	return &Handler{byKind: make(map[protocol.EventKind][]EventFunc)}
}

// On registers fn for events of kind.
func (h *Handler) On(kind protocol.EventKind, fn EventFunc) *Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byKind[kind] = append(h.byKind[kind], fn)
	return h
}

// OnAny registers fn for every event.
func (h *Handler) OnAny(fn EventFunc) *Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.any = append(h.any, fn)
	return h
}

// OnError registers fn for failed or undecodable transactions.
func (h *Handler) OnError(fn ErrorFunc) *Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = append(h.onError, fn)
	return h
}

func (h *Handler) dispatch(ev protocol.Event) {
	h.mu.RLock()
	fns := append(append([]EventFunc(nil), h.byKind[ev.Kind()]...), h.any...)
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (h *Handler) fail(tx *types.Transaction, err error) {
	h.mu.RLock()
	fns := append([]ErrorFunc(nil), h.onError...)
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(tx, err)
	}
}
