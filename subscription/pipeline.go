package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/iotaledger/hive.go/events"

	"github.com/leasenet/ledgerclient/connection"
	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/protocol"
	"github.com/leasenet/ledgerclient/types"
)

var logger = log.New("subscription")

const handleTimeout = 30 * time.Second

// Watcher maintains the server side account subscriptions.
type Watcher interface {
	Watch(ctx context.Context, address string) error
	Unwatch(ctx context.Context, address string) error
}

type subscriber struct {
	address string
	handler *Handler
}

// Pipeline filters, resolves, decodes and dispatches account transactions.
// Subscriptions form a set of (address, handler) pairs kept in
// subscription order.
type Pipeline struct {
	watcher  Watcher
	decoder  *protocol.Decoder
	resolver Resolver

	mu          sync.RWMutex
	subscribers []subscriber
}

// NewPipeline returns a pipeline. resolver may be nil, in which case offer
// accepts without a destination are dropped.
func NewPipeline(watcher Watcher, decoder *protocol.Decoder, resolver Resolver) *Pipeline {
	return &Pipeline{watcher: watcher, decoder: decoder, resolver: resolver}
}

// Subscribe delivers the events addressed to address to h. Subscribing an
// existing pair again is a no-op.
func (p *Pipeline) Subscribe(ctx context.Context, address string, h *Handler) error {
	p.mu.Lock()
	first := true
	for _, s := range p.subscribers {
		if s.address != address {
			continue
		}
		if s.handler == h {
			p.mu.Unlock()
			return nil
		}
		first = false
	}
	p.subscribers = append(p.subscribers, subscriber{address: address, handler: h})
	p.mu.Unlock()

	if !first || p.watcher == nil {
		return nil
	}
	if err := p.watcher.Watch(ctx, address); err != nil {
		p.remove(address, h)
		return err
	}
	logger.Info("subscribed", "address", address)
	return nil
}

// Unsubscribe removes the exact (address, h) pair. Other handlers of
// address stay active.
func (p *Pipeline) Unsubscribe(ctx context.Context, address string, h *Handler) error {
	removed, last := p.remove(address, h)
	if !removed || !last || p.watcher == nil {
		return nil
	}
	logger.Info("unsubscribed", "address", address)
	return p.watcher.Unwatch(ctx, address)
}

func (p *Pipeline) remove(address string, h *Handler) (removed, last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	last = true
	kept := p.subscribers[:0]
	for _, s := range p.subscribers {
		switch {
		case s.address == address && s.handler == h:
			removed = true
		case s.address == address:
			last = false
			kept = append(kept, s)
		default:
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(p.subscribers); i++ {
		p.subscribers[i] = subscriber{}
	}
	p.subscribers = kept
	return removed, last
}

// Addresses returns the subscribed addresses in subscription order.
func (p *Pipeline) Addresses() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]bool, len(p.subscribers))
	var addrs []string
	for _, s := range p.subscribers {
		if !seen[s.address] {
			seen[s.address] = true
			addrs = append(addrs, s.address)
		}
	}
	return addrs
}

func (p *Pipeline) handlersOf(address string) []*Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var hs []*Handler
	for _, s := range p.subscribers {
		if s.address == address {
			hs = append(hs, s.handler)
		}
	}
	return hs
}

// Attach feeds the transactions of a connection into the pipeline.
func (p *Pipeline) Attach(ev *connection.Events) {
	ev.Transaction.Attach(events.NewClosure(func(msg *connection.TransactionStreamMsg) {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		p.Handle(ctx, msg)
	}))
}

// Handle routes one streamed transaction. Only validated transactions are
// considered and handlers run synchronously in subscription order.
func (p *Pipeline) Handle(ctx context.Context, msg *connection.TransactionStreamMsg) {
	if !msg.Validated {
		return
	}
	tx := msg.Transaction.Clone()
	if tx.LedgerIndex == 0 {
		tx.LedgerIndex = msg.LedgerSequence
	}

	if isOfferAccept(tx) {
		resolved, ok := p.resolve(ctx, tx)
		if !ok {
			return
		}
		tx = resolved
	}

	handlers := p.handlersOf(tx.Destination)
	if len(handlers) == 0 {
		return
	}

	result := msg.EngineResult
	if result == "" && msg.Meta != nil {
		result = msg.Meta.TransactionResult
	}
	if !types.IsSuccessResult(result) {
		failure := &TxFailure{Transaction: tx, EngineResult: result, Message: msg.EngineResultMessage}
		failure.Event, _ = p.decoder.Decode(ctx, tx)
		logger.Debug("transaction failed", "hash", tx.Hash, "result", result, "message", msg.EngineResultMessage)
		for _, h := range handlers {
			h.fail(tx, failure)
		}
		return
	}

	ev, err := p.decoder.Decode(ctx, tx)
	if err != nil {
		for _, h := range handlers {
			h.fail(tx, err)
		}
		return
	}
	if ev == nil {
		logger.Trace("no event in transaction", "hash", tx.Hash, "type", tx.TransactionType)
		return
	}
	for _, h := range handlers {
		h.dispatch(ev)
	}
}

func (p *Pipeline) resolve(ctx context.Context, tx *types.Transaction) (*types.Transaction, bool) {
	if p.resolver == nil {
		logger.Warn("dropping offer accept, no resolver", "hash", tx.Hash)
		return nil, false
	}
	resolved, ok, err := p.resolver.Resolve(ctx, tx, p.Addresses())
	if err != nil {
		logger.Warn("resolve offer accept failed", "hash", tx.Hash, "err", err)
		return nil, false
	}
	if !ok {
		logger.Debug("offer accept not routed", "hash", tx.Hash, "type", tx.TransactionType)
		return nil, false
	}
	return resolved, true
}
