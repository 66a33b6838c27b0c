package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasenet/ledgerclient/connection"
	"github.com/leasenet/ledgerclient/protocol"
	"github.com/leasenet/ledgerclient/types"
)

const (
	hostAddr   = "rHost"
	otherHost  = "rOtherHost"
	tenantAddr = "rTenant"
)

type recordingWatcher struct {
	mu        sync.Mutex
	watched   []string
	unwatched []string
	fail      error
}

func (w *recordingWatcher) Watch(ctx context.Context, address string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.watched = append(w.watched, address)
	return nil
}

func (w *recordingWatcher) Unwatch(ctx context.Context, address string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unwatched = append(w.unwatched, address)
	return nil
}

type received struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *received) handler(name string) *Handler {
	return NewHandler().
		OnAny(func(ev protocol.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, name+":"+ev.Kind().String())
		}).
		OnError(func(tx *types.Transaction, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		})
}

func newTestPipeline(w Watcher, resolver Resolver) *Pipeline {
	return NewPipeline(w, protocol.NewDecoder(protocol.Options{Currency: "EVR", Issuer: "rIssuer"}), resolver)
}

func heartbeatMsg(to string) *connection.TransactionStreamMsg {
	return &connection.TransactionStreamMsg{
		Transaction: types.Transaction{
			TransactionType: types.TxPayment,
			Account:         tenantAddr,
			Destination:     to,
			Memos:           []types.MemoWrapper{types.NewMemo(protocol.MemoHeartbeat, protocol.FormatText, nil)},
			Hash:            "H",
		},
		EngineResult:   types.ResultSuccess,
		LedgerSequence: 100,
		Validated:      true,
	}
}

func TestSubscribeSetSemantics(t *testing.T) {
	w := &recordingWatcher{}
	p := newTestPipeline(w, nil)
	r := &received{}
	h := r.handler("a")
	ctx := context.Background()

	require.NoError(t, p.Subscribe(ctx, hostAddr, h))
	require.NoError(t, p.Subscribe(ctx, hostAddr, h))
	p.Handle(ctx, heartbeatMsg(hostAddr))
	assert.Equal(t, []string{"a:Heartbeat"}, r.events)

	require.NoError(t, p.Unsubscribe(ctx, hostAddr, h))
	p.Handle(ctx, heartbeatMsg(hostAddr))
	assert.Len(t, r.events, 1)
	assert.Empty(t, p.Addresses())
	assert.Equal(t, []string{hostAddr}, w.watched)
	assert.Equal(t, []string{hostAddr}, w.unwatched)
}

func TestUnsubscribeKeepsOtherHandlers(t *testing.T) {
	w := &recordingWatcher{}
	p := newTestPipeline(w, nil)
	r := &received{}
	a, b := r.handler("a"), r.handler("b")
	ctx := context.Background()

	require.NoError(t, p.Subscribe(ctx, hostAddr, a))
	require.NoError(t, p.Subscribe(ctx, hostAddr, b))
	p.Handle(ctx, heartbeatMsg(hostAddr))
	assert.Equal(t, []string{"a:Heartbeat", "b:Heartbeat"}, r.events)

	require.NoError(t, p.Unsubscribe(ctx, hostAddr, a))
	p.Handle(ctx, heartbeatMsg(hostAddr))
	assert.Equal(t, []string{"a:Heartbeat", "b:Heartbeat", "b:Heartbeat"}, r.events)
	assert.Empty(t, w.unwatched)
	assert.Equal(t, []string{hostAddr}, w.watched)
}

func TestSubscribeWatchFailure(t *testing.T) {
	w := &recordingWatcher{fail: types.NewError(types.KindConfig, "bad address")}
	p := newTestPipeline(w, nil)
	err := p.Subscribe(context.Background(), "bogus", NewHandler())
	assert.Equal(t, types.KindConfig, types.KindOf(err))
	assert.Empty(t, p.Addresses())
}

func TestHandleFilters(t *testing.T) {
	p := newTestPipeline(nil, nil)
	r := &received{}
	ctx := context.Background()
	require.NoError(t, p.Subscribe(ctx, hostAddr, r.handler("a")))

	unvalidated := heartbeatMsg(hostAddr)
	unvalidated.Validated = false
	p.Handle(ctx, unvalidated)
	p.Handle(ctx, heartbeatMsg(otherHost))
	assert.Empty(t, r.events)
	assert.Empty(t, r.errs)
}

func TestHandleEngineFailure(t *testing.T) {
	p := newTestPipeline(nil, nil)
	r := &received{}
	ctx := context.Background()
	require.NoError(t, p.Subscribe(ctx, hostAddr, r.handler("a")))

	msg := heartbeatMsg(hostAddr)
	msg.EngineResult = "tecHOOK_REJECTED"
	msg.EngineResultMessage = "Rejected by hook on sending or receiving account."
	p.Handle(ctx, msg)

	assert.Empty(t, r.events)
	require.Len(t, r.errs, 1)
	var failure *TxFailure
	require.True(t, errors.As(r.errs[0], &failure))
	assert.Equal(t, "tecHOOK_REJECTED", failure.EngineResult)
	assert.Equal(t, msg.EngineResultMessage, failure.Message)
	require.NotNil(t, failure.Event)
	assert.Equal(t, protocol.KindHeartbeat, failure.Event.Kind())
}

func TestHandleDecodeError(t *testing.T) {
	p := newTestPipeline(nil, nil)
	r := &received{}
	ctx := context.Background()
	require.NoError(t, p.Subscribe(ctx, hostAddr, r.handler("a")))

	msg := heartbeatMsg(hostAddr)
	msg.Transaction.Memos = []types.MemoWrapper{types.NewMemo(protocol.MemoHostReg, protocol.FormatHex, []byte{1})}
	p.Handle(ctx, msg)
	require.Len(t, r.errs, 1)
	assert.Equal(t, types.KindMalformedLayout, types.KindOf(r.errs[0]))
}

func TestHandlerKinds(t *testing.T) {
	var kinds []protocol.EventKind
	h := NewHandler().
		On(protocol.KindHeartbeat, func(ev protocol.Event) { kinds = append(kinds, ev.Kind()) }).
		On(protocol.KindRedeem, func(ev protocol.Event) { t.Fatal("unexpected redeem") })
	p := newTestPipeline(nil, nil)
	ctx := context.Background()
	require.NoError(t, p.Subscribe(ctx, hostAddr, h))
	p.Handle(ctx, heartbeatMsg(hostAddr))
	assert.Equal(t, []protocol.EventKind{protocol.KindHeartbeat}, kinds)
}

func TestAttach(t *testing.T) {
	p := newTestPipeline(nil, nil)
	r := &received{}
	require.NoError(t, p.Subscribe(context.Background(), hostAddr, r.handler("a")))

	ev := connection.NewEvents()
	p.Attach(ev)
	ev.Transaction.Trigger(heartbeatMsg(hostAddr))
	assert.Equal(t, []string{"a:Heartbeat"}, r.events)
}
