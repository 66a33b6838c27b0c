package connection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iotaledger/hive.go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/leasenet/ledgerclient/params"
	"github.com/leasenet/ledgerclient/types"
)

const (
	primaryURL  = "ws://primary.test"
	fallbackURL = "ws://fallback.test"
	waitFor     = 5 * time.Second
	tick        = 5 * time.Millisecond
)

func testServers(withFallback bool) *params.ServersConfig {
	servers := &params.ServersConfig{Primary: &params.ServerEndpoint{URL: primaryURL}}
	if withFallback {
		servers.Fallbacks = []*params.ServerEndpoint{{URL: fallbackURL}}
	}
	return servers
}

func newTestManager(t *testing.T, servers *params.ServersConfig, network *fakeNetwork) *Manager {
	m, err := NewManager(servers, &params.ReconnectConfig{DelayMillis: 10, MaxConnectAttempts: 2}, network)
	require.NoError(t, err)
	t.Cleanup(m.Disconnect)
	return m
}

type eventLog struct {
	mu           sync.Mutex
	connected    []*ConnectedEvent
	disconnected []*DisconnectedEvent
	ledgers      []uint32
	txs          []string
}

func recordEvents(m *Manager) *eventLog {
	l := &eventLog{}
	m.Events().Connected.Attach(events.NewClosure(func(ev *ConnectedEvent) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.connected = append(l.connected, ev)
	}))
	m.Events().Disconnected.Attach(events.NewClosure(func(ev *DisconnectedEvent) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.disconnected = append(l.disconnected, ev)
	}))
	m.Events().LedgerClosed.Attach(events.NewClosure(func(ev *LedgerClosedEvent) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.ledgers = append(l.ledgers, ev.LedgerIndex)
	}))
	m.Events().Transaction.Attach(events.NewClosure(func(msg *TransactionStreamMsg) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.txs = append(l.txs, msg.Transaction.Hash)
	}))
	return l
}

func (l *eventLog) disconnectCodes() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	codes := make([]int, 0, len(l.disconnected))
	for _, ev := range l.disconnected {
		codes = append(codes, ev.Code)
	}
	return codes
}

func (l *eventLog) txHashes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.txs...)
}

func (l *eventLog) ledgerIndices() []uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]uint32(nil), l.ledgers...)
}

func txMsg(hash string) *TransactionStreamMsg {
	msg := &TransactionStreamMsg{Validated: true, EngineResult: types.ResultSuccess}
	msg.Transaction.Hash = hash
	return msg
}

func TestNewManagerNeedsEndpoint(t *testing.T) {
	_, err := NewManager(&params.ServersConfig{}, nil, nil)
	assert.Equal(t, types.KindConfig, types.KindOf(err))

	_, err = NewManager(&params.ServersConfig{Fallbacks: []*params.ServerEndpoint{{}}}, nil, nil)
	assert.Equal(t, types.KindConfig, types.KindOf(err))
}

func TestRequestWhileDisconnected(t *testing.T) {
	m := newTestManager(t, testServers(false), newFakeNetwork())
	err := m.Request(context.Background(), "ping", nil, nil)
	assert.Equal(t, types.KindTransport, types.KindOf(err))
	assert.Equal(t, Disconnected, m.State())
}

func TestFailoverAndMigration(t *testing.T) {
	network := newFakeNetwork()
	network.setReachable(fallbackURL, true, 50)
	m := newTestManager(t, testServers(true), network)
	log := recordEvents(m)

	ctx := context.Background()
	require.NoError(t, m.Watch(ctx, "rHost"))
	require.NoError(t, m.Connect(ctx))
	assert.Equal(t, ConnectedFallback, m.State())
	assert.Equal(t, uint32(50), m.LedgerIndex())
	assert.Equal(t, fallbackURL, m.Endpoint())

	fallback := network.last(fallbackURL)
	subs := fallback.callsOf("subscribe")
	require.Len(t, subs, 1)
	assert.Equal(t, []string{"rHost"}, subs[0].params["accounts"])
	assert.Equal(t, []string{"ledger"}, subs[0].params["streams"])

	require.True(t, fallback.push(txMsg("H1")))
	require.Eventually(t, func() bool { return len(log.txHashes()) == 1 }, waitFor, tick)

	network.setReachable(primaryURL, true, 60)
	require.Eventually(t, func() bool { return m.State() == ConnectedPrimary }, waitFor, tick)
	assert.True(t, fallback.isClosed())
	assert.Equal(t, primaryURL, m.Endpoint())
	assert.Equal(t, uint32(60), m.LedgerIndex())

	primary := network.last(primaryURL)
	subs = primary.callsOf("subscribe")
	require.Len(t, subs, 1)
	assert.Equal(t, []string{"rHost"}, subs[0].params["accounts"])

	assert.False(t, fallback.push(txMsg("stale")))
	require.True(t, primary.push(txMsg("H2")))
	require.Eventually(t, func() bool { return len(log.txHashes()) == 2 }, waitFor, tick)
	assert.Equal(t, []string{"H1", "H2"}, log.txHashes())
	assert.Empty(t, log.disconnectCodes())

	log.mu.Lock()
	require.Len(t, log.connected, 2)
	assert.False(t, log.connected[0].Primary)
	assert.True(t, log.connected[1].Primary)
	log.mu.Unlock()
}

func TestConnectUnreachable(t *testing.T) {
	network := newFakeNetwork()
	m := newTestManager(t, testServers(true), network)
	log := recordEvents(m)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.KindTransport, types.KindOf(err))
	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, []int{CodeUnreachable}, log.disconnectCodes())
	// two attempts per server
	assert.Equal(t, int32(4), network.attempts.Load())
}

func TestAutoReconnect(t *testing.T) {
	network := newFakeNetwork()
	network.setReachable(primaryURL, true, 10)
	m := newTestManager(t, testServers(false), network)
	log := recordEvents(m)

	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Watch(ctx, "rTenant"))
	first := network.last(primaryURL)
	assert.Len(t, first.callsOf("subscribe"), 2)

	network.setReachable(primaryURL, false, 0)
	first.drop()
	require.Eventually(t, func() bool { return len(log.disconnectCodes()) == 1 }, waitFor, tick)
	assert.Equal(t, CodeConnectionLost, log.disconnectCodes()[0])

	// keeps retrying beyond the initial attempt bound
	require.Eventually(t, func() bool { return network.attempts.Load() > 4 }, waitFor, tick)
	assert.False(t, m.State().IsConnected())

	network.setReachable(primaryURL, true, 12)
	require.Eventually(t, func() bool { return m.State() == ConnectedPrimary }, waitFor, tick)
	second := network.last(primaryURL)
	require.NotSame(t, first, second)
	subs := second.callsOf("subscribe")
	require.Len(t, subs, 1)
	assert.Equal(t, []string{"rTenant"}, subs[0].params["accounts"])
	assert.Equal(t, uint32(12), m.LedgerIndex())
}

func TestDisconnectIsTerminal(t *testing.T) {
	network := newFakeNetwork()
	network.setReachable(fallbackURL, true, 5)
	m := newTestManager(t, testServers(true), network)
	log := recordEvents(m)

	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))
	fallback := network.last(fallbackURL)

	// the primary loop is still retrying in the background
	m.Disconnect()
	assert.Equal(t, PermanentlyDisconnected, m.State())
	assert.True(t, fallback.isClosed())
	assert.Equal(t, []int{CodeNormal}, log.disconnectCodes())

	attempts := network.attempts.Load()
	network.setReachable(primaryURL, true, 6)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, attempts, network.attempts.Load())
	assert.Equal(t, 0, network.dialCount(primaryURL))

	assert.Equal(t, types.KindTransport, types.KindOf(m.Request(ctx, "ping", nil, nil)))
	assert.Equal(t, types.KindTransport, types.KindOf(m.Connect(ctx)))

	// a second call is a no-op
	m.Disconnect()
	assert.Equal(t, []int{CodeNormal}, log.disconnectCodes())
}

func TestLedgerClosed(t *testing.T) {
	network := newFakeNetwork()
	network.setReachable(primaryURL, true, 10)
	m := newTestManager(t, testServers(false), network)
	log := recordEvents(m)
	require.NoError(t, m.Connect(context.Background()))

	tr := network.last(primaryURL)
	for _, index := range []uint32{11, 14, 12} {
		require.True(t, tr.push(&LedgerStreamMsg{LedgerSequence: index}))
	}
	require.True(t, tr.push(txMsg("sync")))
	require.Eventually(t, func() bool { return len(log.txHashes()) == 1 }, waitFor, tick)

	// the stale ledger is recorded but not announced
	assert.Equal(t, []uint32{11, 14}, log.ledgerIndices())
	assert.Equal(t, uint32(14), m.LedgerIndex())
	assert.Equal(t, LedgerSlice{13}, m.Ledgers().Missing(10, 14))
}

func TestMigrationAdoptsLowerIndex(t *testing.T) {
	network := newFakeNetwork()
	network.setReachable(primaryURL, true, 100)
	m := newTestManager(t, testServers(false), network)
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, uint32(100), m.LedgerIndex())

	require.NoError(t, m.install(newFakeTransport(primaryURL, 98), rolePrimary))
	assert.Equal(t, uint32(98), m.LedgerIndex())
	assert.Equal(t, ConnectedPrimary, m.State())
}

func TestFallbackNeverReplacesActiveSession(t *testing.T) {
	network := newFakeNetwork()
	network.setReachable(primaryURL, true, 1)
	m := newTestManager(t, testServers(true), network)
	require.NoError(t, m.Connect(context.Background()))

	spare := newFakeTransport(fallbackURL, 1)
	err := m.install(spare, roleFallback)
	assert.Equal(t, types.KindTransport, types.KindOf(err))
	assert.True(t, spare.isClosed())
	assert.Equal(t, primaryURL, m.Endpoint())
}

// Requests and swaps must both make progress, and no request may reach a
// transport after it was swapped out.
func TestUseAndSwapFairness(t *testing.T) {
	network := newFakeNetwork()
	network.setReachable(primaryURL, true, 1)
	m := newTestManager(t, testServers(false), network)
	require.NoError(t, m.Connect(context.Background()))
	network.last(primaryURL).callDelay = time.Millisecond

	var (
		stop     = make(chan struct{})
		wg       sync.WaitGroup
		requests = atomic.NewInt32(0)
		failures = atomic.NewInt32(0)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if err := m.Request(context.Background(), "ping", nil, nil); err != nil {
					failures.Inc()
				}
				requests.Inc()
			}
		}()
	}

	var swapped []*fakeTransport
	swapsDone := make(chan struct{})
	go func() {
		defer close(swapsDone)
		for i := 0; i < 20; i++ {
			next := newFakeTransport(primaryURL, uint32(i+2))
			next.callDelay = time.Millisecond
			if err := m.install(next, rolePrimary); err == nil {
				swapped = append(swapped, next)
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	select {
	case <-swapsDone:
	case <-time.After(waitFor):
		t.Fatal("swaps starved by requests")
	}
	before := requests.Load()
	require.Eventually(t, func() bool { return requests.Load() > before+10 }, waitFor, tick)
	close(stop)
	wg.Wait()

	assert.Len(t, swapped, 20)
	assert.Zero(t, failures.Load())
	for _, tr := range swapped {
		assert.Zero(t, tr.afterClose.Load())
	}
}
