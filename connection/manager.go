// Package connection keeps one usable ledger server session alive across
// server failures, preferring the primary server over the fallbacks.
package connection

import (
	"context"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
	"go.uber.org/atomic"

	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/params"
	"github.com/leasenet/ledgerclient/types"
)

const (
	// backoff stops growing after this many attempts
	maxBackoffSteps = 30
	replayTimeout   = 10 * time.Second
)

var logger = log.New("connection")

// Manager owns the active transport. Requests share the transport under
// a read lock; swapping in a new session takes the write lock, so no
// request is issued mid-swap and no swap starts while one is in flight.
type Manager struct {
	primary     *params.ServerEndpoint
	fallbacks   []*params.ServerEndpoint
	dialer      Dialer
	delay       time.Duration
	maxAttempts int

	mu        sync.RWMutex
	transport Transport
	role      role

	// serialises watched address changes with session swaps
	watchMu sync.Mutex
	watched mapset.Set

	stateMu sync.Mutex
	state   *atomic.Uint32
	changed chan struct{}

	permanent       *atomic.Bool
	autoReconnect   *atomic.Bool
	primaryRunning  *atomic.Bool
	fallbackRunning *atomic.Bool
	generation      *atomic.Uint32
	ledgerIndex     *atomic.Uint32
	lastErr         *atomic.Error
	ledgers         *LedgerSet

	loopsMu sync.Mutex
	loops   sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	events *Events
}

// NewManager returns a disconnected manager. A nil dialer dials websockets.
func NewManager(servers *params.ServersConfig, reconnect *params.ReconnectConfig, dialer Dialer) (*Manager, error) {
	if servers == nil || len(servers.Endpoints()) == 0 {
		return nil, types.NewError(types.KindConfig, "no primary or fallback server configured")
	}
	for _, e := range servers.Endpoints() {
		if e == nil || e.URL == "" {
			return nil, types.NewError(types.KindConfig, "server endpoint without url")
		}
	}
	if reconnect == nil {
		reconnect = &params.ReconnectConfig{}
	}
	if dialer == nil {
		dialer = WebsocketDialer
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		primary:         servers.Primary,
		fallbacks:       servers.Fallbacks,
		dialer:          dialer,
		delay:           reconnect.Delay(),
		maxAttempts:     reconnect.MaxConnectAttempts,
		watched:         mapset.NewSet(),
		state:           atomic.NewUint32(uint32(Disconnected)),
		changed:         make(chan struct{}),
		permanent:       atomic.NewBool(false),
		autoReconnect:   atomic.NewBool(false),
		primaryRunning:  atomic.NewBool(false),
		fallbackRunning: atomic.NewBool(false),
		generation:      atomic.NewUint32(0),
		ledgerIndex:     atomic.NewUint32(0),
		lastErr:         atomic.NewError(nil),
		ledgers:         NewLedgerSet(0),
		ctx:             ctx,
		cancel:          cancel,
		events:          NewEvents(),
	}
	if m.delay <= 0 {
		m.delay = params.DefaultReconnectDelayMillis * time.Millisecond
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = params.DefaultMaxConnectAttempts
	}
	return m, nil
}

// Events returns the lifecycle, ledger and transaction events.
func (m *Manager) Events() *Events {
	return m.events
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// LedgerIndex returns the last closed ledger seen on the active session.
func (m *Manager) LedgerIndex() uint32 {
	return m.ledgerIndex.Load()
}

// Ledgers returns the observed ledger window of the active session.
func (m *Manager) Ledgers() *LedgerSet {
	return m.ledgers
}

// Endpoint returns the url of the active session, or "".
func (m *Manager) Endpoint() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.transport == nil {
		return ""
	}
	return m.transport.Endpoint()
}

// Connect blocks until a session is active. The initial attempt count per
// server is bounded; once every loop has given up a TransportError is
// returned and a Disconnected event fired.
func (m *Manager) Connect(ctx context.Context) error {
	started := false
	for {
		changed := m.changedCh()
		if m.State().IsConnected() {
			return nil
		}
		if m.permanent.Load() {
			return types.NewError(types.KindTransport, "connection manager is permanently disconnected")
		}
		if !m.loopsRunning() {
			if started {
				break
			}
			m.startLoops()
			started = true
			continue
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return types.WrapError(types.KindTransport, ctx.Err(), "connect")
		}
	}
	err := m.lastErr.Load()
	if err == nil {
		err = types.NewError(types.KindTransport, "no server reachable")
	}
	m.events.Disconnected.Trigger(&DisconnectedEvent{Code: CodeUnreachable, Reason: err.Error()})
	return types.WrapError(types.KindTransport, err, "no server reachable")
}

// Disconnect is terminal: reconnects stop and the session is closed.
func (m *Manager) Disconnect() {
	if m.permanent.Swap(true) {
		return
	}
	m.cancel()
	// no loop can start once startLoops has observed permanent
	m.loopsMu.Lock()
	m.loopsMu.Unlock()

	m.mu.Lock()
	t := m.transport
	m.transport = nil
	m.setState(PermanentlyDisconnected)
	m.mu.Unlock()
	if t != nil {
		t.Close()
	}
	m.loops.Wait()
	logger.Info("disconnected by client")
	m.events.Disconnected.Trigger(&DisconnectedEvent{Code: CodeNormal, Reason: "disconnected by client"})
}

// Request issues one call on the active session.
func (m *Manager) Request(ctx context.Context, command string, params map[string]interface{}, result interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.transport == nil {
		return types.NewError(types.KindTransport, "%v: not connected (%v)", command, m.State())
	}
	return m.transport.Call(ctx, command, params, result)
}

// Watch subscribes to the transactions of address. Watched addresses are
// replayed on every new session.
func (m *Manager) Watch(ctx context.Context, address string) error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if !m.watched.Add(address) || !m.State().IsConnected() {
		return nil
	}
	err := m.Request(ctx, "subscribe", map[string]interface{}{"accounts": []string{address}}, nil)
	if err != nil && types.KindOf(err) != types.KindTransport {
		m.watched.Remove(address)
		return err
	}
	if err != nil {
		logger.Warn("subscribe deferred to next session", "address", address, "err", err)
	}
	return nil
}

// Unwatch stops the transactions of address.
func (m *Manager) Unwatch(ctx context.Context, address string) error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if !m.watched.Contains(address) {
		return nil
	}
	m.watched.Remove(address)
	if !m.State().IsConnected() {
		return nil
	}
	err := m.Request(ctx, "unsubscribe", map[string]interface{}{"accounts": []string{address}}, nil)
	if err != nil && types.KindOf(err) == types.KindTransport {
		// the next session will not replay it
		return nil
	}
	return err
}

// Watched returns the watched addresses, sorted.
func (m *Manager) Watched() []string {
	addrs := make([]string, 0, m.watched.Cardinality())
	for _, a := range m.watched.ToSlice() {
		addrs = append(addrs, a.(string))
	}
	sort.Strings(addrs)
	return addrs
}

func (m *Manager) changedCh() <-chan struct{} {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.changed
}

func (m *Manager) notify() {
	m.stateMu.Lock()
	close(m.changed)
	m.changed = make(chan struct{})
	m.stateMu.Unlock()
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	old := State(m.state.Load())
	if old == PermanentlyDisconnected || old == s {
		m.stateMu.Unlock()
		return
	}
	m.state.Store(uint32(s))
	close(m.changed)
	m.changed = make(chan struct{})
	m.stateMu.Unlock()
	logger.Debug("state changed", "from", old, "to", s)
}

// setConnecting only applies while no session is active.
func (m *Manager) setConnecting(r role) {
	m.mu.RLock()
	active := m.transport != nil
	m.mu.RUnlock()
	if !active {
		m.setState(r.connecting())
	}
}

func (m *Manager) loopsRunning() bool {
	return m.primaryRunning.Load() || m.fallbackRunning.Load()
}

func (m *Manager) startLoops() {
	m.startLoop(true, true)
}

func (m *Manager) startLoop(primary, fallback bool) {
	m.loopsMu.Lock()
	defer m.loopsMu.Unlock()
	if m.permanent.Load() {
		return
	}
	if primary && m.primary != nil && m.primaryRunning.CAS(false, true) {
		m.loops.Add(1)
		go m.primaryLoop()
	}
	if fallback && len(m.fallbacks) > 0 && m.fallbackRunning.CAS(false, true) {
		m.loops.Add(1)
		go m.fallbackLoop()
	}
}

func (m *Manager) loopDone(running *atomic.Bool) {
	defer m.loops.Done()
	running.Store(false)
	state := m.State()
	if !m.loopsRunning() && !state.IsConnected() {
		m.setState(Disconnected)
	}
	m.notify()
	if running == m.primaryRunning && state == ConnectedFallback {
		// a fallback went live while the primary loop was giving up
		m.startLoop(true, false)
	}
}

// exhausted reports whether a loop should give up. Before the first
// session attempts are bounded, afterwards they are not.
func (m *Manager) exhausted(attempt int) bool {
	return !m.autoReconnect.Load() && attempt >= m.maxAttempts
}

func (m *Manager) backoff(attempt int) bool {
	if attempt > maxBackoffSteps {
		attempt = maxBackoffSteps
	}
	timer := time.NewTimer(time.Duration(attempt) * m.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-m.ctx.Done():
		return false
	}
}

// primaryLoop runs until the primary is the active session. While a
// fallback is active it keeps trying so the manager can migrate back.
func (m *Manager) primaryLoop() {
	defer m.loopDone(m.primaryRunning)
	for attempt := 1; ; attempt++ {
		if m.permanent.Load() || m.State() == ConnectedPrimary {
			return
		}
		m.setConnecting(rolePrimary)
		if m.tryEndpoint(m.primary, rolePrimary, attempt) {
			return
		}
		if m.exhausted(attempt) || !m.backoff(attempt) {
			return
		}
	}
}

// fallbackLoop walks the fallback list in order until any session is
// active.
func (m *Manager) fallbackLoop() {
	defer m.loopDone(m.fallbackRunning)
	for attempt := 1; ; attempt++ {
		for _, endpoint := range m.fallbacks {
			if m.permanent.Load() || m.State().IsConnected() {
				return
			}
			m.setConnecting(roleFallback)
			if m.tryEndpoint(endpoint, roleFallback, attempt) {
				return
			}
		}
		if m.exhausted(attempt) || !m.backoff(attempt) {
			return
		}
	}
}

func (m *Manager) tryEndpoint(endpoint *params.ServerEndpoint, r role, attempt int) bool {
	t, err := m.dialer.Dial(m.ctx, endpoint)
	if err == nil {
		if err = m.install(t, r); err == nil {
			return true
		}
	}
	if m.permanent.Load() {
		return false
	}
	m.lastErr.Store(err)
	logger.Warn("connect attempt failed", "role", r, "endpoint", endpoint.URL, "attempt", attempt, "err", err)
	return false
}

// install makes t the active session: it replays the watched addresses,
// swaps the transport under the write lock and closes the previous one.
// A fallback never replaces an active session.
func (m *Manager) install(t Transport, r role) error {
	old, gen, ledgerIndex, err := m.swap(t, r)
	if err != nil {
		t.Close()
		return err
	}
	if old != nil {
		logger.Info("migrated session", "from", old.Endpoint(), "to", t.Endpoint())
		old.Close()
	}
	m.adoptLedgerIndex(ledgerIndex)
	go m.pump(t, gen)

	logger.Info("session active", "role", r, "endpoint", t.Endpoint(), "ledger", ledgerIndex)
	m.events.Connected.Trigger(&ConnectedEvent{Endpoint: t.Endpoint(), Primary: r == rolePrimary, LedgerIndex: ledgerIndex})
	if r == roleFallback {
		// keep trying to get back to the primary
		m.startLoop(true, false)
	}
	return nil
}

func (m *Manager) swap(t Transport, r role) (old Transport, gen, ledgerIndex uint32, err error) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	if ledgerIndex, err = m.replay(t); err != nil {
		return nil, 0, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.permanent.Load() {
		return nil, 0, 0, types.NewError(types.KindTransport, "connection manager is permanently disconnected")
	}
	if r == roleFallback && m.transport != nil {
		return nil, 0, 0, types.NewError(types.KindTransport, "%v superseded by %v session", t.Endpoint(), m.role)
	}
	old = m.transport
	m.transport, m.role = t, r
	gen = m.generation.Inc()
	m.autoReconnect.Store(true)
	m.setState(r.connected())
	return old, gen, ledgerIndex, nil
}

// replay subscribes the new session to the ledger stream and the watched
// accounts, returning the session's current ledger index.
func (m *Manager) replay(t Transport) (uint32, error) {
	req := map[string]interface{}{"streams": []string{"ledger"}}
	if accounts := m.Watched(); len(accounts) > 0 {
		req["accounts"] = accounts
	}
	ctx, cancel := context.WithTimeout(m.ctx, replayTimeout)
	defer cancel()
	var res struct {
		LedgerIndex uint32 `json:"ledger_index"`
	}
	if err := t.Call(ctx, "subscribe", req, &res); err != nil {
		return 0, err
	}
	return res.LedgerIndex, nil
}

// adoptLedgerIndex takes the new session's index even when it is behind
// the previous session's; the regression is logged.
func (m *Manager) adoptLedgerIndex(index uint32) {
	m.ledgers.Reset()
	if index == 0 {
		return
	}
	m.ledgers.Set(index)
	if prev := m.ledgerIndex.Swap(index); index < prev {
		logger.Warn("ledger index regressed after session change", "previous", prev, "current", index)
	}
}

func (m *Manager) onLedgerClosed(msg *LedgerStreamMsg) {
	index := msg.LedgerSequence
	if gap := m.ledgers.Set(index); gap != nil {
		logger.Warn("ledgers skipped", "range", gap.String())
	}
	if index <= m.ledgerIndex.Load() {
		logger.Debug("stale ledger closed", "ledger", index, "current", m.ledgerIndex.Load())
		return
	}
	m.ledgerIndex.Store(index)
	m.events.LedgerClosed.Trigger(&LedgerClosedEvent{
		LedgerIndex: index,
		LedgerHash:  msg.LedgerHash,
		LedgerTime:  msg.LedgerTime,
		TxnCount:    msg.TxnCount,
	})
}

// pump forwards notifications of session gen until the session ends.
func (m *Manager) pump(t Transport, gen uint32) {
	for msg := range t.Notifications() {
		if m.generation.Load() != gen {
			continue
		}
		switch n := msg.(type) {
		case *LedgerStreamMsg:
			m.onLedgerClosed(n)
		case *TransactionStreamMsg:
			m.events.Transaction.Trigger(n)
		}
	}
	<-t.Done()
	m.sessionEnded(t)
}

func (m *Manager) sessionEnded(t Transport) {
	m.mu.Lock()
	if m.transport != t {
		// replaced or closed on purpose
		m.mu.Unlock()
		return
	}
	m.transport = nil
	m.setState(Disconnected)
	m.mu.Unlock()
	if m.permanent.Load() {
		return
	}
	reason := "connection lost"
	if err := t.Err(); err != nil {
		reason = err.Error()
	}
	logger.Warn("session lost, reconnecting", "endpoint", t.Endpoint(), "reason", reason)
	m.events.Disconnected.Trigger(&DisconnectedEvent{Code: CodeConnectionLost, Reason: reason})
	m.startLoops()
}
