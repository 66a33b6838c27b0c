package connection

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/leasenet/ledgerclient/params"
	"github.com/leasenet/ledgerclient/types"
)

type fakeCall struct {
	command string
	params  map[string]interface{}
}

// fakeTransport is an in-memory ledger server session.
type fakeTransport struct {
	endpoint    string
	ledgerIndex uint32
	callDelay   time.Duration

	mu     sync.Mutex
	calls  []fakeCall
	closed bool
	err    error
	notes  chan interface{}
	done   chan struct{}

	afterClose *atomic.Int32
}

func newFakeTransport(endpoint string, ledgerIndex uint32) *fakeTransport {
	return &fakeTransport{
		endpoint:    endpoint,
		ledgerIndex: ledgerIndex,
		notes:       make(chan interface{}, 64),
		done:        make(chan struct{}),
		afterClose:  atomic.NewInt32(0),
	}
}

func (f *fakeTransport) Call(ctx context.Context, command string, params map[string]interface{}, result interface{}) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		f.afterClose.Inc()
		return types.NewError(types.KindTransport, "%v: session closed", command)
	}
	f.calls = append(f.calls, fakeCall{command: command, params: params})
	f.mu.Unlock()

	if f.callDelay > 0 {
		time.Sleep(f.callDelay)
	}
	if command == "subscribe" && result != nil {
		b, _ := json.Marshal(map[string]interface{}{"ledger_index": f.ledgerIndex})
		return json.Unmarshal(b, result)
	}
	return nil
}

func (f *fakeTransport) Notifications() <-chan interface{} { return f.notes }
func (f *fakeTransport) Done() <-chan struct{}             { return f.done }
func (f *fakeTransport) Endpoint() string                  { return f.endpoint }

func (f *fakeTransport) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeTransport) Close() {
	f.shutdown(nil)
}

// drop ends the session as if the server went away.
func (f *fakeTransport) drop() {
	f.shutdown(types.NewError(types.KindTransport, "connection reset by peer"))
}

func (f *fakeTransport) shutdown(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed, f.err = true, err
	close(f.notes)
	close(f.done)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// push delivers a notification unless the session is closed.
func (f *fakeTransport) push(msg interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.notes <- msg
	return true
}

func (f *fakeTransport) callsOf(command string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []fakeCall
	for _, c := range f.calls {
		if c.command == command {
			res = append(res, c)
		}
	}
	return res
}

// fakeNetwork dials fake transports for reachable urls.
type fakeNetwork struct {
	mu        sync.Mutex
	reachable map[string]bool
	ledgers   map[string]uint32
	dialed    map[string][]*fakeTransport
	attempts  *atomic.Int32
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		reachable: make(map[string]bool),
		ledgers:   make(map[string]uint32),
		dialed:    make(map[string][]*fakeTransport),
		attempts:  atomic.NewInt32(0),
	}
}

func (n *fakeNetwork) setReachable(url string, reachable bool, ledgerIndex uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reachable[url] = reachable
	n.ledgers[url] = ledgerIndex
}

func (n *fakeNetwork) Dial(ctx context.Context, endpoint *params.ServerEndpoint) (Transport, error) {
	n.attempts.Inc()
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.reachable[endpoint.URL] {
		return nil, types.NewError(types.KindTransport, "dial %v: connection refused", endpoint.URL)
	}
	t := newFakeTransport(endpoint.URL, n.ledgers[endpoint.URL])
	n.dialed[endpoint.URL] = append(n.dialed[endpoint.URL], t)
	return t, nil
}

func (n *fakeNetwork) last(url string) *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	list := n.dialed[url]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

func (n *fakeNetwork) dialCount(url string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.dialed[url])
}
