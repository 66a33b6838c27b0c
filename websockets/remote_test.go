package websockets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasenet/ledgerclient/types"
)

// fakeLedger answers a handful of commands the way a ledger server does.
func fakeLedger(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.True(t, strings.HasPrefix(req.Header.Get("User-Agent"), "ledgerclient/"))
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			id := msg["id"]
			switch msg["command"] {
			case "ping":
				_ = conn.WriteJSON(map[string]interface{}{"id": id, "status": "success", "type": "response", "result": map[string]interface{}{}})
			case "tx":
				_ = conn.WriteJSON(map[string]interface{}{
					"id": id, "status": "error", "type": "response",
					"error": "txnNotFound", "error_code": 29, "error_message": "Transaction not found.",
				})
			case "subscribe":
				_ = conn.WriteJSON(map[string]interface{}{"id": id, "status": "success", "type": "response",
					"result": map[string]interface{}{"ledger_index": 100, "ledger_hash": "AB"}})
				_ = conn.WriteJSON(map[string]interface{}{"type": "ledgerClosed", "ledger_index": 101})
				_ = conn.WriteJSON(map[string]interface{}{
					"type": "transaction", "validated": true, "ledger_index": 101,
					"engine_result": "tesSUCCESS", "engine_result_message": "The transaction was applied.",
					"transaction": map[string]interface{}{"TransactionType": "Payment", "Account": "rA", "Destination": "rB", "hash": "H1"},
					"meta": map[string]interface{}{"TransactionResult": "tesSUCCESS"},
				})
			case "hang":
				return
			}
		}
	}))
}

func dial(t *testing.T, srv *httptest.Server) *Remote {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	r, err := NewRemote(context.Background(), url, Options{DialTimeout: time.Second, PingInterval: time.Second})
	require.NoError(t, err)
	return r
}

func TestRemoteCall(t *testing.T) {
	srv := fakeLedger(t)
	defer srv.Close()
	r := dial(t, srv)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Call(ctx, "ping", nil, nil))

	err := r.Call(ctx, "tx", map[string]interface{}{"transaction": "ABC"}, &struct{}{})
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "txnNotFound", cmdErr.Name)
	assert.False(t, cmdErr.IsClientError())
}

func TestCallAfterCloseReturns(t *testing.T) {
	srv := fakeLedger(t)
	defer srv.Close()
	r := dial(t, srv)
	r.Close()
	<-r.Done()

	const calls = 20
	errs := make(chan error, calls)
	for i := 0; i < calls; i++ {
		go func() { errs <- r.Call(context.Background(), "ping", nil, nil) }()
	}
	for i := 0; i < calls; i++ {
		select {
		case err := <-errs:
			assert.True(t, errors.Is(err, types.ErrTransport))
			assert.Contains(t, err.Error(), "connection closed")
		case <-time.After(5 * time.Second):
			t.Fatal("call on a closed remote did not return")
		}
	}
}

func TestRemoteStream(t *testing.T) {
	srv := fakeLedger(t)
	defer srv.Close()
	r := dial(t, srv)
	defer r.Close()

	var res SubscribeResult
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Call(ctx, "subscribe", map[string]interface{}{"streams": []string{"ledger"}}, &res))
	require.NotNil(t, res.LedgerStreamMsg)
	assert.Equal(t, uint32(100), res.LedgerSequence)

	ledger := (<-r.Notifications()).(*LedgerStreamMsg)
	assert.Equal(t, uint32(101), ledger.LedgerSequence)

	tx := (<-r.Notifications()).(*TransactionStreamMsg)
	assert.True(t, tx.Validated)
	assert.Equal(t, "rB", tx.Transaction.Destination)
	assert.Equal(t, "H1", tx.Transaction.Hash)
	assert.Equal(t, "tesSUCCESS", tx.Meta.TransactionResult)
}

func TestRemoteClose(t *testing.T) {
	srv := fakeLedger(t)
	defer srv.Close()
	r := dial(t, srv)

	r.Close()
	r.Close()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("remote did not shut down")
	}
	assert.NoError(t, r.Err())
	_, open := <-r.Notifications()
	assert.False(t, open)

	err := r.Call(context.Background(), "ping", nil, nil)
	assert.True(t, errors.Is(err, types.ErrTransport))
}

func TestRemoteServerDrop(t *testing.T) {
	srv := fakeLedger(t)
	defer srv.Close()
	r := dial(t, srv)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := r.Call(ctx, "hang", nil, nil)
	assert.True(t, errors.Is(err, types.ErrTransport))

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("remote did not notice the drop")
	}
	assert.Error(t, r.Err())
}

func TestDialFailure(t *testing.T) {
	_, err := NewRemote(context.Background(), "ws://127.0.0.1:1", Options{DialTimeout: 200 * time.Millisecond})
	assert.True(t, errors.Is(err, types.ErrTransport))
}

func TestRequestMarshal(t *testing.T) {
	cmd := newRequestCommand("account_info", map[string]interface{}{"account": "rA"})
	b, err := json.Marshal(cmd)
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, "account_info", msg["command"])
	assert.Equal(t, "rA", msg["account"])
	assert.EqualValues(t, cmd.Id, msg["id"])
}
