package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasenet/ledgerclient/types"
	"github.com/leasenet/ledgerclient/websockets"
)

// pagedServer serves a listing in pages of fixed sizes.
type pagedServer struct {
	pages    []int
	requests []map[string]interface{}
	next     int
}

func (s *pagedServer) Request(ctx context.Context, command string, params map[string]interface{}, result interface{}) error {
	req := make(map[string]interface{}, len(params))
	for k, v := range params {
		req[k] = v
	}
	s.requests = append(s.requests, req)

	page := len(s.requests) - 1
	if page >= len(s.pages) {
		return fmt.Errorf("unexpected page %d", page)
	}
	limit := params["limit"].(int)
	count := s.pages[page]
	if count > limit {
		count = limit
	}
	items := make([]map[string]int, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, map[string]int{"seq": s.next})
		s.next++
	}
	res := map[string]interface{}{"offers": items, "ledger_index": 77}
	if page < len(s.pages)-1 {
		res["marker"] = fmt.Sprintf("m%d", page)
	}
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, result)
}

func seqs(t *testing.T, items []json.RawMessage) []int {
	res := make([]int, 0, len(items))
	for _, raw := range items {
		var item struct{ Seq int }
		require.NoError(t, json.Unmarshal(raw, &item))
		res = append(res, item.Seq)
	}
	return res
}

func TestPaginate(t *testing.T) {
	srv := &pagedServer{pages: []int{400, 400, 50}}
	g := New(srv, 0)

	items, err := g.Paginate(context.Background(), "account_offers", map[string]interface{}{"account": "rA"}, "offers", 0)
	require.NoError(t, err)
	require.Len(t, items, 850)
	for i, seq := range seqs(t, items) {
		require.Equal(t, i, seq)
	}

	require.Len(t, srv.requests, 3)
	assert.Nil(t, srv.requests[0]["marker"])
	assert.Equal(t, json.RawMessage(`"m0"`), srv.requests[1]["marker"])
	assert.Equal(t, json.RawMessage(`"m1"`), srv.requests[2]["marker"])
	assert.Equal(t, json.RawMessage(`77`), srv.requests[2]["ledger_index"])
	for _, req := range srv.requests {
		assert.Equal(t, "rA", req["account"])
		assert.Equal(t, 400, req["limit"])
	}
}

func TestPaginatePageSizeCap(t *testing.T) {
	srv := &pagedServer{pages: []int{1000, 10}}
	g := New(srv, 1000)
	assert.Equal(t, 400, g.PageSize())

	items, err := g.Paginate(context.Background(), "account_offers", nil, "offers", 0)
	require.NoError(t, err)
	assert.Len(t, items, 410)
}

func TestPaginateEmptyPageWithMarker(t *testing.T) {
	srv := &pagedServer{pages: []int{0, 0, 3}}
	items, err := New(srv, 0).Paginate(context.Background(), "account_offers", nil, "offers", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seqs(t, items))
	assert.Len(t, srv.requests, 3)
}

func TestPaginateStopsWithoutMarker(t *testing.T) {
	srv := &pagedServer{pages: []int{5}}
	items, err := New(srv, 0).Paginate(context.Background(), "account_offers", nil, "offers", 0)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Len(t, srv.requests, 1)
}

func TestPaginateLimit(t *testing.T) {
	srv := &pagedServer{pages: []int{400, 400, 400}}
	items, err := New(srv, 0).Paginate(context.Background(), "account_offers", nil, "offers", 450)
	require.NoError(t, err)
	assert.Len(t, items, 450)
	require.Len(t, srv.requests, 2)
	assert.Equal(t, 50, srv.requests[1]["limit"])
}

// replyServer answers every command from a fixed table.
type replyServer map[string]interface{}

func (s replyServer) Request(ctx context.Context, command string, params map[string]interface{}, result interface{}) error {
	reply, ok := s[command]
	if !ok {
		return types.NewError(types.KindTransport, "%v: no reply", command)
	}
	if err, ok := reply.(error); ok {
		return err
	}
	if result == nil {
		return nil
	}
	b, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, result)
}

func TestLookupNotFound(t *testing.T) {
	srv := replyServer{
		"tx":           errors.WithStack(&websockets.CommandError{Name: "txnNotFound", Code: 29}),
		"account_info": errors.WithStack(&websockets.CommandError{Name: "actMalformed", Code: 35}),
		"ledger_entry": map[string]interface{}{"node": map[string]string{"HookStateData": "AABB"}},
	}
	g := New(srv, 0)
	ctx := context.Background()

	_, err := g.Tx(ctx, "ABCD")
	assert.True(t, types.IsNotFound(err))

	// only existence checks translate
	err = g.Request(ctx, "tx", nil, nil)
	var cmdErr *websockets.CommandError
	assert.True(t, errors.As(err, &cmdErr))
	assert.False(t, types.IsNotFound(err))

	_, err = g.AccountInfo(ctx, "rA")
	assert.False(t, types.IsNotFound(err))
	assert.True(t, errors.As(err, &cmdErr))

	exists, err := g.Exists(ctx, "tx", nil)
	assert.NoError(t, err)
	assert.False(t, exists)
	exists, err = g.Exists(ctx, "ledger_entry", nil)
	assert.NoError(t, err)
	assert.True(t, exists)

	data, err := g.HookState(ctx, "rA", "KEY", "NS")
	require.NoError(t, err)
	assert.Equal(t, "AABB", data)

	// transport failures pass through unchanged
	_, err = g.Ledger(ctx, 0)
	assert.Equal(t, types.KindTransport, types.KindOf(err))
}

func TestFee(t *testing.T) {
	srv := replyServer{"fee": map[string]interface{}{"drops": map[string]string{"base_fee": "10", "open_ledger_fee": "12"}}}
	fee, err := New(srv, 0).Fee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(12), fee)

	srv["fee"] = map[string]interface{}{"drops": map[string]string{"base_fee": "x"}}
	_, err = New(srv, 0).Fee(context.Background())
	assert.Equal(t, types.KindMalformedLayout, types.KindOf(err))
}

func TestOwnedOffers(t *testing.T) {
	srv := replyServer{"account_objects": map[string]interface{}{
		"account_objects": []map[string]interface{}{
			{"LedgerEntryType": "NFTokenOffer", "index": "OFFER1", "Owner": "rHost", "NFTokenID": "TOK1", "Amount": "100"},
			{"LedgerEntryType": "RippleState", "index": "LINE"},
			{"LedgerEntryType": "URIToken", "index": "URI1", "Owner": "rHost"},
		},
	}}
	offers, err := New(srv, 0).OwnedOffers(context.Background(), "rHost", 99)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "OFFER1", offers[0].Index)
	assert.Equal(t, "TOK1", offers[0].TokenID)
	assert.Equal(t, uint64(100), offers[0].Amount.Drops)
	assert.Equal(t, "URI1", offers[1].Index)
}
