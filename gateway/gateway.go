// Package gateway issues point and paginated requests through the
// connection manager.
package gateway

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/params"
	"github.com/leasenet/ledgerclient/types"
	"github.com/leasenet/ledgerclient/websockets"
)

var logger = log.New("gateway")

// application errors meaning "no such object"
var notFoundErrors = map[string]bool{
	"txnNotFound":    true,
	"entryNotFound":  true,
	"actNotFound":    true,
	"objectNotFound": true,
	"lgrNotFound":    true,
}

// Requester issues one request on the active session.
type Requester interface {
	Request(ctx context.Context, command string, params map[string]interface{}, result interface{}) error
}

// Gateway wraps a Requester with not-found translation and pagination.
type Gateway struct {
	conn     Requester
	pageSize int
}

// New returns a gateway. pageSize caps every page and defaults to 400.
func New(conn Requester, pageSize int) *Gateway {
	if pageSize <= 0 || pageSize > params.DefaultPageSize {
		pageSize = params.DefaultPageSize
	}
	return &Gateway{conn: conn, pageSize: pageSize}
}

// PageSize returns the per page cap.
func (g *Gateway) PageSize() int {
	return g.pageSize
}

// Request passes one request through unchanged.
func (g *Gateway) Request(ctx context.Context, command string, params map[string]interface{}, result interface{}) error {
	return g.conn.Request(ctx, command, params, result)
}

// Lookup is Request for existence checks: a not-found application error
// becomes a NotFound result.
func (g *Gateway) Lookup(ctx context.Context, command string, params map[string]interface{}, result interface{}) error {
	err := g.conn.Request(ctx, command, params, result)
	if code, ok := notFound(err); ok {
		return &types.Error{Kind: types.KindNotFound, Reason: command + ": " + code, Err: err}
	}
	return err
}

// Exists reports whether a Lookup finds its object.
func (g *Gateway) Exists(ctx context.Context, command string, params map[string]interface{}) (bool, error) {
	err := g.Lookup(ctx, command, params, nil)
	switch {
	case err == nil:
		return true, nil
	case types.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func notFound(err error) (string, bool) {
	var cmdErr *websockets.CommandError
	if err != nil && errors.As(err, &cmdErr) && notFoundErrors[cmdErr.Name] {
		return cmdErr.Name, true
	}
	return "", false
}

// Paginate repeats command with the marker of the previous page and
// concatenates the items listed under field. Pages never exceed the page
// size; limit bounds the total, 0 means everything. The ledger of the
// first page is pinned for the following ones.
func (g *Gateway) Paginate(ctx context.Context, command string, params map[string]interface{}, field string, limit int) ([]json.RawMessage, error) {
	req := make(map[string]interface{}, len(params)+2)
	for k, v := range params {
		req[k] = v
	}
	var (
		items      []json.RawMessage
		lastMarker string
	)
	for page := 1; ; page++ {
		size := g.pageSize
		if limit > 0 && limit-len(items) < size {
			size = limit - len(items)
		}
		req["limit"] = size

		var res map[string]json.RawMessage
		if err := g.conn.Request(ctx, command, req, &res); err != nil {
			return nil, err
		}
		var pageItems []json.RawMessage
		if raw, ok := res[field]; ok && !isNull(raw) {
			if err := json.Unmarshal(raw, &pageItems); err != nil {
				return nil, types.WrapError(types.KindMalformedLayout, err, command+": "+field)
			}
		}
		items = append(items, pageItems...)

		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
		marker, ok := res["marker"]
		if !ok || isNull(marker) {
			return items, nil
		}
		if string(marker) == lastMarker {
			return nil, types.NewError(types.KindTransport, "%v: marker %s repeated on page %d", command, marker, page)
		}
		lastMarker = string(marker)
		req["marker"] = marker
		if index, ok := res["ledger_index"]; ok && !isNull(index) {
			req["ledger_index"] = index
		}
		logger.Trace("next page", "command", command, "page", page+1, "items", len(items))
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
