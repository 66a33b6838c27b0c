package gateway

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/leasenet/ledgerclient/types"
)

// LedgerSpec turns an index into a ledger_index parameter; 0 means the
// latest validated ledger.
func LedgerSpec(index uint32) interface{} {
	if index == 0 {
		return "validated"
	}
	return index
}

// FeeResult is the reply of the fee command, in drops.
type FeeResult struct {
	CurrentLedgerSize  string `json:"current_ledger_size"`
	CurrentQueueSize   string `json:"current_queue_size"`
	LedgerCurrentIndex uint32 `json:"ledger_current_index"`
	Drops              struct {
		BaseFee       string `json:"base_fee"`
		MedianFee     string `json:"median_fee"`
		MinimumFee    string `json:"minimum_fee"`
		OpenLedgerFee string `json:"open_ledger_fee"`
	} `json:"drops"`
}

// Fee returns the open ledger fee in drops.
func (g *Gateway) Fee(ctx context.Context) (uint64, error) {
	var res FeeResult
	if err := g.Request(ctx, "fee", nil, &res); err != nil {
		return 0, err
	}
	fee := res.Drops.OpenLedgerFee
	if fee == "" {
		fee = res.Drops.BaseFee
	}
	drops, err := strconv.ParseUint(fee, 10, 64)
	if err != nil {
		return 0, types.WrapError(types.KindMalformedLayout, err, "fee drops")
	}
	return drops, nil
}

// AccountData is the account root returned by account_info.
type AccountData struct {
	Account    string `json:"Account"`
	Balance    string `json:"Balance"`
	Flags      uint32 `json:"Flags"`
	OwnerCount uint32 `json:"OwnerCount"`
	Sequence   uint32 `json:"Sequence"`
}

// AccountInfo returns the account root at the current open ledger.
func (g *Gateway) AccountInfo(ctx context.Context, address string) (*AccountData, error) {
	var res struct {
		AccountData AccountData `json:"account_data"`
	}
	req := map[string]interface{}{"account": address, "ledger_index": "current"}
	if err := g.Lookup(ctx, "account_info", req, &res); err != nil {
		return nil, err
	}
	return &res.AccountData, nil
}

// LedgerHeader is the header part of a ledger reply.
type LedgerHeader struct {
	LedgerIndex     string `json:"ledger_index"`
	LedgerHash      string `json:"ledger_hash"`
	ParentHash      string `json:"parent_hash"`
	CloseTime       uint32 `json:"close_time"`
	CloseTimeHuman  string `json:"close_time_human"`
	TotalCoins      string `json:"total_coins"`
	TransactionHash string `json:"transaction_hash"`
	Closed          bool   `json:"closed"`
}

// Ledger returns the header of a ledger, 0 for the latest validated one.
func (g *Gateway) Ledger(ctx context.Context, index uint32) (*LedgerHeader, error) {
	var res struct {
		Ledger    LedgerHeader `json:"ledger"`
		Validated bool         `json:"validated"`
	}
	req := map[string]interface{}{"ledger_index": LedgerSpec(index)}
	if err := g.Lookup(ctx, "ledger", req, &res); err != nil {
		return nil, err
	}
	return &res.Ledger, nil
}

// LedgerCurrent returns the index of the open ledger.
func (g *Gateway) LedgerCurrent(ctx context.Context) (uint32, error) {
	var res struct {
		LedgerCurrentIndex uint32 `json:"ledger_current_index"`
	}
	if err := g.Request(ctx, "ledger_current", nil, &res); err != nil {
		return 0, err
	}
	return res.LedgerCurrentIndex, nil
}

// Tx looks a transaction up by hash.
func (g *Gateway) Tx(ctx context.Context, hash string) (*types.TxResult, error) {
	var res types.TxResult
	req := map[string]interface{}{"transaction": hash, "binary": false}
	if err := g.Lookup(ctx, "tx", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Submit submits a signed blob.
func (g *Gateway) Submit(ctx context.Context, txBlob string) (*types.SubmitResult, error) {
	var res types.SubmitResult
	if err := g.Request(ctx, "submit", map[string]interface{}{"tx_blob": txBlob}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitMultisigned submits a transaction carrying its signer proofs.
func (g *Gateway) SubmitMultisigned(ctx context.Context, tx *types.Transaction) (*types.SubmitResult, error) {
	var res types.SubmitResult
	if err := g.Request(ctx, "submit_multisigned", map[string]interface{}{"tx_json": tx}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AccountOffers lists the offers owned by address at a ledger.
func (g *Gateway) AccountOffers(ctx context.Context, address string, ledgerIndex uint32, limit int) ([]json.RawMessage, error) {
	req := map[string]interface{}{"account": address, "ledger_index": LedgerSpec(ledgerIndex)}
	return g.Paginate(ctx, "account_offers", req, "offers", limit)
}

// AccountObjects lists the ledger objects owned by address at a ledger,
// optionally of one type.
func (g *Gateway) AccountObjects(ctx context.Context, address string, ledgerIndex uint32, objectType string, limit int) ([]json.RawMessage, error) {
	req := map[string]interface{}{"account": address, "ledger_index": LedgerSpec(ledgerIndex)}
	if objectType != "" {
		req["type"] = objectType
	}
	return g.Paginate(ctx, "account_objects", req, "account_objects", limit)
}

// OwnedOffers returns the token sell offers and uri tokens owned by
// address at a ledger, decoded as offer details.
func (g *Gateway) OwnedOffers(ctx context.Context, address string, ledgerIndex uint32) ([]*types.OfferDetail, error) {
	objects, err := g.AccountObjects(ctx, address, ledgerIndex, "", 0)
	if err != nil {
		return nil, err
	}
	offers := make([]*types.OfferDetail, 0, len(objects))
	for _, raw := range objects {
		var obj struct {
			types.OfferDetail
			LedgerEntryType string `json:"LedgerEntryType"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, types.WrapError(types.KindMalformedLayout, err, "account object")
		}
		switch obj.LedgerEntryType {
		case "NFTokenOffer", "URIToken":
			detail := obj.OfferDetail
			offers = append(offers, &detail)
		}
	}
	return offers, nil
}

// NamespaceEntry is one hook state entry of an account namespace.
type NamespaceEntry struct {
	Key   string `json:"HookStateKey"`
	Data  string `json:"HookStateData"`
	Index string `json:"index"`
}

// AccountNamespace lists the hook state entries of address in namespace.
func (g *Gateway) AccountNamespace(ctx context.Context, address, namespace string) ([]*NamespaceEntry, error) {
	req := map[string]interface{}{"account": address, "namespace_id": namespace}
	raws, err := g.Paginate(ctx, "account_namespace", req, "namespace_entries", 0)
	if err != nil {
		return nil, err
	}
	entries := make([]*NamespaceEntry, 0, len(raws))
	for _, raw := range raws {
		entry := &NamespaceEntry{}
		if err := json.Unmarshal(raw, entry); err != nil {
			return nil, types.WrapError(types.KindMalformedLayout, err, "namespace entry")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// HookState reads one hook state entry; a missing key is NotFound.
func (g *Gateway) HookState(ctx context.Context, address, key, namespace string) (string, error) {
	var res struct {
		Node NamespaceEntry `json:"node"`
	}
	req := map[string]interface{}{
		"hook_state": map[string]interface{}{
			"account":      address,
			"key":          key,
			"namespace_id": namespace,
		},
		"ledger_index": "validated",
	}
	if err := g.Lookup(ctx, "ledger_entry", req, &res); err != nil {
		return "", err
	}
	return res.Node.Data, nil
}
