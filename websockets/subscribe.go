package websockets

import (
	"github.com/leasenet/ledgerclient/types"
)

// LedgerStreamMsg fields from subscribed ledger stream messages
type LedgerStreamMsg struct {
	FeeBase          uint64 `json:"fee_base"`
	FeeRef           uint64 `json:"fee_ref"`
	LedgerSequence   uint32 `json:"ledger_index"`
	LedgerHash       string `json:"ledger_hash"`
	LedgerTime       uint32 `json:"ledger_time"`
	ReserveBase      uint64 `json:"reserve_base"`
	ReserveIncrement uint64 `json:"reserve_inc"`
	ValidatedLedgers string `json:"validated_ledgers"`
	TxnCount         uint32 `json:"txn_count"` // Only streamed, not in the subscribe result.
}

// TransactionStreamMsg fields from subscribed account transaction messages
type TransactionStreamMsg struct {
	Transaction         types.Transaction `json:"transaction"`
	Meta                *types.Meta       `json:"meta,omitempty"`
	EngineResult        string            `json:"engine_result"`
	EngineResultCode    int               `json:"engine_result_code"`
	EngineResultMessage string            `json:"engine_result_message"`
	LedgerHash          string            `json:"ledger_hash"`
	LedgerSequence      uint32            `json:"ledger_index"`
	Status              string            `json:"status"`
	Validated           bool              `json:"validated"`
}

// Map message types to the appropriate data structure
var streamMessageFactory = map[string]func() interface{}{
	"ledgerClosed": func() interface{} { return &LedgerStreamMsg{} },
	"transaction":  func() interface{} { return &TransactionStreamMsg{} },
}

// SubscribeResult is the reply to a subscribe carrying the ledger stream.
type SubscribeResult struct {
	*LedgerStreamMsg
}
