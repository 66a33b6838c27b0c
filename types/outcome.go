package types

import (
	"strings"

	"github.com/leasenet/ledgerclient/common"
)

// ResultSuccess is the canonical success engine result.
const ResultSuccess = "tesSUCCESS"

// IsSuccessResult reports whether code is the canonical success code.
func IsSuccessResult(code string) bool {
	return code == ResultSuccess
}

// SubmitResult is the provisional answer of a submit call.
type SubmitResult struct {
	EngineResult        string       `json:"engine_result"`
	EngineResultCode    int          `json:"engine_result_code"`
	EngineResultMessage string       `json:"engine_result_message"`
	Accepted            bool         `json:"accepted"`
	TxBlob              string       `json:"tx_blob"`
	Tx                  *Transaction `json:"tx_json"`
}

// Hash returns the hash of the submitted transaction, if reported.
func (r *SubmitResult) Hash() string {
	if r == nil || r.Tx == nil {
		return ""
	}
	return r.Tx.Hash
}

// HookExecutionJSON is the wire shape of a hook execution record in metadata.
type HookExecutionJSON struct {
	HookExecution struct {
		HookAccount      string `json:"HookAccount"`
		HookHash         string `json:"HookHash"`
		HookResult       int    `json:"HookResult"`
		HookReturnCode   string `json:"HookReturnCode"`
		HookReturnString string `json:"HookReturnString"`
	} `json:"HookExecution"`
}

// Meta is the transaction metadata attached to validated transactions.
type Meta struct {
	TransactionIndex  uint32              `json:"TransactionIndex"`
	TransactionResult string              `json:"TransactionResult"`
	HookExecutions    []HookExecutionJSON `json:"HookExecutions,omitempty"`
	DeliveredAmount   *Amount             `json:"delivered_amount,omitempty"`
}

// TxResult is a transaction as returned by the tx lookup.
type TxResult struct {
	Transaction
	Meta      *Meta `json:"meta,omitempty"`
	Validated bool  `json:"validated"`
}

// HookExecution is one decoded entry of the contract execution trace.
type HookExecution struct {
	ResultCode int
	ReturnCode string
	Message    string
}

// TransactionOutcome is the final result of a validated transaction.
type TransactionOutcome struct {
	ResultCode  string
	Hooks       []HookExecution
	Transaction *TxResult
}

// Succeeded reports whether the engine result is the success code.
func (o *TransactionOutcome) Succeeded() bool {
	return o != nil && IsSuccessResult(o.ResultCode)
}

// HookMessages returns the decoded hook return strings.
func (o *TransactionOutcome) HookMessages() []string {
	msgs := make([]string, 0, len(o.Hooks))
	for _, h := range o.Hooks {
		msgs = append(msgs, h.Message)
	}
	return msgs
}

// NewTransactionOutcome builds the outcome of a validated transaction,
// decoding hook return strings from hex and trimming their zero padding.
func NewTransactionOutcome(res *TxResult) *TransactionOutcome {
	outcome := &TransactionOutcome{Transaction: res}
	if res.Meta == nil {
		return outcome
	}
	outcome.ResultCode = res.Meta.TransactionResult
	for _, h := range res.Meta.HookExecutions {
		exec := h.HookExecution
		outcome.Hooks = append(outcome.Hooks, HookExecution{
			ResultCode: exec.HookResult,
			ReturnCode: exec.HookReturnCode,
			Message:    strings.TrimSpace(common.HexToText(exec.HookReturnString)),
		})
	}
	return outcome
}
