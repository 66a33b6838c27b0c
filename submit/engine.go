// Package submit submits signed transactions and waits for their
// validated outcome.
package submit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leasenet/ledgerclient/gateway"
	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/params"
	"github.com/leasenet/ledgerclient/types"
)

var logger = log.New("submit")

// submit results meaning the transaction already took effect or never can
var terminalResults = map[string]bool{
	"tefPAST_SEQ":   true,
	"tefALREADY":    true,
	"tefMAX_LEDGER": true,
	"temREDUNDANT":  true,
	"tefNO_TICKET":  true,
}

// Ledger tells the last closed ledger index.
type Ledger interface {
	LedgerIndex() uint32
}

// Engine submits transactions through a gateway.
type Engine struct {
	gw     *gateway.Gateway
	ledger Ledger
	signer types.Signer
	poll   time.Duration
	retry  params.RetryConfig
}

// NewEngine returns an engine. signer may be nil when only pre-signed or
// multi-signed transactions are submitted.
func NewEngine(gw *gateway.Gateway, ledger Ledger, signer types.Signer, finality *params.FinalityConfig, retry *params.RetryConfig) *Engine {
	e := &Engine{gw: gw, ledger: ledger, signer: signer}
	if finality != nil {
		e.poll = finality.PollInterval()
	}
	if e.poll <= 0 {
		e.poll = params.DefaultPollIntervalMillis * time.Millisecond
	}
	if retry != nil {
		e.retry = *retry
	}
	if e.retry.MaxAttempts <= 0 {
		e.retry.MaxAttempts = params.DefaultRetryAttempts
	}
	if e.retry.LedgerOffset == 0 {
		e.retry.LedgerOffset = params.DefaultLedgerOffset
	}
	return e
}

// Submit signs tx, submits it and waits until it is validated or its
// LastLedgerSequence has passed.
func (e *Engine) Submit(ctx context.Context, tx *types.Transaction) (*types.TransactionOutcome, error) {
	if tx.LastLedgerSequence == 0 {
		return nil, types.NewError(types.KindConfig, "transaction without LastLedgerSequence")
	}
	if e.signer == nil {
		return nil, types.NewError(types.KindConfig, "no signer configured")
	}
	signed, err := e.signer.Sign(ctx, tx)
	if err != nil {
		return nil, types.WrapError(types.KindConfig, err, "sign transaction")
	}
	res, err := e.gw.Submit(ctx, signed.TxBlob)
	if err != nil {
		return nil, err
	}
	hash := signed.Hash
	if hash == "" {
		hash = res.Hash()
	}
	return e.settle(ctx, hash, tx.LastLedgerSequence, res)
}

// SubmitMultisigned submits a transaction carrying its signer proofs and
// waits like Submit.
func (e *Engine) SubmitMultisigned(ctx context.Context, tx *types.Transaction) (*types.TransactionOutcome, error) {
	if tx.LastLedgerSequence == 0 {
		return nil, types.NewError(types.KindConfig, "transaction without LastLedgerSequence")
	}
	if len(tx.Signers) == 0 {
		return nil, types.NewError(types.KindConfig, "multi-signed transaction without signers")
	}
	res, err := e.gw.SubmitMultisigned(ctx, tx)
	if err != nil {
		return nil, err
	}
	return e.settle(ctx, res.Hash(), tx.LastLedgerSequence, res)
}

func (e *Engine) settle(ctx context.Context, hash string, lastLedger uint32, res *types.SubmitResult) (*types.TransactionOutcome, error) {
	logger.Debug("submitted", "hash", hash, "result", res.EngineResult, "lastLedger", lastLedger)
	if err := classify(res); err != nil {
		logger.Warn("submit rejected", "hash", hash, "result", res.EngineResult, "message", res.EngineResultMessage)
		return nil, err
	}
	if hash == "" {
		return nil, &types.Error{Kind: types.KindSubmitFailed, Reason: "submit reply without transaction hash", Provisional: res}
	}
	return e.WaitFinal(ctx, hash, lastLedger, res)
}

// classify returns nil when the provisional result may still end up in a
// validated ledger.
func classify(res *types.SubmitResult) error {
	code := res.EngineResult
	switch {
	case strings.HasPrefix(code, "tes"), strings.HasPrefix(code, "tec"), code == "terQUEUED":
		return nil
	case terminalResults[code]:
		return &types.Error{Kind: types.KindRejected, Reason: code + ": " + res.EngineResultMessage, Provisional: res}
	default:
		return &types.Error{Kind: types.KindSubmitFailed, Reason: code + ": " + res.EngineResultMessage, Provisional: res}
	}
}

// WaitFinal polls for the validated record of hash. Once the ledger index
// passes lastLedger without a validated record it fails with Expired.
// A validated non-success result fails with Rejected carrying the outcome.
func (e *Engine) WaitFinal(ctx context.Context, hash string, lastLedger uint32, provisional *types.SubmitResult) (*types.TransactionOutcome, error) {
	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, types.WrapError(types.KindTransport, ctx.Err(), "wait for "+hash)
		case <-ticker.C:
		}
		current := e.ledger.LedgerIndex()

		res, err := e.gw.Tx(ctx, hash)
		switch {
		case err == nil && res.Validated:
			return outcome(hash, res, provisional)
		case err == nil, types.IsNotFound(err):
		case types.KindOf(err) == types.KindTransport:
			logger.Warn("tx lookup failed", "hash", hash, "err", err)
		default:
			return nil, err
		}

		if current > lastLedger {
			logger.Warn("transaction expired", "hash", hash, "ledger", current, "lastLedger", lastLedger)
			return nil, &types.Error{
				Kind:        types.KindExpired,
				Reason:      fmt.Sprintf("ledger %d passed LastLedgerSequence %d", current, lastLedger),
				Provisional: provisional,
			}
		}
	}
}

func outcome(hash string, res *types.TxResult, provisional *types.SubmitResult) (*types.TransactionOutcome, error) {
	out := types.NewTransactionOutcome(res)
	if out.Succeeded() {
		logger.Info("transaction validated", "hash", hash, "ledger", res.LedgerIndex)
		return out, nil
	}
	logger.Warn("transaction failed", "hash", hash, "result", out.ResultCode, "hooks", out.HookMessages())
	return out, &types.Error{Kind: types.KindRejected, Reason: out.ResultCode, Outcome: out, Provisional: provisional}
}
