package submit

import (
	"context"
	"strconv"
	"time"

	"github.com/leasenet/ledgerclient/types"
)

// Prepare fills the account sequence, fee and LastLedgerSequence of a copy
// of tx when they are unset. feeBump drops are added to the fee.
func (e *Engine) Prepare(ctx context.Context, tx *types.Transaction, feeBump uint64) (*types.Transaction, error) {
	if tx.Account == "" {
		return nil, types.NewError(types.KindConfig, "transaction without Account")
	}
	prepared := tx.Clone()
	if prepared.Sequence == 0 {
		info, err := e.gw.AccountInfo(ctx, tx.Account)
		if err != nil {
			return nil, err
		}
		prepared.Sequence = info.Sequence
	}

	var fee uint64
	if tx.Fee == "" {
		var err error
		if fee, err = e.gw.Fee(ctx); err != nil {
			return nil, err
		}
	} else {
		var err error
		if fee, err = strconv.ParseUint(tx.Fee, 10, 64); err != nil {
			return nil, types.WrapError(types.KindConfig, err, "transaction fee")
		}
	}
	prepared.Fee = strconv.FormatUint(fee+feeBump, 10)

	if prepared.LastLedgerSequence == 0 {
		current := e.ledger.LedgerIndex()
		if current == 0 {
			var err error
			if current, err = e.gw.LedgerCurrent(ctx); err != nil {
				return nil, err
			}
		}
		prepared.LastLedgerSequence = current + e.retry.LedgerOffset
	}
	return prepared, nil
}

// retriable reports whether a failed submission is worth another attempt.
func retriable(err error) bool {
	switch types.KindOf(err) {
	case types.KindConfig, types.KindRejected, types.KindMalformedLayout:
		return false
	default:
		return true
	}
}

// SubmitWithRetry prepares and submits tx up to the configured number of
// attempts. Terminal failures return at once; an Expired attempt raises
// the fee by the configured increment and gets a fresh
// LastLedgerSequence.
func (e *Engine) SubmitWithRetry(ctx context.Context, tx *types.Transaction) (*types.TransactionOutcome, error) {
	var (
		feeBump uint64
		next    = tx
	)
	for attempt := 1; ; attempt++ {
		prepared, err := e.Prepare(ctx, next, feeBump)
		if err != nil {
			return nil, err
		}
		out, err := e.Submit(ctx, prepared)
		if err == nil {
			return out, nil
		}
		if !retriable(err) || attempt >= e.retry.MaxAttempts {
			return out, err
		}
		if types.KindOf(err) == types.KindExpired {
			feeBump += e.retry.FeeIncrement
			next = tx.Clone()
			next.Sequence = prepared.Sequence
			next.LastLedgerSequence = 0
		}
		logger.Warn("submit attempt failed, retrying", "account", tx.Account, "attempt", attempt, "feeBump", feeBump, "err", err)

		timer := time.NewTimer(e.retry.Delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, types.WrapError(types.KindTransport, ctx.Err(), "submit retry")
		case <-timer.C:
		}
	}
}
