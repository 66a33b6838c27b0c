package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/iotaledger/hive.go/events"
	"go.uber.org/atomic"

	"github.com/leasenet/ledgerclient/codec"
	"github.com/leasenet/ledgerclient/connection"
	"github.com/leasenet/ledgerclient/protocol"
	"github.com/leasenet/ledgerclient/types"
)

var (
	ledgerStyle  = color.New(color.FgRed, color.Underline)
	hostStyle    = color.New(color.FgMagenta)
	leaseStyle   = color.New(color.FgGreen)
	failureStyle = color.New(color.FgRed, color.Bold)
	infoStyle    = color.New(color.FgYellow)
	plainStyle   = color.New(color.FgWhite)
)

// printer writes one line per notification. Handlers run on the delivery
// goroutine of the connection, so writes are serialized.
type printer struct {
	mu  sync.Mutex
	out io.Writer

	events   atomic.Uint64
	failures atomic.Uint64
}

func newPrinter() *printer {
	return &printer{out: os.Stdout}
}

func (p *printer) println(style *color.Color, format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = style.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) connectedClosure() *events.Closure {
	return events.NewClosure(func(ev *connection.ConnectedEvent) {
		p.println(infoStyle, "connected     %-40s primary=%v ledger=%d", ev.Endpoint, ev.Primary, ev.LedgerIndex)
	})
}

func (p *printer) disconnectedClosure() *events.Closure {
	return events.NewClosure(func(ev *connection.DisconnectedEvent) {
		p.println(failureStyle, "disconnected  code=%d %s", ev.Code, ev.Reason)
	})
}

func (p *printer) ledgerClosure() *events.Closure {
	return events.NewClosure(func(ev *connection.LedgerClosedEvent) {
		p.println(ledgerStyle, "ledger        %-10d %s txs=%d", ev.LedgerIndex, ev.LedgerHash, ev.TxnCount)
	})
}

func (p *printer) event(ev protocol.Event) {
	p.events.Inc()
	tx := ev.Transaction()
	style := plainStyle
	switch {
	case leaseKinds[ev.Kind()]:
		style = leaseStyle
	case ev.Kind() <= protocol.KindReward:
		style = hostStyle
	}
	p.println(style, "%-16s %-64s %s", ev.Kind(), tx.Hash, describe(ev))
}

func (p *printer) failure(tx *types.Transaction, err error) {
	p.failures.Inc()
	p.println(failureStyle, "%-16s %-64s %v", "Failed", tx.Hash, err)
}

func describe(ev protocol.Event) string {
	switch e := ev.(type) {
	case *protocol.HostRegistered:
		r := e.Registration
		return fmt.Sprintf("host=%s country=%s instances=%d cpu=%q", e.Host, r.CountryCode, r.TotalInstances, r.CPUModel)
	case *protocol.HostUpdated:
		return fmt.Sprintf("host=%s active=%d/%d version=%d.%d.%d", e.Host, e.Update.ActiveInstances,
			e.Update.TotalInstances, e.Update.Version[0], e.Update.Version[1], e.Update.Version[2])
	case *protocol.HostDeregistered:
		return "host=" + e.Host
	case *protocol.Heartbeat:
		return "host=" + e.Host
	case *protocol.Reward:
		return fmt.Sprintf("host=%s amount=%s", e.Host, e.Amount)
	case *protocol.AcquireLease:
		return fmt.Sprintf("tenant=%s host=%s token=%s%s%s", e.Tenant, e.Host, e.URITokenID, leaseText(e.Lease), sealed(e.Undecryptable))
	case *protocol.AcquireSuccess:
		return fmt.Sprintf("ref=%s%s", e.AcquireRefID, sealed(e.Undecryptable))
	case *protocol.AcquireError:
		return fmt.Sprintf("ref=%s reason=%q", e.AcquireRefID, e.Reason)
	case *protocol.ExtendLease:
		return fmt.Sprintf("tenant=%s token=%s amount=%v%s", e.Tenant, e.URITokenID, e.Amount, sealed(e.Undecryptable))
	case *protocol.ExtendSuccess:
		return "ref=" + e.ExtendRefID
	case *protocol.ExtendError:
		return fmt.Sprintf("ref=%s reason=%q", e.ExtendRefID, e.Reason)
	case *protocol.Redeem:
		return fmt.Sprintf("tenant=%s host=%s amount=%v", e.Tenant, e.Host, e.Amount)
	case *protocol.RedeemSuccess:
		return fmt.Sprintf("ref=%s payload=%d bytes", e.RedeemRefID, len(e.Payload))
	case *protocol.RedeemError:
		return fmt.Sprintf("ref=%s reason=%q", e.RedeemRefID, e.Reason)
	case *protocol.RefundSuccess:
		return fmt.Sprintf("ref=%s amount=%v", e.RefundRefID, e.Amount)
	case *protocol.Refund:
		return "ref=" + e.RefundRefID
	case *protocol.DeadHostPrune:
		return "host=" + e.Host
	case *protocol.CandidateVote:
		return fmt.Sprintf("voter=%s candidate=%s", e.Voter, e.Candidate)
	case *protocol.AuditRequest:
		return "auditor=" + e.Auditor
	case *protocol.AuditSuccess:
		return "auditor=" + e.Auditor
	}
	return ""
}

func leaseText(lease *codec.LeaseToken) string {
	if lease == nil {
		return ""
	}
	return fmt.Sprintf(" lease=%d amount=%s", lease.LeaseIndex, lease.LeaseAmount)
}

func sealed(undecryptable bool) string {
	if undecryptable {
		return " (undecryptable)"
	}
	return ""
}
