package main

import (
	"github.com/urfave/cli/v2"

	"github.com/leasenet/ledgerclient/cmd/utils"
	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/protocol"
	"github.com/leasenet/ledgerclient/subscription"
	"github.com/leasenet/ledgerclient/types"
)

var (
	ledgersFlag = &cli.BoolFlag{
		Name:  "ledgers",
		Usage: "also print closed ledgers",
	}

	watchCommand = &cli.Command{
		Action:    watchAction,
		Name:      "watch",
		Usage:     "print the protocol events addressed to accounts",
		ArgsUsage: "[address...]",
		Description: `
Subscribes to the given accounts, or to the registry when none is given,
and prints every decoded event until interrupted.
`,
		Flags: append([]cli.Flag{ledgersFlag, statusAddrFlag}, utils.CommonFlags...),
	}
)

func watchAction(ctx *cli.Context) error {
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	sigCtx, cancel := utils.SignalContext(ctx.Context)
	defer cancel()

	p := newPrinter()
	events := c.Connection().Events()
	events.Connected.Attach(p.connectedClosure())
	events.Disconnected.Attach(p.disconnectedClosure())
	if ctx.Bool(ledgersFlag.Name) {
		events.LedgerClosed.Attach(p.ledgerClosure())
	}

	addresses := ctx.Args().Slice()
	if len(addresses) == 0 {
		addresses = []string{c.Config().Protocol.RegistryAddress}
	}
	h := subscription.NewHandler().
		OnAny(p.event).
		OnError(func(tx *types.Transaction, err error) { p.failure(tx, err) })
	for _, address := range addresses {
		if err := c.Subscribe(sigCtx, address, h); err != nil {
			return err
		}
		log.Info("watching", "address", address)
	}

	if addr := ctx.String(statusAddrFlag.Name); addr != "" {
		conn := c.Connection()
		startStatusServer(sigCtx, addr, func() *watchStatus {
			return &watchStatus{
				State:       conn.State().String(),
				Endpoint:    conn.Endpoint(),
				LedgerIndex: conn.LedgerIndex(),
				Watched:     c.Pipeline().Addresses(),
				Events:      p.events.Load(),
				Failures:    p.failures.Load(),
			}
		})
	}

	<-sigCtx.Done()
	log.Info("stop watching", "state", c.Connection().State())
	return nil
}

// kinds printed with the lease style
var leaseKinds = map[protocol.EventKind]bool{
	protocol.KindAcquireLease:   true,
	protocol.KindAcquireSuccess: true,
	protocol.KindExtendLease:    true,
	protocol.KindExtendSuccess:  true,
	protocol.KindRedeem:         true,
	protocol.KindRedeemSuccess:  true,
}
