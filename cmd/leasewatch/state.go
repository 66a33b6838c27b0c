package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/leasenet/ledgerclient/cmd/utils"
)

var (
	configCommand = &cli.Command{
		Action: configAction,
		Name:   "config",
		Usage:  "print the protocol config read from the registry",
		Flags:  utils.CommonFlags,
	}
	hostsCommand = &cli.Command{
		Action: hostsAction,
		Name:   "hosts",
		Usage:  "list the host directory of the registry",
		Flags:  utils.CommonFlags,
	}
	epochCommand = &cli.Command{
		Action:    epochAction,
		Name:      "epoch",
		Usage:     "print the epoch of a ledger, the last closed one by default",
		ArgsUsage: "[ledgerIndex]",
		Flags:     utils.CommonFlags,
	}
)

func configAction(ctx *cli.Context) error {
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	config, err := c.State().Refresh(ctx.Context)
	if err != nil {
		return err
	}
	out := map[string]interface{}{
		"registrationFee":    config.RegistrationFee,
		"epochBaseIndex":     config.EpochBaseIndex,
		"epochSize":          config.EpochSize,
		"minLeaseAmount":     config.MinLeaseAmount.String(),
		"redeemWindow":       config.RedeemWindow,
		"heartbeatFrequency": config.HeartbeatFrequency,
		"hostCount":          config.HostCount,
	}
	bs, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(bs))
	return nil
}

func hostsAction(ctx *cli.Context) error {
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	hosts, err := c.State().Hosts(ctx.Context)
	if err != nil {
		return err
	}
	for _, h := range hosts {
		hostStyle.Printf("%-34s %-2s %-24s %-24s %s\n", h.Address, h.CountryCode, h.InstanceSize, h.Location, h.TokenID)
	}
	color.New(color.Faint).Printf("%d hosts\n", len(hosts))
	return nil
}

func epochAction(ctx *cli.Context) error {
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	index := c.Connection().LedgerIndex()
	if ctx.NArg() > 0 {
		var parsed uint32
		if _, err = fmt.Sscan(ctx.Args().First(), &parsed); err != nil {
			return fmt.Errorf("invalid ledger index %q: %w", ctx.Args().First(), err)
		}
		index = parsed
	}
	epoch, err := c.State().Epoch(ctx.Context, index)
	if err != nil {
		return err
	}
	start, err := c.State().EpochStartIndex(ctx.Context, epoch)
	if err != nil {
		return err
	}
	fmt.Printf("ledger %d is in epoch %d (starts at ledger %d)\n", index, epoch, start)
	return nil
}
