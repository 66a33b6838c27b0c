package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/leasenet/ledgerclient/codec"
	"github.com/leasenet/ledgerclient/protocol"
	"github.com/leasenet/ledgerclient/types"
)

func TestDescribe(t *testing.T) {
	lease := &codec.LeaseToken{LeaseIndex: 4, LeaseAmount: codec.MustParseFixedPoint("1.25")}
	ev := &protocol.AcquireLease{Tenant: "rT", Host: "rH", URITokenID: "TOK", Lease: lease, Undecryptable: true}
	assert.Equal(t, "tenant=rT host=rH token=TOK lease=4 amount=1.25 (undecryptable)", describe(ev))

	assert.Equal(t, `ref=AB reason="busy"`, describe(&protocol.RedeemError{RedeemRefID: "AB", Reason: "busy"}))
	assert.Equal(t, "host=rH", describe(&protocol.Heartbeat{Host: "rH"}))
}

func TestPrinterLines(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := &printer{out: &buf}

	tx := &types.Transaction{Hash: "H1"}
	p.event(&protocol.Heartbeat{Base: protocol.Base{Tx: tx}, Host: "rH"})
	p.failure(tx, errors.New("tecHOOK_REJECTED"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "Heartbeat")
	assert.Contains(t, string(lines[0]), "host=rH")
	assert.Contains(t, string(lines[1]), "tecHOOK_REJECTED")
}
