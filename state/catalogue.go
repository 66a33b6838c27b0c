// Package state reads the protocol configuration and host directory kept in
// the registry's hook state.
package state

import (
	"strconv"

	"github.com/leasenet/ledgerclient/codec"
	"github.com/leasenet/ledgerclient/types"
)

// ValueLayout is the wire layout of a config value.
type ValueLayout int

// value layouts
const (
	Uint16 ValueLayout = iota + 1
	Uint32
	Uint64
	FixedPoint
)

// config key names
const (
	KeyRegistrationFee    = "REGFEE"
	KeyEpochBaseIndex     = "EPOCHBASE"
	KeyEpochSize          = "EPOCHSIZE"
	KeyMinLeaseAmount     = "MINLEASE"
	KeyRedeemWindow       = "REDEEMWIN"
	KeyHeartbeatFrequency = "HBFREQ"
	KeyHostCount          = "HOSTCOUNT"
)

// ConfigKey describes one entry of the config catalogue. Default applies
// while the key is absent from the ledger.
type ConfigKey struct {
	Name    string
	Layout  ValueLayout
	Default string
}

// Catalogue lists the config keys read by Reader.
var Catalogue = []ConfigKey{
	{KeyRegistrationFee, Uint64, "5120"},
	{KeyEpochBaseIndex, Uint64, "0"},
	{KeyEpochSize, Uint16, "1190"},
	{KeyMinLeaseAmount, FixedPoint, "0.00001"},
	{KeyRedeemWindow, Uint16, "12"},
	{KeyHeartbeatFrequency, Uint16, "1"},
	{KeyHostCount, Uint32, "0"},
}

// ProtocolConfig is the decoded config catalogue.
type ProtocolConfig struct {
	RegistrationFee    uint64
	EpochBaseIndex     uint64
	EpochSize          uint16
	MinLeaseAmount     codec.FixedPoint
	RedeemWindow       uint16
	HeartbeatFrequency uint16
	HostCount          uint32
}

// value is a decoded config value before it is placed into ProtocolConfig.
type value struct {
	u     uint64
	fixed codec.FixedPoint
}

func decodeValue(layout ValueLayout, b []byte) (v value, err error) {
	switch layout {
	case Uint16:
		var u uint16
		u, err = codec.ReadUint16LE(b)
		v.u = uint64(u)
	case Uint32:
		var u uint32
		u, err = codec.ReadUint32LE(b)
		v.u = uint64(u)
	case Uint64:
		v.u, err = codec.ReadUint64LE(b)
	case FixedPoint:
		var u uint64
		if u, err = codec.ReadUint64LE(b); err == nil {
			v.fixed, err = codec.FixedPointFromUint64(u)
		}
	default:
		err = types.NewError(types.KindConfig, "unknown value layout %d", layout)
	}
	return v, err
}

func defaultValue(key ConfigKey) (value, error) {
	if key.Layout == FixedPoint {
		fixed, err := codec.ParseFixedPoint(key.Default)
		return value{fixed: fixed}, err
	}
	u, err := strconv.ParseUint(key.Default, 10, 64)
	if err != nil {
		return value{}, types.WrapError(types.KindConfig, err, "default of "+key.Name)
	}
	return value{u: u}, nil
}

func (c *ProtocolConfig) set(name string, v value) {
	switch name {
	case KeyRegistrationFee:
		c.RegistrationFee = v.u
	case KeyEpochBaseIndex:
		c.EpochBaseIndex = v.u
	case KeyEpochSize:
		c.EpochSize = uint16(v.u)
	case KeyMinLeaseAmount:
		c.MinLeaseAmount = v.fixed
	case KeyRedeemWindow:
		c.RedeemWindow = uint16(v.u)
	case KeyHeartbeatFrequency:
		c.HeartbeatFrequency = uint16(v.u)
	case KeyHostCount:
		c.HostCount = uint32(v.u)
	}
}
