package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/leasenet/ledgerclient/common"
	"github.com/leasenet/ledgerclient/types"
)

// state key scheme. Named keys are ASCII, so the binary type byte keeps
// host directory keys apart from them.
const (
	StateKeySize     = 32
	StateKeyPrefix   = "EVR"
	HostKeyPrefix    = StateKeyPrefix + "\x02"
	accountIDSize    = 20
	hostEntryMinSize = 136
)

// host entry value offsets
const (
	heTokenIDOffset      = 0
	heCountryOffset      = 32
	heTxHashOffset       = 34
	heInstanceSizeOffset = 66
	heLocationOffset     = 126
	heEnd                = hostEntryMinSize
)

// HostEntry is a decoded host directory entry.
type HostEntry struct {
	Address      string
	TokenID      string
	CountryCode  string
	TxHash       string
	InstanceSize string
	Location     string
}

// StateKey returns the 32 byte key of a named protocol value.
func StateKey(name string) []byte {
	key := make([]byte, StateKeySize)
	common.PutPadded(key, StateKeyPrefix+name)
	return key
}

// StateKeyHex is StateKey in the hex form used by the ledger.
func StateKeyHex(name string) string {
	return common.ToHex(StateKey(name))
}

// HostKey returns the directory key of the host owning address.
func HostKey(address string) ([]byte, error) {
	id, err := types.DecodeAddress(address)
	if err != nil {
		return nil, err
	}
	key := make([]byte, StateKeySize)
	n := copy(key, HostKeyPrefix)
	copy(key[n:], id)
	return key, nil
}

// IsHostKey reports whether key belongs to the host directory.
func IsHostKey(key []byte) bool {
	if len(key) != StateKeySize || !bytes.HasPrefix(key, []byte(HostKeyPrefix)) {
		return false
	}
	for _, b := range key[len(HostKeyPrefix)+accountIDSize:] {
		if b != 0 {
			return false
		}
	}
	return true
}

// HostAddressFromKey recovers the host address from a directory key.
func HostAddressFromKey(key []byte) (string, error) {
	if !IsHostKey(key) {
		return "", types.NewError(types.KindMalformedLayout, "not a host key: %X", key)
	}
	start := len(HostKeyPrefix)
	return types.EncodeAddress(key[start : start+accountIDSize])
}

// DecodeHostEntry decodes a host directory entry from its key and value.
func DecodeHostEntry(key, value []byte) (*HostEntry, error) {
	address, err := HostAddressFromKey(key)
	if err != nil {
		return nil, err
	}
	if len(value) < hostEntryMinSize {
		return nil, types.NewError(types.KindMalformedLayout, "host entry length %d, want at least %d", len(value), hostEntryMinSize)
	}
	return &HostEntry{
		Address:      address,
		TokenID:      common.ToHex(value[heTokenIDOffset:heCountryOffset]),
		CountryCode:  common.TrimPadding(value[heCountryOffset:heTxHashOffset]),
		TxHash:       common.ToHex(value[heTxHashOffset:heInstanceSizeOffset]),
		InstanceSize: common.TrimPadding(value[heInstanceSizeOffset:heLocationOffset]),
		Location:     common.TrimPadding(value[heLocationOffset:heEnd]),
	}, nil
}

// EncodeHostEntry is the inverse of DecodeHostEntry for the value part.
func EncodeHostEntry(e *HostEntry) ([]byte, error) {
	tokenID := common.FromHex(e.TokenID)
	txHash := common.FromHex(e.TxHash)
	if len(tokenID) != TokenIDSize || len(txHash) != heInstanceSizeOffset-heTxHashOffset {
		return nil, types.NewError(types.KindMalformedLayout, "host entry token id or tx hash is not 32 bytes")
	}
	value := make([]byte, hostEntryMinSize)
	copy(value[heTokenIDOffset:], tokenID)
	common.PutPadded(value[heCountryOffset:heTxHashOffset], e.CountryCode)
	copy(value[heTxHashOffset:], txHash)
	common.PutPadded(value[heInstanceSizeOffset:heLocationOffset], e.InstanceSize)
	common.PutPadded(value[heLocationOffset:heEnd], e.Location)
	return value, nil
}

// ReadUint16LE decodes a little-endian state integer.
func ReadUint16LE(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, types.NewError(types.KindMalformedLayout, "uint16 state length %d", len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32LE decodes a little-endian state integer.
func ReadUint32LE(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, types.NewError(types.KindMalformedLayout, "uint32 state length %d", len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64LE decodes a little-endian state integer.
func ReadUint64LE(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, types.NewError(types.KindMalformedLayout, "uint64 state length %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// PutUintLE encodes v little-endian into size bytes (2, 4 or 8).
func PutUintLE(v uint64, size int) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b[:size]
}
