package codec

import (
	"bytes"
	"encoding/binary"
	"net/netip"
	"strings"

	"github.com/leasenet/ledgerclient/common"
	"github.com/leasenet/ledgerclient/types"
)

// lease token layout
const (
	leaseTokenPrefix     = "evrlease"
	leaseTokenVersionTag = "LTV"

	ltPrefixOffset     = 0
	ltVersionTagOffset = 8
	ltVersionOffset    = 11
	ltIndexOffset      = 13
	ltHalfTOSOffset    = 15
	ltAmountOffset     = 31
	ltIdentifierOffset = 39
	ltIPOffset         = 43

	HalfTOSHashSize      = 16
	IPBlockSize          = 17
	LegacyLeaseTokenSize = ltIPOffset
	LeaseTokenSize       = ltIPOffset + IPBlockSize

	ipFamilyNone = 0
	ipFamilyV4   = 4
	ipFamilyV6   = 6
)

// LeaseToken is the content packed into a lease token URI.
type LeaseToken struct {
	Version     uint16
	LeaseIndex  uint16
	HalfTOSHash [HalfTOSHashSize]byte
	LeaseAmount FixedPoint
	Identifier  uint32
	// OutboundIP is the zero Addr when the lease carries no address.
	OutboundIP netip.Addr
}

// EncodeLeaseToken packs t into its full 60 byte form.
func EncodeLeaseToken(t *LeaseToken) []byte {
	buf := make([]byte, LeaseTokenSize)
	copy(buf[ltPrefixOffset:], leaseTokenPrefix)
	copy(buf[ltVersionTagOffset:], leaseTokenVersionTag)
	binary.BigEndian.PutUint16(buf[ltVersionOffset:], t.Version)
	binary.BigEndian.PutUint16(buf[ltIndexOffset:], t.LeaseIndex)
	copy(buf[ltHalfTOSOffset:], t.HalfTOSHash[:])
	copy(buf[ltAmountOffset:], t.LeaseAmount.Bytes())
	binary.BigEndian.PutUint32(buf[ltIdentifierOffset:], t.Identifier)
	putIPBlock(buf[ltIPOffset:], t.OutboundIP)
	return buf
}

// DecodeLeaseToken unpacks a 60 byte token, or a 43 byte token minted
// before outbound addresses were introduced.
func DecodeLeaseToken(b []byte) (*LeaseToken, error) {
	if len(b) != LeaseTokenSize && len(b) != LegacyLeaseTokenSize {
		return nil, types.NewError(types.KindMalformedLayout, "lease token length %d, want %d or %d",
			len(b), LeaseTokenSize, LegacyLeaseTokenSize)
	}
	if !bytes.Equal(b[:ltVersionTagOffset], []byte(leaseTokenPrefix)) {
		return nil, types.NewError(types.KindMalformedLayout, "lease token prefix %q", b[:ltVersionTagOffset])
	}
	if !bytes.Equal(b[ltVersionTagOffset:ltVersionOffset], []byte(leaseTokenVersionTag)) {
		return nil, types.NewError(types.KindMalformedLayout, "lease token version tag %q", b[ltVersionTagOffset:ltVersionOffset])
	}
	amount, err := FixedPointFromBytes(b[ltAmountOffset:ltIdentifierOffset])
	if err != nil {
		return nil, err
	}
	t := &LeaseToken{
		Version:     binary.BigEndian.Uint16(b[ltVersionOffset:]),
		LeaseIndex:  binary.BigEndian.Uint16(b[ltIndexOffset:]),
		LeaseAmount: amount,
		Identifier:  binary.BigEndian.Uint32(b[ltIdentifierOffset:]),
	}
	copy(t.HalfTOSHash[:], b[ltHalfTOSOffset:ltAmountOffset])
	if len(b) == LeaseTokenSize {
		if t.OutboundIP, err = readIPBlock(b[ltIPOffset:]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// LeaseTokenURI renders the token as the hex URI stored on the ledger.
func LeaseTokenURI(t *LeaseToken) string {
	return common.ToHex(EncodeLeaseToken(t))
}

// DecodeLeaseTokenURI decodes a hex URI as stored on the ledger.
func DecodeLeaseTokenURI(uri string) (*LeaseToken, error) {
	b := common.FromHex(uri)
	if b == nil {
		return nil, types.NewError(types.KindMalformedLayout, "lease token uri is not hex")
	}
	return DecodeLeaseToken(b)
}

// IsLeaseTokenURI reports whether a hex URI carries the lease prefix.
func IsLeaseTokenURI(uri string) bool {
	return strings.HasPrefix(strings.ToUpper(uri), common.TextToHex(leaseTokenPrefix))
}

func putIPBlock(slot []byte, ip netip.Addr) {
	switch {
	case !ip.IsValid():
		slot[0] = ipFamilyNone
	case ip.Is4():
		slot[0] = ipFamilyV4
		a := ip.As4()
		copy(slot[1:], a[:])
	default:
		slot[0] = ipFamilyV6
		a := ip.As16()
		copy(slot[1:], a[:])
	}
}

func readIPBlock(slot []byte) (netip.Addr, error) {
	switch slot[0] {
	case ipFamilyNone:
		return netip.Addr{}, nil
	case ipFamilyV4:
		var a [4]byte
		copy(a[:], slot[1:5])
		return netip.AddrFrom4(a), nil
	case ipFamilyV6:
		var a [16]byte
		copy(a[:], slot[1:])
		return netip.AddrFrom16(a), nil
	default:
		return netip.Addr{}, types.NewError(types.KindMalformedLayout, "unknown address family %d", slot[0])
	}
}
