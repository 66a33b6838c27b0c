// Package codec packs and unpacks the fixed-layout protocol data: lease
// token ids, host registration blocks, ledger state entries and the 64-bit
// fixed-point numeric format.
package codec

import (
	"encoding/binary"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/leasenet/ledgerclient/types"
)

const (
	minExponent    int64  = -96
	maxExponent    int64  = 80
	minMantissa    uint64 = 1000000000000000
	maxMantissa    uint64 = 9999999999999999
	exponentBias   int64  = 97
	mantissaMask   uint64 = (1 << 54) - 1
	positiveBit    uint64 = 1 << 62
	reservedBit    uint64 = 1 << 63
	maxDigits             = 128
	exponentClamp         = maxDigits + 200 // far outside the representable range
	FixedPointSize        = 8
)

var bigTen = big.NewInt(10)

// FixedPoint is the protocol's packed decimal: a mantissa in
// [10^15, 10^16) scaled by 10^exponent, exponent in [-96, 80].
// The zero value is zero.
type FixedPoint struct {
	negative bool
	mantissa uint64
	exponent int64
}

// Match fields:
// 1 = sign
// 2 = integer portion
// 3 = fraction (without '.')
// 4 = exponent sign
// 5 = exponent number
var fixedPointRegex = regexp.MustCompile(`^([+-]?)(\d*)(?:\.(\d*))?(?:[eE]([+-]?)(\d+))?$`)

// ParseFixedPoint parses a decimal string such as "-12.5" or "3e-7".
// Digits beyond the 16 significant ones are truncated.
func ParseFixedPoint(s string) (FixedPoint, error) {
	matches := fixedPointRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil || len(matches[2])+len(matches[3]) == 0 {
		return FixedPoint{}, types.NewError(types.KindMalformedLayout, "invalid number: %q", s)
	}
	if len(matches[2])+len(matches[3]) > maxDigits {
		return FixedPoint{}, types.NewError(types.KindMalformedLayout, "overlong number: %q", s)
	}
	digits, ok := new(big.Int).SetString(matches[2]+matches[3], 10)
	if !ok {
		return FixedPoint{}, types.NewError(types.KindMalformedLayout, "invalid number: %q", s)
	}
	exponent := -int64(len(matches[3]))
	if matches[5] != "" {
		exp, err := strconv.ParseInt(matches[5], 10, 64)
		if err != nil {
			return FixedPoint{}, types.WrapError(types.KindMalformedLayout, err, "invalid exponent")
		}
		if exp > exponentClamp {
			exp = exponentClamp
		}
		if matches[4] == "-" {
			exp = -exp
		}
		exponent += exp
	}
	maxBig := new(big.Int).SetUint64(maxMantissa)
	for digits.Cmp(maxBig) > 0 {
		digits.Quo(digits, bigTen)
		exponent++
	}
	v := FixedPoint{negative: matches[1] == "-", mantissa: digits.Uint64(), exponent: exponent}
	return v, v.canonicalise()
}

// MustParseFixedPoint is ParseFixedPoint for constants; it panics on error.
func MustParseFixedPoint(s string) FixedPoint {
	v, err := ParseFixedPoint(s)
	if err != nil {
		panic(err)
	}
	return v
}

// NewFixedPoint returns mantissa*10^exponent in canonical form.
func NewFixedPoint(negative bool, mantissa uint64, exponent int64) (FixedPoint, error) {
	v := FixedPoint{negative: negative, mantissa: mantissa, exponent: exponent}
	return v, v.canonicalise()
}

func (v *FixedPoint) canonicalise() error {
	if v.mantissa == 0 {
		*v = FixedPoint{}
		return nil
	}
	for v.mantissa < minMantissa && v.exponent > minExponent {
		v.mantissa *= 10
		v.exponent--
	}
	for v.mantissa > maxMantissa {
		if v.exponent >= maxExponent {
			return types.NewError(types.KindMalformedLayout, "fixed point overflow: %s", v.debug())
		}
		v.mantissa /= 10
		v.exponent++
	}
	if v.exponent < minExponent || v.mantissa < minMantissa {
		// silent underflow
		*v = FixedPoint{}
		return nil
	}
	if v.exponent > maxExponent {
		return types.NewError(types.KindMalformedLayout, "fixed point overflow: %s", v.debug())
	}
	return nil
}

// IsZero reports whether v is zero.
func (v FixedPoint) IsZero() bool { return v.mantissa == 0 }

// IsNegative reports whether v is below zero.
func (v FixedPoint) IsNegative() bool { return v.negative }

// Mantissa returns the normalised mantissa.
func (v FixedPoint) Mantissa() uint64 { return v.mantissa }

// Exponent returns the decimal exponent.
func (v FixedPoint) Exponent() int64 { return v.exponent }

// Uint64 packs v into its 64-bit form.
func (v FixedPoint) Uint64() uint64 {
	if v.mantissa == 0 {
		return 0
	}
	u := uint64(v.exponent+exponentBias)<<54 | v.mantissa&mantissaMask
	if !v.negative {
		u |= positiveBit
	}
	return u
}

// Bytes packs v into 8 big-endian bytes.
func (v FixedPoint) Bytes() []byte {
	var b [FixedPointSize]byte
	binary.BigEndian.PutUint64(b[:], v.Uint64())
	return b[:]
}

// FixedPointFromUint64 unpacks the 64-bit form.
func FixedPointFromUint64(u uint64) (FixedPoint, error) {
	if u == 0 {
		return FixedPoint{}, nil
	}
	if u&reservedBit != 0 {
		return FixedPoint{}, types.NewError(types.KindMalformedLayout, "fixed point %016X has the reserved bit set", u)
	}
	v := FixedPoint{
		negative: u&positiveBit == 0,
		mantissa: u & mantissaMask,
		exponent: int64((u>>54)&0xFF) - exponentBias,
	}
	if v.mantissa < minMantissa || v.mantissa > maxMantissa || v.exponent < minExponent || v.exponent > maxExponent {
		return FixedPoint{}, types.NewError(types.KindMalformedLayout, "fixed point %016X is not normalised", u)
	}
	return v, nil
}

// FixedPointFromBytes unpacks 8 big-endian bytes.
func FixedPointFromBytes(b []byte) (FixedPoint, error) {
	if len(b) != FixedPointSize {
		return FixedPoint{}, types.NewError(types.KindMalformedLayout, "fixed point length %d, want %d", len(b), FixedPointSize)
	}
	return FixedPointFromUint64(binary.BigEndian.Uint64(b))
}

// EncodeFixedPoint packs a decimal string.
func EncodeFixedPoint(s string) ([]byte, error) {
	v, err := ParseFixedPoint(s)
	if err != nil {
		return nil, err
	}
	return v.Bytes(), nil
}

// DecodeFixedPoint unpacks 8 bytes into the exact decimal string.
func DecodeFixedPoint(b []byte) (string, error) {
	v, err := FixedPointFromBytes(b)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Rat returns v as an exact rational.
func (v FixedPoint) Rat() *big.Rat {
	n := new(big.Int).SetUint64(v.mantissa)
	if v.negative {
		n.Neg(n)
	}
	scale := new(big.Int).Exp(bigTen, big.NewInt(abs(v.exponent)), nil)
	if v.exponent >= 0 {
		return new(big.Rat).SetInt(n.Mul(n, scale))
	}
	return new(big.Rat).SetFrac(n, scale)
}

// Compare returns -1, 0 or +1 comparing a with b.
func (v FixedPoint) Compare(b FixedPoint) int {
	return v.Rat().Cmp(b.Rat())
}

// String renders v as a plain decimal without exponent notation and
// without trailing fractional zeros.
func (v FixedPoint) String() string {
	if v.mantissa == 0 {
		return "0"
	}
	digits := strconv.FormatUint(v.mantissa, 10)
	var out string
	switch point := int64(len(digits)) + v.exponent; {
	case v.exponent >= 0:
		out = digits + strings.Repeat("0", int(v.exponent))
	case point > 0:
		out = digits[:point] + "." + digits[point:]
	default:
		out = "0." + strings.Repeat("0", int(-point)) + digits
	}
	if strings.Contains(out, ".") {
		out = strings.TrimRight(strings.TrimRight(out, "0"), ".")
	}
	if v.negative {
		return "-" + out
	}
	return out
}

func (v FixedPoint) debug() string {
	return "negative=" + strconv.FormatBool(v.negative) +
		" mantissa=" + strconv.FormatUint(v.mantissa, 10) +
		" exponent=" + strconv.FormatInt(v.exponent, 10)
}

func abs(i int64) int64 {
	if i < 0 {
		return -i
	}
	return i
}
