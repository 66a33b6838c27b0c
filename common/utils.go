package common

import (
	"encoding/hex"
	"os"
	"strings"
)

// FromHex decodes s, tolerating an optional 0x prefix and an odd length.
// Invalid input decodes to nil.
func FromHex(s string) []byte {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// ToHex encodes b as upper case hex, the form the ledger uses in JSON.
func ToHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// HexToText decodes a hex string into text and drops trailing zero padding.
func HexToText(s string) string {
	return TrimPadding(FromHex(s))
}

// TextToHex is the inverse of HexToText for unpadded text.
func TextToHex(s string) string {
	return ToHex([]byte(s))
}

// TrimPadding returns b as a string without trailing zero bytes.
func TrimPadding(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

// PutPadded copies s into slot, truncating to the slot width.
// The rest of the slot is zero filled.
func PutPadded(slot []byte, s string) {
	n := copy(slot, s)
	for i := n; i < len(slot); i++ {
		slot[i] = 0
	}
}

// IsEqualIgnoreCase returns if s1 and s2 are equal ignore case
func IsEqualIgnoreCase(s1, s2 string) bool {
	return strings.EqualFold(s1, s2)
}

// FileExist returns if a file exists
func FileExist(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil || !os.IsNotExist(err)
}
