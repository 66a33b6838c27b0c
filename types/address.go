package types

import (
	"bytes"
	"crypto/sha256"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"

	"github.com/leasenet/ledgerclient/common"
)

const (
	// ledger base58 alphabet
	addressAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

	accountIDVersion = 0x00
	accountIDLength  = 20
)

var alphabet = base58.NewAlphabet(addressAlphabet)

func doubleSha256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// EncodeAddress returns the classic address of a 20-byte account id.
func EncodeAddress(accountID []byte) (string, error) {
	if len(accountID) != accountIDLength {
		return "", NewError(KindMalformedLayout, "account id length %d, want %d", len(accountID), accountIDLength)
	}
	payload := append([]byte{accountIDVersion}, accountID...)
	payload = append(payload, doubleSha256(payload)[:4]...)
	return base58.EncodeAlphabet(payload, alphabet), nil
}

// DecodeAddress returns the account id of a classic address.
func DecodeAddress(address string) ([]byte, error) {
	raw, err := base58.DecodeAlphabet(address, alphabet)
	if err != nil {
		return nil, WrapError(KindMalformedLayout, err, "decode address "+address)
	}
	if len(raw) != 1+accountIDLength+4 || raw[0] != accountIDVersion {
		return nil, NewError(KindMalformedLayout, "bad address %s", address)
	}
	body, checksum := raw[:1+accountIDLength], raw[1+accountIDLength:]
	if !bytes.Equal(doubleSha256(body)[:4], checksum) {
		return nil, NewError(KindMalformedLayout, "bad address checksum %s", address)
	}
	return body[1:], nil
}

// AccountIDFromPublicKey hashes a public key into its account id.
func AccountIDFromPublicKey(pubKey []byte) []byte {
	sha := sha256.Sum256(pubKey)
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	return ripe.Sum(nil)
}

// AddressFromPublicKey returns the classic address owning pubKey.
func AddressFromPublicKey(pubKeyHex string) (string, error) {
	pubKey := common.FromHex(pubKeyHex)
	if len(pubKey) != 33 {
		return "", errors.WithStack(NewError(KindMalformedLayout, "public key length %d", len(pubKey)))
	}
	return EncodeAddress(AccountIDFromPublicKey(pubKey))
}
