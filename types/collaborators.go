package types

import "context"

// SignedTransaction is a signed blob and its hash.
type SignedTransaction struct {
	TxBlob string
	Hash   string
	// Tx carries the signer proofs of a multi-signed copy.
	Tx *Transaction
}

// Signer turns a prepared transaction into a signed blob. Key management
// lives behind this interface.
type Signer interface {
	Sign(ctx context.Context, tx *Transaction) (*SignedTransaction, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, tx *Transaction) (*SignedTransaction, error)

// Sign implements Signer.
func (f SignerFunc) Sign(ctx context.Context, tx *Transaction) (*SignedTransaction, error) {
	return f(ctx, tx)
}

// KeyVerifier checks that a public key belongs to an address before a
// counterparty's claimed encryption key is trusted.
type KeyVerifier interface {
	VerifyKey(publicKeyHex, address string) bool
}

// Encryptor encrypts payloads for a counterparty. A nil result means failure.
type Encryptor interface {
	Encrypt(publicKey string, plaintext []byte) []byte
}

// Decryptor decrypts payloads addressed to this client. A nil result
// means the payload is undecryptable.
type Decryptor interface {
	Decrypt(ciphertext []byte) []byte
}

// AddressKeyVerifier derives the address from the key and compares.
type AddressKeyVerifier struct{}

// VerifyKey implements KeyVerifier.
func (AddressKeyVerifier) VerifyKey(publicKeyHex, address string) bool {
	derived, err := AddressFromPublicKey(publicKeyHex)
	return err == nil && derived == address
}
