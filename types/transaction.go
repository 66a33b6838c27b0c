package types

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/leasenet/ledgerclient/common"
)

// Transaction types used by the protocol.
const (
	TxPayment            = "Payment"
	TxOfferCreate        = "OfferCreate"
	TxNFTokenMint        = "NFTokenMint"
	TxNFTokenCreate      = "NFTokenCreateOffer"
	TxNFTokenAcceptOffer = "NFTokenAcceptOffer"
	TxURITokenBuy        = "URITokenBuy"
	TxURITokenCreateSell = "URITokenCreateSellOffer"
	TxInvoke             = "Invoke"
	TxTrustSet           = "TrustSet"
)

// NativeCurrency is the currency code of native amounts.
const NativeCurrency = "XRP"

// Amount is either a native drop count or an issued-currency triple.
type Amount struct {
	Drops    uint64
	Currency string
	Issuer   string
	Value    string
}

// IsNative reports whether a holds native drops.
func (a *Amount) IsNative() bool {
	return a.Currency == "" || a.Currency == NativeCurrency
}

func (a *Amount) String() string {
	if a.IsNative() {
		return strconv.FormatUint(a.Drops, 10) + " drops"
	}
	return a.Value + " " + a.Currency + "/" + a.Issuer
}

type issuedAmountJSON struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
	Value    string `json:"value"`
}

// MarshalJSON writes native amounts as a drops string and issued ones as an object.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.IsNative() {
		return json.Marshal(strconv.FormatUint(a.Drops, 10))
	}
	return json.Marshal(issuedAmountJSON{Currency: a.Currency, Issuer: a.Issuer, Value: a.Value})
}

// UnmarshalJSON accepts both amount shapes.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		drops, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		*a = Amount{Drops: drops, Currency: NativeCurrency}
		return nil
	}
	var issued issuedAmountJSON
	if err := json.Unmarshal(b, &issued); err != nil {
		return err
	}
	*a = Amount{Currency: issued.Currency, Issuer: issued.Issuer, Value: issued.Value}
	return nil
}

// Memo is a typed and formatted data attachment. Fields hold hex on the wire.
type Memo struct {
	MemoType   string `json:"MemoType,omitempty"`
	MemoFormat string `json:"MemoFormat,omitempty"`
	MemoData   string `json:"MemoData,omitempty"`
}

// MemoWrapper matches the {"Memo": {...}} wire shape.
type MemoWrapper struct {
	Memo Memo `json:"Memo"`
}

// NewMemo hex encodes type, format and data.
func NewMemo(memoType, format string, data []byte) MemoWrapper {
	return MemoWrapper{Memo: Memo{
		MemoType:   common.TextToHex(memoType),
		MemoFormat: common.TextToHex(format),
		MemoData:   common.ToHex(data),
	}}
}

// Type returns the decoded memo type.
func (m *Memo) Type() string { return common.HexToText(m.MemoType) }

// Format returns the decoded memo format.
func (m *Memo) Format() string { return common.HexToText(m.MemoFormat) }

// Data returns the raw memo data.
func (m *Memo) Data() []byte { return common.FromHex(m.MemoData) }

// HookParameter is a hex encoded key/value read by the network's hook logic.
type HookParameter struct {
	Name  string `json:"HookParameterName"`
	Value string `json:"HookParameterValue"`
}

// HookParameterWrapper matches the {"HookParameter": {...}} wire shape.
type HookParameterWrapper struct {
	HookParameter HookParameter `json:"HookParameter"`
}

// NewHookParameter hex encodes the parameter name and value.
func NewHookParameter(name string, value []byte) HookParameterWrapper {
	return HookParameterWrapper{HookParameter: HookParameter{
		Name:  common.TextToHex(name),
		Value: common.ToHex(value),
	}}
}

// SignerEntry is one multi-signature proof.
type SignerEntry struct {
	Signer struct {
		Account       string `json:"Account"`
		SigningPubKey string `json:"SigningPubKey"`
		TxnSignature  string `json:"TxnSignature"`
	} `json:"Signer"`
}

// OfferDetail is the offer consumed by an accept transaction, resolved by
// the subscription pipeline when the raw event omits the destination.
type OfferDetail struct {
	Index       string  `json:"index"`
	Owner       string  `json:"Owner"`
	Amount      *Amount `json:"Amount,omitempty"`
	TokenID     string  `json:"NFTokenID,omitempty"`
	URI         string  `json:"URI,omitempty"`
	Destination string  `json:"Destination,omitempty"`
	Flags       uint32  `json:"Flags"`
}

// Transaction is the ledger transaction envelope shared by submission and
// the notification stream.
type Transaction struct {
	TransactionType    string                 `json:"TransactionType"`
	Account            string                 `json:"Account"`
	Destination        string                 `json:"Destination,omitempty"`
	Amount             *Amount                `json:"Amount,omitempty"`
	Fee                string                 `json:"Fee,omitempty"`
	Sequence           uint32                 `json:"Sequence,omitempty"`
	LastLedgerSequence uint32                 `json:"LastLedgerSequence,omitempty"`
	Flags              uint32                 `json:"Flags,omitempty"`
	SigningPubKey      string                 `json:"SigningPubKey,omitempty"`
	TxnSignature       string                 `json:"TxnSignature,omitempty"`
	Signers            []SignerEntry          `json:"Signers,omitempty"`
	Memos              []MemoWrapper          `json:"Memos,omitempty"`
	HookParameters     []HookParameterWrapper `json:"HookParameters,omitempty"`
	URI                string                 `json:"URI,omitempty"`
	NFTokenID          string                 `json:"NFTokenID,omitempty"`
	NFTokenSellOffer   string                 `json:"NFTokenSellOffer,omitempty"`
	URITokenID         string                 `json:"URITokenID,omitempty"`
	Hash               string                 `json:"hash,omitempty"`
	LedgerIndex        uint32                 `json:"ledger_index,omitempty"`

	// set by the subscription pipeline for accept transactions
	Offer *OfferDetail `json:"-"`
}

// MemoList returns the memos without the wire wrapper.
func (tx *Transaction) MemoList() []Memo {
	memos := make([]Memo, len(tx.Memos))
	for i := range tx.Memos {
		memos[i] = tx.Memos[i].Memo
	}
	return memos
}

// Parameter returns the decoded value of the named hook parameter.
func (tx *Transaction) Parameter(name string) ([]byte, bool) {
	key := common.TextToHex(name)
	for _, p := range tx.HookParameters {
		if common.IsEqualIgnoreCase(p.HookParameter.Name, key) {
			return common.FromHex(p.HookParameter.Value), true
		}
	}
	return nil, false
}

// Clone returns a deep enough copy for annotation without mutating the original.
func (tx *Transaction) Clone() *Transaction {
	cp := *tx
	cp.Memos = append([]MemoWrapper(nil), tx.Memos...)
	cp.HookParameters = append([]HookParameterWrapper(nil), tx.HookParameters...)
	cp.Signers = append([]SignerEntry(nil), tx.Signers...)
	return &cp
}
