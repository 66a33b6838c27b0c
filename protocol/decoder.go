package protocol

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/leasenet/ledgerclient/codec"
	"github.com/leasenet/ledgerclient/common"
	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/types"
)

var logger = log.New("protocol")

// HostChecker tells whether an address is a registered host.
type HostChecker interface {
	IsHost(ctx context.Context, address string) (bool, error)
}

// Options configures a Decoder.
type Options struct {
	// Currency and Issuer identify the protocol token.
	Currency string
	Issuer   string
	// RewardSources are the accounts paying host rewards.
	RewardSources []string
	// Hosts enables reward recognition when set.
	Hosts HostChecker
	// Decryptor decrypts lease payloads when set.
	Decryptor types.Decryptor
}

// memo is a memo with its type, format and payload decoded.
type memo struct {
	Type   string
	Format string
	Data   []byte
}

type message struct {
	tx    *types.Transaction
	memos []memo
}

func (m *message) memo(i int, memoType string) (*memo, bool) {
	if i >= len(m.memos) || m.memos[i].Type != memoType {
		return nil, false
	}
	return &m.memos[i], true
}

// rule returns a nil event when it does not apply.
type rule struct {
	name   string
	decode func(ctx context.Context, m *message) (Event, error)
}

// Decoder turns transactions into domain events by trying its rules in
// order. The first rule producing an event wins.
type Decoder struct {
	opts  Options
	rules []rule
}

// NewDecoder returns a decoder with the protocol's rule order.
func NewDecoder(opts Options) *Decoder {
	d := &Decoder{opts: opts}
	d.rules = []rule{
		// recognised from currency and destination before any memo rule
		{"reward", d.reward},
		{"redeem response", d.redeemResponse},
		{"acquire response", d.acquireResponse},
		{"extend response", d.extendResponse},
		{"refund response", d.refundResponse},
		{"host registration", d.hostRegistration},
		{"host update", d.hostUpdate},
		{"single memo", d.singleMemo},
	}
	return d
}

// Decode returns the event carried by tx, or nil when tx carries none.
// A payload that does not fit its layout fails with MalformedLayout.
func (d *Decoder) Decode(ctx context.Context, tx *types.Transaction) (Event, error) {
	m := &message{tx: tx, memos: readMemos(tx)}
	for _, r := range d.rules {
		ev, err := r.decode(ctx, m)
		if err != nil {
			logger.Warn("decode failed", "rule", r.name, "hash", tx.Hash, "err", err)
			return nil, err
		}
		if ev != nil {
			logger.Trace("decoded", "rule", r.name, "kind", ev.Kind(), "hash", tx.Hash)
			return ev, nil
		}
	}
	return nil, nil
}

// readMemos decodes the memos of tx. A transaction without memos may carry
// its event in hook parameters instead.
func readMemos(tx *types.Transaction) []memo {
	var memos []memo
	for _, mm := range tx.MemoList() {
		memos = append(memos, memo{
			Type:   mm.Type(),
			Format: mm.Format(),
			Data:   memoData(mm.Format(), mm.Data()),
		})
	}
	if len(memos) > 0 {
		return memos
	}
	eventType, ok := tx.Parameter(ParamEventType)
	if !ok {
		return nil
	}
	data, _ := tx.Parameter(ParamEventData)
	return []memo{{Type: common.TrimPadding(eventType), Format: FormatHex, Data: data}}
}

func memoData(format string, raw []byte) []byte {
	if format != FormatBase64 {
		return raw
	}
	b, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return raw
	}
	return b
}

// decrypt returns payload decrypted when a Decryptor is configured.
func (d *Decoder) decrypt(payload []byte) ([]byte, bool) {
	if d.opts.Decryptor == nil || len(payload) == 0 {
		return payload, false
	}
	plain := d.opts.Decryptor.Decrypt(payload)
	if plain == nil {
		return payload, true
	}
	return plain, false
}

func (d *Decoder) isProtocolAmount(a *types.Amount) bool {
	return a != nil && !a.IsNative() && a.Currency == d.opts.Currency && a.Issuer == d.opts.Issuer
}

func (d *Decoder) reward(ctx context.Context, m *message) (Event, error) {
	tx := m.tx
	if len(tx.Memos) > 0 || tx.TransactionType != types.TxPayment || d.opts.Hosts == nil || !d.isProtocolAmount(tx.Amount) {
		return nil, nil
	}
	fromSource := false
	for _, s := range d.opts.RewardSources {
		if s == tx.Account {
			fromSource = true
			break
		}
	}
	if !fromSource {
		return nil, nil
	}
	isHost, err := d.opts.Hosts.IsHost(ctx, tx.Destination)
	if err != nil || !isHost {
		if err != nil {
			logger.Warn("host check failed", "address", tx.Destination, "err", err)
		}
		return nil, nil
	}
	return &Reward{Base: Base{tx}, Host: tx.Destination, Amount: tx.Amount}, nil
}

// errorReason reads the reason of a json error payload.
func errorReason(data []byte) (string, error) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", types.WrapError(types.KindMalformedLayout, err, "error payload")
	}
	return payload.Reason, nil
}

func refID(data []byte) string {
	return common.ToHex(data)
}

func (d *Decoder) redeemResponse(ctx context.Context, m *message) (Event, error) {
	ref, ok := m.memo(0, MemoRedeemRef)
	if !ok {
		return nil, nil
	}
	resp, ok := m.memo(1, MemoRedeemResp)
	if !ok {
		return nil, nil
	}
	if resp.Format == FormatJSON {
		reason, err := errorReason(resp.Data)
		if err != nil {
			return nil, err
		}
		return &RedeemError{Base: Base{m.tx}, RedeemRefID: refID(ref.Data), Reason: reason}, nil
	}
	return &RedeemSuccess{Base: Base{m.tx}, RedeemRefID: refID(ref.Data), Payload: resp.Data}, nil
}

func (d *Decoder) acquireResponse(ctx context.Context, m *message) (Event, error) {
	ref, ok := m.memo(0, MemoAcquireRef)
	if !ok {
		return nil, nil
	}
	if resp, ok := m.memo(1, MemoAcquireError); ok {
		reason, err := errorReason(resp.Data)
		if err != nil {
			return nil, err
		}
		return &AcquireError{Base: Base{m.tx}, AcquireRefID: refID(ref.Data), Reason: reason}, nil
	}
	if resp, ok := m.memo(1, MemoAcquireSuccess); ok {
		payload, undecryptable := d.decrypt(resp.Data)
		return &AcquireSuccess{Base: Base{m.tx}, AcquireRefID: refID(ref.Data), Payload: payload, Undecryptable: undecryptable}, nil
	}
	return nil, nil
}

func (d *Decoder) extendResponse(ctx context.Context, m *message) (Event, error) {
	ref, ok := m.memo(0, MemoExtendRef)
	if !ok {
		return nil, nil
	}
	if resp, ok := m.memo(1, MemoExtendError); ok {
		reason, err := errorReason(resp.Data)
		if err != nil {
			return nil, err
		}
		return &ExtendError{Base: Base{m.tx}, ExtendRefID: refID(ref.Data), Reason: reason}, nil
	}
	if resp, ok := m.memo(1, MemoExtendSuccess); ok {
		return &ExtendSuccess{Base: Base{m.tx}, ExtendRefID: refID(ref.Data), Payload: resp.Data}, nil
	}
	return nil, nil
}

func (d *Decoder) refundResponse(ctx context.Context, m *message) (Event, error) {
	ref, ok := m.memo(0, MemoRefundRef)
	if !ok {
		return nil, nil
	}
	return &RefundSuccess{Base: Base{m.tx}, RefundRefID: refID(ref.Data), Amount: m.tx.Amount}, nil
}

func (d *Decoder) hostRegistration(ctx context.Context, m *message) (Event, error) {
	mm, ok := m.memo(0, MemoHostReg)
	if !ok {
		return nil, nil
	}
	reg, err := codec.DecodeHostRegistration(mm.Data)
	if err != nil {
		return nil, err
	}
	return &HostRegistered{Base: Base{m.tx}, Host: m.tx.Account, Registration: reg}, nil
}

func (d *Decoder) hostUpdate(ctx context.Context, m *message) (Event, error) {
	mm, ok := m.memo(0, MemoHostUpdateReg)
	if !ok {
		return nil, nil
	}
	update, err := codec.DecodeHostUpdate(mm.Data)
	if err != nil {
		return nil, err
	}
	return &HostUpdated{Base: Base{m.tx}, Host: m.tx.Account, Update: update}, nil
}

// singleMemo maps the events identified by their first memo alone.
func (d *Decoder) singleMemo(ctx context.Context, m *message) (Event, error) {
	if len(m.memos) == 0 {
		return nil, nil
	}
	tx, mm := m.tx, &m.memos[0]
	base := Base{tx}
	switch mm.Type {
	case MemoHostDereg:
		return &HostDeregistered{Base: base, Host: tx.Account}, nil
	case MemoHeartbeat:
		return &Heartbeat{Base: base, Host: tx.Account}, nil
	case MemoAcquireLease:
		payload, undecryptable := d.decrypt(mm.Data)
		ev := &AcquireLease{
			Base:          base,
			Tenant:        tx.Account,
			Host:          tx.Destination,
			URITokenID:    tx.URITokenID,
			Payload:       payload,
			Undecryptable: undecryptable,
		}
		if tx.Offer != nil && codec.IsLeaseTokenURI(tx.Offer.URI) {
			lease, err := codec.DecodeLeaseTokenURI(tx.Offer.URI)
			if err != nil {
				return nil, err
			}
			ev.Lease = lease
		}
		return ev, nil
	case MemoExtendLease:
		payload, undecryptable := d.decrypt(mm.Data)
		ev := &ExtendLease{
			Base:          base,
			Tenant:        tx.Account,
			Host:          tx.Destination,
			URITokenID:    tx.URITokenID,
			Amount:        tx.Amount,
			Payload:       payload,
			Undecryptable: undecryptable,
		}
		if ev.URITokenID == "" && !undecryptable && len(payload) == codec.TokenIDSize {
			ev.URITokenID = common.ToHex(payload)
		}
		return ev, nil
	case MemoRedeem:
		return &Redeem{Base: base, Tenant: tx.Account, Host: tx.Destination, Amount: tx.Amount, Payload: mm.Data}, nil
	case MemoAuditRequest:
		return &AuditRequest{Base: base, Auditor: tx.Account}, nil
	case MemoAuditSuccess:
		return &AuditSuccess{Base: base, Auditor: tx.Account, Payload: mm.Data}, nil
	case MemoRefund:
		return &Refund{Base: base, RefundRefID: refID(mm.Data)}, nil
	case MemoDeadHostPrune:
		return &DeadHostPrune{Base: base, Host: common.TrimPadding(mm.Data)}, nil
	case MemoCandidateVote:
		ev := &CandidateVote{Base: base, Voter: tx.Account, Vote: mm.Data}
		if len(m.memos) > 1 {
			ev.Candidate = refID(m.memos[1].Data)
		}
		return ev, nil
	}
	return nil, nil
}
