package protocol

import (
	"github.com/leasenet/ledgerclient/codec"
	"github.com/leasenet/ledgerclient/types"
)

// EventKind tags a domain event variant.
type EventKind int

// event kinds
const (
	KindHostRegistered EventKind = iota + 1
	KindHostDeregistered
	KindHostUpdated
	KindHeartbeat
	KindReward
	KindAcquireLease
	KindAcquireSuccess
	KindAcquireError
	KindExtendLease
	KindExtendSuccess
	KindExtendError
	KindRedeem
	KindRedeemSuccess
	KindRedeemError
	KindAuditRequest
	KindAuditSuccess
	KindRefund
	KindRefundSuccess
	KindDeadHostPrune
	KindCandidateVote
)

var kindNames = map[EventKind]string{
	KindHostRegistered:   "HostRegistered",
	KindHostDeregistered: "HostDeregistered",
	KindHostUpdated:      "HostUpdated",
	KindHeartbeat:        "Heartbeat",
	KindReward:           "Reward",
	KindAcquireLease:     "AcquireLease",
	KindAcquireSuccess:   "AcquireSuccess",
	KindAcquireError:     "AcquireError",
	KindExtendLease:      "ExtendLease",
	KindExtendSuccess:    "ExtendSuccess",
	KindExtendError:      "ExtendError",
	KindRedeem:           "Redeem",
	KindRedeemSuccess:    "RedeemSuccess",
	KindRedeemError:      "RedeemError",
	KindAuditRequest:     "AuditRequest",
	KindAuditSuccess:     "AuditSuccess",
	KindRefund:           "Refund",
	KindRefundSuccess:    "RefundSuccess",
	KindDeadHostPrune:    "DeadHostPrune",
	KindCandidateVote:    "CandidateVote",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// AllKinds lists every event kind.
func AllKinds() []EventKind {
	kinds := make([]EventKind, 0, len(kindNames))
	for k := KindHostRegistered; k <= KindCandidateVote; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Event is a decoded domain event. The set of implementations is closed.
type Event interface {
	Kind() EventKind
	Transaction() *types.Transaction
	isEvent()
}

// Base carries the originating transaction of an event.
type Base struct {
	Tx *types.Transaction
}

// Transaction returns the originating transaction.
func (b *Base) Transaction() *types.Transaction { return b.Tx }
func (b *Base) isEvent()                        {}

// HostRegistered a host minted its registration token and paid the fee.
type HostRegistered struct {
	Base
	Host         string
	Registration *codec.HostRegistration
}

// HostDeregistered a host left the registry.
type HostDeregistered struct {
	Base
	Host string
}

// HostUpdated a host changed its advertised resources.
type HostUpdated struct {
	Base
	Host   string
	Update *codec.HostUpdate
}

// Heartbeat a host proved it is alive.
type Heartbeat struct {
	Base
	Host string
}

// Reward is a payment of the protocol currency from a reward source to a
// host. It carries no memos.
type Reward struct {
	Base
	Host   string
	Amount *types.Amount
}

// AcquireLease a tenant bought a lease token and sent its requirements.
type AcquireLease struct {
	Base
	Tenant     string
	Host       string
	URITokenID string
	// Lease is nil when the bought token is not a lease token.
	Lease         *codec.LeaseToken
	Payload       []byte
	Undecryptable bool
}

// AcquireSuccess the host created the instance of an acquire request.
type AcquireSuccess struct {
	Base
	AcquireRefID  string
	Payload       []byte
	Undecryptable bool
}

// AcquireError the host failed an acquire request.
type AcquireError struct {
	Base
	AcquireRefID string
	Reason       string
}

// ExtendLease a tenant paid to extend a lease.
type ExtendLease struct {
	Base
	Tenant        string
	Host          string
	URITokenID    string
	Amount        *types.Amount
	Payload       []byte
	Undecryptable bool
}

// ExtendSuccess the host extended a lease.
type ExtendSuccess struct {
	Base
	ExtendRefID string
	Payload     []byte
}

// ExtendError the host refused an extension.
type ExtendError struct {
	Base
	ExtendRefID string
	Reason      string
}

// Redeem a tenant redeemed hosting tokens for an instance.
type Redeem struct {
	Base
	Tenant  string
	Host    string
	Amount  *types.Amount
	Payload []byte
}

// RedeemSuccess the host answered a redeem with instance details.
type RedeemSuccess struct {
	Base
	RedeemRefID string
	Payload     []byte
}

// RedeemError the host answered a redeem with a failure.
type RedeemError struct {
	Base
	RedeemRefID string
	Reason      string
}

// AuditRequest an auditor asked for an audit assignment.
type AuditRequest struct {
	Base
	Auditor string
}

// AuditSuccess an auditor reported an audit.
type AuditSuccess struct {
	Base
	Auditor string
	Payload []byte
}

// Refund a tenant asked for a refund of a failed request.
type Refund struct {
	Base
	RefundRefID string
}

// RefundSuccess the refund was paid.
type RefundSuccess struct {
	Base
	RefundRefID string
	Amount      *types.Amount
}

// DeadHostPrune an inactive host was removed from the registry.
type DeadHostPrune struct {
	Base
	Host string
}

// CandidateVote a host voted on a governance candidate.
type CandidateVote struct {
	Base
	Voter     string
	Candidate string
	Vote      []byte
}

func (*HostRegistered) Kind() EventKind   { return KindHostRegistered }
func (*HostDeregistered) Kind() EventKind { return KindHostDeregistered }
func (*HostUpdated) Kind() EventKind      { return KindHostUpdated }
func (*Heartbeat) Kind() EventKind        { return KindHeartbeat }
func (*Reward) Kind() EventKind           { return KindReward }
func (*AcquireLease) Kind() EventKind     { return KindAcquireLease }
func (*AcquireSuccess) Kind() EventKind   { return KindAcquireSuccess }
func (*AcquireError) Kind() EventKind     { return KindAcquireError }
func (*ExtendLease) Kind() EventKind      { return KindExtendLease }
func (*ExtendSuccess) Kind() EventKind    { return KindExtendSuccess }
func (*ExtendError) Kind() EventKind      { return KindExtendError }
func (*Redeem) Kind() EventKind           { return KindRedeem }
func (*RedeemSuccess) Kind() EventKind    { return KindRedeemSuccess }
func (*RedeemError) Kind() EventKind      { return KindRedeemError }
func (*AuditRequest) Kind() EventKind     { return KindAuditRequest }
func (*AuditSuccess) Kind() EventKind     { return KindAuditSuccess }
func (*Refund) Kind() EventKind           { return KindRefund }
func (*RefundSuccess) Kind() EventKind    { return KindRefundSuccess }
func (*DeadHostPrune) Kind() EventKind    { return KindDeadHostPrune }
func (*CandidateVote) Kind() EventKind    { return KindCandidateVote }
