// Package protocol decodes ledger transactions into the marketplace's
// domain events.
package protocol

// memo types
const (
	MemoHostReg        = "evnHostReg"
	MemoHostDereg      = "evnHostDereg"
	MemoHostUpdateReg  = "evnHostUpdateReg"
	MemoHeartbeat      = "evnHeartbeat"
	MemoAcquireLease   = "evnAcquireLease"
	MemoAcquireRef     = "evnAcquireRef"
	MemoAcquireSuccess = "evnAcquireSuccess"
	MemoAcquireError   = "evnAcquireError"
	MemoExtendLease    = "evnExtendLease"
	MemoExtendRef      = "evnExtendRef"
	MemoExtendSuccess  = "evnExtendSuccess"
	MemoExtendError    = "evnExtendError"
	MemoRedeem         = "evnRedeem"
	MemoRedeemRef      = "evnRedeemRef"
	MemoRedeemResp     = "evnRedeemResp"
	MemoAuditRequest   = "evnAuditRequest"
	MemoAuditSuccess   = "evnAuditSuccess"
	MemoRefund         = "evnRefund"
	MemoRefundRef      = "evnRefundRef"
	MemoDeadHostPrune  = "evnDeadHostPrune"
	MemoCandidateVote  = "evnCandidateVote"
)

// memo formats
const (
	FormatText   = "text/plain"
	FormatJSON   = "text/json"
	FormatBase64 = "base64"
	FormatHex    = "hex"
)

// hook parameters carrying an event when a transaction has no memos
const (
	ParamEventType = "EVNEVENTTYPE"
	ParamEventData = "EVNEVENTDATA1"
)
