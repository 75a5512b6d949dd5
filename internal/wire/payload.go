package wire

import (
	"fmt"

	"google.golang.org/grpc/codes"
)

// ServerID identifies a broker-managed LSP server process.
type ServerID uint64

// SessionID identifies an attached editor session.
type SessionID uint64

// RequestID is a broker-allocated wire request id, of the form
// "b:{server}:{seq}". Opaque string ids avoid numeric overflow across long
// sessions, unlike raw JSON-RPC integer ids.
type RequestID string

// NewWireRequestID formats the broker's canonical wire request id.
func NewWireRequestID(server ServerID, seq uint64) RequestID {
	return RequestID(fmt.Sprintf("b:%d:%d", server, seq))
}

// SyncEpoch is a monotonic ownership era for a shared document.
type SyncEpoch uint64

// SyncSeq is a monotonic per-epoch edit counter for a shared document.
type SyncSeq uint64

// SyncNonce correlates a focus/resync request with its ack.
type SyncNonce uint64

// ApplyKind distinguishes the three shared-state mutation kinds.
type ApplyKind uint8

const (
	ApplyEdit ApplyKind = iota
	ApplyUndo
	ApplyRedo
)

// SharedApply is the editor->broker payload for an Edit/Undo/Redo mutation.
type SharedApply struct {
	URI          string
	Kind         ApplyKind
	Epoch        SyncEpoch
	BaseSeq      SyncSeq
	BaseHash64   uint64
	BaseLenChars uint64
	Tx           *Tx // nil for Undo/Redo
	UndoGroup    uint64
}

// SharedFocus atomically requests ownership (when Focused) and verifies
// fingerprint alignment.
type SharedFocus struct {
	URI            string
	Focused        bool
	FocusSeq       uint64
	Nonce          SyncNonce
	ClientHash64   *uint64
	ClientLenChars *uint64
}

// SharedResync is an unconditional full-snapshot request.
type SharedResync struct {
	URI            string
	Nonce          SyncNonce
	ClientHash64   *uint64
	ClientLenChars *uint64
}

// ErrorCode taxonomizes broker/shared-state failures, reusing gRPC's status
// code space: transport -> Unavailable, protocol -> Internal,
// precondition -> FailedPrecondition, resource ->
// ResourceExhausted/DeadlineExceeded, user -> InvalidArgument.
type ErrorCode = codes.Code

const (
	ErrInternal          = codes.Internal
	ErrUnavailable       = codes.Unavailable
	ErrFailedPrecondition = codes.FailedPrecondition
	ErrDeadlineExceeded  = codes.DeadlineExceeded
	ErrInvalidArgument   = codes.InvalidArgument
	ErrCancelled         = codes.Canceled
)

// ResponsePayload carries either an acknowledgment with the updated
// fingerprint and optional applied delta (the authoritative transform the
// client must apply locally), or a repair snapshot. It has no error field:
// a request that fails is reported by the sharedstate.Manager method's own
// return value instead.
type ResponsePayload struct {
	Epoch      SyncEpoch
	Seq        SyncSeq
	Hash64     uint64
	LenChars   uint64
	AppliedTx  *Tx
	Snapshot   *string // full text, set on resync/repair responses
	HistoryLo  uint64
	HistoryHi  uint64
	UndoGroup  uint64
}

// RequestCancelledError builds the error the broker delivers when a pending
// request is cancelled. It is a plain error carrying only this message; no
// LSP RequestCancelled error code is attached. The exact wording
// is load-bearing: existing clients match on it.
func RequestCancelledError() error {
	return fmt.Errorf("request cancelled by broker")
}
