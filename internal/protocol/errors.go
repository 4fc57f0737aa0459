package protocol

// Outcome values for mutating operations. These are domain results, not
// failures: callers surface them to the requester as-is.
const (
	OutcomeOK             = "ok"
	OutcomeAccepted       = "accepted"
	OutcomeRejected       = "rejected"
	OutcomeNoOp           = "no_op"
	OutcomeNoEffect       = "no_effect"
	OutcomePending        = "pending"
	OutcomeCancelled      = "cancelled"
	OutcomeInvalidAction  = "invalid_action"
	OutcomeNotInstalled   = "not_installed"
	OutcomeNotFound       = "not_found"
	OutcomeOutOfRange     = "out_of_range"
	OutcomeAlreadyCasting = "already_casting"
	OutcomeCooldown       = "cooldown"
	OutcomeError          = "error"
)

// Error codes for the transport boundary.
const (
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrNotFound     = "E_NOT_FOUND"
	ErrForbidden    = "E_FORBIDDEN"
	ErrNotInRoom    = "E_NOT_IN_ROOM"
	ErrConflict     = "E_CONFLICT"
	ErrRoomNotReady = "E_ROOM_NOT_READY"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:   {},
	ErrNotFound:     {},
	ErrForbidden:    {},
	ErrNotInRoom:    {},
	ErrConflict:     {},
	ErrRoomNotReady: {},
	ErrInternal:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Retryable reports whether a request bearing the same request id may be
// safely retried after receiving the given code.
func Retryable(code string) bool {
	return code == ErrRoomNotReady || code == ErrInternal
}
