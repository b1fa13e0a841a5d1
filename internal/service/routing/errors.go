package routing

import "errors"

// State-conflict errors are distinct so consoles can tell a losing agent
// "someone else took it" apart from "too late".
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotPending           = errors.New("conversation is not pending acceptance")
	ErrWindowExpired        = errors.New("acceptance window expired")
	ErrNotAgent             = errors.New("caller has no agent profile")
	ErrUnknownAgent         = errors.New("agent not found")
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrWrongStatus          = errors.New("conversation status does not allow this action")
	ErrInvalidMessage       = errors.New("invalid message")
)
