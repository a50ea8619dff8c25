package conduit

import "errors"

var (
	ErrDuplicateProtocol = errors.New("conduit: protocol already registered for channel")
	ErrUnknownProtocol   = errors.New("conduit: no protocol registered for channel")
	ErrChannelNotAllowed = errors.New("conduit: channel not allowed")
	ErrUnknownRecipient  = errors.New("conduit: no session for recipient")
	ErrWrongSide         = errors.New("conduit: operation not available on this side")
	ErrNotListening      = errors.New("conduit: not listening")
	ErrInvalidOpts       = errors.New("conduit: invalid options")
)
