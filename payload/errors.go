package payload

import "errors"

var (
	ErrUnexpectedEOF  = errors.New("payload: unexpected end of buffer")
	ErrVarIntTooBig   = errors.New("payload: varint too big")
	ErrNegativeLength = errors.New("payload: negative length")
	ErrStringTooLong  = errors.New("payload: string too long")
	ErrInvalidUTF8    = errors.New("payload: invalid utf-8 string")
)
