package protocol

import "errors"

var (
	ErrFactoryRequired    = errors.New("protocol: packet factory is required")
	ErrTagRequired        = errors.New("protocol: packet tag is required")
	ErrHandlerRequired    = errors.New("protocol: handler is required")
	ErrDuplicateID        = errors.New("protocol: packet id already registered")
	ErrDuplicateTag       = errors.New("protocol: packet tag already registered")
	ErrDuplicateHandler   = errors.New("protocol: handler already registered")
	ErrUnregisteredPacket = errors.New("protocol: packet not registered")
	ErrMalformedPacket    = errors.New("protocol: malformed packet")
	ErrFactoryMismatch    = errors.New("protocol: factory produced a packet of another variant")
)
