// Package packet holds the packets of the admin API and the protocol they are
// registered with.
package packet

import (
	"log/slog"

	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/protocol"
)

// Channel is the channel API packets travel on.
var Channel = channel.MustNew("conduit", "api")

const (
	IDConnectionRequest int32 = iota
	IDConnectionResponse
	IDKick
	IDListSessions
	IDSessionList
)

const (
	TagConnectionRequest  packet.Tag = "conduit:connection_request"
	TagConnectionResponse packet.Tag = "conduit:connection_response"
	TagKick               packet.Tag = "conduit:kick"
	TagListSessions       packet.Tag = "conduit:list_sessions"
	TagSessionList        packet.Tag = "conduit:session_list"
)

// NewProtocol returns a protocol with every API packet registered and no handlers.
func NewProtocol(logger *slog.Logger) *protocol.Protocol {
	p := protocol.New(Channel, protocol.WithLogger(logger))
	for _, d := range []struct {
		id      int32
		tag     packet.Tag
		factory func() packet.Packet
	}{
		{IDConnectionRequest, TagConnectionRequest, func() packet.Packet { return &ConnectionRequest{} }},
		{IDConnectionResponse, TagConnectionResponse, func() packet.Packet { return &ConnectionResponse{} }},
		{IDKick, TagKick, func() packet.Packet { return &Kick{} }},
		{IDListSessions, TagListSessions, func() packet.Packet { return &ListSessions{} }},
		{IDSessionList, TagSessionList, func() packet.Packet { return &SessionList{} }},
	} {
		if err := p.RegisterPacket(d.id, d.tag, d.factory); err != nil {
			panic(err)
		}
	}
	return p
}
