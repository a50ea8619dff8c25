package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cooldogedev/conduit"
	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/protocol"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	moderation := channel.MustNew("labymod", "neo")

	p := protocol.New(moderation, protocol.WithLogger(logger))
	if err := p.RegisterPacket(1, packet.TagPermission, func() packet.Packet { return &packet.Permission{} }); err != nil {
		logger.Error("failed to register packet", "err", err)
		return
	}

	opts := conduit.DefaultOpts()
	opts.Side = conduit.SideClient
	c := conduit.NewService(logger, opts, nil)
	defer c.Close()
	if err := c.RegisterProtocol(p); err != nil {
		logger.Error("failed to register protocol", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	s, err := c.Connect(ctx, "127.0.0.1:19133")
	if err != nil {
		return
	}

	pk := packet.NewPermission(packet.Allow("fly"), packet.Deny("build"))
	if err := c.Send(moderation, s.ID(), pk); err != nil {
		logger.Error("failed to send permissions", "err", err)
	}
}
