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
	"github.com/cooldogedev/conduit/transport"
	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	moderation := channel.MustNew("labymod", "neo")

	p := protocol.New(moderation, protocol.WithLogger(logger))
	if err := p.RegisterPacket(1, packet.TagPermission, func() packet.Packet { return &packet.Permission{} }, packet.HandlerFor(func(_ uuid.UUID, pk *packet.Permission) error {
		logger.Info("server sent permissions", "count", len(pk.Permissions))
		return nil
	})); err != nil {
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	conn, err := transport.DialScript(ctx, minecraft.Dialer{}, "127.0.0.1:19132", logger)
	if err != nil {
		logger.Error("failed to join server", "err", err)
		return
	}

	server := uuid.NewSHA1(uuid.NameSpaceURL, []byte("127.0.0.1:19132"))
	s := c.Attach(server, conn)
	if err := c.Send(moderation, server, packet.NewPermission(packet.Allow("fly"))); err != nil {
		logger.Error("failed to send permissions", "err", err)
	}
	<-s.Closed()
}
