package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"

	"github.com/cooldogedev/conduit"
	"github.com/cooldogedev/conduit/api"
	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/protocol"
	"github.com/google/uuid"
)

var moderation = channel.MustNew("labymod", "neo")

func main() {
	opts, err := conduit.LoadOpts("example/moderation.yml")
	if err != nil {
		opts = conduit.DefaultOpts()
	}
	level, _ := opts.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	p := protocol.New(moderation, protocol.WithLogger(logger))
	if err := p.RegisterPacket(1, packet.TagPermission, func() packet.Packet { return &packet.Permission{} }, packet.HandlerFor(func(sender uuid.UUID, pk *packet.Permission) error {
		for _, permission := range pk.Permissions {
			logger.Info("received permission", "sender", sender, "name", permission.Name, "allowed", permission.Allowed)
		}
		return nil
	})); err != nil {
		logger.Error("failed to register packet", "err", err)
		return
	}

	s := conduit.NewService(logger, opts, nil)
	if err := s.RegisterProtocol(p); err != nil {
		logger.Error("failed to register protocol", "err", err)
		return
	}
	if err := s.Listen(); err != nil {
		return
	}

	a := api.NewAPI(s.Sessions(), logger, api.NewSecretBasedAuthentication("secret"))
	if err := a.Listen(":19132"); err != nil {
		logger.Error("failed to listen on api", "err", err)
		return
	}

	ctx := context.Background()
	go func() {
		for {
			if err := a.Accept(ctx); err != nil {
				logger.Error("failed to accept connection", "err", err)
				return
			}
		}
	}()

	for {
		if _, err := s.Accept(ctx); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error("failed to accept session", "err", err)
		}
	}
}
