package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/cooldogedev/conduit"
	"github.com/cooldogedev/conduit/transport"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	certificate, err := selfSigned()
	if err != nil {
		logger.Error("failed to create certificate", "err", err)
		return
	}

	listener, err := transport.ListenQUIC("127.0.0.1:19133", &tls.Config{Certificates: []tls.Certificate{certificate}}, logger)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		return
	}

	opts := conduit.DefaultOpts()
	opts.Transport = "quic"
	s := conduit.NewService(logger, opts, transport.NewQUIC(logger))
	s.UseListener(listener)
	defer s.Close()

	for {
		if _, err := s.Accept(context.Background()); err != nil {
			logger.Error("failed to accept session", "err", err)
		}
	}
}

func selfSigned() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "conduit"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour * 24),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
