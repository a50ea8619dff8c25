package conduit

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/transport"
	"gopkg.in/yaml.v3"
)

// Opts configures a Service. It is usually loaded from YAML with LoadOpts.
type Opts struct {
	// Addr is the address servers listen on.
	Addr string `yaml:"addr"`
	// Side decides whether the service listens for sessions or dials them.
	Side Side `yaml:"side"`
	// Transport names the stream transport: tcp, quic, kcp or spectral.
	Transport string `yaml:"transport"`
	// MaxFrameSize is the largest frame, in bytes, accepted or sent on a session.
	MaxFrameSize int `yaml:"max_frame_size"`
	// CompressionThreshold is the payload size from which payloads are compressed.
	// Zero disables compression.
	CompressionThreshold int `yaml:"compression_threshold"`
	// HandshakeTimeout bounds the id exchange with a new peer. Zero leaves it to
	// the context passed to Accept or Connect.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// LogLevel is the level the example programs log at.
	LogLevel string `yaml:"log_level"`
	// Channels restricts the channels protocols may be registered on. Empty allows every channel.
	Channels []channel.Identifier `yaml:"channels"`
}

// DefaultOpts returns the options of a TCP server on port 19133.
func DefaultOpts() *Opts {
	return &Opts{
		Addr:                 ":19133",
		Side:                 SideServer,
		Transport:            "tcp",
		MaxFrameSize:         transport.DefaultMaxFrameSize,
		CompressionThreshold: 1024,
		HandshakeTimeout:     time.Second * 10,
		LogLevel:             "info",
	}
}

// LoadOpts reads the options in the YAML file at path.
func LoadOpts(path string) (*Opts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseOpts(data)
}

// ParseOpts parses YAML options. Fields missing from data keep their defaults.
func ParseOpts(data []byte) (*Opts, error) {
	opts := DefaultOpts()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("conduit: parse options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate ...
func (o *Opts) Validate() error {
	switch o.Transport {
	case "tcp", "quic", "kcp", "spectral":
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidOpts, o.Transport)
	}
	if _, err := o.Side.MarshalText(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOpts, err)
	}
	if o.MaxFrameSize <= 0 {
		return fmt.Errorf("%w: max_frame_size must be positive", ErrInvalidOpts)
	}
	if o.CompressionThreshold < 0 {
		return fmt.Errorf("%w: compression_threshold must not be negative", ErrInvalidOpts)
	}
	if o.HandshakeTimeout < 0 {
		return fmt.Errorf("%w: handshake_timeout must not be negative", ErrInvalidOpts)
	}
	if _, err := o.Level(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOpts, err)
	}
	for _, id := range o.Channels {
		if id.IsZero() {
			return fmt.Errorf("%w: empty channel", ErrInvalidOpts)
		}
	}
	return nil
}

// Level parses LogLevel.
func (o *Opts) Level() (slog.Level, error) {
	var level slog.Level
	if o.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	err := level.UnmarshalText([]byte(o.LogLevel))
	return level, err
}

func (o *Opts) connOpts() transport.ConnOpts {
	return transport.ConnOpts{
		MaxFrameSize:         o.MaxFrameSize,
		CompressionThreshold: o.CompressionThreshold,
	}
}
