package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseRoundTrip(t *testing.T) {
	for _, tt := range []struct{ namespace, path string }{
		{"labymod", "neo"},
		{"minecraft", "brand"},
		{"a", "b"},
		{"conduit", "api/v1"},
	} {
		id, err := New(tt.namespace, tt.path)
		require.NoError(t, err)

		parsed, err := Parse(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
		assert.Equal(t, tt.namespace, parsed.Namespace())
		assert.Equal(t, tt.path, parsed.Path())
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "labymod", ":neo", "labymod:", "a:b:c", ":"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "input %q", s)
	}
}

func TestNewInvalid(t *testing.T) {
	_, err := New("", "neo")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = New("labymod", "a:b")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.Panics(t, func() { MustNew("labymod", "") })
}

func TestIdentifierIsComparable(t *testing.T) {
	seen := map[Identifier]int{MustNew("labymod", "neo"): 1}
	assert.Equal(t, 1, seen[MustNew("labymod", "neo")])
	assert.True(t, Identifier{}.IsZero())
	assert.False(t, MustNew("labymod", "neo").IsZero())
}

func TestIdentifierYAML(t *testing.T) {
	var cfg struct {
		Channels []Identifier `yaml:"channels"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("channels: [\"labymod:neo\", \"minecraft:brand\"]"), &cfg))
	assert.Equal(t, []Identifier{MustNew("labymod", "neo"), MustNew("minecraft", "brand")}, cfg.Channels)

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "labymod:neo")

	assert.Error(t, yaml.Unmarshal([]byte("channels: [\"broken\"]"), &cfg))
}
