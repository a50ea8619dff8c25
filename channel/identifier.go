// Package channel names the logical channels protocols are bound to.
package channel

import (
	"errors"
	"fmt"
	"strings"
)

// Separator splits the namespace from the path in the canonical form.
const Separator = ":"

var ErrInvalidIdentifier = errors.New("channel: invalid identifier")

// Identifier is a namespaced channel name such as "labymod:neo". It is a plain
// comparable value and may be used as a map key.
type Identifier struct {
	namespace string
	path      string
}

// New returns the identifier for namespace and path, both of which must be
// non-empty and free of the separator.
func New(namespace, path string) (Identifier, error) {
	if namespace == "" || path == "" {
		return Identifier{}, fmt.Errorf("%w: empty part in %q", ErrInvalidIdentifier, namespace+Separator+path)
	}
	if strings.Contains(namespace, Separator) || strings.Contains(path, Separator) {
		return Identifier{}, fmt.Errorf("%w: %q contains more than one separator", ErrInvalidIdentifier, namespace+Separator+path)
	}
	return Identifier{namespace: namespace, path: path}, nil
}

// MustNew is like New but panics on an invalid identifier. It is meant for
// package-level protocol definitions.
func MustNew(namespace, path string) Identifier {
	id, err := New(namespace, path)
	if err != nil {
		panic(err)
	}
	return id
}

// Parse parses the canonical "namespace:path" form.
func Parse(s string) (Identifier, error) {
	namespace, path, ok := strings.Cut(s, Separator)
	if !ok {
		return Identifier{}, fmt.Errorf("%w: %q has no separator", ErrInvalidIdentifier, s)
	}
	return New(namespace, path)
}

// Namespace ...
func (id Identifier) Namespace() string {
	return id.namespace
}

// Path ...
func (id Identifier) Path() string {
	return id.path
}

// IsZero reports whether id is the zero Identifier.
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// String returns the canonical form accepted by Parse.
func (id Identifier) String() string {
	return id.namespace + Separator + id.path
}

// MarshalText implements encoding.TextMarshaler.
func (id Identifier) MarshalText() ([]byte, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: zero identifier", ErrInvalidIdentifier)
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identifier) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
