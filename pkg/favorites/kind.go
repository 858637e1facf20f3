package favorites

import (
	"fmt"
	"strings"
)

// EntityKind selects how references are turned into entities. It is fixed
// when the controller is built.
type EntityKind int

const (
	// KindGeneric resolves object ids through one batch lookup against the
	// original collection (businesses, orders).
	KindGeneric EntityKind = iota
	// KindProduct takes the product embedded in each reference.
	KindProduct
	// KindProfessional takes the user embedded in each reference.
	KindProfessional
)

var kindNames = map[EntityKind]string{
	KindGeneric:      "generic",
	KindProduct:      "product",
	KindProfessional: "professional",
}

func (k EntityKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is a known kind.
func (k EntityKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseEntityKind maps a configuration name to a kind. An empty name is
// KindGeneric.
func ParseEntityKind(s string) (EntityKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindGeneric, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k EntityKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EntityKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
