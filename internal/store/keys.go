package store

import (
	"errors"
	"fmt"
)

// ErrUnknownKey is returned for keys outside the fixed key set.
var ErrUnknownKey = errors.New("unknown image key")

// Key names one stored image.
type Key string

const (
	KeyLogo     Key = "logo"
	KeyPatent   Key = "patent"
	KeyBoxing   Key = "boxing"
	KeyFootball Key = "football"
)

// Keys returns the fixed key set in display order.
func Keys() []Key {
	return []Key{KeyLogo, KeyPatent, KeyBoxing, KeyFootball}
}

// ParseKey validates s against the fixed key set.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Validate reports whether k belongs to the fixed key set.
func (k Key) Validate() error {
	switch k {
	case KeyLogo, KeyPatent, KeyBoxing, KeyFootball:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownKey, string(k))
}

func (k Key) String() string {
	return string(k)
}
