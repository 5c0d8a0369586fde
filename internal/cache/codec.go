package cache

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame tags. Every stored value starts with one of them.
const (
	tagJSON byte = 'j'
	tagBlob byte = 'b'
)

var (
	// ErrCorruptValue is returned for stored bytes without a known frame tag.
	ErrCorruptValue = errors.New("cache value has no valid frame")
	// ErrBlobTarget is returned when a blob is decoded into anything but *[]byte.
	ErrBlobTarget = errors.New("cache blob can only be decoded into *[]byte")
)

// Encode frames value for storage. A []byte is stored as an opaque blob,
// everything else as JSON.
func Encode(value any) ([]byte, error) {
	if b, ok := value.([]byte); ok {
		out := make([]byte, 0, len(b)+1)
		out = append(out, tagBlob)

		return append(out, b...), nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache encode: %w", err)
	}

	return append([]byte{tagJSON}, payload...), nil
}

// Decode reverses Encode into dest.
func Decode(data []byte, dest any) error {
	if len(data) == 0 {
		return ErrCorruptValue
	}

	switch data[0] {
	case tagJSON:
		if err := json.Unmarshal(data[1:], dest); err != nil {
			return fmt.Errorf("cache decode: %w", err)
		}

		return nil
	case tagBlob:
		p, ok := dest.(*[]byte)
		if !ok {
			return ErrBlobTarget
		}

		*p = append([]byte(nil), data[1:]...)

		return nil
	default:
		return ErrCorruptValue
	}
}
