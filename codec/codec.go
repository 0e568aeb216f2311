// Package codec converts typed values to and from the byte records stored by
// cache engines.
//
// Every record produced by [Encode] carries a two byte envelope in front of the
// codec payload: the envelope format version followed by the [Codec.ID] of the
// codec that produced it. [Decode] refuses records with an unknown version or a
// foreign codec id, so a store shared by incompatible writers reports a decode
// failure instead of returning garbage.
package codec

import (
	"github.com/cockroachdb/errors"
)

// Version is the current envelope format version.
const Version byte = 1

const headerSize = 2

var (
	// ErrEncode is returned when a value cannot be serialized by the codec.
	ErrEncode = errors.New("codec: encode failed")
	// ErrDecode is returned when a record is truncated, malformed or was
	// written by an incompatible codec or envelope version.
	ErrDecode = errors.New("codec: decode failed")
)

// Codec serializes values for cache storage.
type Codec interface {
	// Name returns the codec identifier used for diagnostics.
	Name() string
	// ID is the byte written into the record envelope.
	ID() byte
	// Marshal serializes v into bytes.
	Marshal(v any) ([]byte, error)
	// Unmarshal deserializes data into v, which must be a pointer.
	Unmarshal(data []byte, v any) error
}

// Default is the codec used when none is configured.
var Default Codec = Msgpack{}

// Encode serializes value with c and wraps the payload in a record envelope.
func Encode[T any](c Codec, value T) ([]byte, error) {
	payload, err := c.Marshal(value)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "codec %s: marshal %T", c.Name(), value), ErrEncode)
	}
	buf := make([]byte, 0, headerSize+len(payload))
	buf = append(buf, Version, c.ID())
	return append(buf, payload...), nil
}

// Decode validates the record envelope and deserializes the payload into a T.
func Decode[T any](c Codec, data []byte) (T, error) {
	var result T
	if len(data) < headerSize {
		return result, errors.Mark(errors.Newf("codec %s: record too short (%d bytes)", c.Name(), len(data)), ErrDecode)
	}
	if data[0] != Version {
		return result, errors.Mark(errors.Newf("codec %s: unsupported record version %d", c.Name(), data[0]), ErrDecode)
	}
	if data[1] != c.ID() {
		return result, errors.Mark(errors.Newf("codec %s: record written by codec id %d", c.Name(), data[1]), ErrDecode)
	}
	if err := c.Unmarshal(data[headerSize:], &result); err != nil {
		var zero T
		return zero, errors.Mark(errors.Wrapf(err, "codec %s: unmarshal into %T", c.Name(), zero), ErrDecode)
	}
	return result, nil
}
