package codec

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

var errTrailingBytes = errors.New("trailing bytes after msgpack value")

// Msgpack encodes values with msgpack. Structs need exported fields; use
// `msgpack:"name"` tags to control field names.
type Msgpack struct{}

var _ Codec = Msgpack{}

func (Msgpack) Name() string { return "msgpack" }

func (Msgpack) ID() byte { return 1 }

func (Msgpack) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal rejects trailing bytes after the first msgpack value, which
// msgpack.Unmarshal would otherwise ignore.
func (Msgpack) Unmarshal(data []byte, v any) error {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if r.Len() > 0 {
		return errTrailingBytes
	}
	return nil
}
