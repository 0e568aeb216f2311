package codec

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
)

// Proto encodes protobuf messages in the standard binary wire format. Values
// must implement proto.Message; decoding into a nil message pointer allocates
// a new message of the target type.
type Proto struct{}

var _ Codec = Proto{}

func (Proto) Name() string { return "proto" }

func (Proto) ID() byte { return 2 }

func (Proto) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, errors.Newf("%T does not implement proto.Message", v)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

func (Proto) Unmarshal(data []byte, v any) error {
	msg, err := protoTarget(v)
	if err != nil {
		return err
	}
	return proto.Unmarshal(data, msg)
}

// protoTarget resolves v to the message to decode into. Decode hands us a
// pointer to T, so for T = *pb.Foo we receive **pb.Foo and fill in the inner
// pointer.
func protoTarget(v any) (proto.Message, error) {
	if msg, ok := v.(proto.Message); ok {
		return msg, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, errors.Newf("cannot decode into %T", v)
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Pointer {
		return nil, errors.Newf("%T does not implement proto.Message", v)
	}
	if elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}
	msg, ok := elem.Interface().(proto.Message)
	if !ok {
		return nil, errors.Newf("%T does not implement proto.Message", elem.Interface())
	}
	return msg, nil
}
