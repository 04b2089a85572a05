package ring

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ring: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("ring: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v the way frames are encoded on the bridge.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes a CBOR value produced by Marshal.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder returns a stream encoder for bridge frames.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a stream decoder for bridge frames.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// frame is one message on the bridge. Commands carry a non-zero Seq that
// the matching reply echoes; events carry Seq 0.
type frame struct {
	Kind string          `cbor:"k"`
	Seq  uint64          `cbor:"s,omitempty"`
	Body cbor.RawMessage `cbor:"b,omitempty"`
}

const kindReply = "reply"

type reply struct {
	OK    bool            `cbor:"ok"`
	Err   string          `cbor:"err,omitempty"`
	Value cbor.RawMessage `cbor:"v,omitempty"`
}
