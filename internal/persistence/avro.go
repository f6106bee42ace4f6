package persistence

import (
	"github.com/cc-sentinel/sentinel/internal/extraction"
	"github.com/linkedin/goavro/v2"
)

// counterSchema encodes an extraction.Counter as an Avro map of longs.
// Binary framing keeps the n-gram pool snapshots compact across the
// many rows the training corpus accumulates, per spec §4.7.
const counterSchema = `{"type":"map","values":"long"}`

var counterCodec *goavro.Codec

func init() {
	c, err := goavro.NewCodec(counterSchema)
	if err != nil {
		// counterSchema is a compile-time constant; a failure here is a
		// programmer error, not a runtime condition to recover from.
		panic("persistence: invalid counter schema: " + err.Error())
	}
	counterCodec = c
}

func encodeCounter(c extraction.Counter) ([]byte, error) {
	native := make(map[string]interface{}, len(c))
	for k, v := range c {
		native[k] = int64(v)
	}
	return counterCodec.BinaryFromNative(nil, native)
}

func decodeCounter(b []byte) (extraction.Counter, error) {
	native, _, err := counterCodec.NativeFromBinary(b)
	if err != nil {
		return nil, err
	}
	m, _ := native.(map[string]interface{})
	out := make(extraction.Counter, len(m))
	for k, v := range m {
		n, _ := v.(int64)
		out[k] = int(n)
	}
	return out, nil
}
