// Package json is a thin façade over bytedance/sonic used for the store's
// hot marshal/unmarshal path, falling back to the standard library only for
// indentation. Number and RawMessage are re-exported standard-library types.
package json

import (
	"bytes"
	"encoding/json"

	"github.com/bytedance/sonic"
)

// Number is re-exported so callers never need to import encoding/json
// directly just to type a field.
type Number = json.Number

// RawMessage is re-exported for the same reason.
type RawMessage = json.RawMessage

var api = sonic.ConfigStd

// Marshal encodes v using sonic's standard-compatible configuration.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal decodes data into v using sonic.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// MarshalIndent falls back to the standard library: sonic does not expose
// an indenting encoder, and this path is only used for the on-disk store
// file, where readability matters far more than marshal throughput.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	data, err := api.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := json.Indent(&buf, data, prefix, indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
