package codec

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// JSON is the standard-library JSON codec.
//
// Untyped numbers decode as int64 when they are integers and float64
// otherwise, so identifiers above 2^53 survive a round trip.
type JSON struct{}

// Marshal encodes the value to indented JSON so snapshot files stay diffable.
func (JSON) Marshal(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	resolveNumbers(reflect.ValueOf(v))
	return nil
}

// Name returns "json".
func (JSON) Name() string { return "json" }
