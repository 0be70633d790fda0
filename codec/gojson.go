package codec

import (
	"bytes"
	"errors"
	"reflect"

	gojson "github.com/goccy/go-json"
)

// GoJSON is a JSON codec backed by github.com/goccy/go-json.
// Output is compatible with JSON; only the encoder differs.
type GoJSON struct{}

// Marshal encodes the value to JSON.
func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

// Unmarshal decodes the JSON data into v. Untyped numbers become int64 when
// they are integers and float64 otherwise.
func (GoJSON) Unmarshal(data []byte, v any) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
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

// Name returns "go-json".
func (GoJSON) Name() string { return "go-json" }

var errTrailingData = errors.New("codec: trailing data after JSON value")
