// Package codec centralizes how snapshots are encoded before they reach a
// backing store.
//
// Changing the codec of an existing file is a breaking change: bytes written by
// one codec are not readable by another.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used when none is configured.
var Default Codec = GoJSON{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json", "":
		return GoJSON{}, true
	case "yaml", "yml":
		return YAML{}, true
	default:
		return nil, false
	}
}

// Names lists the names accepted by ByName.
func Names() []string {
	return []string{"go-json", "json", "yaml"}
}

// MustByName is ByName for static configuration.
func MustByName(name string) Codec {
	c, ok := ByName(name)
	if !ok {
		panic(fmt.Sprintf("codec: unknown codec %q", name))
	}
	return c
}
