// Package codec centralizes value encoding for persisted records.
//
// Changing the codec of an existing store is a breaking change: bytes
// written by one codec will not decode with another. The record format
// stores no codec tag, so the same codec must be configured on reopen.
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
var Default Codec = Msgpack{}

// ByName returns a built-in codec by its stable name.
//
// Compressed variants are named "<codec>+<compression>", e.g. "msgpack+zstd".
func ByName(name string) (Codec, bool) {
	switch name {
	case "msgpack":
		return Msgpack{}, true
	case "go-json", "json":
		return JSON{}, true
	case "msgpack+zstd":
		return NewCompressed(Msgpack{}, CompressionZSTD), true
	case "msgpack+lz4":
		return NewCompressed(Msgpack{}, CompressionLZ4), true
	case "go-json+zstd":
		return NewCompressed(JSON{}, CompressionZSTD), true
	case "go-json+lz4":
		return NewCompressed(JSON{}, CompressionLZ4), true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
