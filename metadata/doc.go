// Package metadata provides the typed attribute model stored alongside
// every record.
//
// # Types
//
// Attribute values can be:
//
//   - Null: metadata.Null()
//   - Int: metadata.Int(2024)
//   - Float: metadata.Float(3.14)
//   - String: metadata.String("tech")
//   - Bool: metadata.Bool(true)
//   - Array: metadata.Array([]metadata.Value{...})
//   - Map: metadata.Map(map[string]metadata.Value{...})
//
// Example:
//
//	doc := metadata.Document{
//	    "category":  metadata.String("tech"),
//	    "year":      metadata.Int(2024),
//	    "published": metadata.Bool(true),
//	}
//
// Untyped input such as decoded JSON is converted with FromAny and
// DocumentFromAny; ToAny returns the canonical Go form
// (nil, bool, int64, float64, string, []any, map[string]any).
//
// Values implement both json and msgpack custom encoding so that the
// kind survives a round trip through either codec.
package metadata
