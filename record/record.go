package record

import (
	"fmt"
	"slices"

	"github.com/hupe1980/entitydb/metadata"
	"github.com/hupe1980/entitydb/quantization"
)

// Encoding tags the vector representation a record carries.
type Encoding uint8

const (
	// EncodingNone marks a record without an embedding.
	EncodingNone Encoding = iota
	// EncodingFloat is a provider-generated float32 vector.
	EncodingFloat
	// EncodingBinary is a quantized code; the float vector is kept alongside.
	EncodingBinary
	// EncodingManual is a caller-supplied float32 vector.
	EncodingManual
)

func (e Encoding) String() string {
	switch e {
	case EncodingNone:
		return "none"
	case EncodingFloat:
		return "float"
	case EncodingBinary:
		return "binary"
	case EncodingManual:
		return "manual"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// Embedded reports whether vectors of this encoding come from the
// embedding provider.
func (e Encoding) Embedded() bool {
	return e == EncodingFloat || e == EncodingBinary
}

// Groups returns the scan groups a record of this encoding belongs to.
// Binary records are visible to both float and binary scans.
func (e Encoding) Groups() []Group {
	switch e {
	case EncodingFloat:
		return []Group{GroupFloat}
	case EncodingBinary:
		return []Group{GroupFloat, GroupBinary}
	case EncodingManual:
		return []Group{GroupManual}
	default:
		return nil
	}
}

// DimensionGroup returns the group whose dimensionality constrains this
// encoding. Float and binary share the provider's dimension.
func (e Encoding) DimensionGroup() Group {
	if e == EncodingManual {
		return GroupManual
	}
	return GroupFloat
}

// Group names a set of records scanned together by one query kind.
type Group string

const (
	GroupFloat  Group = "float"
	GroupBinary Group = "binary"
	GroupManual Group = "manual"
)

// Groups lists every scan group.
var Groups = []Group{GroupFloat, GroupBinary, GroupManual}

// Vector holds a record's embedding. Float is set for every non-empty
// encoding; Code only for EncodingBinary.
type Vector struct {
	Encoding Encoding
	Float    []float32
	Code     quantization.Code
}

// Empty reports whether the record carries no embedding. A zero vector is
// not empty.
func (v Vector) Empty() bool {
	switch v.Encoding {
	case EncodingNone:
		return true
	case EncodingBinary:
		return len(v.Float) == 0 && v.Code.IsZero()
	default:
		return len(v.Float) == 0
	}
}

// Dim returns the dimensionality of the vector.
func (v Vector) Dim() int {
	if len(v.Float) > 0 {
		return len(v.Float)
	}
	return v.Code.Dim
}

// Clone returns a deep copy.
func (v Vector) Clone() Vector {
	return Vector{Encoding: v.Encoding, Float: slices.Clone(v.Float), Code: v.Code.Clone()}
}

// Record is the unit of storage.
type Record struct {
	Key        string
	Attributes metadata.Document
	Vector     Vector
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	return Record{Key: r.Key, Attributes: r.Attributes.Clone(), Vector: r.Vector.Clone()}
}

// KeySpec is either a caller-provided key or a request to generate one.
type KeySpec struct {
	id        string
	generated bool
}

// Provided returns a KeySpec for a caller-supplied key.
func Provided(id string) KeySpec { return KeySpec{id: id} }

// Generated returns a KeySpec asking the store to assign a key.
func Generated() KeySpec { return KeySpec{generated: true} }

// IsGenerated reports whether the key must be generated.
func (k KeySpec) IsGenerated() bool { return k.generated }

// ID returns the provided key; ok is false for generated specs.
func (k KeySpec) ID() (id string, ok bool) { return k.id, !k.generated }

func (k KeySpec) String() string {
	if k.generated {
		return "<generated>"
	}
	return k.id
}

// CheckDimension returns a DimensionMismatchError when actual differs from
// an established expected dimension. expected <= 0 means not yet established.
func CheckDimension(g Group, expected, actual int) error {
	if expected > 0 && expected != actual {
		return &DimensionMismatchError{Group: g, Expected: expected, Actual: actual}
	}
	return nil
}
