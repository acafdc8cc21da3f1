package quantization

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Code is a bit-packed binary vector.
//
// Bit i of the source vector is bit i%64 of Words[i/64]. Bits beyond Dim
// are always zero.
type Code struct {
	Dim   int
	Words []uint64
}

// NewCode allocates a zeroed code for dim bits.
func NewCode(dim int) Code {
	return Code{Dim: dim, Words: make([]uint64, WordsFor(dim))}
}

// WordsFor returns the number of 64-bit words needed for dim bits.
func WordsFor(dim int) int {
	return (dim + 63) / 64
}

// Bit reports whether bit i is set.
func (c Code) Bit(i int) bool {
	return c.Words[i/64]&(1<<(i%64)) != 0
}

// IsZero reports whether the code carries no bits.
func (c Code) IsZero() bool {
	return c.Dim == 0
}

// Valid reports whether the word slice matches the declared dimension.
func (c Code) Valid() bool {
	return c.Dim > 0 && len(c.Words) == WordsFor(c.Dim)
}

// Clone returns a deep copy.
func (c Code) Clone() Code {
	return Code{Dim: c.Dim, Words: append([]uint64(nil), c.Words...)}
}

var errShortCode = errors.New("quantization: short code buffer")

// MarshalBinary encodes the code as a little-endian uint32 dimension
// followed by the words.
func (c Code) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 4+8*len(c.Words))
	binary.LittleEndian.PutUint32(buf, uint32(c.Dim))
	for i, w := range c.Words {
		binary.LittleEndian.PutUint64(buf[4+8*i:], w)
	}
	return buf, nil
}

// UnmarshalBinary decodes a code written by MarshalBinary.
func (c *Code) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return errShortCode
	}
	dim := int(binary.LittleEndian.Uint32(data))
	n := WordsFor(dim)
	if len(data) != 4+8*n {
		return fmt.Errorf("quantization: code of dimension %d needs %d bytes, got %d", dim, 4+8*n, len(data))
	}
	words := make([]uint64, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[4+8*i:])
	}
	c.Dim = dim
	c.Words = words
	return nil
}
