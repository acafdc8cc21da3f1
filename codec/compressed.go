package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the block compression algorithm.
type Compression uint8

const (
	// CompressionNone indicates no compression.
	CompressionNone Compression = 0
	// CompressionLZ4 indicates LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD indicates ZSTD block compression (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("codec: unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Block format: [type uint8][uncompressed size uint32][payload].
// A block whose type is CompressionNone carries the raw bytes.
const blockHeaderSize = 5

// minCompressSize is the payload size below which compression is skipped.
const minCompressSize = 128

var (
	errShortBlock   = errors.New("codec: block too small for header")
	errSizeMismatch = errors.New("codec: decompressed size mismatch")
)

// Compress wraps data in a block, compressing it with c when that helps.
func Compress(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	if len(data) >= minCompressSize {
		var err error
		switch c {
		case CompressionLZ4:
			compressed, err = compressLZ4(data)
		case CompressionZSTD:
			enc := getZstdEncoder()
			compressed = enc.EncodeAll(data, nil)
			zstdEncoderPool.Put(enc)
		}
		if err != nil {
			return nil, err
		}
	}

	// ratio > 0.9 is not worth the decode cost
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		c = CompressionNone
		compressed = data
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	out[0] = byte(c)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return buf[:n], nil
}

// Decompress reverses Compress. The algorithm is read from the block header.
func Decompress(block []byte) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, errShortBlock
	}
	size := binary.LittleEndian.Uint32(block[1:])
	payload := block[blockHeaderSize:]

	switch Compression(block[0]) {
	case CompressionNone:
		if uint32(len(payload)) != size {
			return nil, errSizeMismatch
		}
		return payload, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != size {
			return nil, errSizeMismatch
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, err
		}
		if uint32(len(out)) != size {
			return nil, errSizeMismatch
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: unknown compression type %d", block[0])
	}
}

// Compressed wraps a Codec and compresses its output.
type Compressed struct {
	inner       Codec
	compression Compression
}

// NewCompressed returns a codec that compresses inner's output with c.
func NewCompressed(inner Codec, c Compression) *Compressed {
	return &Compressed{inner: inner, compression: c}
}

// Marshal encodes then compresses.
func (c *Compressed) Marshal(v any) ([]byte, error) {
	raw, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Compress(raw, c.compression)
}

// Unmarshal decompresses then decodes.
func (c *Compressed) Unmarshal(data []byte, v any) error {
	raw, err := Decompress(data)
	if err != nil {
		return err
	}
	return c.inner.Unmarshal(raw, v)
}

// Name returns "<inner>+<compression>".
func (c *Compressed) Name() string {
	return c.inner.Name() + "+" + c.compression.String()
}
