package record

import (
	"errors"
	"math"
	"slices"

	"github.com/hupe1980/entitydb/metadata"
)

// Field name defaults.
const (
	DefaultIDField   = "id"
	DefaultTextField = "text"
)

// CodecConfig names the fields with special meaning in a raw record.
type CodecConfig struct {
	// IDField holds the record key. Default "id".
	IDField string
	// VectorField holds the embedding on output, and the manual vector or
	// the text to embed on input. Required.
	VectorField string
	// TextField holds the text to embed. Default "text".
	TextField string
	// AutoID generates a key when IDField is absent instead of failing.
	AutoID bool
}

// Codec converts between raw records (map[string]any) and Records.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	cfg CodecConfig
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.VectorField == "" {
		return nil, invalid("vectorField", "must be configured")
	}
	if cfg.IDField == "" {
		cfg.IDField = DefaultIDField
	}
	if cfg.TextField == "" {
		cfg.TextField = DefaultTextField
	}
	if cfg.IDField == cfg.VectorField {
		return nil, invalid("vectorField", "must differ from the id field %q", cfg.IDField)
	}
	return &Codec{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (c *Codec) Config() CodecConfig { return c.cfg }

// Draft is a validated raw record, ready for embedding and storage.
type Draft struct {
	Key        KeySpec
	Attributes metadata.Document
	// Text is the input for the embedding provider (embedded encodings).
	Text string
	// Vector is the caller-supplied vector (manual encoding).
	Vector []float32
}

// Encode validates raw for the given encoding and splits it into key,
// attributes and vector source.
//
// For EncodingFloat and EncodingBinary the text comes from TextField, or
// from VectorField when it holds a string; in the latter case the text is
// kept as the TextField attribute. For EncodingManual VectorField must hold
// a flat numeric sequence.
func (c *Codec) Encode(raw map[string]any, enc Encoding) (Draft, error) {
	if raw == nil {
		return Draft{}, invalid("", "record must not be nil")
	}

	key, err := c.key(raw)
	if err != nil {
		return Draft{}, err
	}

	attrs, err := c.attributes(raw)
	if err != nil {
		return Draft{}, err
	}

	d := Draft{Key: key, Attributes: attrs}

	switch enc {
	case EncodingManual:
		v, ok := raw[c.cfg.VectorField]
		if !ok || v == nil {
			return Draft{}, invalid(c.cfg.VectorField, "manual vector is required")
		}
		vec, err := c.parseVector(v)
		if err != nil {
			return Draft{}, err
		}
		d.Vector = vec
	case EncodingFloat, EncodingBinary:
		text, err := c.text(raw)
		if err != nil {
			return Draft{}, err
		}
		d.Text = text
		if _, ok := attrs[c.cfg.TextField]; !ok {
			d.Attributes[c.cfg.TextField] = metadata.String(text)
		}
	default:
		return Draft{}, invalid("", "unsupported encoding %s", enc)
	}
	return d, nil
}

func (c *Codec) key(raw map[string]any) (KeySpec, error) {
	v, ok := raw[c.cfg.IDField]
	if !ok || v == nil {
		if c.cfg.AutoID {
			return Generated(), nil
		}
		return KeySpec{}, invalid(c.cfg.IDField, "is required")
	}
	id, ok := v.(string)
	if !ok {
		return KeySpec{}, invalid(c.cfg.IDField, "must be a string, got %T", v)
	}
	if id == "" {
		return KeySpec{}, invalid(c.cfg.IDField, "must not be empty")
	}
	return Provided(id), nil
}

func (c *Codec) attributes(raw map[string]any) (metadata.Document, error) {
	attrs := make(metadata.Document, len(raw))
	for k, v := range raw {
		if k == c.cfg.IDField || k == c.cfg.VectorField {
			continue
		}
		val, err := metadata.FromAny(v)
		if err != nil {
			return nil, &ValidationError{Field: k, Reason: err.Error()}
		}
		attrs[k] = val
	}
	return attrs, nil
}

func (c *Codec) text(raw map[string]any) (string, error) {
	if v, ok := raw[c.cfg.VectorField]; ok && v != nil {
		if _, isText := v.(string); !isText {
			return "", invalid(c.cfg.VectorField, "must hold text to embed, got %T; use a manual insert for precomputed vectors", v)
		}
	}
	if v, ok := raw[c.cfg.TextField]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return "", invalid(c.cfg.TextField, "must be a string, got %T", v)
		}
		if s == "" {
			return "", invalid(c.cfg.TextField, "must not be empty")
		}
		return s, nil
	}
	if v, ok := raw[c.cfg.VectorField]; ok && v != nil {
		s := v.(string)
		if s == "" {
			return "", invalid(c.cfg.VectorField, "must not be empty")
		}
		return s, nil
	}
	return "", invalid(c.cfg.TextField, "text to embed is required")
}

func (c *Codec) parseVector(v any) ([]float32, error) {
	vec, err := ParseVector(v)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, &ValidationError{Field: c.cfg.VectorField, Reason: ve.Reason}
		}
		return nil, err
	}
	return vec, nil
}

// ParseVector converts a flat numeric sequence into a float32 vector.
// Accepted shapes are []float32, []float64, []int, []int64 and []any whose
// elements are all numbers. Empty and non-finite vectors are rejected.
func ParseVector(v any) ([]float32, error) {
	var out []float32
	switch x := v.(type) {
	case []float32:
		out = slices.Clone(x)
	case []float64:
		out = make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
	case []int:
		out = make([]float32, len(x))
		for i, n := range x {
			out[i] = float32(n)
		}
	case []int64:
		out = make([]float32, len(x))
		for i, n := range x {
			out[i] = float32(n)
		}
	case []any:
		out = make([]float32, len(x))
		for i, e := range x {
			f, ok := toFloat(e)
			if !ok {
				return nil, invalid("", "element %d is %T, not a number", i, e)
			}
			out[i] = f
		}
	case []metadata.Value:
		out = make([]float32, len(x))
		for i, e := range x {
			f, ok := e.AsFloat64()
			if !ok {
				return nil, invalid("", "element %d is %s, not a number", i, e.Kind)
			}
			out[i] = float32(f)
		}
	default:
		return nil, invalid("", "must be a flat sequence of numbers, got %T", v)
	}

	if len(out) == 0 {
		return nil, invalid("", "vector must not be empty")
	}
	for i, f := range out {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, invalid("", "element %d is not finite", i)
		}
	}
	return out, nil
}

func toFloat(v any) (float32, bool) {
	switch n := v.(type) {
	case float32:
		return n, true
	case float64:
		return float32(n), true
	case int:
		return float32(n), true
	case int8:
		return float32(n), true
	case int16:
		return float32(n), true
	case int32:
		return float32(n), true
	case int64:
		return float32(n), true
	case uint8:
		return float32(n), true
	case uint16:
		return float32(n), true
	case uint32:
		return float32(n), true
	case uint64:
		return float32(n), true
	default:
		return 0, false
	}
}

// Patch is a validated partial update.
type Patch struct {
	Attributes metadata.Document
	// Text, when set, is new input for the embedding provider.
	Text *string
	// Vector, when set, replaces the stored vector.
	Vector []float32
}

// EncodePatch validates a partial update for the record stored under key.
// The id field, if present, must equal key. VectorField may hold a numeric
// vector (replace) or a string (re-embed); TextField strings re-embed
// records whose encoding is embedded.
func (c *Codec) EncodePatch(key string, raw map[string]any, enc Encoding) (Patch, error) {
	if raw == nil {
		return Patch{}, invalid("", "update must not be nil")
	}
	if v, ok := raw[c.cfg.IDField]; ok && v != nil {
		if id, _ := v.(string); id != key {
			return Patch{}, invalid(c.cfg.IDField, "key is immutable: cannot change %q to %v", key, v)
		}
	}

	attrs, err := c.attributes(raw)
	if err != nil {
		return Patch{}, err
	}
	p := Patch{Attributes: attrs}

	if v, ok := raw[c.cfg.VectorField]; ok && v != nil {
		if s, isText := v.(string); isText {
			if !enc.Embedded() {
				return Patch{}, invalid(c.cfg.VectorField, "cannot embed text into a %s record", enc)
			}
			if s == "" {
				return Patch{}, invalid(c.cfg.VectorField, "must not be empty")
			}
			p.Text = &s
			if _, ok := attrs[c.cfg.TextField]; !ok {
				p.Attributes[c.cfg.TextField] = metadata.String(s)
			}
		} else {
			vec, err := c.parseVector(v)
			if err != nil {
				return Patch{}, err
			}
			p.Vector = vec
		}
	}

	if p.Text == nil && p.Vector == nil && enc.Embedded() {
		if v, ok := raw[c.cfg.TextField]; ok && v != nil {
			s, ok := v.(string)
			if !ok {
				return Patch{}, invalid(c.cfg.TextField, "must be a string, got %T", v)
			}
			if s == "" {
				return Patch{}, invalid(c.cfg.TextField, "must not be empty")
			}
			p.Text = &s
		}
	}
	return p, nil
}

// Decode flattens a Record back into a raw mapping: attributes, the id
// field and, when includeVector is set and the record has one, the vector
// field as []float32.
func (c *Codec) Decode(r Record, includeVector bool) map[string]any {
	out := r.Attributes.ToAny()
	out[c.cfg.IDField] = r.Key
	if includeVector && len(r.Vector.Float) > 0 {
		out[c.cfg.VectorField] = slices.Clone(r.Vector.Float)
	}
	return out
}
