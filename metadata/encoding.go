package metadata

import (
	"fmt"
	"unique"

	gojson "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

type jsonValue struct {
	Kind Kind             `json:"k"`
	I64  int64            `json:"i,omitempty"`
	F64  float64          `json:"f,omitempty"`
	S    string           `json:"s,omitempty"`
	B    bool             `json:"b,omitempty"`
	A    []Value          `json:"a,omitempty"`
	M    map[string]Value `json:"m,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	aux := jsonValue{Kind: v.Kind, I64: v.I64, F64: v.F64, B: v.B, A: v.A, M: v.M}
	if v.Kind == KindString {
		aux.S = v.s.Value()
	}
	return gojson.Marshal(aux)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var aux jsonValue
	if err := gojson.Unmarshal(data, &aux); err != nil {
		return err
	}
	*v = Value{Kind: aux.Kind, I64: aux.I64, F64: aux.F64, B: aux.B, A: aux.A, M: aux.M}
	if v.Kind == KindString {
		v.s = unique.Make(aux.S)
	}
	return nil
}

var (
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = (*Value)(nil)
)

// EncodeMsgpack writes the value as a two element array: kind, payload.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint8(uint8(v.Kind)); err != nil {
		return err
	}
	switch v.Kind {
	case KindInt:
		return enc.EncodeInt(v.I64)
	case KindFloat:
		return enc.EncodeFloat64(v.F64)
	case KindString:
		return enc.EncodeString(v.s.Value())
	case KindBool:
		return enc.EncodeBool(v.B)
	case KindArray:
		if err := enc.EncodeArrayLen(len(v.A)); err != nil {
			return err
		}
		for i := range v.A {
			if err := v.A[i].EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		keys := Document(v.M).Keys()
		if err := enc.EncodeMapLen(len(keys)); err != nil {
			return err
		}
		for _, k := range keys {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := v.M[k].EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.EncodeNil()
	}
}

// DecodeMsgpack reads a value written by EncodeMsgpack.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("metadata: malformed value: array of %d", n)
	}
	k, err := dec.DecodeUint8()
	if err != nil {
		return err
	}
	kind := Kind(k)
	switch kind {
	case KindInt:
		i, err := dec.DecodeInt64()
		if err != nil {
			return err
		}
		*v = Int(i)
	case KindFloat:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		*v = Float(f)
	case KindString:
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		*v = String(s)
	case KindBool:
		b, err := dec.DecodeBool()
		if err != nil {
			return err
		}
		*v = Bool(b)
	case KindArray:
		l, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		var arr []Value
		if l >= 0 {
			arr = make([]Value, l)
		}
		for i := 0; i < l; i++ {
			if err := arr[i].DecodeMsgpack(dec); err != nil {
				return err
			}
		}
		*v = Array(arr)
	case KindMap:
		l, err := dec.DecodeMapLen()
		if err != nil {
			return err
		}
		var m map[string]Value
		if l >= 0 {
			m = make(map[string]Value, l)
		}
		for i := 0; i < l; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				return err
			}
			var item Value
			if err := item.DecodeMsgpack(dec); err != nil {
				return err
			}
			m[key] = item
		}
		*v = Map(m)
	case KindNull, KindInvalid:
		if err := dec.DecodeNil(); err != nil {
			return err
		}
		*v = Value{Kind: kind}
	default:
		return fmt.Errorf("metadata: unknown kind %d", k)
	}
	return nil
}
