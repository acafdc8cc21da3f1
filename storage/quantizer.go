package storage

import (
	"context"
	"errors"
	"slices"

	"github.com/hupe1980/entitydb/kv"
)

// QuantizerParams are the binary quantizer thresholds persisted next to
// the dimension registry. Stored codes are only comparable with query
// codes produced under the same thresholds.
type QuantizerParams struct {
	Threshold float32   `msgpack:"t" json:"t"`
	Means     []float32 `msgpack:"m,omitempty" json:"m,omitempty"`
}

// Equal reports whether p and o quantize every vector the same way.
// Per-dimension means take precedence over the global threshold.
func (p QuantizerParams) Equal(o QuantizerParams) bool {
	if len(p.Means) > 0 || len(o.Means) > 0 {
		return slices.Equal(p.Means, o.Means)
	}
	return p.Threshold == o.Threshold
}

// Quantizer returns the persisted quantizer parameters. ok is false when
// none are stored.
func (a *Adapter) Quantizer(ctx context.Context) (p QuantizerParams, ok bool, err error) {
	data, err := a.store.Get(ctx, a.quantKey())
	if errors.Is(err, kv.ErrNotFound) {
		return QuantizerParams{}, false, nil
	}
	if err != nil {
		return QuantizerParams{}, false, err
	}
	if err := a.codec.Unmarshal(data, &p); err != nil {
		return QuantizerParams{}, false, &DecodeError{Key: metaQuant, Err: err}
	}
	return p, true, nil
}

// EstablishQuantizer persists p unless parameters are already stored and
// returns the parameters in effect; the first writer wins.
func (a *Adapter) EstablishQuantizer(ctx context.Context, p QuantizerParams) (QuantizerParams, error) {
	a.dimMu.Lock()
	defer a.dimMu.Unlock()

	cur, ok, err := a.Quantizer(ctx)
	if err != nil || ok {
		return cur, err
	}
	data, err := a.codec.Marshal(&p)
	if err != nil {
		return QuantizerParams{}, err
	}
	if err := a.store.Set(ctx, a.quantKey(), data); err != nil {
		return QuantizerParams{}, err
	}
	return p, nil
}
