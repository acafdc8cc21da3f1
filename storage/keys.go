package storage

import (
	"net/url"

	"github.com/hupe1980/entitydb/kv"
	"github.com/hupe1980/entitydb/record"
)

// Key layout (relative to the store name):
//
//	{name}:r:{key}          → codec-encoded stored record
//	{name}:e:{group}:{key}  → empty entry, present iff the record is in group
//	{name}:m:dim:{group}    → established dimension, decimal
//	{name}:m:quant          → codec-encoded binary quantizer thresholds
//
// Record keys and the name are query-escaped so they never contain a kv
// separator. Lexicographic order of escaped keys is not the order of raw
// keys; callers needing sorted keys sort after listing.

const (
	nsRecord  = "r"
	nsIndex   = "e"
	nsMeta    = "m"
	metaDim   = "dim"
	metaQuant = "quant"
)

func escape(s string) string { return url.QueryEscape(s) }

func unescape(s string) (string, error) { return url.QueryUnescape(s) }

func (a *Adapter) recordKey(key string) kv.Key {
	return kv.Key{a.name, nsRecord, escape(key)}
}

func (a *Adapter) recordPrefix() kv.Key {
	return kv.Key{a.name, nsRecord}
}

func (a *Adapter) indexKey(g record.Group, key string) kv.Key {
	return kv.Key{a.name, nsIndex, string(g), escape(key)}
}

func (a *Adapter) indexPrefix(g record.Group) kv.Key {
	return kv.Key{a.name, nsIndex, string(g)}
}

func (a *Adapter) dimKey(g record.Group) kv.Key {
	return kv.Key{a.name, nsMeta, metaDim, string(g)}
}

func (a *Adapter) quantKey() kv.Key {
	return kv.Key{a.name, nsMeta, metaQuant}
}

// lastSegment decodes the record key from a listed kv key.
func lastSegment(k kv.Key) (string, error) {
	if len(k) == 0 {
		return "", nil
	}
	return unescape(k[len(k)-1])
}
