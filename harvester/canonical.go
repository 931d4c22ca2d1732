package harvester

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// Canonicalize returns a normalized deep copy of a decoded dataset value.
// Nested objects become plain map[string]interface{} and nested lists plain
// []interface{}, so that two datasets with the same logical content compare
// and serialize identically no matter how the source formatted them.
// Canonicalizing an already canonical value is a no-op.
func Canonicalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Canonicalize(val)
		}
		return out
	case []interface{}:
		// list order is semantically meaningful (ordered distributions,
		// keywords), keep it
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Canonicalize(val)
		}
		return out
	default:
		return v
	}
}

// CanonicalJSON serializes a canonical value with object keys written in
// lexicographic order at every nesting level.
func CanonicalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return errors.Wrap(err, "cannot serialize object key")
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, val := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, val); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return errors.Wrap(err, "cannot serialize canonical value")
		}
		buf.Write(b)
		return nil
	}
}

// HashDataset returns the hex sha256 digest of the dataset's canonical form.
// The digest is stable across key ordering and changes whenever any field
// value changes. The hasher never sees raw feed bytes, only the canonical
// form.
func HashDataset(dataset map[string]interface{}) (string, error) {
	b, err := CanonicalJSON(Canonicalize(dataset))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
