package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AttrPrefix marks attribute keys introduced by the XML decoder.
const AttrPrefix = "@"

// Record is one flat, storage-ready record. Values are scalars or
// JSON-encoded composite strings.
type Record map[string]any

// Options control per-collection normalization behavior.
type Options struct {
	// UnwrapKey names a wrapper field whose inner mapping is lifted to the
	// top level before cleaning. Fields already present at the top level win
	// over lifted fields on collision. Empty disables unwrapping.
	UnwrapKey string
}

// Normalize flattens one raw item into a Record. The input is never
// mutated; a new map is returned.
func Normalize(item map[string]any, opts Options) (Record, error) {
	fields := item
	if opts.UnwrapKey != "" {
		if inner, ok := item[opts.UnwrapKey].(map[string]any); ok {
			merged := make(map[string]any, len(inner)+len(item))
			for k, v := range inner {
				merged[k] = v
			}
			for k, v := range item {
				if k == opts.UnwrapKey {
					continue
				}
				merged[k] = v
			}
			fields = merged
		}
	}

	rec := make(Record, len(fields))
	for key, value := range fields {
		if strings.HasPrefix(key, AttrPrefix) {
			continue
		}
		switch value.(type) {
		case map[string]any, []any:
			cleaned, ok := Clean(value)
			if !ok {
				continue
			}
			encoded, err := EncodeComposite(cleaned)
			if err != nil {
				return nil, fmt.Errorf("encode field %q: %w", key, err)
			}
			rec[key] = encoded
		case nil:
			continue
		default:
			rec[key] = value
		}
	}
	return rec, nil
}

// Clean applies the cleanup rules to an arbitrary decoded value: attribute
// keys are stripped at every level, and empty maps, empty sequences, and nil
// values collapse to absent. The second return reports whether anything
// remains. The input is never mutated.
func Clean(v any) (any, bool) {
	switch val := v.(type) {
	case map[string]any:
		cleaned := make(map[string]any, len(val))
		for k, elem := range val {
			if strings.HasPrefix(k, AttrPrefix) {
				continue
			}
			cv, ok := Clean(elem)
			if !ok {
				continue
			}
			cleaned[k] = cv
		}
		if len(cleaned) == 0 {
			return nil, false
		}
		return cleaned, true
	case []any:
		cleaned := make([]any, 0, len(val))
		for _, elem := range val {
			cv, ok := Clean(elem)
			if !ok {
				continue
			}
			cleaned = append(cleaned, cv)
		}
		if len(cleaned) == 0 {
			return nil, false
		}
		return cleaned, true
	case nil:
		return nil, false
	default:
		return val, true
	}
}

// EncodeComposite serializes a cleaned composite value to canonical JSON
// text. Map keys are emitted in sorted order, so equal values encode to
// equal strings.
func EncodeComposite(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal composite: %w", err)
	}
	return string(data), nil
}

// DecodeComposite reverses EncodeComposite.
func DecodeComposite(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("unmarshal composite: %w", err)
	}
	return v, nil
}
