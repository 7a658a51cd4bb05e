package models

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
)

// DecodeJSON decodes data into v keeping the exact text of every number as a
// json.Number. Callers normalise the free-form parts with NormalizeNumbers.
func DecodeJSON(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	return decoder.Decode(v)
}

// NormalizeNumbers replaces every json.Number inside v, descending into maps
// and slices in place. Integral literals become int64, or *big.Int when they do
// not fit; literals with a fraction or an exponent become float64.
func NormalizeNumbers(v any) any {
	switch value := v.(type) {
	case json.Number:
		return numberValue(value)
	case map[string]any:
		for key, item := range value {
			value[key] = NormalizeNumbers(item)
		}

		return value
	case []any:
		for i, item := range value {
			value[i] = NormalizeNumbers(item)
		}

		return value
	}

	return v
}

func numberValue(n json.Number) any {
	literal := n.String()

	if !strings.ContainsAny(literal, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}

		if b, ok := new(big.Int).SetString(literal, 10); ok {
			return b
		}
	}

	if f, err := n.Float64(); err == nil {
		return f
	}

	return literal
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	NormalizeNumbers(m)

	return m
}
