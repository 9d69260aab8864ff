package models

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Upstream records are written by browser code and field types drift
// between releases, so nested fields decode loosely. A field of the wrong
// shape comes out as its zero value. It does not fail the session.

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// looseString reads a JSON string, number or boolean as text.
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		return string(raw)
	}
}

func looseFloat(raw json.RawMessage) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(looseString(raw)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func looseInt(raw json.RawMessage) int {
	v, _ := looseFloat(raw)
	return int(v)
}

func looseBool(raw json.RawMessage) bool {
	if strings.EqualFold(strings.TrimSpace(looseString(raw)), "true") {
		return true
	}
	v, ok := looseFloat(raw)
	return ok && v != 0
}

// looseItems accepts a JSON array or the index-keyed object Firebase returns
// for sparse arrays.
func looseItems(raw json.RawMessage) []CartItem {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '[':
		var items []CartItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		return items
	case '{':
		var byIndex map[string]CartItem
		if err := json.Unmarshal(raw, &byIndex); err != nil {
			return nil
		}
		keys := make([]string, 0, len(byIndex))
		for k := range byIndex {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, errA := strconv.Atoi(keys[i])
			b, errB := strconv.Atoi(keys[j])
			if errA == nil && errB == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		items := make([]CartItem, 0, len(keys))
		for _, k := range keys {
			items = append(items, byIndex[k])
		}
		return items
	}
	return nil
}
