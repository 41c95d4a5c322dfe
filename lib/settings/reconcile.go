package settings

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Digest returns a content hash of v. Values with the same JSON encoding
// share a digest, so 5, int64(5) and 5.0 compare equal no matter which
// backend decoded them.
func Digest(v any) uint64 {
	if v == nil {
		return 0
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return xxhash.Sum64String(fmt.Sprintf("%T:%#v", v, v))
	}
	return xxhash.Sum64(raw)
}

// sameValue compares two values by content.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Digest(a) == Digest(b)
}

// Reconcile picks one value out of the answers of several backends:
// no answer yields (nil, false), a single answer wins, otherwise the value
// reported most often wins and ties go to the earliest answer.
func Reconcile(values []any) (any, bool) {
	switch len(values) {
	case 0:
		return nil, false
	case 1:
		return values[0], true
	}

	counts := make(map[uint64]int, len(values))
	order := make([]uint64, 0, len(values))
	first := make(map[uint64]any, len(values))
	for _, v := range values {
		d := Digest(v)
		if _, seen := counts[d]; !seen {
			order = append(order, d)
			first[d] = v
		}
		counts[d]++
	}

	best := order[0]
	for _, d := range order[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return first[best], true
}

// reconcileAll merges complete backend snapshots key by key.
func reconcileAll(snapshots []map[string]any) map[string]any {
	answers := make(map[string][]any)
	var keys []string
	for _, snap := range snapshots {
		for k, v := range snap {
			if _, ok := answers[k]; !ok {
				keys = append(keys, k)
			}
			answers[k] = append(answers[k], v)
		}
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := Reconcile(answers[k]); ok {
			out[k] = v
		}
	}
	return out
}
