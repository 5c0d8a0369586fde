package permission

import (
	"sort"
)

// HasPermission reports whether any record grants exactly (resourceType, actionType).
func HasPermission(recs []Record, resourceType, actionType string) bool {
	for i := range recs {
		if recs[i].ResourceType == resourceType && recs[i].ActionType == actionType {
			return true
		}
	}

	return false
}

// BatchCheck matches every check against recs. The result is keyed by Check.Key.
func BatchCheck(recs []Record, checks []Check) map[string]bool {
	granted := make(map[Check]struct{}, len(recs))
	for i := range recs {
		granted[Check{ResourceType: recs[i].ResourceType, ActionType: recs[i].ActionType}] = struct{}{}
	}

	out := make(map[string]bool, len(checks))

	for _, c := range checks {
		_, ok := granted[c]
		out[c.Key()] = ok
	}

	return out
}

// Canonical returns checks deduplicated and sorted by resource type, then action type.
// Two lists holding the same pairs in any order have the same canonical form.
func Canonical(checks []Check) []Check {
	seen := make(map[Check]struct{}, len(checks))
	out := make([]Check, 0, len(checks))

	for _, c := range checks {
		if _, dup := seen[c]; dup {
			continue
		}

		seen[c] = struct{}{}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ResourceType != out[j].ResourceType {
			return out[i].ResourceType < out[j].ResourceType
		}

		return out[i].ActionType < out[j].ActionType
	})

	return out
}

// Dedupe drops repeated records by id, keeping the first occurrence.
func Dedupe(recs []Record) []Record {
	seen := make(map[uint]struct{}, len(recs))
	out := recs[:0:0]

	for _, r := range recs {
		if _, dup := seen[r.ID]; dup {
			continue
		}

		seen[r.ID] = struct{}{}
		out = append(out, r)
	}

	return out
}
