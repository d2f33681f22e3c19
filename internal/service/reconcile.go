package service

import (
	"sort"

	"github.com/noah-isme/campus-placement-api/internal/models"
)

// DiffQualified computes the pure set difference between the recorded
// qualified set and a newly submitted one. Output slices are sorted so the
// diff is deterministic regardless of input order.
func DiffQualified(previous, submitted []string) models.ResultDiff {
	prevSet := toSet(previous)
	nextSet := toSet(submitted)

	diff := models.ResultDiff{}
	for id := range nextSet {
		if _, ok := prevSet[id]; ok {
			diff.Unchanged = append(diff.Unchanged, id)
		} else {
			diff.Added = append(diff.Added, id)
		}
	}
	for id := range prevSet {
		if _, ok := nextSet[id]; !ok {
			diff.Removed = append(diff.Removed, id)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Unchanged)
	return diff
}

// ApplyDiff produces the qualified set that results from applying the diff
// to the given base set. Set union minus removal: applying the same diff
// twice yields the same result as applying it once.
func ApplyDiff(base []string, diff models.ResultDiff) []string {
	result := toSet(base)
	for _, id := range diff.Added {
		result[id] = struct{}{}
	}
	for _, id := range diff.Removed {
		delete(result, id)
	}

	out := make([]string, 0, len(result))
	for id := range result {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
