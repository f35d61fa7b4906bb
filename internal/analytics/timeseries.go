package analytics

import "sort"

// Latest returns the record with the maximum order value for each partition
// key. Ties are broken deterministically: the earliest record in input order
// wins, since a later record only replaces the current one when it is
// strictly greater.
func Latest[T any](series []T, key func(T) int64, less func(a, b T) bool) map[int64]T {
	latest := make(map[int64]T)
	for _, rec := range series {
		k := key(rec)
		cur, ok := latest[k]
		if !ok || less(cur, rec) {
			latest[k] = rec
		}
	}
	return latest
}

// Change pairs a record with its percent change from the previous record in
// the same partition. Pct is nil for the first record of a partition and
// when the previous value is exactly 0.
type Change[T any] struct {
	Record T
	Pct    *float64
}

// PercentChanges orders each partition ascending and computes
// (current - previous) / previous * 100 for every record after the first.
// Partitions are processed independently; records never see a previous
// value from another partition. Within a partition, equal order values keep
// their input order (stable sort), so results are deterministic.
func PercentChanges[T any](series []T, key func(T) int64, less func(a, b T) bool, value func(T) float64) []Change[T] {
	groups := make(map[int64][]T)
	var order []int64
	for _, rec := range series {
		k := key(rec)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], rec)
	}

	out := make([]Change[T], 0, len(series))
	for _, k := range order {
		group := groups[k]
		sort.SliceStable(group, func(i, j int) bool { return less(group[i], group[j]) })

		for i, rec := range group {
			change := Change[T]{Record: rec}
			if i > 0 {
				prev := value(group[i-1])
				if prev != 0 {
					pct := (value(rec) - prev) / prev * 100
					change.Pct = &pct
				}
			}
			out = append(out, change)
		}
	}
	return out
}
