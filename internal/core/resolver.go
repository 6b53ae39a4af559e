package core

import (
	"sort"
)

// SnapshotBuckets returns a sorted copy of the enabled buckets.
// Order is ascending priority with ties broken by bucket ID.
func SnapshotBuckets(buckets []Bucket) []Bucket {
	snapshot := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		if b.Enabled {
			snapshot = append(snapshot, b)
		}
	}

	sort.SliceStable(snapshot, func(i, j int) bool {
		if snapshot[i].Priority != snapshot[j].Priority {
			return snapshot[i].Priority < snapshot[j].Priority
		}
		return snapshot[i].ID < snapshot[j].ID
	})

	return snapshot
}

// Resolve returns the first bucket in evaluation order that claims the email.
// The boolean is false when no bucket matches; callers then leave the email
// for manual review with no automated action.
func Resolve(buckets []Bucket, e *Email) (*Bucket, bool) {
	return resolveSnapshot(SnapshotBuckets(buckets), e)
}

// resolveSnapshot walks an already sorted snapshot
func resolveSnapshot(snapshot []Bucket, e *Email) (*Bucket, bool) {
	for i := range snapshot {
		if Matches(&snapshot[i], e) {
			b := snapshot[i]
			return &b, true
		}
	}
	return nil, false
}
