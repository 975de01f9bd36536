// Package retention prunes timestamped items such as old build logs.
// Policies are additive: an item survives if any rule wants to keep it.
package retention

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dglib/buildpipe/src/config"
)

// Item is a named, timestamped entity that can be pruned.
type Item struct {
	Name      string
	CreatedAt time.Time
}

// Result captures what the retention engine did.
type Result struct {
	Matched int      // items offered by the store
	Kept    int      // items kept by policy
	Deleted []string // items successfully deleted
	Errors  []error  // errors from individual deletes
}

// Store abstracts listing and deleting items.
type Store interface {
	List(ctx context.Context) ([]Item, error)
	Delete(ctx context.Context, name string) error
}

// Apply lists the store's items, sorts them newest-first, applies policy
// and deletes everything not kept. Delete failures are collected in the
// result rather than stopping the sweep.
func Apply(ctx context.Context, store Store, policy config.RetentionPolicy) (*Result, error) {
	if !policy.Active() {
		return nil, fmt.Errorf("retention: no active policy (all values zero)")
	}

	result := &Result{}

	candidates, err := store.List(ctx)
	if err != nil {
		return result, fmt.Errorf("retention: listing items: %w", err)
	}
	result.Matched = len(candidates)
	if len(candidates) == 0 {
		return result, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	keepSet := ApplyPolicies(candidates, policy)
	for i, item := range candidates {
		if keepSet[i] {
			result.Kept++
			continue
		}
		if err := store.Delete(ctx, item.Name); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("deleting %s: %w", item.Name, err))
		} else {
			result.Deleted = append(result.Deleted, item.Name)
		}
	}
	return result, nil
}

// ApplyPolicies returns a keep decision for each candidate.
// candidates must be sorted newest-first.
func ApplyPolicies(candidates []Item, policy config.RetentionPolicy) []bool {
	keepSet := make([]bool, len(candidates))

	for i := 0; i < len(candidates) && i < policy.KeepLast; i++ {
		keepSet[i] = true
	}
	if policy.KeepDaily > 0 {
		ApplyTimeBucket(candidates, keepSet, policy.KeepDaily, TruncateToDay)
	}
	if policy.KeepWeekly > 0 {
		ApplyTimeBucket(candidates, keepSet, policy.KeepWeekly, TruncateToWeek)
	}
	if policy.KeepMonthly > 0 {
		ApplyTimeBucket(candidates, keepSet, policy.KeepMonthly, TruncateToMonth)
	}
	return keepSet
}

// BucketFn truncates a time to the start of its bucket period.
type BucketFn func(time.Time) time.Time

// ApplyTimeBucket keeps the newest item in each of the last count distinct
// buckets. candidates must be sorted newest-first.
func ApplyTimeBucket(candidates []Item, keepSet []bool, count int, bucket BucketFn) {
	seen := make(map[time.Time]bool)
	for i, item := range candidates {
		if item.CreatedAt.IsZero() {
			continue
		}
		key := bucket(item.CreatedAt)
		if seen[key] {
			continue
		}
		seen[key] = true
		keepSet[i] = true
		if len(seen) >= count {
			break
		}
	}
}

// TruncateToDay truncates a time to the start of its day.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TruncateToWeek truncates a time to the start of its ISO week (Monday).
func TruncateToWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	d := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

// TruncateToMonth truncates a time to the first day of its month.
func TruncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
