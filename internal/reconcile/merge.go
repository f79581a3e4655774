// Package reconcile merges the remote, cached and pending views of one scope
// into a single ordered history, and applies optimistic list mutations.
package reconcile

import (
	"slices"
	"time"
)

// Item is anything that can appear in a reconciled view.
type Item interface {
	ItemID() string
	SortTime() time.Time
}

// Entry is one row of a reconciled view.
type Entry[T Item] struct {
	Item      T    `json:"item"`
	IsPending bool `json:"isPending"`
}

// Merge builds one deduplicated view, newest first. Remote records win on id
// collisions. Pending items replace cached copies of the same id. Ties keep
// pending items ahead of the rest, then remote order, then cache order.
func Merge[T Item](remote, local, pending []T) []Entry[T] {
	seen := make(map[string]bool, len(remote)+len(local)+len(pending))
	settled := make([]Entry[T], 0, len(remote)+len(local))
	for _, r := range remote {
		if seen[r.ItemID()] {
			continue
		}
		seen[r.ItemID()] = true
		settled = append(settled, Entry[T]{Item: r})
	}

	queued := make([]Entry[T], 0, len(pending))
	for _, p := range pending {
		if seen[p.ItemID()] {
			continue
		}
		seen[p.ItemID()] = true
		queued = append(queued, Entry[T]{Item: p, IsPending: true})
	}

	for _, l := range local {
		if seen[l.ItemID()] {
			continue
		}
		seen[l.ItemID()] = true
		settled = append(settled, Entry[T]{Item: l})
	}

	out := append(queued, settled...)
	slices.SortStableFunc(out, func(a, b Entry[T]) int {
		return b.Item.SortTime().Compare(a.Item.SortTime())
	})
	return out
}

// Items strips the pending flags.
func Items[T Item](entries []Entry[T]) []T {
	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.Item
	}
	return out
}
