// Package lock serializes identify requests that touch overlapping
// fingerprints. Without serialization, two concurrent requests sharing an
// email can each observe "no existing primary" and create two clusters that
// stay split until a later request bridges them; locking the fingerprint keys
// for the duration of the lookup-then-write sequence closes that window.
package lock

import (
	"context"
	"sort"
)

// Locker acquires exclusive ownership of a set of fingerprint keys and
// returns a release function. Implementations must tolerate overlapping key
// sets from concurrent callers without deadlocking; both implementations here
// do so by acquiring keys in sorted order.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

// Nop is a Locker that never blocks. It reproduces the reference behavior,
// including its concurrent double-primary window.
type Nop struct{}

func (Nop) Acquire(context.Context, []string) (func(), error) {
	return func() {}, nil
}

// sortedUnique returns the keys deduplicated and in lexical order, fixing the
// acquisition order across callers.
func sortedUnique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
