package contracts

import (
	"sort"
	"strings"
)

// Universe is the set of instruments the pipeline actively tracks
// ⭐ SSOT: index members ∪ watchlist, handed from S1 to every fetch and derive stage
type Universe struct {
	codes []string
	set   map[string]struct{}
}

// NewUniverse builds a de-duplicated, sorted universe
func NewUniverse(codes ...string) Universe {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		set[code] = struct{}{}
	}

	sorted := make([]string, 0, len(set))
	for code := range set {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)

	return Universe{codes: sorted, set: set}
}

// Codes returns the instrument ids in ascending order
func (u Universe) Codes() []string {
	out := make([]string, len(u.codes))
	copy(out, u.codes)
	return out
}

// Contains reports whether code is tracked
func (u Universe) Contains(code string) bool {
	_, ok := u.set[code]
	return ok
}

// Len returns the number of tracked instruments
func (u Universe) Len() int {
	return len(u.codes)
}

// IsEmpty reports whether nothing is tracked
func (u Universe) IsEmpty() bool {
	return len(u.codes) == 0
}

// Intersect keeps the codes that are tracked, preserving their order and
// dropping duplicates
func (u Universe) Intersect(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if !u.Contains(code) {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// Pool scopes a screening query
type Pool string

const (
	PoolIndex     Pool = "index"
	PoolWatchlist Pool = "watchlist"
	PoolAll       Pool = "all"
)

// ParsePool validates a pool name. Matching is case-insensitive.
func ParsePool(s string) (Pool, bool) {
	switch p := Pool(strings.ToLower(strings.TrimSpace(s))); p {
	case PoolIndex, PoolWatchlist, PoolAll:
		return p, true
	}
	return "", false
}
