package order

import (
	"cmp"
	"slices"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/fracindex"
)

// OrderByIndex returns the elements in draw order.
//
// Keyed elements are sorted with CompareElements. An element without a key
// stays directly after the element that preceded it in the input (or at
// the front if nothing did), so unkeyed elements keep the sequence they
// were given in until SyncInvalidIndices assigns them keys.
func OrderByIndex(elements []element.Element) []element.Element {
	type run struct {
		head      element.Element
		followers []element.Element
	}

	var leading []element.Element
	runs := make([]run, 0, len(elements))
	for _, e := range elements {
		if e.Index == "" {
			if len(runs) == 0 {
				leading = append(leading, e)
			} else {
				last := &runs[len(runs)-1]
				last.followers = append(last.followers, e)
			}
			continue
		}
		runs = append(runs, run{head: e})
	}

	slices.SortStableFunc(runs, func(a, b run) int {
		return CompareElements(a.head, b.head)
	})

	out := make([]element.Element, 0, len(elements))
	out = append(out, leading...)
	for _, r := range runs {
		out = append(out, r.head)
		out = append(out, r.followers...)
	}
	return out
}

// CompareElements orders two keyed elements by key. Equal keys put the
// less recently touched element first (updated, then version, then id),
// so repair rewrites the one that changed last.
func CompareElements(a, b element.Element) int {
	if c := cmp.Compare(a.Index, b.Index); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Updated, b.Updated); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Version, b.Version); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// IsValidIndex reports whether key is well formed and sorts strictly
// between predecessor and successor. Empty neighbours are unbounded.
func IsValidIndex(key, predecessor, successor string) bool {
	if !fracindex.IsValid(key) {
		return false
	}
	if predecessor != "" && predecessor >= key {
		return false
	}
	if successor != "" && key >= successor {
		return false
	}
	return true
}

// IsOrdered reports whether every key in the collection is valid and
// strictly increasing.
func IsOrdered(elements []element.Element) bool {
	for i := range elements {
		if !IsValidIndex(elements[i].Index, indexAt(elements, i-1), indexAt(elements, i+1)) {
			return false
		}
	}
	return true
}

// indexAt returns the raw key at position i, or "" out of range.
func indexAt(elements []element.Element, i int) string {
	if i < 0 || i >= len(elements) {
		return ""
	}
	return elements[i].Index
}

// boundAt returns the key at position i if it can serve as a generation
// bound, or "" when out of range or malformed.
func boundAt(elements []element.Element, i int) string {
	k := indexAt(elements, i)
	if k == "" || !fracindex.IsValid(k) {
		return ""
	}
	return k
}
