package order

import (
	"slices"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/fracindex"
)

// SyncInvalidIndices rewrites every missing, malformed, duplicated or
// out-of-order key with the fewest rewrites the neighbourhood allows.
// It returns the repaired copy and the number of keys that changed.
func SyncInvalidIndices(elements []element.Element) ([]element.Element, int) {
	out := slices.Clone(elements)
	groups := invalidIndexGroups(out)
	if len(groups) == 0 {
		return out, 0
	}

	updates, err := generateIndices(out, groups)
	if err == nil {
		candidate := applyIndices(out, updates)
		if IsOrdered(candidate) {
			return candidate, countChanged(elements, candidate)
		}
	}

	// The local repair could not restore a total order; renumber the whole
	// collection, keeping the current sequence.
	candidate, err := regenerateAll(out)
	if err != nil {
		return out, 0
	}
	return candidate, countChanged(elements, candidate)
}

// SyncMovedIndices regenerates keys for elements that were just moved in
// the sequence (z-order changes), leaving every other key alone. When the
// moved runs cannot be keyed between their neighbours it falls back to
// SyncInvalidIndices.
func SyncMovedIndices(elements []element.Element, moved map[string]bool) ([]element.Element, int) {
	out := slices.Clone(elements)
	groups := movedIndexGroups(out, moved)
	if len(groups) == 0 {
		return SyncInvalidIndices(out)
	}

	updates, err := generateIndices(out, groups)
	if err != nil {
		return SyncInvalidIndices(out)
	}
	candidate := applyIndices(out, updates)
	if err := ValidateIndices(candidate, ValidateOptions{ShouldThrow: true, IncludeBoundText: true, IgnoreLogs: true}); err != nil {
		return SyncInvalidIndices(out)
	}
	return candidate, countChanged(elements, candidate)
}

// invalidIndexGroups finds contiguous runs of elements whose keys are not
// valid relative to the nearest valid neighbours. Each group is laid out as
// [lowerBound, i, i+1, ..., upperBound]; the bounds are positions of
// elements that keep their keys (or -1 / past-the-end for open bounds).
func invalidIndexGroups(elements []element.Element) [][]int {
	var groups [][]int
	lowerIdx, upperIdx := -1, 0

	lowerBound := func(i int) (string, int) {
		lower := boundAt(elements, lowerIdx)
		candidate := boundAt(elements, i-1)
		if candidate != "" && (lower == "" || candidate > lower) {
			return candidate, i - 1
		}
		return lower, lowerIdx
	}

	upperBound := func(i int) (string, int) {
		upper := boundAt(elements, upperIdx)
		if upper != "" && i < upperIdx {
			return upper, upperIdx
		}
		j := upperIdx
		for {
			j++
			if j >= len(elements) {
				return "", j
			}
			candidate := boundAt(elements, j)
			if candidate != "" && (upper == "" || candidate > upper) {
				return candidate, j
			}
		}
	}

	i := 0
	for i < len(elements) {
		var lower, upper string
		lower, lowerIdx = lowerBound(i)
		upper, upperIdx = upperBound(i)

		if IsValidIndex(elements[i].Index, lower, upper) {
			i++
			continue
		}

		group := []int{lowerIdx, i}
		for i++; i < len(elements); i++ {
			nextLower, nextLowerIdx := lowerBound(i)
			nextUpper, nextUpperIdx := upperBound(i)
			if IsValidIndex(elements[i].Index, nextLower, nextUpper) {
				break
			}
			lowerIdx, upperIdx = nextLowerIdx, nextUpperIdx
			group = append(group, i)
		}
		group = append(group, upperIdx)
		groups = append(groups, group)
	}
	return groups
}

// movedIndexGroups returns the contiguous runs of moved elements, each
// bracketed by its unmoved neighbours.
func movedIndexGroups(elements []element.Element, moved map[string]bool) [][]int {
	var groups [][]int
	i := 0
	for i < len(elements) {
		if !moved[elements[i].ID] {
			i++
			continue
		}
		group := []int{i - 1, i}
		for i++; i < len(elements) && moved[elements[i].ID]; i++ {
			group = append(group, i)
		}
		group = append(group, i)
		groups = append(groups, group)
	}
	return groups
}

// generateIndices computes replacement keys for each group, keyed by the
// position of the element to rewrite.
func generateIndices(elements []element.Element, groups [][]int) (map[int]string, error) {
	updates := make(map[int]string)
	for _, group := range groups {
		lower, upper := group[0], group[len(group)-1]
		members := group[1 : len(group)-1]
		keys, err := fracindex.NKeysBetween(boundAt(elements, lower), boundAt(elements, upper), len(members))
		if err != nil {
			return nil, err
		}
		for j, pos := range members {
			updates[pos] = keys[j]
		}
	}
	return updates, nil
}

func applyIndices(elements []element.Element, updates map[int]string) []element.Element {
	out := slices.Clone(elements)
	for pos, key := range updates {
		out[pos].Index = key
	}
	return out
}

func regenerateAll(elements []element.Element) ([]element.Element, error) {
	keys, err := fracindex.NKeysBetween("", "", len(elements))
	if err != nil {
		return nil, err
	}
	out := slices.Clone(elements)
	for i := range out {
		out[i].Index = keys[i]
	}
	return out, nil
}

func countChanged(before, after []element.Element) int {
	n := 0
	for i := range after {
		if i >= len(before) || before[i].Index != after[i].Index {
			n++
		}
	}
	return n
}
