package order

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/scenesync/internal/element"
)

func el(id, index string) element.Element {
	return element.Element{ID: id, Type: "rectangle", Version: 1, VersionNonce: 1, Index: index}
}

func ids(elements []element.Element) []string {
	out := make([]string, len(elements))
	for i, e := range elements {
		out[i] = e.ID
	}
	return out
}

func indices(elements []element.Element) []string {
	out := make([]string, len(elements))
	for i, e := range elements {
		out[i] = e.Index
	}
	return out
}

func TestOrderByIndex(t *testing.T) {
	tests := []struct {
		name  string
		input []element.Element
		want  []string
	}{
		{
			name:  "sorted by key",
			input: []element.Element{el("c", "a2"), el("a", "a0"), el("b", "a1")},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "tie broken by id",
			input: []element.Element{el("y", "a0"), el("x", "a0")},
			want:  []string{"x", "y"},
		},
		{
			name: "tie broken by recency",
			input: []element.Element{
				{ID: "a", Version: 1, Index: "a0", Updated: 9000},
				{ID: "z", Version: 1, Index: "a0", Updated: 1000},
			},
			want: []string{"z", "a"},
		},
		{
			name:  "unkeyed follows predecessor",
			input: []element.Element{el("c", "a2"), el("a", "a0"), el("u", ""), el("b", "a1")},
			want:  []string{"a", "u", "b", "c"},
		},
		{
			name:  "leading unkeyed stay in front",
			input: []element.Element{el("u", ""), el("a", "a1"), el("b", "a0")},
			want:  []string{"u", "b", "a"},
		},
		{
			name:  "empty",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OrderByIndex(tt.input)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestOrderByIndex_DoesNotMutateInput(t *testing.T) {
	input := []element.Element{el("b", "a1"), el("a", "a0")}
	_ = OrderByIndex(input)
	assert.Equal(t, []string{"b", "a"}, ids(input))
}

func TestCompareElements(t *testing.T) {
	assert.Negative(t, CompareElements(el("z", "a0"), el("a", "a1")))
	assert.Negative(t, CompareElements(el("a", "a0"), el("b", "a0")))
	assert.Zero(t, CompareElements(el("a", "a0"), el("a", "a0")))
	assert.Positive(t, CompareElements(el("a", "a1V"), el("a", "a1")))
}

func TestCompareElements_EqualKeysPutRecentLast(t *testing.T) {
	stale := el("z", "a0")
	stale.Updated = 1000
	fresh := el("a", "a0")
	fresh.Updated = 9000
	assert.Negative(t, CompareElements(stale, fresh), "older update sorts first")

	older := el("z", "a0")
	older.Version = 2
	newer := el("a", "a0")
	newer.Version = 5
	assert.Negative(t, CompareElements(older, newer), "lower version sorts first on equal update")
}

func TestIsValidIndex(t *testing.T) {
	tests := []struct {
		key, pred, succ string
		want            bool
	}{
		{"a0", "", "", true},
		{"a1", "a0", "a2", true},
		{"a0", "a0", "", false},
		{"a2", "", "a1", false},
		{"", "", "", false},
		{"zzz", "", "", false},
		{"a10", "", "", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidIndex(tt.key, tt.pred, tt.succ), "key=%q pred=%q succ=%q", tt.key, tt.pred, tt.succ)
	}
}

func TestIsOrdered(t *testing.T) {
	assert.True(t, IsOrdered(nil))
	assert.True(t, IsOrdered([]element.Element{el("a", "a0"), el("b", "a0V"), el("c", "a1")}))
	assert.False(t, IsOrdered([]element.Element{el("a", "a0"), el("b", "a0")}))
	assert.False(t, IsOrdered([]element.Element{el("a", "a1"), el("b", "a0")}))
	assert.False(t, IsOrdered([]element.Element{el("a", "a0"), el("b", "")}))
}
