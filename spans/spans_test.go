package spans

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokencls/labels"
)

func perScheme(t *testing.T) *labels.Scheme {
	t.Helper()
	s, err := labels.New([]string{"O", "B-PER", "I-PER"})
	require.NoError(t, err)
	return s
}

// Reference example: a PER span closed by an "O" boundary mid-sequence, and
// a second span still open when the sequence ends.
func TestDecodeReference(t *testing.T) {
	scheme := perScheme(t)
	tokens := []string{"j", "o", "h", "n", " ", "s", "m", "i", "t", "h"}
	labelIDs := []int{1, 2, 2, 2, 0, 1, 2, 2, 2, 2}

	got, err := Decode(labelIDs, tokens, scheme)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Span{Pos: [2]int{0, 2}, Entity: "john", Label: "PER"}, got[0])
	assert.Equal(t, Span{Pos: [2]int{5, 9}, Entity: "smith", Label: ""}, got[1])
}

func TestDecodeAllOutside(t *testing.T) {
	scheme := perScheme(t)
	got, err := Decode([]int{0, 0, 0, 0}, []string{"a", "b", "c", "d"}, scheme)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeEmpty(t *testing.T) {
	scheme := perScheme(t)
	got, err := Decode(nil, nil, scheme)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeTrailingBegin(t *testing.T) {
	scheme := perScheme(t)
	got, err := Decode([]int{0, 0, 1}, []string{"a", "b", "c"}, scheme)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Span{Pos: [2]int{2, 2}, Entity: "c", Label: ""}, got[0])
}

// An "O" right after a "B-" closes a single-token entity. The recorded end
// index is one less than the start; the entity text still covers the single
// begin token. That asymmetry is part of the output format.
func TestDecodeSingleTokenEntity(t *testing.T) {
	scheme := perScheme(t)
	got, err := Decode([]int{1, 0, 0}, []string{"x", "y", "z"}, scheme)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Span{Pos: [2]int{0, -1}, Entity: "x", Label: "PER"}, got[0])
}

func TestDecodeConsecutiveBegins(t *testing.T) {
	scheme := perScheme(t)
	tokens := []string{"a", "b", "c", "d"}
	got, err := Decode([]int{1, 2, 1, 0}, tokens, scheme)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// First span closes at the second B- with no gap.
	assert.Equal(t, Span{Pos: [2]int{0, 0}, Entity: "ab", Label: "PER"}, got[0])
	assert.Equal(t, Span{Pos: [2]int{2, 1}, Entity: "c", Label: "PER"}, got[1])
}

// A continuation tag of a different type neither closes the open span nor
// opens a new one; it is folded into the open span silently.
func TestDecodeMismatchedInsideTag(t *testing.T) {
	scheme, err := labels.New([]string{"O", "B-PER", "I-PER", "B-ORG", "I-ORG"})
	require.NoError(t, err)
	tokens := []string{"a", "b", "c", "d", "e"}
	got, err := Decode([]int{1, 2, 4, 2, 0}, tokens, scheme)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Span{Pos: [2]int{0, 2}, Entity: "abcd", Label: "PER"}, got[0])
}

// An I- tag with no open span is ignored entirely.
func TestDecodeOrphanInsideTag(t *testing.T) {
	scheme := perScheme(t)
	got, err := Decode([]int{0, 2, 2, 0}, []string{"a", "b", "c", "d"}, scheme)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeIsPure(t *testing.T) {
	scheme := perScheme(t)
	tokens := []string{"j", "o", "h", "n", " ", "s", "m", "i", "t", "h"}
	labelIDs := []int{1, 2, 2, 2, 0, 1, 2, 2, 2, 2}

	first, err := Decode(labelIDs, tokens, scheme)
	require.NoError(t, err)
	second, err := Decode(labelIDs, tokens, scheme)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecodeSpansAreOrdered(t *testing.T) {
	scheme := perScheme(t)
	tokens := strings.Split("abcdefghij", "")
	labelIDs := []int{1, 0, 1, 2, 0, 1, 0, 0, 1, 2}

	got, err := Decode(labelIDs, tokens, scheme)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Pos[0], got[i-1].Pos[0])
	}
}

// Every token index covered by a span is covered exactly once, and span
// text always comes from the start of the span onward.
func TestDecodeCoverage(t *testing.T) {
	scheme := perScheme(t)
	tokens := strings.Split("abcdefgh", "")
	labelIDs := []int{0, 1, 2, 0, 1, 2, 2, 0}

	got, err := Decode(labelIDs, tokens, scheme)
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, span := range got {
		assert.True(t, strings.HasPrefix(span.Entity, tokens[span.Pos[0]]))
		for i := span.Pos[0]; i <= span.Pos[1]; i++ {
			assert.False(t, seen[i], "token %d covered twice", i)
			seen[i] = true
		}
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	scheme := perScheme(t)
	_, err := Decode([]int{0, 0}, []string{"a"}, scheme)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestDecodeLabelOutOfRange(t *testing.T) {
	scheme := perScheme(t)
	_, err := Decode([]int{0, 7}, []string{"a", "b"}, scheme)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")

	_, err = Decode([]int{labels.IgnoreIndex}, []string{"a"}, scheme)
	require.Error(t, err)
}
