package wordpiece

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokencls/tokenizers/api"
)

func testVocab() []string {
	return []string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
		"hello", "world", "un", "##aff", "##able", ",",
		"北", "京",
	}
}

func newTestTokenizer(t *testing.T, opts Options) *Tokenizer {
	t.Helper()
	tok, err := New(testVocab(), opts)
	require.NoError(t, err)
	return tok
}

func TestEncodeBasic(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	assert.Equal(t, []int{5, 6}, tok.Encode("hello world"))
	// Punctuation splits out as its own token.
	assert.Equal(t, []int{5, 10, 6}, tok.Encode("hello, world"))
}

func TestEncodeWordPieces(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	// "unaffable" -> "un" + "##aff" + "##able"
	assert.Equal(t, []int{7, 8, 9}, tok.Encode("unaffable"))
	// No matchable piece at all -> [UNK] for the whole word.
	assert.Equal(t, []int{1}, tok.Encode("xyz"))
	// Partial match that dead-ends also collapses to [UNK].
	assert.Equal(t, []int{1}, tok.Encode("unxyz"))
}

func TestEncodeCJKSplitsPerCharacter(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	assert.Equal(t, []int{11, 12}, tok.Encode("北京"))
}

func TestEncodePreSplitAlignment(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	got := tok.EncodePreSplit([]string{"北", "京", "unaffable", ""})
	require.Len(t, got, 4)
	assert.Equal(t, []int{11}, got[0])
	assert.Equal(t, []int{12}, got[1])
	assert.Equal(t, []int{7, 8, 9}, got[2])
	// Empty unit still occupies one aligned position.
	assert.Equal(t, []int{1}, got[3])
}

func TestLowercaseOption(t *testing.T) {
	tok := newTestTokenizer(t, Options{Lowercase: true})
	assert.Equal(t, []int{5, 6}, tok.Encode("Hello WORLD"))
}

func TestFoldWidthOption(t *testing.T) {
	tok := newTestTokenizer(t, Options{FoldWidth: true})
	// Fullwidth comma folds to ASCII ",".
	assert.Equal(t, []int{10}, tok.Encode("，"))
}

func TestConvertIDsToTokens(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	assert.Equal(t, []string{"hello", "##aff", "[UNK]"}, tok.ConvertIDsToTokens([]int{5, 8, 999}))
}

func TestDecode(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	assert.Equal(t, "unaffable", tok.Decode([]int{7, 8, 9}))
	assert.Equal(t, "hello world", tok.Decode([]int{5, 6}))
}

func TestSpecialTokenID(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	for want, special := range map[int]api.SpecialToken{
		0: api.TokPad,
		1: api.TokUnknown,
		2: api.TokClassification,
		3: api.TokSeparator,
		4: api.TokMask,
	} {
		id, err := tok.SpecialTokenID(special)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	noCLS, err := New([]string{"[UNK]", "a"}, Options{})
	require.NoError(t, err)
	_, err = noCLS.SpecialTokenID(api.TokClassification)
	assert.ErrorContains(t, err, "not in vocabulary")
}

func TestNewRejectsBadVocab(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
	_, err = New([]string{"a", "a"}, Options{})
	assert.ErrorContains(t, err, "duplicate")
	_, err = New([]string{"a", "b"}, Options{})
	assert.ErrorContains(t, err, "[UNK]")
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("[UNK]\nhello\nworld\n"), 0o644))

	tok, err := FromFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, tok.VocabSize())
	assert.Equal(t, []int{1, 2}, tok.Encode("hello world"))
}
