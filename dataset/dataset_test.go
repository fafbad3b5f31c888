package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokencls/labels"
)

func writeColumnFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.tsv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFromColumnFile(t *testing.T) {
	scheme := labels.MSRA()
	path := writeColumnFile(t, "北\x02京\x02好\tB-LOC\x02I-LOC\x02O\n\na\x02b\tO\x02O\n")

	ds, err := FromColumnFile(path, scheme)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"北", "京", "好"}, ds.Examples[0].Tokens)
	assert.Equal(t, []int{4, 5, 6}, ds.Examples[0].Labels)
	assert.Equal(t, []int{6, 6}, ds.Examples[1].Labels)
}

func TestFromColumnFileSpaceSeparated(t *testing.T) {
	scheme := labels.MSRA()
	path := writeColumnFile(t, "john smith\tB-PER I-PER\n")

	ds, err := FromColumnFile(path, scheme)
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, []string{"john", "smith"}, ds.Examples[0].Tokens)
	assert.Equal(t, []int{0, 1}, ds.Examples[0].Labels)
}

func TestFromColumnFileErrors(t *testing.T) {
	scheme := labels.MSRA()

	_, err := FromColumnFile(writeColumnFile(t, "no tab here\n"), scheme)
	assert.ErrorContains(t, err, "two tab-separated columns")

	_, err = FromColumnFile(writeColumnFile(t, "a\x02b\tO\n"), scheme)
	assert.ErrorContains(t, err, "2 tokens but 1 tags")

	_, err = FromColumnFile(writeColumnFile(t, "a\tB-XXX\n"), scheme)
	assert.ErrorContains(t, err, "not in scheme")

	_, err = FromColumnFile(filepath.Join(t.TempDir(), "missing.tsv"), scheme)
	assert.Error(t, err)
}

func TestFromParquet(t *testing.T) {
	scheme := labels.MSRA()
	path := filepath.Join(t.TempDir(), "test.parquet")
	rows := []parquetRow{
		{Tokens: []string{"北", "京"}, NERTags: []int32{4, 5}},
		{Tokens: []string{"好"}, NERTags: []int32{6}},
	}
	require.NoError(t, parquet.WriteFile(path, rows))

	ds, err := FromParquet(path, scheme)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"北", "京"}, ds.Examples[0].Tokens)
	assert.Equal(t, []int{4, 5}, ds.Examples[0].Labels)
}

func TestFromParquetRejectsBadTags(t *testing.T) {
	scheme := labels.MSRA()
	path := filepath.Join(t.TempDir(), "bad.parquet")
	rows := []parquetRow{{Tokens: []string{"a"}, NERTags: []int32{99}}}
	require.NoError(t, parquet.WriteFile(path, rows))

	_, err := FromParquet(path, scheme)
	assert.ErrorContains(t, err, "out of range")
}
