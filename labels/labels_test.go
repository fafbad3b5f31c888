package labels

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s, err := New([]string{"O", "B-PER", "I-PER"})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	name, err := s.Name(1)
	require.NoError(t, err)
	assert.Equal(t, "B-PER", name)

	id, err := s.ID("I-PER")
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	noEntity, err := s.NoEntityID()
	require.NoError(t, err)
	assert.Equal(t, 0, noEntity)
}

func TestNewRejectsBadSchemes(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New([]string{"O", "B-PER", "O"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = New([]string{"O", ""})
	assert.ErrorContains(t, err, "empty")
}

func TestNameOutOfRange(t *testing.T) {
	s, err := New([]string{"O"})
	require.NoError(t, err)

	_, err = s.Name(1)
	assert.ErrorContains(t, err, "out of range")
	_, err = s.Name(-1)
	assert.ErrorContains(t, err, "out of range")
	_, err = s.Name(IgnoreIndex)
	assert.Error(t, err)

	assert.True(t, s.Valid(0))
	assert.False(t, s.Valid(1))
	assert.False(t, s.Valid(IgnoreIndex))
}

func TestSchemeIsImmutable(t *testing.T) {
	names := []string{"O", "B-PER"}
	s, err := New(names)
	require.NoError(t, err)

	names[0] = "mutated"
	got := s.Names()
	assert.Equal(t, []string{"O", "B-PER"}, got)

	got[1] = "mutated"
	name, err := s.Name(1)
	require.NoError(t, err)
	assert.Equal(t, "B-PER", name)
}

func TestMSRA(t *testing.T) {
	s := MSRA()
	assert.Equal(t, []string{"B-PER", "I-PER", "B-ORG", "I-ORG", "B-LOC", "I-LOC", "O"}, s.Names())
	noEntity, err := s.NoEntityID()
	require.NoError(t, err)
	assert.Equal(t, 6, noEntity)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("O\nB-LOC\n\nI-LOC\n"), 0o644))

	s, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"O", "B-LOC", "I-LOC"}, s.Names())

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestLabelPredicates(t *testing.T) {
	assert.True(t, IsOutside("O"))
	assert.False(t, IsOutside("B-PER"))
	assert.True(t, IsBegin("B-PER"))
	assert.False(t, IsBegin("I-PER"))
	assert.True(t, IsInside("I-ORG"))
	assert.Equal(t, "PER", EntityType("B-PER"))
	assert.Equal(t, "ORG", EntityType("I-ORG"))
	assert.Equal(t, "", EntityType("O"))
}
