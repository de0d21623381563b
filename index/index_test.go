package index

import (
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableInsertAndLookup(t *testing.T) {
	t.Parallel()

	tbl := New()
	assert.Equal(t, 0, tbl.Len())

	dgst := digest.FromString("content")
	e := NewEntry(dgst)
	e.OriginalSize = 7

	stored := tbl.Insert(e)
	assert.Same(t, e, stored)
	assert.Equal(t, 1, tbl.Len())

	got, ok := tbl.Lookup(dgst)
	require.True(t, ok)
	assert.Same(t, e, got)

	_, ok = tbl.Lookup(digest.FromString("missing"))
	assert.False(t, ok)
}

func TestTableInsertMergesDuplicates(t *testing.T) {
	t.Parallel()

	tbl := New()
	dgst := digest.FromString("shared content")

	first := NewEntry(dgst)
	second := NewEntry(dgst)
	second.Ref() // two references before insertion

	require.Same(t, first, tbl.Insert(first))
	merged := tbl.Insert(second)

	assert.Same(t, first, merged, "duplicate content merges into the existing entry")
	assert.Equal(t, uint32(3), first.RefCount())
	assert.Equal(t, 1, tbl.Len())
}

func TestTableUnref(t *testing.T) {
	t.Parallel()

	t.Run("removes entry at zero", func(t *testing.T) {
		t.Parallel()
		tbl := New()
		e := tbl.Insert(NewEntry(digest.FromString("x")))
		e.Ref()

		assert.False(t, tbl.Unref(e))
		assert.Equal(t, 1, tbl.Len())

		assert.True(t, tbl.Unref(e))
		assert.Equal(t, 0, tbl.Len())
	})

	t.Run("entry never inserted", func(t *testing.T) {
		t.Parallel()
		tbl := New()
		e := NewEntry(digest.FromString("y"))
		assert.False(t, tbl.Unref(e))
		assert.Equal(t, uint32(0), e.RefCount())
	})

	t.Run("nil entry", func(t *testing.T) {
		t.Parallel()
		assert.False(t, New().Unref(nil))
	})
}
