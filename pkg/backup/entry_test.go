package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileFromBytes(t *testing.T) {
	f := FileFromBytes("RootDomain", "Library/x", nil, 501, 20)
	assert.Equal(t, FileKind, f.Kind())
	assert.NotNil(t, f.Contents)
	assert.Empty(t, f.Contents)
	assert.Nil(t, f.LinkGroup)
	assert.Equal(t, Header{RelativePath: "Library/x", Domain: "RootDomain", Owner: 501, Group: 20}, f.Meta())
}

func TestFileFromPath(t *testing.T) {
	src := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(src, []byte("contents"), 0644))

	f, err := FileFromPath(src, "RootDomain", "x", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("contents"), f.Contents)

	_, err = FileFromPath(filepath.Join(t.TempDir(), "missing"), "RootDomain", "x", 0, 0)
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewPlan(t *testing.T) {
	linked := FileFromBytes("RootDomain", "b", []byte("b"), 0, 0)
	linked.LinkGroup = Link(4)
	entries := []Entry{NewDirectory("RootDomain", "", 0, 0), linked}

	p, err := NewPlan(entries)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, uint64(4), *p.Last().(File).LinkGroup)

	entries[0] = NewDirectory("Other", "", 0, 0)
	assert.Equal(t, "RootDomain", p.Entries()[0].Meta().Domain)

	got := p.Entries()
	got[1] = nil
	assert.NotNil(t, p.Entries()[1])
}

func TestFileFromBytesCopiesContents(t *testing.T) {
	buf := []byte("original")
	f := FileFromBytes("RootDomain", "x", buf, 0, 0)
	copy(buf, "MUTATED!")
	assert.Equal(t, []byte("original"), f.Contents)
}

func TestPlanIsImmutable(t *testing.T) {
	dir := NewDirectory("RootDomain", "Library", 0, 0)
	dir.Xattrs = map[string][]byte{"user.a": {1, 2}}
	file := FileFromBytes("RootDomain", "Library/x", []byte("data"), 0, 0)
	file.Xattrs = map[string][]byte{"user.b": {3}}
	file.LinkGroup = Link(7)

	p, err := NewPlan([]Entry{dir, file})
	require.NoError(t, err)

	dir.Xattrs["user.a"][0] = 0xff
	file.Contents[0] = 'X'
	*file.LinkGroup = 9

	got := p.Entries()
	got[0].Meta().Xattrs["user.a"][1] = 0xff
	delete(got[1].Meta().Xattrs, "user.b")
	got[1].(File).Contents[1] = 'X'
	*got[1].(File).LinkGroup = 9
	last := p.Last().(File)
	last.Contents[2] = 'X'

	again := p.Entries()
	assert.Equal(t, map[string][]byte{"user.a": {1, 2}}, again[0].Meta().Xattrs)
	assert.Equal(t, map[string][]byte{"user.b": {3}}, again[1].Meta().Xattrs)
	assert.Equal(t, []byte("data"), again[1].(File).Contents)
	assert.Equal(t, uint64(7), *again[1].(File).LinkGroup)
}

func TestNewPlanRejectsEmptyDomain(t *testing.T) {
	_, err := NewPlan([]Entry{NewDirectory("RootDomain", "", 0, 0), NewDirectory("", "Library", 0, 0)})
	assert.True(t, errors.Is(err, ErrEmptyDomain))
}

func TestEmptyPlanHasNoLast(t *testing.T) {
	p, err := NewPlan(nil)
	require.NoError(t, err)
	assert.Nil(t, p.Last())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "directory", DirectoryKind.String())
	assert.Equal(t, "file", FileKind.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
