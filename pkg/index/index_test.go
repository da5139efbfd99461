package index

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gentoomaniac/sparsebox/pkg/backup"
	"github.com/gentoomaniac/sparsebox/pkg/crypt/aes256"
	"github.com/gentoomaniac/sparsebox/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndexer(t *testing.T, secret []byte) (*Indexer, *db.SQLLiteDB) {
	t.Helper()
	dir := t.TempDir()
	database, err := db.NewSQLLite(filepath.Join(dir, "plans.db"))
	require.NoError(t, err)
	require.NoError(t, database.Init())
	t.Cleanup(func() { database.Close() })

	ix := New(database, filepath.Join(dir, "blobs"), secret)
	ix.Now = func() time.Time { return time.Unix(1700000000, 0) }
	return ix, database
}

func testPlan(t *testing.T) *backup.Plan {
	t.Helper()
	dir := backup.NewDirectory("SysContainerDomain-../../x", "", 33, 33)
	dir.Xattrs = map[string][]byte{"com.apple.installd.validatedByFreeProfile": {0, 0, 0}}
	staged := backup.FileFromBytes("RootDomain", "Library/Preferences/temp0", []byte("payload"), 501, 501)
	staged.LinkGroup = backup.Link(0)
	dup := backup.FileFromBytes("RootDomain", "Library/Preferences/temp1", []byte("payload"), 0, 0)
	empty := backup.FileFromBytes("SysContainerDomain-../../crash_on_purpose", "", nil, 0, 0)

	p, err := backup.NewPlan([]backup.Entry{dir, staged, dup, empty})
	require.NoError(t, err)
	return p
}

func TestRecord(t *testing.T) {
	ix, database := newIndexer(t, nil)

	rec, err := ix.Record("hide-sideloaded-apps", "dot-and-slashes", "udid-1", testPlan(t))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), rec.Timestamp)

	loaded, err := database.GetPlanById(rec.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Entries, 4)

	assert.Equal(t, "directory", loaded.Entries[0].Kind)
	assert.Nil(t, loaded.Entries[0].Hash)
	assert.Equal(t, []byte{0, 0, 0}, loaded.Entries[0].Xattrs["com.apple.installd.validatedByFreeProfile"])

	staged := loaded.Entries[1]
	assert.Equal(t, "file", staged.Kind)
	require.NotNil(t, staged.LinkGroup)
	assert.Equal(t, int64(0), *staged.LinkGroup)
	assert.Equal(t, 7, staged.Size)
	assert.Equal(t, staged.Hash, loaded.Entries[2].Hash)
	assert.Nil(t, loaded.Entries[2].LinkGroup)

	data, err := ix.Contents(staged)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	data, err = ix.Contents(loaded.Entries[3])
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = ix.Contents(loaded.Entries[0])
	assert.Error(t, err)
}

func TestRecordDeduplicatesBlobs(t *testing.T) {
	ix, database := newIndexer(t, nil)

	first, err := ix.Record("a", "dot-only", "udid-1", testPlan(t))
	require.NoError(t, err)
	second, err := ix.Record("b", "dot-only", "udid-1", testPlan(t))
	require.NoError(t, err)

	meta, err := database.GetBlobMeta(first.Entries[1].Hash)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, first.Entries[1].Hash, second.Entries[1].Hash)

	plans, err := database.GetPlans()
	require.NoError(t, err)
	assert.Len(t, plans, 2)
}

func blobFile(t *testing.T, ix *Indexer, meta *db.BlobMeta) []byte {
	t.Helper()
	name := hex.EncodeToString(meta.Name)
	data, err := os.ReadFile(filepath.Join(ix.BlobPath, name[0:2], name[2:4], name))
	require.NoError(t, err)
	return data
}

func TestRecordWithoutSecretStoresPlainBlobs(t *testing.T) {
	ix, database := newIndexer(t, nil)

	rec, err := ix.Record("a", "dot-and-slashes", "udid-1", testPlan(t))
	require.NoError(t, err)

	meta, err := database.GetBlobMeta(rec.Entries[1].Hash)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Empty(t, meta.Secret)
	assert.Empty(t, meta.IV)
	assert.Equal(t, []byte("payload"), blobFile(t, ix, meta))
}

func TestRecordWithSecretEncryptsBlobs(t *testing.T) {
	secret, err := aes256.GenerateKey()
	require.NoError(t, err)
	ix, database := newIndexer(t, secret)

	rec, err := ix.Record("a", "dot-and-slashes", "udid-1", testPlan(t))
	require.NoError(t, err)

	meta, err := database.GetBlobMeta(rec.Entries[1].Hash)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.NotEmpty(t, meta.IV)
	require.NotEmpty(t, meta.Secret)
	assert.NotContains(t, string(meta.Secret), string(secret))
	stored := blobFile(t, ix, meta)
	assert.NotContains(t, string(stored), "payload")

	data, err := ix.Contents(rec.Entries[1])
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	ix.Secret = nil
	_, err = ix.Contents(rec.Entries[1])
	assert.True(t, errors.Is(err, ErrSecretRequired))

	ix.Secret, err = aes256.GenerateKey()
	require.NoError(t, err)
	_, err = ix.Contents(rec.Entries[1])
	assert.Error(t, err)
}
