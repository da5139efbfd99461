// Package index records built plans in the plan database. Entry contents are
// stored once per content hash. With a secret, each blob is encrypted under its
// own data key and the data key is stored wrapped with the secret.
package index

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gentoomaniac/sparsebox/pkg/backup"
	"github.com/gentoomaniac/sparsebox/pkg/crypt/aes256"
	"github.com/gentoomaniac/sparsebox/pkg/db"
	"github.com/gentoomaniac/sparsebox/pkg/output/local"
	"github.com/rs/zerolog/log"
)

// ErrSecretRequired is returned when reading an encrypted blob without a secret.
var ErrSecretRequired = errors.New("blob is encrypted and no secret was given")

type Indexer struct {
	DB       db.DB
	BlobPath string
	// Secret wraps per-blob data keys. Blobs are stored in plain text when nil.
	Secret []byte
	Now    func() time.Time
}

func New(database db.DB, blobPath string, secret []byte) *Indexer {
	return &Indexer{DB: database, BlobPath: blobPath, Secret: secret, Now: time.Now}
}

// Record stores p and returns the indexed plan.
func (ix *Indexer) Record(kind, capability, device string, p *backup.Plan) (*db.Plan, error) {
	rec := &db.Plan{
		Kind:       kind,
		Capability: capability,
		Device:     device,
		Timestamp:  ix.Now().Unix(),
	}

	for i, e := range p.Entries() {
		meta := e.Meta()
		entry := &db.Entry{
			Order:  i,
			Kind:   e.Kind().String(),
			Domain: meta.Domain,
			Path:   meta.RelativePath,
			User:   int(meta.Owner),
			Group:  int(meta.Group),
			Xattrs: meta.Xattrs,
		}
		if f, ok := e.(backup.File); ok {
			if f.LinkGroup != nil {
				l := int64(*f.LinkGroup)
				entry.LinkGroup = &l
			}
			hash, err := ix.storeBlob(f.Contents)
			if err != nil {
				return nil, fmt.Errorf("storing contents of entry %d: %w", i, err)
			}
			entry.Hash = hash
			entry.Size = len(f.Contents)
		}
		rec.Entries = append(rec.Entries, entry)
	}

	if err := ix.DB.AddPlanToIndex(rec); err != nil {
		return nil, err
	}
	log.Info().Int64("id", rec.ID).Str("kind", kind).Int("entries", len(rec.Entries)).Msg("plan indexed")
	return rec, nil
}

func (ix *Indexer) storeBlob(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)

	meta, err := ix.DB.GetBlobMeta(hash[:])
	if err != nil {
		return nil, err
	}
	if meta != nil {
		return hash[:], nil
	}

	meta = &db.BlobMeta{Hash: hash[:], Name: hash[:], Size: len(data)}
	stored := data
	if ix.Secret != nil {
		if stored, err = ix.seal(meta, data); err != nil {
			return nil, err
		}
	}

	if _, err := local.Write(stored, meta, ix.BlobPath); err != nil {
		return nil, err
	}
	if _, err := ix.DB.AddBlobToIndex(meta); err != nil {
		return nil, err
	}
	return hash[:], nil
}

// seal encrypts data under a fresh data key and fills in the key material of
// meta. The blob name is derived from the encrypted hash so file names do not
// reveal contents.
func (ix *Indexer) seal(meta *db.BlobMeta, data []byte) ([]byte, error) {
	key, err := aes256.GenerateKey()
	if err != nil {
		return nil, err
	}
	nonce, err := aes256.GenerateNonce()
	if err != nil {
		return nil, err
	}
	nameNonce, err := aes256.GenerateNonce()
	if err != nil {
		return nil, err
	}
	wrapped, err := aes256.WrapKey(key, ix.Secret)
	if err != nil {
		return nil, err
	}
	encryptedHash, err := aes256.Encrypt(meta.Hash, key, nameNonce)
	if err != nil {
		return nil, err
	}
	meta.Name = []byte(base64.StdEncoding.EncodeToString(encryptedHash))
	meta.Secret = wrapped
	meta.IV = nonce
	return aes256.Encrypt(data, key, nonce)
}

// Contents returns the plain contents of an indexed file entry.
func (ix *Indexer) Contents(entry *db.Entry) ([]byte, error) {
	if entry.Hash == nil {
		return nil, fmt.Errorf("entry %d has no contents", entry.Order)
	}
	meta, err := ix.DB.GetBlobMeta(entry.Hash)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("blob %x not indexed", entry.Hash)
	}
	stored, err := local.Read(meta, ix.BlobPath)
	if err != nil {
		return nil, err
	}
	if len(meta.Secret) == 0 {
		return stored, nil
	}
	if ix.Secret == nil {
		return nil, ErrSecretRequired
	}
	key, err := aes256.UnwrapKey(meta.Secret, ix.Secret)
	if err != nil {
		return nil, fmt.Errorf("unwrapping key of blob %x: %w", entry.Hash, err)
	}
	return aes256.Decrypt(stored, key, meta.IV)
}
