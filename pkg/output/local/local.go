package local

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gentoomaniac/sparsebox/pkg/db"
	"github.com/rs/zerolog/log"
)

func blobPath(metadata *db.BlobMeta, basepath string) (string, error) {
	if len(metadata.Name) < 2 {
		return "", fmt.Errorf("blob name too short: %q", metadata.Name)
	}
	return filepath.Join(basepath, hex.EncodeToString(metadata.Name[0:1]), hex.EncodeToString(metadata.Name[1:2])), nil
}

func Write(data []byte, metadata *db.BlobMeta, basepath string) (int, error) {
	log.Debug().
		Str("blob_secret", base64.StdEncoding.EncodeToString(metadata.Secret)).
		Str("blob_name", string(metadata.Name)).
		Int("blob_size", metadata.Size).
		Msgf("Writing blob: %x", metadata.Hash)

	dir, err := blobPath(metadata, basepath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	blobfile, err := os.Create(filepath.Join(dir, hex.EncodeToString(metadata.Name)))
	if err != nil {
		log.Error().Err(err).Msg("")
		return 0, err
	}
	defer blobfile.Close()

	return blobfile.Write(data)
}

func Read(metadata *db.BlobMeta, basepath string) ([]byte, error) {
	dir, err := blobPath(metadata, basepath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(dir, hex.EncodeToString(metadata.Name)))
}
