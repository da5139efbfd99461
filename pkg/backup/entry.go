package backup

import (
	"errors"
	"fmt"
	"os"
)

// ErrEmptyDomain is returned when a plan contains an entry without a domain.
var ErrEmptyDomain = errors.New("entry domain is empty")

type Kind int

const (
	DirectoryKind Kind = iota
	FileKind
)

func (k Kind) String() string {
	switch k {
	case DirectoryKind:
		return "directory"
	case FileKind:
		return "file"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Header holds the fields shared by every record in a backup.
type Header struct {
	RelativePath string
	Domain       string
	Owner        uint32
	Group        uint32
	Xattrs       map[string][]byte
}

// Meta returns the shared record fields.
func (h Header) Meta() Header { return h }

func (h Header) clone() Header {
	if h.Xattrs != nil {
		xattrs := make(map[string][]byte, len(h.Xattrs))
		for k, v := range h.Xattrs {
			xattrs[k] = append([]byte{}, v...)
		}
		h.Xattrs = xattrs
	}
	return h
}

// Entry is either a Directory or a File.
type Entry interface {
	Meta() Header
	Kind() Kind
	isEntry()
}

type Directory struct {
	Header
}

func (Directory) Kind() Kind { return DirectoryKind }
func (Directory) isEntry()   {}

// File is a record with contents. Files sharing a LinkGroup are materialized
// as hard links to the first occurrence; the contents of later occurrences
// are ignored by the restoring daemon.
type File struct {
	Header
	Contents  []byte
	LinkGroup *uint64
}

func (File) Kind() Kind { return FileKind }
func (File) isEntry()   {}

// clone returns a copy of e that shares no memory with it.
func clone(e Entry) Entry {
	switch v := e.(type) {
	case Directory:
		return Directory{Header: v.Header.clone()}
	case File:
		c := File{Header: v.Header.clone(), Contents: append([]byte{}, v.Contents...)}
		if v.LinkGroup != nil {
			c.LinkGroup = Link(*v.LinkGroup)
		}
		return c
	}
	return e
}

// Link returns a link group identifier for use in File.LinkGroup.
func Link(id uint64) *uint64 { return &id }

// IOError reports an unreadable external byte source.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("reading %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// ReadSource reads an external file into memory.
func ReadSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	return data, nil
}

// FileFromBytes builds a File from a copy of an in-memory buffer.
func FileFromBytes(domain, relativePath string, contents []byte, owner, group uint32) File {
	return File{
		Header: Header{
			RelativePath: relativePath,
			Domain:       domain,
			Owner:        owner,
			Group:        group,
		},
		Contents: append([]byte{}, contents...),
	}
}

// FileFromPath builds a File whose contents are read from src.
func FileFromPath(src, domain, relativePath string, owner, group uint32) (File, error) {
	contents, err := ReadSource(src)
	if err != nil {
		return File{}, err
	}
	return FileFromBytes(domain, relativePath, contents, owner, group), nil
}

// NewDirectory builds a Directory record.
func NewDirectory(domain, relativePath string, owner, group uint32) Directory {
	return Directory{Header: Header{RelativePath: relativePath, Domain: domain, Owner: owner, Group: group}}
}
