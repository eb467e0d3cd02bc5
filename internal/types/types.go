package types

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// IdentifierLength is the exact length of a script GUID.
const IdentifierLength = 32

// Identifier is a 32 character lowercase hex script GUID. Equality is exact string equality.
type Identifier string

// DocumentKey identifies one prefab or scene document. Always build it with NewDocumentKey
// so that events, scans and queries agree on the same key for the same file.
type DocumentKey string

// IsValidIdentifier reports whether s is exactly 32 lowercase hex characters
func IsValidIdentifier(s string) bool {
	if len(s) != IdentifierLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ParseIdentifier validates s and returns it as an Identifier
func ParseIdentifier(s string) (Identifier, error) {
	if !IsValidIdentifier(s) {
		return "", fmt.Errorf("invalid identifier %q: want %d lowercase hex characters", s, IdentifierLength)
	}
	return Identifier(s), nil
}

// NewDocumentKey normalizes a filesystem path into a DocumentKey.
// Relative paths are made absolute against the working directory, the path is cleaned
// and separators are converted to forward slashes.
func NewDocumentKey(p string) DocumentKey {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return DocumentKey(filepath.ToSlash(filepath.Clean(p)))
}

// Path returns the key as a native filesystem path
func (k DocumentKey) Path() string {
	return filepath.FromSlash(string(k))
}

// Base returns the file name of the document
func (k DocumentKey) Base() string {
	return path.Base(string(k))
}

// Ext returns the extension of the document including the dot
func (k DocumentKey) Ext() string {
	return path.Ext(string(k))
}

// IdentifierSet is an unordered set of identifiers
type IdentifierSet map[Identifier]struct{}

// NewIdentifierSet builds a set from the given identifiers
func NewIdentifierSet(ids ...Identifier) IdentifierSet {
	s := make(IdentifierSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set
func (s IdentifierSet) Add(id Identifier) {
	s[id] = struct{}{}
}

// Has reports membership
func (s IdentifierSet) Has(id Identifier) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy of the set
func (s IdentifierSet) Clone() IdentifierSet {
	out := make(IdentifierSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Equal reports whether both sets have exactly the same members
func (s IdentifierSet) Equal(other IdentifierSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order
func (s IdentifierSet) Sorted() []Identifier {
	out := make([]Identifier, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortKeys sorts document keys in place and returns them
func SortKeys(keys []DocumentKey) []DocumentKey {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ChangeKind tags a Change
type ChangeKind int

const (
	ChangeUpsert ChangeKind = iota
	ChangeDelete
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeUpsert:
		return "upsert"
	case ChangeDelete:
		return "delete"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is a document notification after classification: either the document was
// created/modified (upsert) or it is gone (delete).
type Change struct {
	Kind ChangeKind
	Key  DocumentKey
}

// Upsert builds an upsert change for key
func Upsert(key DocumentKey) Change {
	return Change{Kind: ChangeUpsert, Key: key}
}

// Delete builds a delete change for key
func Delete(key DocumentKey) Change {
	return Change{Kind: ChangeDelete, Key: key}
}

func (c Change) String() string {
	return c.Kind.String() + " " + string(c.Key)
}

// HasExtension reports whether name ends in one of exts. Matching is exact on the extension.
func HasExtension(name string, exts []string) bool {
	ext := path.Ext(strings.ReplaceAll(name, "\\", "/"))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
