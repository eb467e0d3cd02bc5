package indexing

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/scriptref/internal/debug"
	scerrors "github.com/standardbeagle/scriptref/internal/errors"
	"github.com/standardbeagle/scriptref/internal/types"
	"github.com/standardbeagle/scriptref/pkg/pathutil"
)

// CompanionResolver maps a source file to the identifier stored in its metadata file
type CompanionResolver interface {
	ResolveCompanion(ctx context.Context, sourcePath string) (types.Identifier, error)
}

// Reference is a document presented for selection
type Reference struct {
	Key         types.DocumentKey `json:"path"`
	Label       string            `json:"label"`       // file name
	Description string            `json:"description"` // directory relative to the project root, "" for the root
	Name        string            `json:"name"`        // file name without extension
}

// Query answers lookups against the coordinator
type Query struct {
	coord      *Coordinator
	companions CompanionResolver
	root       string
	sourceExts []string
}

// NewQuery creates a query facade. sourceExts limits ReferencesOf to those source kinds.
func NewQuery(coord *Coordinator, companions CompanionResolver, root string, sourceExts []string) *Query {
	return &Query{
		coord:      coord,
		companions: companions,
		root:       filepath.ToSlash(filepath.Clean(root)),
		sourceExts: sourceExts,
	}
}

// DocumentsFor returns the documents referencing id, sorted. ErrNotReady while the
// index is Empty or Populating; an empty result means nothing references id.
func (q *Query) DocumentsFor(id types.Identifier) ([]types.DocumentKey, error) {
	docs, err := q.coord.DocumentsFor(id)
	if err != nil {
		return nil, err
	}
	debug.LogQuery("%s -> %d documents\n", id, len(docs))
	return docs, nil
}

// IdentifiersFor returns the identifiers referenced by one document, sorted. An
// unindexed document has none.
func (q *Query) IdentifiersFor(key types.DocumentKey) ([]types.Identifier, error) {
	ids, err := q.coord.IdentifiersFor(key)
	if err != nil {
		return nil, err
	}
	return ids.Sorted(), nil
}

// ResolvePath makes p absolute, relative paths being taken from the project root
func (q *Query) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(filepath.FromSlash(q.root), p)
}

// ReferencesOf resolves the companion identifier of sourcePath and looks it up.
// The identifier is returned whenever resolution succeeded.
func (q *Query) ReferencesOf(ctx context.Context, sourcePath string) (types.Identifier, []types.DocumentKey, error) {
	if len(q.sourceExts) > 0 && !types.HasExtension(sourcePath, q.sourceExts) {
		return "", nil, fmt.Errorf("%w: %s (accepted: %s)", scerrors.ErrUnsupportedSource, sourcePath, strings.Join(q.sourceExts, ", "))
	}
	if q.coord.State() != StateReady {
		return "", nil, scerrors.ErrNotReady
	}

	id, err := q.companions.ResolveCompanion(ctx, sourcePath)
	if err != nil {
		return "", nil, err
	}

	docs, err := q.DocumentsFor(id)
	if err != nil {
		return id, nil, err
	}
	return id, docs, nil
}

// Present converts keys to references relative to the project root
func (q *Query) Present(keys []types.DocumentKey) []Reference {
	refs := make([]Reference, 0, len(keys))
	for _, key := range keys {
		base := key.Base()
		refs = append(refs, Reference{
			Key:         key,
			Label:       base,
			Description: q.relativeDir(key),
			Name:        strings.TrimSuffix(base, path.Ext(base)),
		})
	}
	return refs
}

func (q *Query) relativeDir(key types.DocumentKey) string {
	return pathutil.ToSlashRelative(path.Dir(string(key)), q.root)
}
