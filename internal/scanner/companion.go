package scanner

import (
	"context"
	"errors"
	"io/fs"

	scerrors "github.com/standardbeagle/scriptref/internal/errors"
	"github.com/standardbeagle/scriptref/internal/types"
)

// CompanionPath returns the metadata file that sits next to sourcePath
func (s *Scanner) CompanionPath(sourcePath string) string {
	return sourcePath + s.metaExtension
}

// ResolveCompanion reads the metadata file next to sourcePath and returns its guid.
// A missing file yields ErrCompanionMissing; a file with no valid guid line yields
// ErrCompanionMalformed. Other read failures come back as a FileError.
func (s *Scanner) ResolveCompanion(ctx context.Context, sourcePath string) (types.Identifier, error) {
	metaPath := s.CompanionPath(sourcePath)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rc, err := s.reader.Open(ctx, types.NewDocumentKey(metaPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", scerrors.NewCompanionMissingError(sourcePath, metaPath, err)
		}
		return "", scerrors.NewFileError("resolve companion", metaPath, err)
	}
	defer rc.Close()

	var badValue string
	ls := NewLineScanner(contextReader{ctx: ctx, r: rc}, s.maxLineBytes)
	for ls.Scan() {
		line := ls.Bytes()
		if id, ok := MetaGUIDPattern.First(line); ok {
			return id, nil
		}
		if badValue == "" {
			if m := metaGUIDAnyValue.FindSubmatch(line); m != nil {
				badValue = string(m[1])
			}
		}
	}
	if err := ls.Err(); err != nil {
		return "", scerrors.NewFileError("resolve companion", metaPath, err)
	}

	return "", scerrors.NewCompanionMalformedError(sourcePath, metaPath, badValue)
}
