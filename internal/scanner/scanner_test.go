package scanner

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scerrors "github.com/standardbeagle/scriptref/internal/errors"
	"github.com/standardbeagle/scriptref/internal/types"
)

const (
	guidA = "0123456789abcdef0123456789abcdef"
	guidB = "fedcba9876543210fedcba9876543210"
)

// memReader serves documents from memory
type memReader struct {
	mu   sync.Mutex
	docs map[types.DocumentKey]string
	errs map[types.DocumentKey]error
}

func newMemReader() *memReader {
	return &memReader{docs: map[types.DocumentKey]string{}, errs: map[types.DocumentKey]error{}}
}

func (m *memReader) put(key types.DocumentKey, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = content
}

func (m *memReader) Open(_ context.Context, key types.DocumentKey) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[key]; ok {
		return nil, err
	}
	content, ok := m.docs[key]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: string(key), Err: fs.ErrNotExist}
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func scriptLine(guid string) string {
	return "  m_Script: {fileID: 11500000, guid: " + guid + ", type: 3}"
}

func TestScriptReferencePattern(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []types.Identifier
	}{
		{"unity line", scriptLine(guidA), []types.Identifier{guidA}},
		{"guid last", "m_Script: {fileID: 11500000, guid: " + guidA + "}", []types.Identifier{guidA}},
		{"loose spacing", "m_Script :{fileID:1,guid :" + guidA + " ,type:3}", []types.Identifier{guidA}},
		{"two on one line", scriptLine(guidA) + " " + scriptLine(guidB), []types.Identifier{guidA, guidB}},
		{"uppercase hex rejected", scriptLine(strings.ToUpper(guidA)), nil},
		{"too long rejected", scriptLine(guidA + "0"), nil},
		{"too short rejected", scriptLine(guidA[:31]), nil},
		{"other field", "  m_Material: {fileID: 2100000, guid: " + guidA + ", type: 2}", nil},
		{"plain guid line", "guid: " + guidA, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []types.Identifier
			ScriptReferencePattern.Each([]byte(tt.line), func(id types.Identifier) {
				got = append(got, id)
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetaGUIDPattern(t *testing.T) {
	id, ok := MetaGUIDPattern.First([]byte("guid: 00112233445566778899aabbccddeeff"))
	assert.True(t, ok)
	assert.Equal(t, types.Identifier("00112233445566778899aabbccddeeff"), id)

	_, ok = MetaGUIDPattern.First([]byte("guid: 00112233445566778899AABBCCDDEEFF"))
	assert.False(t, ok)

	_, ok = MetaGUIDPattern.First([]byte("fileFormatVersion: 2"))
	assert.False(t, ok)
}

func TestScanDocument(t *testing.T) {
	reader := newMemReader()
	key := types.DocumentKey("/proj/Assets/a.prefab")
	reader.put(key, strings.Join([]string{
		"%YAML 1.1",
		"--- !u!114 &1",
		"MonoBehaviour:",
		scriptLine(guidA),
		"--- !u!114 &2",
		"MonoBehaviour:",
		scriptLine(guidA),
		scriptLine(guidB),
	}, "\r\n"))

	s := New(reader, Options{})
	res := s.ScanDocument(context.Background(), key)

	require.NoError(t, res.Err)
	assert.Equal(t, key, res.Key)
	assert.Equal(t, types.NewIdentifierSet(guidA, guidB), res.Identifiers)
	assert.Equal(t, 8, res.Lines)
	assert.NotZero(t, res.Fingerprint)
	assert.False(t, res.Failed())
}

func TestScanDocument_FingerprintTracksContent(t *testing.T) {
	reader := newMemReader()
	key := types.DocumentKey("/proj/a.prefab")
	s := New(reader, Options{})

	reader.put(key, scriptLine(guidA)+"\n")
	first := s.ScanDocument(context.Background(), key)
	again := s.ScanDocument(context.Background(), key)
	assert.Equal(t, first.Fingerprint, again.Fingerprint)

	reader.put(key, scriptLine(guidA)+"\n# edited\n")
	edited := s.ScanDocument(context.Background(), key)
	assert.NotEqual(t, first.Fingerprint, edited.Fingerprint)
	assert.Equal(t, first.Identifiers, edited.Identifiers)
}

func TestScanDocument_FailuresAreSwallowed(t *testing.T) {
	reader := newMemReader()
	denied := types.DocumentKey("/proj/denied.prefab")
	reader.errs[denied] = &fs.PathError{Op: "open", Path: string(denied), Err: fs.ErrPermission}

	s := New(reader, Options{})

	missing := s.ScanDocument(context.Background(), "/proj/missing.prefab")
	assert.True(t, missing.Failed())
	assert.Empty(t, missing.Identifiers)
	assert.Zero(t, missing.Fingerprint)
	var fileErr *scerrors.FileError
	require.ErrorAs(t, missing.Err, &fileErr)
	assert.Equal(t, scerrors.ErrorTypeFileNotFound, fileErr.Type)

	perm := s.ScanDocument(context.Background(), denied)
	assert.True(t, perm.Failed())
	require.ErrorAs(t, perm.Err, &fileErr)
	assert.Equal(t, scerrors.ErrorTypePermission, fileErr.Type)

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.DocumentsScanned)
	assert.Equal(t, int64(2), stats.ReadFailures)
}

// blockingReader never returns data until its context is done
type blockingReader struct{}

func (blockingReader) Open(ctx context.Context, _ types.DocumentKey) (io.ReadCloser, error) {
	return io.NopCloser(slowReader{ctx: ctx}), nil
}

type slowReader struct{ ctx context.Context }

func (r slowReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	case <-time.After(5 * time.Millisecond):
		p[0] = 'x'
		return 1, nil
	}
}

func TestScanDocument_Timeout(t *testing.T) {
	s := New(blockingReader{}, Options{DocumentTimeout: 30 * time.Millisecond})

	start := time.Now()
	res := s.ScanDocument(context.Background(), "/proj/slow.prefab")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Failed())
	assert.True(t, errors.Is(res.Err, context.DeadlineExceeded))
	assert.Empty(t, res.Identifiers)
}

func TestScanDocument_TruncatedLines(t *testing.T) {
	reader := newMemReader()
	key := types.DocumentKey("/proj/long.prefab")
	reader.put(key, strings.Repeat("z", 500)+"\n"+scriptLine(guidA)+"\n")

	s := New(reader, Options{MaxLineBytes: 128})
	res := s.ScanDocument(context.Background(), key)

	assert.Equal(t, types.NewIdentifierSet(guidA), res.Identifiers)
	assert.Equal(t, int64(1), s.Stats().TruncatedLines)
}

func TestScanDocument_FileReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.prefab")
	require.NoError(t, os.WriteFile(path, []byte(scriptLine(guidA)+"\n"), 0o644))

	s := New(nil, Options{})
	res := s.ScanDocument(context.Background(), types.NewDocumentKey(path))
	require.NoError(t, res.Err)
	assert.True(t, res.Identifiers.Has(guidA))
}
