package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/scriptref/internal/debug"
	scerrors "github.com/standardbeagle/scriptref/internal/errors"
	"github.com/standardbeagle/scriptref/internal/types"
)

// Options configures a Scanner
type Options struct {
	MaxLineBytes    int64
	DocumentTimeout time.Duration // 0 disables the per-document deadline
	MetaExtension   string        // defaults to ".meta"
}

// Result is the outcome of scanning one document
type Result struct {
	Key         types.DocumentKey
	Identifiers types.IdentifierSet
	Fingerprint uint64 // xxhash of the raw bytes; 0 when the read failed
	Lines       int
	// Binary is set when the document was skipped as binary-serialized content
	Binary bool
	// Err is the swallowed read failure, kept for stats. Identifiers is empty when set.
	Err error
}

// Failed reports whether the document could not be read
func (r Result) Failed() bool {
	return r.Err != nil
}

// Stats counts scanner activity
type Stats struct {
	DocumentsScanned int64 `json:"documentsScanned"`
	ReadFailures     int64 `json:"readFailures"`
	TruncatedLines   int64 `json:"truncatedLines"`
	BinarySkipped    int64 `json:"binarySkipped"`
}

// Scanner extracts script identifiers from documents and resolves companion metadata files
type Scanner struct {
	reader        DocumentReader
	pattern       *Pattern
	maxLineBytes  int
	timeout       time.Duration
	metaExtension string

	scanned   atomic.Int64
	failures  atomic.Int64
	truncated atomic.Int64
	binary    atomic.Int64
}

// New creates a scanner reading through reader. A nil reader uses the filesystem.
func New(reader DocumentReader, opts Options) *Scanner {
	if reader == nil {
		reader = FileReader{}
	}
	meta := opts.MetaExtension
	if meta == "" {
		meta = ".meta"
	}
	return &Scanner{
		reader:        reader,
		pattern:       ScriptReferencePattern,
		maxLineBytes:  int(opts.MaxLineBytes),
		timeout:       opts.DocumentTimeout,
		metaExtension: meta,
	}
}

// ScanDocument reads key and returns the set of identifiers it references.
// Read failures are logged and produce an empty result, never an error.
func (s *Scanner) ScanDocument(ctx context.Context, key types.DocumentKey) Result {
	s.scanned.Add(1)

	res, err := s.scan(ctx, key)
	if err != nil {
		s.failures.Add(1)
		fileErr := scerrors.NewFileError("scan", string(key), err)
		debug.LogIndexing("read failed, treating as empty: %v\n", fileErr)
		return Result{Key: key, Identifiers: types.NewIdentifierSet(), Err: fileErr}
	}
	return res
}

func (s *Scanner) scan(ctx context.Context, key types.DocumentKey) (Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rc, err := s.reader.Open(ctx, key)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	digest := xxhash.New()
	br := bufio.NewReader(io.TeeReader(contextReader{ctx: ctx, r: rc}, digest))
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return Result{}, err
	}
	if isBinary(head) {
		s.binary.Add(1)
		debug.LogIndexing("skipping binary document %s\n", key)
		return Result{Key: key, Identifiers: types.NewIdentifierSet(), Binary: true}, nil
	}

	ls := NewLineScanner(br, s.maxLineBytes)
	ids := types.NewIdentifierSet()
	for ls.Scan() {
		if ls.Truncated() {
			s.truncated.Add(1)
		}
		s.pattern.Each(ls.Bytes(), ids.Add)
	}
	if err := ls.Err(); err != nil {
		return Result{}, err
	}

	return Result{
		Key:         key,
		Identifiers: ids,
		Fingerprint: digest.Sum64(),
		Lines:       ls.LineNumber(),
	}, nil
}

// Stats returns a snapshot of the scanner counters
func (s *Scanner) Stats() Stats {
	return Stats{
		DocumentsScanned: s.scanned.Load(),
		ReadFailures:     s.failures.Load(),
		TruncatedLines:   s.truncated.Load(),
		BinarySkipped:    s.binary.Load(),
	}
}
