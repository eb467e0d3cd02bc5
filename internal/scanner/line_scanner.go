package scanner

import (
	"bufio"
	"errors"
	"io"
)

const defaultReadBufferSize = 64 * 1024

// LineScanner streams lines from an io.Reader without loading the whole document.
// Both \n and \r\n terminate exactly one line and the terminator is stripped.
// A final line without a terminator is still yielded; a trailing terminator does
// not produce an extra empty line.
//
// Usage:
//
//	ls := NewLineScanner(r, maxLineBytes)
//	for ls.Scan() {
//	    line := ls.Bytes() // valid until the next Scan
//	}
//	if err := ls.Err(); err != nil { ... }
//
// Lines longer than maxLineBytes are truncated to their first maxLineBytes bytes;
// the remainder is consumed and discarded.
type LineScanner struct {
	r         *bufio.Reader
	maxLine   int
	line      []byte
	lineNum   int
	truncated bool
	err       error
	done      bool
}

// NewLineScanner creates a scanner over r. maxLineBytes <= 0 means unbounded.
func NewLineScanner(r io.Reader, maxLineBytes int) *LineScanner {
	size := defaultReadBufferSize
	if maxLineBytes > 0 && maxLineBytes < size {
		size = max(maxLineBytes, 16)
	}
	return &LineScanner{
		r:       bufio.NewReaderSize(r, size),
		maxLine: maxLineBytes,
	}
}

// Scan advances to the next line. Returns false at end of input or on error.
func (ls *LineScanner) Scan() bool {
	if ls.done {
		return false
	}

	ls.line = ls.line[:0]
	ls.truncated = false
	read := 0

	for {
		chunk, err := ls.r.ReadSlice('\n')
		read += len(chunk)

		terminated := err == nil
		if terminated {
			chunk = chunk[:len(chunk)-1]
		}
		ls.appendChunk(chunk)

		if terminated {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		ls.done = true
		if !errors.Is(err, io.EOF) {
			ls.err = err
			return false
		}
		if read == 0 {
			return false
		}
		break
	}

	if !ls.truncated && len(ls.line) > 0 && ls.line[len(ls.line)-1] == '\r' {
		ls.line = ls.line[:len(ls.line)-1]
	}

	ls.lineNum++
	return true
}

func (ls *LineScanner) appendChunk(chunk []byte) {
	if ls.maxLine <= 0 {
		ls.line = append(ls.line, chunk...)
		return
	}
	room := ls.maxLine - len(ls.line)
	if room <= 0 {
		if len(chunk) > 0 {
			ls.truncated = true
		}
		return
	}
	if len(chunk) > room {
		chunk = chunk[:room]
		ls.truncated = true
	}
	ls.line = append(ls.line, chunk...)
}

// Bytes returns the current line. The slice is reused by the next Scan call.
func (ls *LineScanner) Bytes() []byte {
	return ls.line
}

// Text returns the current line as a string.
func (ls *LineScanner) Text() string {
	return string(ls.line)
}

// LineNumber returns the current line number (1-based).
func (ls *LineScanner) LineNumber() int {
	return ls.lineNum
}

// Truncated reports whether the current line was cut at maxLineBytes.
func (ls *LineScanner) Truncated() bool {
	return ls.truncated
}

// Err returns the first non-EOF read error.
func (ls *LineScanner) Err() error {
	return ls.err
}
