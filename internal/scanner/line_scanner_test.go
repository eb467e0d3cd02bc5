package scanner

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectLines(t *testing.T, r io.Reader, maxLine int) []string {
	t.Helper()
	ls := NewLineScanner(r, maxLine)
	var lines []string
	for ls.Scan() {
		lines = append(lines, ls.Text())
	}
	require.NoError(t, ls.Err())
	return lines
}

func TestLineScanner_Terminators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"single line no newline", "hello", []string{"hello"}},
		{"single line with LF", "hello\n", []string{"hello"}},
		{"single line with CRLF", "hello\r\n", []string{"hello"}},
		{"mixed terminators", "a\r\nb\nc\r\n", []string{"a", "b", "c"}},
		{"final unterminated line", "a\nb", []string{"a", "b"}},
		{"blank lines kept", "a\n\n\nb\n", []string{"a", "", "", "b"}},
		{"only newline", "\n", []string{""}},
		{"lone CR is content", "a\rb\n", []string{"a\rb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, collectLines(t, strings.NewReader(tt.input), 0))
		})
	}
}

func TestLineScanner_SmallReads(t *testing.T) {
	input := "first\r\nsecond\nthird"
	lines := collectLines(t, iotest.OneByteReader(strings.NewReader(input)), 0)
	assert.Equal(t, []string{"first", "second", "third"}, lines)
}

func TestLineScanner_LongLineAssembled(t *testing.T) {
	long := strings.Repeat("x", defaultReadBufferSize*3+7)
	lines := collectLines(t, strings.NewReader(long+"\r\nend\n"), 0)
	require.Len(t, lines, 2)
	assert.Equal(t, long, lines[0])
	assert.Equal(t, "end", lines[1])
}

func TestLineScanner_Truncation(t *testing.T) {
	input := strings.Repeat("a", 100) + "\n" + "short\n"
	ls := NewLineScanner(strings.NewReader(input), 32)

	require.True(t, ls.Scan())
	assert.Len(t, ls.Bytes(), 32)
	assert.True(t, ls.Truncated())
	assert.Equal(t, 1, ls.LineNumber())

	require.True(t, ls.Scan())
	assert.Equal(t, "short", ls.Text())
	assert.False(t, ls.Truncated())
	assert.Equal(t, 2, ls.LineNumber())

	assert.False(t, ls.Scan())
	assert.NoError(t, ls.Err())
}

func TestLineScanner_ReadError(t *testing.T) {
	boom := errors.New("disk gone")
	r := io.MultiReader(strings.NewReader("ok\npartial"), iotest.ErrReader(boom))

	ls := NewLineScanner(r, 0)
	require.True(t, ls.Scan())
	assert.Equal(t, "ok", ls.Text())
	assert.False(t, ls.Scan())
	assert.ErrorIs(t, ls.Err(), boom)
	assert.False(t, ls.Scan())
}
