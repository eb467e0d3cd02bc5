package scanner

import (
	"regexp"

	"github.com/standardbeagle/scriptref/internal/types"
)

// Pattern extracts identifiers from a single line. The expression must have exactly
// one capture group holding the identifier.
type Pattern struct {
	name string
	re   *regexp.Regexp
}

// NewPattern compiles expr into a Pattern
func NewPattern(name, expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Pattern{name: name, re: re}, nil
}

// MustPattern is NewPattern that panics on a bad expression
func MustPattern(name, expr string) *Pattern {
	p, err := NewPattern(name, expr)
	if err != nil {
		panic(err)
	}
	return p
}

var (
	// ScriptReferencePattern matches the script reference of a MonoBehaviour, e.g.
	//   m_Script: {fileID: 11500000, guid: 0123456789abcdef0123456789abcdef, type: 3}
	ScriptReferencePattern = MustPattern("script-reference",
		`m_Script\s*:\s*\{[^{}]*,\s*guid\s*:\s*([0-9a-f]{32})\s*(?:,[^{}]*)?\}`)

	// MetaGUIDPattern matches the guid line of a .meta file, e.g.
	//   guid: 00112233445566778899aabbccddeeff
	MetaGUIDPattern = MustPattern("meta-guid", `\bguid\s*:\s*([0-9a-f]{32})\b`)

	// metaGUIDAnyValue finds a guid field whatever its value, to report malformed ones
	metaGUIDAnyValue = regexp.MustCompile(`\bguid\s*:\s*(\S*)`)
)

// Name returns the pattern's name
func (p *Pattern) Name() string {
	return p.name
}

// Each calls fn for every identifier found in line
func (p *Pattern) Each(line []byte, fn func(types.Identifier)) {
	for _, m := range p.re.FindAllSubmatch(line, -1) {
		if len(m) < 2 {
			continue
		}
		if id := string(m[1]); types.IsValidIdentifier(id) {
			fn(types.Identifier(id))
		}
	}
}

// First returns the first identifier found in line
func (p *Pattern) First(line []byte) (types.Identifier, bool) {
	m := p.re.FindSubmatch(line)
	if len(m) < 2 || !types.IsValidIdentifier(string(m[1])) {
		return "", false
	}
	return types.Identifier(m[1]), true
}
