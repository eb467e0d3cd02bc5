package scanner

import "bytes"

// sniffLen is how much of a document is inspected before line scanning starts
const sniffLen = 512

// Unity writes binary-serialized assets when "Force Binary" asset serialization is on.
// Their GUIDs are raw bytes, so a text scan can never match and is skipped.
var binarySignatures = [][]byte{
	{0x1F, 0x8B},                               // gzip
	{0x50, 0x4B, 0x03, 0x04},                   // zip
	{0x89, 0x50, 0x4E, 0x47},                   // png
	{0x55, 0x6E, 0x69, 0x74, 0x79, 0x46, 0x53}, // UnityFS asset bundle
}

// isBinary reports whether sample looks like binary content rather than YAML text
func isBinary(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	if len(sample) > sniffLen {
		sample = sample[:sniffLen]
	}

	for _, sig := range binarySignatures {
		if bytes.HasPrefix(sample, sig) {
			return true
		}
	}

	nulls, control := 0, 0
	for _, b := range sample {
		if b == 0 {
			nulls++
		}
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			control++
		}
	}

	// High bytes are left alone so UTF-8 names in text documents stay text
	return nulls > len(sample)/100 || control > len(sample)*30/100
}
