// Package version identifies the running scriptref binary.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"runtime/debug"
	"sync"
)

const Version = "0.3.0"

// Stamped by the release build through -ldflags -X
var (
	GitCommit = "unknown"
	BuildDate = "development"
)

// Info is the bare semantic version, as reported to MCP clients
func Info() string { return Version }

// FullInfo is the --version line
func FullInfo() string {
	return "scriptref " + Version + " (commit: " + GitCommit + ", built: " + BuildDate + ")"
}

// BuildID distinguishes two binaries of the same version: it hashes the toolchain,
// module version and VCS stamp. Stable for the life of the process.
var BuildID = sync.OnceValue(func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version + "-" + GitCommit
	}

	h := sha256.New()
	for _, part := range []string{info.GoVersion, info.Main.Path, info.Main.Version} {
		h.Write([]byte(part))
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" || s.Key == "vcs.modified" || s.Key == "vcs.time" {
			h.Write([]byte(s.Key + "=" + s.Value))
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
})
