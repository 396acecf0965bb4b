// Package resources is the agent's view of extracted resource files:
// resolving protocol paths under a root directory and answering size and
// checksum queries about them.
package resources

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Manager resolves and inspects resource files under a single root.
// The path-query commands are only served while extracted mode is on;
// the flag is fixed at construction for the process lifetime.
type Manager struct {
	root      string
	extracted bool
}

// NewManager returns a Manager rooted at root. When extracted is false
// the agent refuses path queries entirely.
func NewManager(root string, extracted bool) *Manager {
	return &Manager{root: filepath.Clean(root), extracted: extracted}
}

// ExtractedMode reports whether extracted-resources mode is enabled.
func (m *Manager) ExtractedMode() bool { return m.extracted }

// resolve maps a protocol path onto the filesystem. Paths that would
// escape the root resolve to "", which reads as absent.
func (m *Manager) resolve(path string) string {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	if clean == "/" {
		return ""
	}
	full := filepath.Join(m.root, clean)
	if !strings.HasPrefix(full, m.root+string(filepath.Separator)) {
		return ""
	}
	return full
}

// FileSize returns the size in bytes of the resource at path, or -1 when
// it is absent or not a regular file.
func (m *Manager) FileSize(path string) int64 {
	full := m.resolve(path)
	if full == "" {
		return -1
	}
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return -1
	}
	return info.Size()
}

// Checksum returns the BLAKE2b-256 digest of the resource at path, or nil
// when it is absent.
func (m *Manager) Checksum(path string) []byte {
	full := m.resolve(path)
	if full == "" {
		return nil
	}
	f, err := os.Open(full)
	if err != nil {
		return nil
	}
	defer f.Close() //nolint:errcheck

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil
	}
	if _, err := io.Copy(h, f); err != nil {
		return nil
	}
	return h.Sum(nil)
}
