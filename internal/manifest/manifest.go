package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the name of the hidden manifest file kept in each source directory.
const FileName = ".resize-hash"

// Manifest is the ordered, append-only set of fingerprints recorded for one
// source directory.
//
// A Manifest is not safe for concurrent use. Each source directory is owned by
// a single reconciler at a time, so no locking is needed.
type Manifest struct {
	entries []string
	index   map[string]struct{}
	loaded  int
}

// New returns an empty manifest, as if no history existed.
func New() *Manifest {
	return &Manifest{index: make(map[string]struct{})}
}

// Path returns the manifest file location for sourceDir.
func Path(sourceDir string) string {
	return filepath.Join(sourceDir, FileName)
}

// Load reads the manifest stored in sourceDir.
//
// A missing file is not an error: it yields an empty manifest. Any other read
// failure also yields an empty, usable manifest, together with a non-nil error
// so the caller can report it. Lines are trimmed, blank lines are skipped and
// the order of the file is preserved.
func Load(sourceDir string) (*Manifest, error) {
	m := New()

	data, err := os.ReadFile(Path(sourceDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, nil
		}
		return m, fmt.Errorf("failed to read manifest: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m.entries = append(m.entries, line)
		m.index[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return New(), fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.loaded = len(m.entries)
	return m, nil
}

// Contains reports whether fp has been recorded.
func (m *Manifest) Contains(fp string) bool {
	_, ok := m.index[fp]
	return ok
}

// Add appends fp and reports whether it was new. Recording a fingerprint that
// is already present is a no-op.
func (m *Manifest) Add(fp string) bool {
	if m.Contains(fp) {
		return false
	}
	m.entries = append(m.entries, fp)
	m.index[fp] = struct{}{}
	return true
}

// Len returns the number of recorded fingerprints.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Entries returns a copy of the fingerprints in insertion order.
func (m *Manifest) Entries() []string {
	out := make([]string, len(m.entries))
	copy(out, m.entries)
	return out
}

// Changed reports whether fingerprints were added since the manifest was loaded.
func (m *Manifest) Changed() bool {
	return len(m.entries) > m.loaded
}

// Save writes m to the manifest file in sourceDir, replacing any previous
// content. The file is written to a temporary sibling first and renamed into
// place, so readers never observe a partially written manifest.
func Save(sourceDir string, m *Manifest) error {
	var buf bytes.Buffer
	for _, fp := range m.entries {
		buf.WriteString(fp)
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(sourceDir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmpName, Path(sourceDir)); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	m.loaded = len(m.entries)
	return nil
}

// IsTempFile reports whether name is a temporary file created by Save.
func IsTempFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), FileName+".tmp-")
}
