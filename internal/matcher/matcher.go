// Package matcher discovers source directories under a documentation root
// and the candidate image files inside them.
//
// Matching follows shell glob semantics via doublestar: a recursive search
// uses "**/*<ext>", a flat one "*<ext>". Extensions match in their lowercase
// and uppercase spellings only, so ".png" finds "a.png" and "A.PNG" but not
// "a.Png".
package matcher

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// CandidateFile is an image file found inside a source directory.
type CandidateFile struct {
	// Path is the file location, rooted at the source directory path given to
	// ListCandidateFiles.
	Path string

	// RelPath is the path relative to the source directory, using the OS
	// separator. The output is written at the same relative path under the
	// target directory.
	RelPath string
}

// FindSourceDirectories returns every directory named name below root, at any
// depth. root itself is never returned. Results are in walk order, which is
// lexical.
//
// Symbolic links to directories are neither returned nor descended into, so
// each physical source directory is reported at most once and link cycles
// terminate.
func FindSourceDirectories(root, name string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat docs dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docs dir %s is not a directory", root)
	}

	var dirs []string
	seen := make(map[string]struct{})
	pattern := "**/" + escapeMeta(name)
	err = doublestar.GlobWalk(os.DirFS(root), pattern, func(p string, _ fs.DirEntry) error {
		full := filepath.Join(root, filepath.FromSlash(p))
		if !isRealDir(full) {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(full)
		if err != nil {
			return nil
		}
		if _, dup := seen[resolved]; dup {
			return nil
		}
		seen[resolved] = struct{}{}
		dirs = append(dirs, full)
		return nil
	}, doublestar.WithNoFollow())
	if err != nil {
		return nil, fmt.Errorf("failed to search %s for %q: %w", root, name, err)
	}
	return dirs, nil
}

// ListCandidateFiles returns the regular files under sourceDir whose names end
// in one of extensions.
//
// Extensions are visited in the given order, and for each one the lowercase
// spelling is matched before the uppercase one. Matches for each spelling are
// sorted. A file matched by more than one pattern is reported once, at its
// first position. When recursive is false only direct children of sourceDir
// are considered. Symbolic links to files count; links to directories are
// not descended into.
func ListCandidateFiles(sourceDir string, extensions []string, recursive bool) ([]CandidateFile, error) {
	fsys := os.DirFS(sourceDir)
	seen := make(map[string]struct{})
	var files []CandidateFile

	for _, ext := range extensions {
		for _, variant := range caseVariants(ext) {
			pattern := "*" + escapeMeta(variant)
			if recursive {
				pattern = "**/" + pattern
			}

			matches, err := doublestar.Glob(fsys, pattern, doublestar.WithNoFollow())
			if err != nil {
				return nil, fmt.Errorf("failed to match %q in %s: %w", pattern, sourceDir, err)
			}
			sort.Strings(matches)

			for _, m := range matches {
				if _, dup := seen[m]; dup {
					continue
				}
				rel := filepath.FromSlash(m)
				full := filepath.Join(sourceDir, rel)
				if !isRegular(full) {
					continue
				}
				seen[m] = struct{}{}
				files = append(files, CandidateFile{Path: full, RelPath: rel})
			}
		}
	}

	return files, nil
}

// HasExtension reports whether name ends in one of extensions, using the same
// lowercase/uppercase rule as ListCandidateFiles.
func HasExtension(name string, extensions []string) bool {
	base := path.Base(filepath.ToSlash(name))
	for _, ext := range extensions {
		for _, variant := range caseVariants(ext) {
			if strings.HasSuffix(base, variant) {
				return true
			}
		}
	}
	return false
}

// caseVariants returns the lowercase and uppercase spellings of ext, collapsed
// to one entry when they are identical.
func caseVariants(ext string) []string {
	lower, upper := strings.ToLower(ext), strings.ToUpper(ext)
	if lower == upper {
		return []string{lower}
	}
	return []string{lower, upper}
}

// escapeMeta escapes glob metacharacters so s is matched literally.
func escapeMeta(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isRealDir reports whether full is a directory and not a link to one.
func isRealDir(full string) bool {
	info, err := os.Lstat(full)
	return err == nil && info.IsDir()
}

// isRegular follows symlinks, so a link to a file counts and a link to a
// directory does not.
func isRegular(full string) bool {
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}
