package reconcile

import "fmt"

// Status is the outcome of one candidate file.
type Status int

const (
	// StatusFresh means the fingerprint was already recorded and nothing was done.
	StatusFresh Status = iota
	// StatusProcessed means a new output was written and the fingerprint recorded.
	StatusProcessed
	// StatusFailed means the file was skipped; see FileResult.Err.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusProcessed:
		return "processed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ErrorKind classifies a processing failure.
type ErrorKind int

const (
	// ReadError means the source file could not be read.
	ReadError ErrorKind = iota + 1
	// DecodeError means the source bytes are not a decodable image.
	DecodeError
	// EncodeError means the output format is unsupported or encoding failed.
	EncodeError
	// WriteError means the output file or target directory could not be written.
	WriteError
)

func (k ErrorKind) String() string {
	switch k {
	case ReadError:
		return "read error"
	case DecodeError:
		return "decode error"
	case EncodeError:
		return "encode error"
	case WriteError:
		return "write error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ProcessingError describes why a file or directory could not be processed.
type ProcessingError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// FileResult is the outcome of reconciling one candidate file.
type FileResult struct {
	// Source is the path of the source image.
	Source string
	// RelPath is Source relative to its source directory.
	RelPath string
	// Output is where the published copy lives (or would live).
	Output string
	// Fingerprint is empty when the file could not be read.
	Fingerprint string
	Status      Status
	// Err is set only when Status is StatusFailed.
	Err *ProcessingError
}

// DirectoryResult aggregates the outcome of one source directory.
type DirectoryResult struct {
	SourceDir string
	TargetDir string
	Files     []FileResult

	// ManifestSaved reports whether the manifest file was rewritten.
	ManifestSaved bool

	// ManifestErr records a manifest read or write problem. It never aborts
	// the directory: an unreadable manifest is treated as empty and a failed
	// write is retried on the next build.
	ManifestErr error

	// Err is set when the whole directory was skipped, for instance because
	// the target directory could not be created.
	Err error
}

// Count returns the number of files with the given status.
func (d *DirectoryResult) Count(s Status) int {
	n := 0
	for _, f := range d.Files {
		if f.Status == s {
			n++
		}
	}
	return n
}
