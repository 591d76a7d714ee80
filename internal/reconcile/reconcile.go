// Package reconcile brings the target directory of one source directory up to
// date, using the source directory's manifest to skip images whose content has
// already been published.
package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/resize-images/internal/config"
	"github.com/ironsheep/resize-images/internal/imaging"
	"github.com/ironsheep/resize-images/internal/manifest"
	"github.com/ironsheep/resize-images/internal/matcher"
	"go.uber.org/zap"
)

// Resizer produces the published bytes of one image. name is the output path;
// its extension selects the output format.
type Resizer interface {
	Resize(data []byte, name string, maxWidth, maxHeight int) ([]byte, error)
}

// Reconciler processes source directories one at a time.
//
// A Reconciler may be shared between goroutines as long as no two of them
// reconcile the same source directory at once: the manifest is read, extended
// and written back without locking.
type Reconciler struct {
	cfg     *config.Config
	resizer Resizer
	logger  *zap.Logger
}

// New creates a Reconciler. A nil logger discards all output.
func New(cfg *config.Config, resizer Resizer, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		cfg:     cfg,
		resizer: resizer,
		logger:  logger,
	}
}

// TargetDir returns the output directory paired with sourceDir: a sibling with
// the configured target name.
func (r *Reconciler) TargetDir(sourceDir string) string {
	return filepath.Join(filepath.Dir(sourceDir), r.cfg.TargetDir)
}

// Reconcile processes every candidate file of sourceDir.
//
// Files whose fingerprint is already in the manifest are skipped unless
// caching is disabled. Every other file is resized into the target directory
// at the same relative path and its fingerprint is recorded. A file that fails
// is logged and left out of the manifest so the next build retries it. The
// manifest is rewritten only when it gained fingerprints.
func (r *Reconciler) Reconcile(sourceDir string) *DirectoryResult {
	res := &DirectoryResult{
		SourceDir: sourceDir,
		TargetDir: r.TargetDir(sourceDir),
	}
	log := r.logger.With(zap.String("source_dir", sourceDir))

	if err := os.MkdirAll(res.TargetDir, 0o755); err != nil {
		res.Err = &ProcessingError{Kind: WriteError, Path: res.TargetDir, Err: err}
		log.Error("failed to create target directory, skipping",
			zap.String("target_dir", res.TargetDir), zap.Error(err))
		return res
	}

	m, err := manifest.Load(sourceDir)
	if err != nil {
		res.ManifestErr = err
		log.Warn("failed to load manifest (will process every image)", zap.Error(err))
	}

	files, err := matcher.ListCandidateFiles(sourceDir, r.cfg.Extensions, r.cfg.Recursive)
	if err != nil {
		res.Err = fmt.Errorf("failed to list images: %w", err)
		log.Error("failed to list images, skipping", zap.Error(err))
		return res
	}

	for _, f := range files {
		res.Files = append(res.Files, r.reconcileFile(log, m, f, res.TargetDir))
	}

	if m.Changed() {
		if err := manifest.Save(sourceDir, m); err != nil {
			res.ManifestErr = err
			log.Warn("failed to save manifest (next build will retry)", zap.Error(err))
		} else {
			res.ManifestSaved = true
		}
	}

	log.Debug("source directory reconciled",
		zap.Int("processed", res.Count(StatusProcessed)),
		zap.Int("fresh", res.Count(StatusFresh)),
		zap.Int("failed", res.Count(StatusFailed)),
		zap.Bool("manifest_saved", res.ManifestSaved))

	return res
}

func (r *Reconciler) reconcileFile(log *zap.Logger, m *manifest.Manifest, f matcher.CandidateFile, targetDir string) FileResult {
	res := FileResult{
		Source:  f.Path,
		RelPath: f.RelPath,
		Output:  filepath.Join(targetDir, f.RelPath),
	}

	data, fp, err := manifest.FingerprintFile(f.Path)
	if err != nil {
		return r.fail(log, res, ReadError, err)
	}
	res.Fingerprint = fp

	if r.cfg.EnableCache && m.Contains(fp) {
		res.Status = StatusFresh
		log.Debug("image unchanged", zap.String("file", f.Path))
		return res
	}

	encoded, err := r.resizer.Resize(data, res.Output, r.cfg.Size.Width(), r.cfg.Size.Height())
	if err != nil {
		kind := DecodeError
		if errors.Is(err, imaging.ErrEncode) {
			kind = EncodeError
		}
		return r.fail(log, res, kind, err)
	}

	if err := writeOutput(res.Output, encoded); err != nil {
		return r.fail(log, res, WriteError, err)
	}

	m.Add(fp)
	res.Status = StatusProcessed

	if r.cfg.Debug {
		log.Info("resized image", zap.String("file", f.Path), zap.String("output", res.Output))
	} else {
		log.Debug("resized image", zap.String("file", f.Path), zap.String("output", res.Output))
	}
	return res
}

func (r *Reconciler) fail(log *zap.Logger, res FileResult, kind ErrorKind, err error) FileResult {
	res.Status = StatusFailed
	res.Err = &ProcessingError{Kind: kind, Path: res.Source, Err: err}
	log.Error("failed to resize image",
		zap.String("file", res.Source),
		zap.Stringer("kind", kind),
		zap.Error(err))
	return res
}

// writeOutput replaces path with data, creating parent directories first.
func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
