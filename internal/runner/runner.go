// Package runner drives one build of the resize step: it finds every source
// directory under the document root, reconciles each of them and reports a
// summary.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ironsheep/resize-images/internal/config"
	"github.com/ironsheep/resize-images/internal/imaging"
	"github.com/ironsheep/resize-images/internal/matcher"
	"github.com/ironsheep/resize-images/internal/reconcile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Summary aggregates the outcome of one build.
type Summary struct {
	Directories []*reconcile.DirectoryResult

	Processed         int
	Fresh             int
	Failed            int
	FailedDirectories int

	Duration time.Duration
}

// Runner runs builds against a fixed configuration.
type Runner struct {
	cfg        *config.Config
	reconciler *reconcile.Reconciler
	logger     *zap.Logger
}

// New creates a Runner that resizes through resizer. A nil logger discards
// all output.
func New(cfg *config.Config, resizer reconcile.Resizer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		reconciler: reconcile.New(cfg, resizer, logger),
		logger:     logger,
	}
}

// NewWithCodec creates a Runner backed by the imaging codec described by cfg.
func NewWithCodec(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	opts, err := cfg.CodecOptions()
	if err != nil {
		return nil, err
	}
	codec, err := imaging.NewCodec(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create codec: %w", err)
	}
	return New(cfg, codec, logger), nil
}

// Config returns the configuration the runner was built with.
func (r *Runner) Config() *config.Config {
	return r.cfg
}

// Run performs one build over docsDir.
//
// Source directories are reconciled by up to cfg.Workers goroutines, one
// directory per goroutine, so a manifest is never shared. File and directory
// failures are reported in the Summary and do not stop the build. An error is
// returned only when docsDir cannot be searched, or when ctx is cancelled; in
// the latter case directories that had not started are left untouched and
// the partial Summary is still returned.
func (r *Runner) Run(ctx context.Context, docsDir string) (*Summary, error) {
	start := time.Now()

	dirs, err := matcher.FindSourceDirectories(docsDir, r.cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to find source directories: %w", err)
	}
	r.logger.Debug("discovered source directories",
		zap.String("docs_dir", docsDir),
		zap.Int("count", len(dirs)))

	results := make([]*reconcile.DirectoryResult, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, dir := range dirs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.reconciler.Reconcile(dir)
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	summary := &Summary{Duration: time.Since(start)}
	for _, res := range results {
		if res == nil {
			continue
		}
		summary.Directories = append(summary.Directories, res)
		summary.Processed += res.Count(reconcile.StatusProcessed)
		summary.Fresh += res.Count(reconcile.StatusFresh)
		summary.Failed += res.Count(reconcile.StatusFailed)
		if res.Err != nil {
			summary.FailedDirectories++
		}
	}

	r.logger.Info("resized images",
		zap.String("source_dir", r.cfg.SourceDir),
		zap.String("target_dir", r.cfg.TargetDir),
		zap.Ints("size", []int{r.cfg.Size.Width(), r.cfg.Size.Height()}),
		zap.Bool("recursive", r.cfg.Recursive),
		zap.Int("directories", len(summary.Directories)),
		zap.Int("processed", summary.Processed),
		zap.Int("fresh", summary.Fresh),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))

	if runErr != nil {
		return summary, fmt.Errorf("build interrupted: %w", runErr)
	}
	return summary, nil
}

// OnFiles is the build-orchestrator hook: it runs one build over docsDir and
// hands files back unmodified. Failures are logged, never returned, so the
// surrounding build always continues.
func OnFiles[F any](ctx context.Context, r *Runner, docsDir string, files F) F {
	if _, err := r.Run(ctx, docsDir); err != nil {
		r.logger.Error("resize step failed", zap.String("docs_dir", docsDir), zap.Error(err))
	}
	return files
}
