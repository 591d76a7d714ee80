package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironsheep/resize-images/internal/config"
	"github.com/ironsheep/resize-images/internal/runner"
	"github.com/ironsheep/resize-images/internal/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// mkdocsFile is picked up from the working directory when --config is absent.
const mkdocsFile = "mkdocs.yml"

var (
	// Global flags
	cfgFile   string
	docsDir   string
	logLevel  string
	logFormat string

	// Watch flags
	debounce time.Duration

	logger = zap.NewNop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "resize-images",
	Short: "Publish downscaled copies of documentation images",
	Long: `resize-images finds every source image directory (assets-large by default)
under the documentation root, writes a copy of each image that fits the
configured bounding box into the sibling target directory (assets by default),
and records a content fingerprint per image so unchanged images are skipped on
the next build.

Options are read from a standalone YAML file or from the resize-images entry of
the plugins list in mkdocs.yml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := setupLogger(logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one build",
	Long: `Run reconciles every source directory once. Images that fail to decode or
write are reported and skipped; the command fails only when the build cannot
start, for instance because the configuration is invalid or the documentation
root does not exist.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build, then rebuild whenever a source directory changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "resize-images %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  Build time: %s\n", BuildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "  Git commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "options file or mkdocs.yml (default is ./mkdocs.yml when present)")
	rootCmd.PersistentFlags().StringVar(&docsDir, "docs-dir", "", "documentation root (overrides docs_dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	watchCmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a rebuild")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	r, err := runner.NewWithCodec(cfg, logger)
	if err != nil {
		return err
	}

	summary, err := r.Run(ctx, cfg.DocsDir)
	if err != nil {
		return err
	}
	if summary.Failed > 0 || summary.FailedDirectories > 0 {
		logger.Warn("some images were not published",
			zap.Int("failed_images", summary.Failed),
			zap.Int("failed_directories", summary.FailedDirectories))
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	r, err := runner.NewWithCodec(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("watching for changes",
		zap.String("docs_dir", cfg.DocsDir),
		zap.String("source_dir", cfg.SourceDir),
		zap.Duration("debounce", debounce))

	return watch.New(cfg.DocsDir, cfg, r, debounce, logger).Run(ctx)
}

// loadConfig resolves options from --config, then ./mkdocs.yml, then the
// defaults, and applies --docs-dir on top.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat(mkdocsFile); err == nil {
			path = mkdocsFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", mkdocsFile, err)
		}
	}

	var cfg *config.Config
	if path == "" {
		logger.Debug("no configuration file, using defaults")
		cfg = config.Default()
	} else {
		logger.Debug("loading configuration", zap.String("path", path))
		c, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	if docsDir != "" {
		cfg.DocsDir = docsDir
	}

	logger.Debug("configuration loaded",
		zap.String("docs_dir", cfg.DocsDir),
		zap.String("source_dir", cfg.SourceDir),
		zap.String("target_dir", cfg.TargetDir),
		zap.Ints("size", []int{cfg.Size.Width(), cfg.Size.Height()}),
		zap.Bool("enable_cache", cfg.EnableCache),
		zap.Int("workers", cfg.Workers))

	return cfg, nil
}

// setupLogger builds a console (development) or JSON (production) logger
// writing to stderr.
func setupLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var zc zap.Config
	switch format {
	case "console":
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q (want console or json)", format)
	}
	zc.Level = lvl

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
