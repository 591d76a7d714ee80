// Package config holds the options of the resize step and loads them from
// YAML, either a standalone options file or the plugin block of an mkdocs.yml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/resize-images/internal/imaging"
	"gopkg.in/yaml.v3"
)

// PluginName is the key of the options block inside mkdocs.yml.
const PluginName = "resize-images"

// Size is a bounding box, written in YAML as [width, height].
type Size [2]int

// Width returns the bounding-box width.
func (s Size) Width() int { return s[0] }

// Height returns the bounding-box height.
func (s Size) Height() int { return s[1] }

// Config represents the resize step configuration. YAML keys follow the
// option names of the MkDocs plugin.
type Config struct {
	Size        Size     `yaml:"size"`
	SourceDir   string   `yaml:"source-dir"`
	TargetDir   string   `yaml:"target-dir"`
	Extensions  []string `yaml:"extensions"`
	EnableCache bool     `yaml:"enable_cache"`
	Debug       bool     `yaml:"debug"`
	Recursive   bool     `yaml:"recursive"`

	// DocsDir is the document root searched for source directories. When
	// loaded from a file, a relative value is resolved against the file's
	// directory.
	DocsDir string `yaml:"docs_dir"`

	// Workers bounds how many source directories are reconciled at once.
	Workers int `yaml:"workers"`

	Engine      imaging.Engine `yaml:"engine"`
	Filter      string         `yaml:"filter"`
	JPEGQuality int            `yaml:"jpeg_quality"`
	Background  string         `yaml:"background"`
	AutoOrient  bool           `yaml:"auto_orient"`
}

// Default returns the configuration used when no option is set.
func Default() *Config {
	return &Config{
		Size:        Size{800, 600},
		SourceDir:   "assets-large",
		TargetDir:   "assets",
		Extensions:  []string{".jpg", ".jpeg", ".png", ".gif", ".svg"},
		EnableCache: true,
		Debug:       false,
		Recursive:   true,
		DocsDir:     "docs",
		Workers:     1,
		Engine:      imaging.EngineImaging,
		Filter:      imaging.DefaultFilter,
		JPEGQuality: imaging.DefaultJPEGQuality,
		Background:  "#ffffff",
		AutoOrient:  true,
	}
}

// Load reads and parses the configuration file at path.
//
// The file is either an options file, holding the keys of Config at top
// level, or an mkdocs.yml. A document with a top-level "plugins" key is
// treated as mkdocs.yml: options come from the resize-images plugin entry and
// docs_dir from the top level. Options that are not set keep their defaults.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.DocsDir) {
		cfg.DocsDir = filepath.Join(filepath.Dir(path), cfg.DocsDir)
	}

	return cfg, nil
}

// Parse decodes YAML configuration data on top of Default and validates the
// result. Relative paths are left untouched.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	root := documentRoot(&doc)
	if root != nil {
		if root.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("failed to parse config file: top level must be a mapping")
		}

		if plugins := mappingValue(root, "plugins"); plugins != nil {
			if docsDir := mappingValue(root, "docs_dir"); docsDir != nil {
				if err := docsDir.Decode(&cfg.DocsDir); err != nil {
					return nil, fmt.Errorf("failed to parse docs_dir: %w", err)
				}
			}
			opts, err := pluginOptions(plugins)
			if err != nil {
				return nil, err
			}
			if opts != nil {
				if err := opts.Decode(cfg); err != nil {
					return nil, fmt.Errorf("failed to parse %s options: %w", PluginName, err)
				}
			}
		} else if err := root.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.DocsDir = os.ExpandEnv(cfg.DocsDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []error

	if c.Size.Width() <= 0 || c.Size.Height() <= 0 {
		errs = append(errs, fmt.Errorf("size must be two positive integers, got %v", [2]int(c.Size)))
	}
	if err := validateDirName("source-dir", c.SourceDir); err != nil {
		errs = append(errs, err)
	}
	if err := validateDirName("target-dir", c.TargetDir); err != nil {
		errs = append(errs, err)
	}
	if c.SourceDir != "" && c.SourceDir == c.TargetDir {
		errs = append(errs, fmt.Errorf("source-dir and target-dir must differ"))
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, fmt.Errorf("extensions must not be empty"))
	}
	for _, ext := range c.Extensions {
		if strings.TrimSpace(ext) == "" {
			errs = append(errs, fmt.Errorf("extensions must not contain empty entries"))
			break
		}
	}
	if c.DocsDir == "" {
		errs = append(errs, fmt.Errorf("docs_dir is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if opts, err := c.CodecOptions(); err != nil {
		errs = append(errs, err)
	} else if _, err := imaging.NewCodec(opts); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// CodecOptions converts the image settings into imaging.Options.
func (c *Config) CodecOptions() (imaging.Options, error) {
	bg, err := imaging.ParseBackground(c.Background)
	if err != nil {
		return imaging.Options{}, err
	}
	return imaging.Options{
		Engine:      c.Engine,
		Filter:      c.Filter,
		JPEGQuality: c.JPEGQuality,
		Background:  bg,
		AutoOrient:  c.AutoOrient,
	}, nil
}

func validateDirName(key, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%s is required", key)
	case name == "." || name == "..":
		return fmt.Errorf("%s must be a directory name, got %q", key, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%s must be a single directory name, got %q", key, name)
	}
	return nil
}
