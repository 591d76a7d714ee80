package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ironsheep/resize-images/internal/config"
	"github.com/ironsheep/resize-images/internal/manifest"
	"github.com/ironsheep/resize-images/internal/reconcile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// countingResizer is safe for concurrent use.
type countingResizer struct {
	mu    sync.Mutex
	calls []string
}

func (c *countingResizer) Resize(data []byte, name string, _, _ int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	return append([]byte("small:"), data...), nil
}

func (c *countingResizer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// docsTree creates three source directories with two images each.
func docsTree(t *testing.T) string {
	t.Helper()
	docs := t.TempDir()
	for _, dir := range []string{"assets-large", "guide/assets-large", "guide/api/assets-large"} {
		base := filepath.Join(docs, filepath.FromSlash(dir))
		writeFile(t, filepath.Join(base, "a.png"), dir+"/a")
		writeFile(t, filepath.Join(base, "b.jpg"), dir+"/b")
	}
	writeFile(t, filepath.Join(docs, "index.md"), "# docs")
	return docs
}

func sourceDirs(s *Summary) []string {
	var out []string
	for _, d := range s.Directories {
		out = append(out, d.SourceDir)
	}
	return out
}

func TestRun_AllSourceDirectories(t *testing.T) {
	docs := docsTree(t)
	resizer := &countingResizer{}
	r := New(config.Default(), resizer, zaptest.NewLogger(t))

	summary, err := r.Run(context.Background(), docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(summary.Directories) != 3 {
		t.Fatalf("directories: %d, want 3", len(summary.Directories))
	}
	if summary.Processed != 6 || summary.Fresh != 0 || summary.Failed != 0 {
		t.Errorf("counts: processed=%d fresh=%d failed=%d", summary.Processed, summary.Fresh, summary.Failed)
	}
	for _, dir := range []string{"assets", "guide/assets", "guide/api/assets"} {
		out := filepath.Join(docs, filepath.FromSlash(dir), "a.png")
		if _, err := os.Stat(out); err != nil {
			t.Errorf("missing output %s: %v", out, err)
		}
	}

	// A second build is fully cached.
	summary, err = r.Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 0 || summary.Fresh != 6 {
		t.Errorf("second build: processed=%d fresh=%d", summary.Processed, summary.Fresh)
	}
	if resizer.count() != 6 {
		t.Errorf("resize calls: %d, want 6", resizer.count())
	}
}

func TestRun_NoSourceDirectories(t *testing.T) {
	docs := t.TempDir()
	writeFile(t, filepath.Join(docs, "index.md"), "# docs")

	summary, err := New(config.Default(), &countingResizer{}, nil).Run(context.Background(), docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Directories) != 0 {
		t.Errorf("directories: %d, want 0", len(summary.Directories))
	}
}

func TestRun_MissingDocsDir(t *testing.T) {
	_, err := New(config.Default(), &countingResizer{}, nil).Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Error("Run should fail when the docs dir does not exist")
	}
}

func TestRun_DirectoryFailureIsolated(t *testing.T) {
	docs := docsTree(t)
	// Block the target of one directory.
	writeFile(t, filepath.Join(docs, "guide", "assets"), "not a directory")

	summary, err := New(config.Default(), &countingResizer{}, nil).Run(context.Background(), docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.FailedDirectories != 1 {
		t.Errorf("failed directories: %d, want 1", summary.FailedDirectories)
	}
	if summary.Processed != 4 {
		t.Errorf("processed: %d, want 4", summary.Processed)
	}
	for _, d := range summary.Directories {
		blocked := d.SourceDir == filepath.Join(docs, "guide", "assets-large")
		var perr *reconcile.ProcessingError
		if blocked && !errors.As(d.Err, &perr) {
			t.Errorf("blocked directory error: %v", d.Err)
		}
		if !blocked && d.Err != nil {
			t.Errorf("%s: unexpected error %v", d.SourceDir, d.Err)
		}
	}
}

func TestRun_WorkersMatchSequential(t *testing.T) {
	seqDocs := docsTree(t)
	parDocs := docsTree(t)

	seq, err := New(config.Default(), &countingResizer{}, nil).Run(context.Background(), seqDocs)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Workers = 4
	par, err := New(cfg, &countingResizer{}, nil).Run(context.Background(), parDocs)
	if err != nil {
		t.Fatal(err)
	}

	rel := func(root string, dirs []string) []string {
		out := make([]string, len(dirs))
		for i, d := range dirs {
			out[i], _ = filepath.Rel(root, d)
		}
		return out
	}
	if diff := cmp.Diff(rel(seqDocs, sourceDirs(seq)), rel(parDocs, sourceDirs(par))); diff != "" {
		t.Errorf("directory order differs between sequential and parallel runs (-seq +par):\n%s", diff)
	}
	if seq.Processed != par.Processed {
		t.Errorf("processed: sequential %d, parallel %d", seq.Processed, par.Processed)
	}
	for _, d := range par.Directories {
		m, err := manifest.Load(d.SourceDir)
		if err != nil || m.Len() != 2 {
			t.Errorf("%s: manifest entries %d (err %v), want 2", d.SourceDir, m.Len(), err)
		}
	}
}

func TestRun_AliasedSourceDirectoryReconciledOnce(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	docs := t.TempDir()
	source := filepath.Join(docs, "guide", "assets-large")
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(source, fmt.Sprintf("img%02d.png", i)), fmt.Sprintf("image %d", i))
	}
	for i := 0; i < 4; i++ {
		if err := os.Symlink(filepath.Join(docs, "guide"), filepath.Join(docs, fmt.Sprintf("alias%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(filepath.Join(docs, "guide"), filepath.Join(docs, "guide", "loop")); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Workers = 8
	resizer := &countingResizer{}
	summary, err := New(cfg, resizer, nil).Run(context.Background(), docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if diff := cmp.Diff([]string{source}, sourceDirs(summary)); diff != "" {
		t.Errorf("source directories (-want +got):\n%s", diff)
	}
	if resizer.count() != 20 {
		t.Errorf("resize calls: %d, want one per file (20)", resizer.count())
	}
	m, err := manifest.Load(source)
	if err != nil || m.Len() != 20 {
		t.Errorf("manifest entries %d (err %v), want 20", m.Len(), err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	docs := docsTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resizer := &countingResizer{}
	summary, err := New(config.Default(), resizer, nil).Run(ctx, docs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error: %v, want context.Canceled", err)
	}
	if summary == nil {
		t.Fatal("a partial summary should be returned")
	}
	if resizer.count() != 0 {
		t.Errorf("resize calls after cancellation: %d", resizer.count())
	}
}

func TestRun_SummaryRecord(t *testing.T) {
	docs := docsTree(t)
	core, logs := observer.New(zapcore.InfoLevel)

	cfg := config.Default()
	cfg.Recursive = false
	if _, err := New(cfg, &countingResizer{}, zap.New(core)).Run(context.Background(), docs); err != nil {
		t.Fatal(err)
	}

	records := logs.FilterMessage("resized images").All()
	if len(records) != 1 {
		t.Fatalf("summary records: %d, want 1", len(records))
	}
	fields := records[0].ContextMap()
	if fields["source_dir"] != "assets-large" || fields["target_dir"] != "assets" {
		t.Errorf("dir fields: %v / %v", fields["source_dir"], fields["target_dir"])
	}
	if fields["recursive"] != false {
		t.Errorf("recursive field: %v", fields["recursive"])
	}
	if fields["processed"] != int64(6) {
		t.Errorf("processed field: %v (%T)", fields["processed"], fields["processed"])
	}
}

func TestNewWithCodec(t *testing.T) {
	if _, err := NewWithCodec(config.Default(), nil); err != nil {
		t.Fatalf("NewWithCodec with defaults failed: %v", err)
	}

	cfg := config.Default()
	cfg.Filter = "bicubic"
	if _, err := NewWithCodec(cfg, nil); err == nil {
		t.Error("NewWithCodec should reject an unknown filter")
	}
}

func TestOnFiles_ReturnsCollectionUnchanged(t *testing.T) {
	type files struct{ names []string }
	in := &files{names: []string{"index.md"}}

	docs := docsTree(t)
	resizer := &countingResizer{}
	out := OnFiles(context.Background(), New(config.Default(), resizer, nil), docs, in)

	if out != in {
		t.Error("OnFiles must return the same collection")
	}
	if resizer.count() != 6 {
		t.Errorf("resize calls: %d, want 6", resizer.count())
	}

	// A failing build still hands the collection back.
	out = OnFiles(context.Background(), New(config.Default(), resizer, nil), filepath.Join(docs, "missing"), in)
	if out != in {
		t.Error("OnFiles must return the collection even when the build fails")
	}
}
