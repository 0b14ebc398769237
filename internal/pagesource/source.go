package pagesource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/apatheia-labs/docscribe/internal/common"
	"github.com/apatheia-labs/docscribe/internal/extract"
)

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI, default 200 (sufficient for message logs)
	MaxPages int    // 0 = no limit
}

// Source rasterizes a PDF into ordered PNG pages using pdftoppm.
type Source struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewSource(cfg Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	return &Source{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Open renders every page of the document into a temp directory and
// returns a reader that loads one page's bytes at a time. A document
// that cannot be rendered is a job-fatal error wrapped around
// common.ErrBadDocument; no reader is returned.
func (s *Source) Open(ctx context.Context, path string) (extract.PageReader, error) {
	tmpDir, err := os.MkdirTemp("", "docscribe-pages-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := s.runner.Run(ctx, s.cfg.Pdftoppm, "-r", strconv.Itoa(s.cfg.DPI), "-png", path, prefix)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		s.logger.Error("pagesource.render_failed", "path", path, "error", err, "stderr", truncate(string(errb), 2<<10))
		return nil, fmt.Errorf("render %q: %v: %w", path, err, common.ErrBadDocument)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sortByPageNumber(matches)
	if s.cfg.MaxPages > 0 && len(matches) > s.cfg.MaxPages {
		matches = matches[:s.cfg.MaxPages]
	}
	if len(matches) == 0 {
		_ = os.RemoveAll(tmpDir)
		s.logger.Error("pagesource.no_pages", "path", path)
		return nil, fmt.Errorf("render %q: no pages produced: %w", path, common.ErrBadDocument)
	}

	s.logger.Info("pagesource.opened", "path", path, "pages", len(matches), "dpi", s.cfg.DPI)
	return &pageReader{dir: tmpDir, paths: matches}, nil
}

// pageReader walks the rendered page files in order, reading each one
// only when pulled. Forward-only; Close removes the temp directory.
type pageReader struct {
	dir   string
	paths []string
	pos   int
}

func (r *pageReader) Next(ctx context.Context) (extract.Page, error) {
	if err := ctx.Err(); err != nil {
		return extract.Page{}, err
	}
	if r.pos >= len(r.paths) {
		return extract.Page{}, io.EOF
	}
	path := r.paths[r.pos]
	r.pos++

	png, err := os.ReadFile(path)
	if err != nil {
		return extract.Page{}, fmt.Errorf("read page %d: %w", r.pos, err)
	}
	return extract.Page{Index: r.pos, PNG: png}, nil
}

func (r *pageReader) Close() error {
	return os.RemoveAll(r.dir)
}

// sortByPageNumber orders pdftoppm output numerically. Lexical order is
// wrong past page 9 when pdftoppm does not zero-pad.
func sortByPageNumber(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		return pageNumber(paths[i]) < pageNumber(paths[j])
	})
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndexByte(base, '-')
	if idx < 0 {
		return 0
	}
	n, _ := strconv.Atoi(base[idx+1:])
	return n
}
