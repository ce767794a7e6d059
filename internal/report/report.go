// Package report lists the files of the tree being analyzed and computes their
// line fingerprints.
package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"movetrack/internal/filemove"
	"movetrack/internal/linehash"
)

// binarySniffLen is how much of a file is inspected for NUL bytes.
const binarySniffLen = 8000

// Options configures a provider.
type Options struct {
	// Project prefixes every file key: "<project>:<path>".
	Project string
	// Excludes are doublestar patterns matched against slash-separated relative paths.
	Excludes []string
	// KnownFiles maps paths of the previous snapshot to their UUIDs. Report files at
	// a known path reuse that UUID; others get a new one.
	KnownFiles map[string]string
	Logger     *slog.Logger
}

// source is a file tree a provider reads from.
type source interface {
	// walk calls fn for every regular file, with its slash-separated relative path.
	walk(ctx context.Context, fn func(path string, content []byte) error) error
	read(path string) ([]byte, error)
	// previousPaths maps current paths of renamed files to their previous path.
	previousPaths(ctx context.Context) (map[string]string, error)
}

// Provider implements filemove.ReportFileProvider over a source.
type Provider struct {
	src    source
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	files  []filemove.ReportFile
}

func newProvider(src source, opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{src: src, opts: opts, logger: logger}
}

// Files lists the report's files, sorted by path. The list, including assigned
// UUIDs, is computed once.
func (p *Provider) Files(ctx context.Context) ([]filemove.ReportFile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return p.files, nil
	}

	previous, err := p.src.previousPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("detecting renames: %w", err)
	}

	var files []filemove.ReportFile
	var skipped int
	err = p.src.walk(ctx, func(path string, content []byte) error {
		if isBinary(content) {
			skipped++
			return nil
		}
		files = append(files, filemove.ReportFile{
			UUID:         p.uuidFor(path),
			Key:          p.opts.Project + ":" + path,
			Path:         path,
			LineCount:    linehash.CountLines(content),
			PreviousPath: previous[path],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	p.logger.Debug("Report files listed", "files", len(files), "binarySkipped", skipped, "renames", len(previous))
	p.files = files
	p.loaded = true
	return files, nil
}

// LineHashes reads a file and fingerprints its lines.
func (p *Provider) LineHashes(_ context.Context, file filemove.ReportFile) ([]string, error) {
	content, err := p.src.read(file.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file.Path, err)
	}
	return linehash.Compute(content), nil
}

// Excluded reports whether a file path matches an exclude pattern.
func (p *Provider) Excluded(path string) bool {
	for _, pattern := range p.opts.Excludes {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// excludedDir reports whether every file below dir is excluded by a "<dir>/**" pattern.
func (p *Provider) excludedDir(dir string) bool {
	for _, pattern := range p.opts.Excludes {
		prefix, ok := strings.CutSuffix(pattern, "/**")
		if !ok {
			continue
		}
		if match, _ := doublestar.Match(prefix, dir); match {
			return true
		}
	}
	return false
}

func (p *Provider) uuidFor(path string) string {
	if known, ok := p.opts.KnownFiles[path]; ok {
		return known
	}
	return uuid.New().String()
}

func isBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), binarySniffLen)], 0) >= 0
}
