// Package snapshot reads and records analyses in the movetrack database.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"movetrack/internal/filemove"
	"movetrack/internal/storage"
)

// Provider serves the files of recorded analyses to move detection.
type Provider struct {
	analyses *storage.AnalysisRepository
	files    *storage.FileRepository
	cache    *lru.Cache[string, []string]
	logger   *slog.Logger
}

// NewProvider creates a provider caching the line hashes of up to cacheSize files.
func NewProvider(db *storage.DB, cacheSize int, logger *slog.Logger) (*Provider, error) {
	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating line hash cache: %w", err)
	}
	return &Provider{
		analyses: storage.NewAnalysisRepository(db.Conn()),
		files:    storage.NewFileRepository(db.Conn()),
		cache:    cache,
		logger:   logger,
	}, nil
}

// Files returns the files of an analysis. An empty UUID has no files.
func (p *Provider) Files(ctx context.Context, analysisUUID string) ([]filemove.DBFile, error) {
	if analysisUUID == "" {
		return nil, nil
	}
	records, err := p.files.ListByAnalysis(ctx, analysisUUID)
	if err != nil {
		return nil, err
	}

	files := make([]filemove.DBFile, len(records))
	for i, r := range records {
		files[i] = filemove.DBFile{UUID: r.UUID, Key: r.Key, Path: r.Path, LineCount: r.LineCount}
	}
	return files, nil
}

// LineHashes returns the line hashes of the requested files, reading only the
// ones missing from the cache.
func (p *Provider) LineHashes(ctx context.Context, analysisUUID string, fileUUIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(fileUUIDs))
	var missing []string
	for _, u := range fileUUIDs {
		if hashes, ok := p.cache.Get(cacheKey(analysisUUID, u)); ok {
			out[u] = hashes
			continue
		}
		missing = append(missing, u)
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := p.files.LineHashes(ctx, analysisUUID, missing)
	if err != nil {
		return nil, err
	}
	for u, hashes := range loaded {
		p.cache.Add(cacheKey(analysisUUID, u), hashes)
		out[u] = hashes
	}

	p.logger.Debug("Line hashes loaded",
		"analysis", analysisUUID,
		"requested", len(fileUUIDs),
		"fromCache", len(fileUUIDs)-len(missing),
	)
	return out, nil
}

// Latest returns the latest analysis of a project branch, or nil.
func (p *Provider) Latest(ctx context.Context, project, branch string) (*storage.Analysis, error) {
	return p.analyses.Latest(ctx, project, branch)
}

// FirstAnalysis reports whether the project has never been analyzed.
func (p *Provider) FirstAnalysis(ctx context.Context, project string) (bool, error) {
	found, err := p.analyses.HasAny(ctx, project)
	if err != nil {
		return false, err
	}
	return !found, nil
}

// KnownFiles maps the paths of an analysis' files to their UUIDs.
func (p *Provider) KnownFiles(ctx context.Context, analysisUUID string) (map[string]string, error) {
	files, err := p.Files(ctx, analysisUUID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]string, len(files))
	for _, f := range files {
		if f.Path != "" {
			known[f.Path] = f.UUID
		}
	}
	return known, nil
}

func cacheKey(analysisUUID, fileUUID string) string {
	return analysisUUID + "/" + fileUUID
}
