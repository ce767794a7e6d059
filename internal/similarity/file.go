package similarity

import "sync"

// File is what the scorer needs to know about one side of a comparison.
// Callers never depend on whether fingerprints are already in memory.
type File interface {
	Path() string
	LineCount() int
	LineHashes() ([]string, error)
}

// EagerFile holds fingerprints loaded up front.
type EagerFile struct {
	path   string
	hashes []string
}

// NewEagerFile wraps already-loaded fingerprints.
func NewEagerFile(path string, hashes []string) *EagerFile {
	return &EagerFile{path: path, hashes: hashes}
}

func (f *EagerFile) Path() string                  { return f.path }
func (f *EagerFile) LineCount() int                { return len(f.hashes) }
func (f *EagerFile) LineHashes() ([]string, error) { return f.hashes, nil }

// LazyFile knows its line count up front and fetches fingerprints on first use.
// The result, including a fetch error, is cached for the lifetime of the value.
type LazyFile struct {
	path      string
	lineCount int
	fetch     func() ([]string, error)

	mu      sync.Mutex
	fetched bool
	hashes  []string
	err     error
}

// NewLazyFile defers fetch until LineHashes is first called.
func NewLazyFile(path string, lineCount int, fetch func() ([]string, error)) *LazyFile {
	return &LazyFile{path: path, lineCount: lineCount, fetch: fetch}
}

func (f *LazyFile) Path() string   { return f.path }
func (f *LazyFile) LineCount() int { return f.lineCount }

// LineHashes is safe for concurrent use; fetch runs at most once.
func (f *LazyFile) LineHashes() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.fetched {
		f.hashes, f.err = f.fetch()
		f.fetched = true
	}
	return f.hashes, f.err
}

// Fetched reports whether the fingerprints have been requested.
func (f *LazyFile) Fetched() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched
}

// FileSimilarity scores files through their fingerprints.
type FileSimilarity struct {
	source SourceSimilarity
}

// NewFileSimilarity returns a scorer backed by SourceSimilarity.
func NewFileSimilarity() *FileSimilarity {
	return &FileSimilarity{}
}

// Score fetches both files' fingerprints and scores them.
func (s *FileSimilarity) Score(a, b File) (int, error) {
	left, err := a.LineHashes()
	if err != nil {
		return 0, err
	}
	right, err := b.LineHashes()
	if err != nil {
		return 0, err
	}
	return s.source.Score(left, right), nil
}
