package report

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// RenamesFile is the optional file of a directory report declaring renames.
const RenamesFile = "renames.toml"

type renamesDoc struct {
	Renames []struct {
		From string `toml:"from"`
		To   string `toml:"to"`
	} `toml:"rename"`
}

type directorySource struct {
	root    string
	p       *Provider
	renames string
}

// NewDirectoryProvider reads the files below root. When root holds a renames.toml
// file, its entries set the previous path of renamed files:
//
//	[[rename]]
//	from = "src/old.go"
//	to = "src/new.go"
func NewDirectoryProvider(root string, opts Options) *Provider {
	src := &directorySource{root: root, renames: filepath.Join(root, RenamesFile)}
	p := newProvider(src, opts)
	src.p = p
	return p
}

func (s *directorySource) walk(ctx context.Context, fn func(string, []byte) error) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && s.p.excludedDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || path == s.renames {
			return nil
		}
		if s.p.Excluded(rel) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		return fn(rel, content)
	})
}

func (s *directorySource) read(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
}

func (s *directorySource) previousPaths(context.Context) (map[string]string, error) {
	if _, err := os.Stat(s.renames); os.IsNotExist(err) {
		return nil, nil
	}

	var doc renamesDoc
	if _, err := toml.DecodeFile(s.renames, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", RenamesFile, err)
	}
	previous := make(map[string]string, len(doc.Renames))
	for _, r := range doc.Renames {
		if r.From == "" || r.To == "" {
			return nil, fmt.Errorf("%s: rename entries need both from and to", RenamesFile)
		}
		previous[r.To] = r.From
	}
	return previous, nil
}
