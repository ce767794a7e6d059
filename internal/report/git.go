package report

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// renameScore is the similarity percentage git rename detection requires.
const renameScore = 60

type gitSource struct {
	p       *Provider
	tree    *object.Tree
	baseRef string
	repo    *git.Repository

	// mu serializes object reads; the repository storage is not safe for
	// concurrent use and matrix rows may be scored in parallel.
	mu sync.Mutex
}

// NewGitProvider reads the files of the commit ref resolves to in the repository
// at repoPath. When baseRef is set, renames between baseRef and ref set the
// previous path of the renamed files.
func NewGitProvider(repoPath, ref, baseRef string, opts Options) (*Provider, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	tree, err := resolveTree(repo, ref)
	if err != nil {
		return nil, err
	}

	src := &gitSource{tree: tree, baseRef: baseRef, repo: repo}
	p := newProvider(src, opts)
	src.p = p
	return p, nil
}

// resolveTree resolves a branch, tag, commit hash or revision expression.
func resolveTree(repo *git.Repository, ref string) (*object.Tree, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("resolving ref %q: %w", ref, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("getting commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting tree: %w", err)
	}
	return tree, nil
}

func (s *gitSource) walk(ctx context.Context, fn func(string, []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.p.Excluded(f.Name) {
			return nil
		}
		content, err := f.Contents()
		if err != nil {
			return fmt.Errorf("reading file %s: %w", f.Name, err)
		}
		return fn(f.Name, []byte(content))
	})
}

func (s *gitSource) read(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.tree.File(path)
	if err != nil {
		return nil, fmt.Errorf("getting file %s: %w", path, err)
	}
	content, err := f.Contents()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

func (s *gitSource) previousPaths(ctx context.Context) (map[string]string, error) {
	if s.baseRef == "" {
		return nil, nil
	}
	baseTree, err := resolveTree(s.repo, s.baseRef)
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTreeWithOptions(ctx, baseTree, s.tree, &object.DiffTreeOptions{
		DetectRenames: true,
		RenameScore:   renameScore,
	})
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	previous := make(map[string]string)
	for _, change := range changes {
		from, to := change.From.Name, change.To.Name
		if from != "" && to != "" && from != to {
			previous[to] = from
		}
	}
	return previous, nil
}
