package repo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pmezard/go-difflib/difflib"
)

// pathChange pairs the two sides of one file's diff. Either side may be nil
// for additions and deletions.
type pathChange struct {
	path string
	from *object.File
	to   *object.File
}

// DiffText renders a unified diff of the staged changes (index against
// HEAD) or the unstaged ones (working tree against index). It returns the
// empty string when the chosen axis has no changes.
func (s *Session) DiffText(staged bool) (string, error) {
	wt, err := s.worktree()
	if err != nil {
		return "", err
	}
	status, err := wt.Status()
	if err != nil {
		return "", wrapKind(ErrEngine, "read status", err)
	}
	headTree, err := s.headTree()
	if err != nil {
		return "", err
	}
	var idx *gitindex.Index
	if staged {
		idx, err = s.repo.Storer.Index()
		if err != nil {
			return "", wrapKind(ErrEngine, "read index", err)
		}
	}

	var paths []string
	for path, st := range status {
		include := false
		if staged {
			include = st.Staging != gitlib.Unmodified && st.Staging != gitlib.Untracked
		} else {
			include = st.Worktree != gitlib.Unmodified && st.Worktree != gitlib.Untracked
		}
		if include {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	var changes []pathChange
	for _, path := range paths {
		var from, to *object.File
		if staged {
			from, err = fileFromTree(headTree, path)
			if err != nil {
				return "", err
			}
			to, err = fileFromIndex(idx, s.repo, path)
		} else {
			from, err = fileFromIndexOrTree(s, headTree, path)
			if err != nil {
				return "", err
			}
			to, err = fileFromDisk(s.path, path)
		}
		if err != nil {
			return "", err
		}
		if from == nil && to == nil {
			continue
		}
		changes = append(changes, pathChange{path: path, from: from, to: to})
	}
	if len(changes) == 0 {
		return "", nil
	}
	return renderUnifiedDiff(changes)
}

func (s *Session) headTree() (*object.Tree, error) {
	ref, err := s.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, wrapKind(ErrEngine, "resolve HEAD", err)
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, wrapKind(ErrEngine, "read HEAD commit", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, wrapKind(ErrEngine, "read HEAD tree", err)
	}
	return tree, nil
}

// fileFromIndexOrTree resolves the index-side base of an unstaged diff,
// falling back to HEAD when the path has no index entry.
func fileFromIndexOrTree(s *Session, tree *object.Tree, path string) (*object.File, error) {
	idx, err := s.repo.Storer.Index()
	if err != nil {
		return nil, wrapKind(ErrEngine, "read index", err)
	}
	f, err := fileFromIndex(idx, s.repo, path)
	if err != nil {
		return nil, err
	}
	if f != nil {
		return f, nil
	}
	return fileFromTree(tree, path)
}

func fileFromTree(tree *object.Tree, path string) (*object.File, error) {
	if tree == nil {
		return nil, nil
	}
	f, err := tree.File(path)
	if err == object.ErrFileNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, wrapKind(ErrEngine, "read tree entry", err)
	}
	return f, nil
}

func fileFromIndex(idx *gitindex.Index, repo *gitlib.Repository, path string) (*object.File, error) {
	if idx == nil || repo == nil {
		return nil, nil
	}
	entry, err := idx.Entry(path)
	if err == gitindex.ErrEntryNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, wrapKind(ErrEngine, "read index entry", err)
	}
	blob, err := object.GetBlob(repo.Storer, entry.Hash)
	if err != nil {
		return nil, wrapKind(ErrEngine, "read blob", err)
	}
	return object.NewFile(entry.Name, entry.Mode, blob), nil
}

func fileFromDisk(root, path string) (*object.File, error) {
	file, err := os.Open(filepath.Join(root, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	handle := NewGuard(file, file.Close)
	defer handle.Release()

	data, err := io.ReadAll(handle.Get())
	if err != nil {
		return nil, err
	}
	mem := &plumbing.MemoryObject{}
	mem.SetType(plumbing.BlobObject)
	if _, err := mem.Write(data); err != nil {
		return nil, err
	}
	blob, err := object.DecodeBlob(mem)
	if err != nil {
		return nil, wrapKind(ErrEngine, "decode blob", err)
	}
	mode := filemode.Regular
	if info, err := handle.Get().Stat(); err == nil {
		if m, err := filemode.NewFromOSFileMode(info.Mode()); err == nil {
			mode = m
		}
	}
	return object.NewFile(path, mode, blob), nil
}

func renderUnifiedDiff(changes []pathChange) (string, error) {
	var b strings.Builder
	for _, ch := range changes {
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n", ch.path, ch.path)

		binary, err := binaryChange(ch)
		if err != nil {
			return "", err
		}
		if binary {
			b.WriteString("(binary files differ)\n")
			continue
		}

		fromLines, err := fileLines(ch.from)
		if err != nil {
			return "", err
		}
		toLines, err := fileLines(ch.to)
		if err != nil {
			return "", err
		}
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        fromLines,
			B:        toLines,
			FromFile: fmt.Sprintf("a/%s", ch.path),
			ToFile:   fmt.Sprintf("b/%s", ch.path),
			Context:  3,
		})
		if err != nil {
			return "", err
		}
		if text == "" {
			b.WriteString("(no textual changes)\n")
			continue
		}
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func binaryChange(ch pathChange) (bool, error) {
	for _, f := range []*object.File{ch.from, ch.to} {
		if f == nil {
			continue
		}
		bin, err := f.IsBinary()
		if err != nil {
			return false, wrapKind(ErrEngine, "probe binary", err)
		}
		if bin {
			return true, nil
		}
	}
	return false, nil
}

func fileLines(f *object.File) ([]string, error) {
	if f == nil {
		return []string{}, nil
	}
	content, err := f.Contents()
	if err != nil {
		return nil, wrapKind(ErrEngine, "read file contents", err)
	}
	return difflib.SplitLines(content), nil
}
