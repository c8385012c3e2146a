package repo

import (
	"errors"
	"io"
	"sort"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Handling says where a change currently lives: not yet known to the index,
// staged in the index, sitting unstaged in the working tree, or fully
// committed.
type Handling uint8

const (
	HandlingUnchanged Handling = iota
	HandlingUntracked
	HandlingStaged
	HandlingUnstaged
)

func (h Handling) String() string {
	switch h {
	case HandlingUntracked:
		return "untracked"
	case HandlingStaged:
		return "staged"
	case HandlingUnstaged:
		return "unstaged"
	default:
		return "unchanged"
	}
}

// Change is the nature of a difference against the comparison base: HEAD
// for staged entries, the index for unstaged ones.
type Change uint8

const (
	ChangeUnchanged Change = iota
	ChangeUntracked
	ChangeNewFile
	ChangeModified
	ChangeDeleted
)

func (c Change) String() string {
	switch c {
	case ChangeUntracked:
		return "untracked"
	case ChangeNewFile:
		return "new file"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unchanged"
	}
}

// FileStatus classifies one path on the two axes. A path carrying both a
// staged and an unstaged difference yields two entries, one per axis.
type FileStatus struct {
	Path     string
	Handling Handling
	Change   Change
}

// Status reconciles the two diffs the engine reports per path, index
// against HEAD and working tree against index, into one classified entry
// per (path, axis). Tracked paths with no difference on either axis are
// reported as unchanged. The result is sorted by path, the staged entry
// first when a path appears twice; it never mutates repository state.
func (s *Session) Status() ([]FileStatus, error) {
	wt, err := s.worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, wrapKind(ErrEngine, "read status", err)
	}

	var out []FileStatus
	for path, st := range status {
		if st.Worktree == gitlib.Untracked && st.Staging == gitlib.Untracked {
			out = append(out, FileStatus{Path: path, Handling: HandlingUntracked, Change: ChangeUntracked})
			continue
		}
		// The two axes are independent: a path may carry a staged change
		// against HEAD and a further unstaged edit against the index.
		if change, ok := stagedChange(st.Staging); ok {
			out = append(out, FileStatus{Path: path, Handling: HandlingStaged, Change: change})
		}
		if change, ok := unstagedChange(st.Worktree); ok {
			out = append(out, FileStatus{Path: path, Handling: HandlingUnstaged, Change: change})
		}
	}

	clean, err := s.cleanTrackedPaths(status)
	if err != nil {
		return nil, err
	}
	for _, path := range clean {
		out = append(out, FileStatus{Path: path, Handling: HandlingUnchanged, Change: ChangeUnchanged})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return axisRank(out[i].Handling) < axisRank(out[j].Handling)
	})
	return out, nil
}

// stagedChange maps an index-vs-HEAD status code. Rename and copy codes
// collapse to modified; the engine only emits them with rename detection
// enabled.
func stagedChange(code gitlib.StatusCode) (Change, bool) {
	switch code {
	case gitlib.Added:
		return ChangeNewFile, true
	case gitlib.Modified, gitlib.Renamed, gitlib.Copied:
		return ChangeModified, true
	case gitlib.Deleted:
		return ChangeDeleted, true
	default:
		return ChangeUnchanged, false
	}
}

// unstagedChange maps a workdir-vs-index status code. Untracked is handled
// separately so that a brand-new path yields a single entry.
func unstagedChange(code gitlib.StatusCode) (Change, bool) {
	switch code {
	case gitlib.Modified, gitlib.Renamed, gitlib.Copied:
		return ChangeModified, true
	case gitlib.Deleted:
		return ChangeDeleted, true
	default:
		return ChangeUnchanged, false
	}
}

// cleanTrackedPaths walks the HEAD tree and returns the paths that neither
// diff reported, i.e. the fully committed ones.
func (s *Session) cleanTrackedPaths(status gitlib.Status) ([]string, error) {
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
	iter := tree.Files()
	files := NewGuard(iter, func() error { iter.Close(); return nil })
	defer files.Release()

	var clean []string
	for {
		f, err := files.Get().Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapKind(ErrEngine, "iterate HEAD tree", err)
		}
		if _, changed := status[f.Name]; changed {
			continue
		}
		clean = append(clean, f.Name)
	}
	return clean, nil
}

func axisRank(h Handling) int {
	switch h {
	case HandlingStaged:
		return 0
	case HandlingUnstaged:
		return 1
	default:
		return 2
	}
}
