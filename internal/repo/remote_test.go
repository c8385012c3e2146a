package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
)

// Remote tests run against bare repositories on the local filesystem,
// served in-process instead of through the git binary.
func init() {
	client.InstallProtocol("file", server.NewClient(server.DefaultLoader))
}

func newBareRemote(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := gitlib.PlainInit(dir, true); err != nil {
		t.Fatalf("init bare remote: %v", err)
	}
	return dir
}

func commitFile(t *testing.T, s *Session, rel, content, message string) {
	t.Helper()
	writeFile(t, s, rel, content)
	if err := s.Add(); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Commit(message); err != nil {
		t.Fatalf("commit %q: %v", message, err)
	}
}

func TestPushAndBranchUpToDate(t *testing.T) {
	remote := newBareRemote(t)
	s, err := Init(t.TempDir(), remote, testOptions())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	commitFile(t, s, "a.txt", "a", "first")

	if err := s.Push(); err != nil {
		t.Fatalf("push: %v", err)
	}
	up, err := s.BranchUpToDate("master")
	if err != nil {
		t.Fatalf("branch up to date: %v", err)
	}
	if !up {
		t.Fatalf("branch should be up to date after push")
	}

	commitFile(t, s, "a.txt", "a2", "second")
	up, err = s.BranchUpToDate("master")
	if err != nil {
		t.Fatalf("branch up to date: %v", err)
	}
	if up {
		t.Fatalf("branch should be ahead of the remote")
	}
}

func TestResetThenPullRestoresRemoteTip(t *testing.T) {
	remote := newBareRemote(t)
	s, err := Init(t.TempDir(), remote, testOptions())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	commitFile(t, s, "a.txt", "a", "first")
	commitFile(t, s, "b.txt", "b", "second")
	if err := s.Push(); err != nil {
		t.Fatalf("push: %v", err)
	}

	if err := s.Reset(1); err != nil {
		t.Fatalf("reset: %v", err)
	}
	msg, err := s.LastCommitMessage()
	if err != nil {
		t.Fatalf("last commit message: %v", err)
	}
	if msg != "first" {
		t.Fatalf("reset landed on %q", msg)
	}
	up, err := s.BranchUpToDate("master")
	if err != nil {
		t.Fatalf("branch up to date: %v", err)
	}
	if up {
		t.Fatalf("branch should be behind the remote after reset")
	}

	if err := s.Pull(); err != nil {
		t.Fatalf("pull: %v", err)
	}
	up, err = s.BranchUpToDate("master")
	if err != nil {
		t.Fatalf("branch up to date: %v", err)
	}
	if !up {
		t.Fatalf("pull should restore the remote tip")
	}
	msg, err = s.LastCommitMessage()
	if err != nil {
		t.Fatalf("last commit message: %v", err)
	}
	if msg != "second" {
		t.Fatalf("pull landed on %q", msg)
	}
}

func TestResetBeyondHistory(t *testing.T) {
	s := newTestSession(t)
	if err := s.Reset(5); err == nil {
		t.Fatalf("reset past the root commit should fail")
	}
}

func TestPullDivergent(t *testing.T) {
	remote := newBareRemote(t)
	s1, err := Init(t.TempDir(), remote, testOptions())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	commitFile(t, s1, "a.txt", "a", "base")
	if err := s1.Push(); err != nil {
		t.Fatalf("push: %v", err)
	}

	s2, err := Init(t.TempDir(), "", testOptions())
	if err != nil {
		t.Fatalf("init second: %v", err)
	}
	if err := s2.Clone(remote, t.TempDir()); err != nil {
		t.Fatalf("clone: %v", err)
	}

	commitFile(t, s1, "a.txt", "a2", "upstream change")
	if err := s1.Push(); err != nil {
		t.Fatalf("push upstream change: %v", err)
	}
	commitFile(t, s2, "a.txt", "b2", "local change")

	if err := s2.Pull(); !errors.Is(err, ErrDivergentHistory) {
		t.Fatalf("expected ErrDivergentHistory, got %v", err)
	}
}

func TestPushDivergent(t *testing.T) {
	remote := newBareRemote(t)
	s1, err := Init(t.TempDir(), remote, testOptions())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	commitFile(t, s1, "a.txt", "a", "base")
	if err := s1.Push(); err != nil {
		t.Fatalf("push: %v", err)
	}

	s2, err := Init(t.TempDir(), "", testOptions())
	if err != nil {
		t.Fatalf("init second: %v", err)
	}
	if err := s2.Clone(remote, t.TempDir()); err != nil {
		t.Fatalf("clone: %v", err)
	}

	commitFile(t, s1, "a.txt", "a2", "upstream change")
	if err := s1.Push(); err != nil {
		t.Fatalf("push upstream change: %v", err)
	}

	// Fetch so the upstream objects are local, then commit on the stale
	// base: the push must be rejected as non-fast-forward.
	if up, err := s2.BranchUpToDate("master"); err != nil || up {
		t.Fatalf("expected stale branch, up=%v err=%v", up, err)
	}
	commitFile(t, s2, "a.txt", "b2", "local change")
	if err := s2.Push(); !errors.Is(err, ErrDivergentHistory) {
		t.Fatalf("expected ErrDivergentHistory, got %v", err)
	}
}

func TestCloneAdoptsRepository(t *testing.T) {
	remote := newBareRemote(t)
	s1, err := Init(t.TempDir(), remote, testOptions())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	commitFile(t, s1, "a.txt", "a", "published")
	if err := s1.Push(); err != nil {
		t.Fatalf("push: %v", err)
	}

	s2, err := Init(t.TempDir(), "", testOptions())
	if err != nil {
		t.Fatalf("init second: %v", err)
	}
	target := t.TempDir()
	if err := s2.Clone(remote, target); err != nil {
		t.Fatalf("clone: %v", err)
	}
	if s2.Path() != target {
		t.Fatalf("clone should adopt the target path, got %q", s2.Path())
	}
	msg, err := s2.LastCommitMessage()
	if err != nil {
		t.Fatalf("last commit message: %v", err)
	}
	if msg != "published" {
		t.Fatalf("unexpected message after clone: %q", msg)
	}
}

func TestCloneIntoNonEmptyPath(t *testing.T) {
	remote := newBareRemote(t)
	s, err := Init(t.TempDir(), "", testOptions())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(target, "occupied.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write occupied.txt: %v", err)
	}
	if err := s.Clone(remote, target); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPushWithoutRemote(t *testing.T) {
	s := newTestSession(t)
	if err := s.Push(); err == nil {
		t.Fatalf("push without a configured remote should fail")
	}
}
