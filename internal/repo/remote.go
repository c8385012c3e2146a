package repo

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// auth builds the credential presented to the remote. Token beats
// username/password; with neither configured the transport runs
// unauthenticated.
func (s *Session) auth() transport.AuthMethod {
	c := s.opts.Auth
	if c.Token != "" {
		// HTTP token auth is basic auth with any non-empty username.
		return &githttp.BasicAuth{Username: "git", Password: c.Token}
	}
	if c.Username != "" {
		return &githttp.BasicAuth{Username: c.Username, Password: c.Password}
	}
	return nil
}

func (s *Session) remote() (*gitlib.Remote, error) {
	rem, err := s.repo.Remote(s.remoteName())
	if err != nil {
		return nil, wrapKind(ErrEngine, fmt.Sprintf("remote %q", s.remoteName()), err)
	}
	return rem, nil
}

// Push sends local commits on the current branch to the configured remote.
// Divergence is reported as ErrDivergentHistory, never resolved by force.
func (s *Session) Push() error {
	err := s.repo.Push(&gitlib.PushOptions{
		RemoteName: s.remoteName(),
		Auth:       s.auth(),
	})
	switch {
	case err == nil, errors.Is(err, gitlib.NoErrAlreadyUpToDate):
		return nil
	case isNonFastForward(err):
		return wrapKind(ErrDivergentHistory, "push", err)
	default:
		return wrapKind(ErrTransport, "push", err)
	}
}

// Pull fetches from the configured remote and fast-forwards the current
// branch to its tip. Diverged histories fail with ErrDivergentHistory; no
// merge is attempted.
func (s *Session) Pull() error {
	wt, err := s.worktree()
	if err != nil {
		return err
	}
	err = wt.Pull(&gitlib.PullOptions{
		RemoteName: s.remoteName(),
		Auth:       s.auth(),
	})
	switch {
	case err == nil, errors.Is(err, gitlib.NoErrAlreadyUpToDate):
		return nil
	case isNonFastForward(err):
		return wrapKind(ErrDivergentHistory, "pull", err)
	case errors.Is(err, gitlib.ErrUnstagedChanges) || errors.Is(err, gitlib.ErrWorktreeNotClean):
		return wrapKind(ErrEngine, "pull", err)
	default:
		return wrapKind(ErrTransport, "pull", err)
	}
}

// Reset moves the current branch back n commits along the first-parent
// chain and hard-resets index and working tree to match. It fails when n
// exceeds the branch's history.
func (s *Session) Reset(n int) error {
	if n < 0 {
		return fmt.Errorf("reset: depth must be non-negative, got %d", n)
	}
	commit, err := s.headCommit()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		parent, err := commit.Parent(0)
		if err != nil {
			if errors.Is(err, object.ErrParentNotFound) {
				return wrapKind(ErrEngine, fmt.Sprintf("reset: branch has fewer than %d commits", n+1), err)
			}
			return wrapKind(ErrEngine, "reset", err)
		}
		commit = parent
	}
	wt, err := s.worktree()
	if err != nil {
		return err
	}
	if err := wt.Reset(&gitlib.ResetOptions{Commit: commit.Hash, Mode: gitlib.HardReset}); err != nil {
		return wrapKind(ErrEngine, "reset", err)
	}
	slog.Debug("branch reset", slog.Int("commits", n), slog.String("to", commit.Hash.String()))
	return nil
}

// Clone populates path with the full history of url, checks out its
// default branch and adopts the cloned repository as this session's
// repository. It fails with ErrAlreadyExists when path is non-empty.
func (s *Session) Clone(url, path string) error {
	repo, abs, err := cloneInto(url, path, s.opts)
	if err != nil {
		return err
	}
	// Adopt the new handles; the previous repository handle has no
	// release call and is dropped.
	s.repo = repo
	s.path = abs
	return nil
}

// CloneRepository clones url into path and returns a session owning the
// result, without requiring an existing repository first.
func CloneRepository(url, path string, opts Options) (*Session, error) {
	repo, abs, err := cloneInto(url, path, opts)
	if err != nil {
		return nil, err
	}
	return &Session{repo: repo, path: abs, opts: opts}, nil
}

func cloneInto(url, path string, opts Options) (*gitlib.Repository, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	if entries, err := os.ReadDir(abs); err == nil && len(entries) > 0 {
		return nil, "", wrapKind(ErrAlreadyExists, fmt.Sprintf("clone into %s", abs), nil)
	}
	name := opts.RemoteName
	if name == "" {
		name = DefaultRemoteName
	}
	auth := (&Session{opts: opts}).auth()
	repo, err := gitlib.PlainClone(abs, false, &gitlib.CloneOptions{
		URL:        url,
		RemoteName: name,
		Auth:       auth,
	})
	if err != nil {
		return nil, "", wrapKind(ErrTransport, fmt.Sprintf("clone %s", url), err)
	}
	slog.Debug("repository cloned", slog.String("url", url), slog.String("path", abs))
	return repo, abs, nil
}

// BranchUpToDate fetches from the configured remote and reports whether the
// local tip of branch matches the remote one. Local state other than the
// remote-tracking references is left untouched.
func (s *Session) BranchUpToDate(branch string) (bool, error) {
	rem, err := s.remote()
	if err != nil {
		return false, err
	}
	err = rem.Fetch(&gitlib.FetchOptions{Auth: s.auth()})
	if err != nil && !errors.Is(err, gitlib.NoErrAlreadyUpToDate) {
		return false, wrapKind(ErrTransport, "fetch", err)
	}
	local, err := s.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return false, wrapKind(ErrEngine, fmt.Sprintf("local branch %q", branch), err)
	}
	remote, err := s.repo.Reference(plumbing.NewRemoteReferenceName(s.remoteName(), branch), true)
	if err != nil {
		return false, wrapKind(ErrEngine, fmt.Sprintf("remote branch %q", branch), err)
	}
	return local.Hash() == remote.Hash(), nil
}

// isNonFastForward matches the engine's divergence reports. Push wraps the
// sentinel in a formatted message per rejected ref, so the string check is
// needed alongside errors.Is.
func isNonFastForward(err error) bool {
	if errors.Is(err, gitlib.ErrNonFastForwardUpdate) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "non-fast-forward update")
}
