// Package repo is a porcelain layer over go-git: it exposes a small set of
// high-level operations (stage, commit, status, remote sync) on top of the
// engine's repository, index and reference primitives.
package repo

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	// DefaultRemoteName is the remote a session talks to unless configured
	// otherwise.
	DefaultRemoteName = "origin"

	// InitialCommitMessage is the message of the synthetic empty commit
	// created by Init.
	InitialCommitMessage = "Initial commit"
)

// Fallback identity used when neither the repository config nor the session
// options carry an author.
const (
	fallbackAuthorName  = "gitstore"
	fallbackAuthorEmail = "(none)"
)

// Identity names the author of commits created through a session.
type Identity struct {
	Name  string
	Email string
}

// Credentials authenticate remote operations. A token takes precedence over
// a username/password pair.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Options configure a session. All fields are optional.
type Options struct {
	// Author is used for commits when the repository config has no
	// user.name set.
	Author Identity

	// RemoteName overrides DefaultRemoteName.
	RemoteName string

	// Auth is presented to the remote during push, pull, fetch and clone.
	Auth Credentials
}

// Session owns an open repository handle and performs all porcelain
// operations on it. Handles derived per operation (worktree, index, commit,
// iterators) never outlive the operation that created them.
//
// A Session is not safe for concurrent use; two sessions must not operate
// on the same on-disk repository at the same time.
type Session struct {
	repo *gitlib.Repository
	path string
	opts Options
}

// Open opens the repository at path. It returns ErrNotARepository when the
// path exists but contains no repository.
func Open(path string, opts Options) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gitlib.ErrRepositoryNotExists) {
			return nil, wrapKind(ErrNotARepository, abs, nil)
		}
		return nil, wrapKind(ErrEngine, "open repository", err)
	}
	slog.Debug("repository opened", slog.String("path", abs))
	return &Session{repo: repo, path: abs, opts: opts}, nil
}

// Init creates a new repository at path and seals it with an empty initial
// commit so that a valid HEAD exists afterwards. When remoteURL is set, the
// session's remote is created pointing at it. Init fails with
// ErrAlreadyExists when path already contains a repository.
func Init(path, remoteURL string, opts Options) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainInit(abs, false)
	if err != nil {
		if errors.Is(err, gitlib.ErrRepositoryAlreadyExists) {
			return nil, wrapKind(ErrAlreadyExists, abs, nil)
		}
		return nil, wrapKind(ErrEngine, "init repository", err)
	}
	s := &Session{repo: repo, path: abs, opts: opts}
	if remoteURL != "" {
		if err := s.createRemote(remoteURL); err != nil {
			return nil, err
		}
	}
	if err := s.commitInitial(); err != nil {
		return nil, err
	}
	slog.Debug("repository initialized",
		slog.String("path", abs),
		slog.String("remote", remoteURL),
	)
	return s, nil
}

// Path returns the filesystem root of the repository.
func (s *Session) Path() string {
	return s.path
}

func (s *Session) remoteName() string {
	if s.opts.RemoteName != "" {
		return s.opts.RemoteName
	}
	return DefaultRemoteName
}

func (s *Session) createRemote(url string) error {
	_, err := s.repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: s.remoteName(),
		URLs: []string{url},
	})
	if err != nil && !errors.Is(err, gitlib.ErrRemoteExists) {
		return wrapKind(ErrEngine, "create remote", err)
	}
	return nil
}

func (s *Session) worktree() (*gitlib.Worktree, error) {
	wt, err := s.repo.Worktree()
	if err != nil {
		return nil, wrapKind(ErrEngine, "resolve worktree", err)
	}
	return wt, nil
}

// signature resolves the commit identity: repository config first, then the
// session options, then the fixed fallback identity.
func (s *Session) signature() *object.Signature {
	name, email := "", ""
	if cfg, err := s.repo.ConfigScoped(gitconfig.SystemScope); err == nil && cfg.User.Name != "" {
		name, email = cfg.User.Name, cfg.User.Email
	}
	if name == "" && s.opts.Author.Name != "" {
		name, email = s.opts.Author.Name, s.opts.Author.Email
	}
	if name == "" {
		name, email = fallbackAuthorName, fallbackAuthorEmail
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}
}

func (s *Session) commitInitial() error {
	wt, err := s.worktree()
	if err != nil {
		return err
	}
	sig := s.signature()
	_, err = wt.Commit(InitialCommitMessage, &gitlib.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		return wrapKind(ErrEngine, "initial commit", err)
	}
	return nil
}

// Add stages every untracked, modified and deleted path, like `git add -A`.
// Running it again with no intervening change is a no-op.
func (s *Session) Add() error {
	wt, err := s.worktree()
	if err != nil {
		return err
	}
	if err := wt.AddWithOptions(&gitlib.AddOptions{All: true}); err != nil {
		return wrapKind(ErrEngine, "stage all", err)
	}
	return nil
}

// AddFiles stages exactly the listed paths and returns the subset that
// could not be staged. A non-empty failed list is not an error: partial
// success is the contract for batch staging.
func (s *Session) AddFiles(paths []string) ([]string, error) {
	wt, err := s.worktree()
	if err != nil {
		return nil, err
	}
	var failed []string
	for _, path := range paths {
		if _, err := wt.Add(path); err != nil {
			slog.Debug("stage failed", slog.String("path", path), slog.Any("error", err))
			failed = append(failed, path)
		}
	}
	return failed, nil
}

// RemoveFiles stages deletion of each path, removing it from both index and
// working tree. Paths unknown to the index are returned in the failed
// subset; the rest of the batch still goes through.
func (s *Session) RemoveFiles(paths []string) ([]string, error) {
	wt, err := s.worktree()
	if err != nil {
		return nil, err
	}
	var failed []string
	for _, path := range paths {
		if _, err := wt.Remove(path); err != nil {
			slog.Debug("remove failed", slog.String("path", path), slog.Any("error", err))
			failed = append(failed, path)
		}
	}
	return failed, nil
}

// RemoveDirectory recursively stages deletion of every tracked file under
// dir. It returns ErrPathNotFound when nothing tracked lives under dir.
func (s *Session) RemoveDirectory(dir string) error {
	wt, err := s.worktree()
	if err != nil {
		return err
	}
	if _, err := wt.Remove(dir); err != nil {
		if errors.Is(err, index.ErrEntryNotFound) {
			return wrapKind(ErrPathNotFound, dir, nil)
		}
		return wrapKind(ErrEngine, fmt.Sprintf("remove directory %s", dir), err)
	}
	return nil
}

// Commit turns the current index into a commit on the current branch,
// parented on HEAD. It returns ErrNothingToCommit when the index matches
// HEAD; only Init may create an empty commit.
func (s *Session) Commit(message string) error {
	wt, err := s.worktree()
	if err != nil {
		return err
	}
	staged, err := s.hasStagedChanges(wt)
	if err != nil {
		return err
	}
	if !staged {
		return wrapKind(ErrNothingToCommit, "commit", nil)
	}
	sig := s.signature()
	hash, err := wt.Commit(message, &gitlib.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		if errors.Is(err, gitlib.ErrEmptyCommit) {
			return wrapKind(ErrNothingToCommit, "commit", nil)
		}
		return wrapKind(ErrEngine, "commit", err)
	}
	slog.Debug("commit created", slog.String("hash", hash.String()))
	return nil
}

func (s *Session) hasStagedChanges(wt *gitlib.Worktree) (bool, error) {
	status, err := wt.Status()
	if err != nil {
		return false, wrapKind(ErrEngine, "read status", err)
	}
	for _, st := range status {
		if st.Staging != gitlib.Unmodified && st.Staging != gitlib.Untracked {
			return true, nil
		}
	}
	return false, nil
}

// LastCommitMessage reads the message of the current HEAD commit without
// mutating anything.
func (s *Session) LastCommitMessage() (string, error) {
	commit, err := s.headCommit()
	if err != nil {
		return "", err
	}
	return commit.Message, nil
}

func (s *Session) headCommit() (*object.Commit, error) {
	ref, err := s.repo.Head()
	if err != nil {
		return nil, wrapKind(ErrEngine, "resolve HEAD", err)
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, wrapKind(ErrEngine, "read HEAD commit", err)
	}
	return commit, nil
}
