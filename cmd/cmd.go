// Package cmd wires the gitstore subcommands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/taskforge/gitstore/internal/buildinfo"
	"github.com/taskforge/gitstore/internal/config"
	"github.com/taskforge/gitstore/internal/repo"
)

func Run() error {
	return newApp().Run(os.Args)
}

func newApp() *cli.App {
	var cfg *config.Config

	openSession := func(c *cli.Context) (*repo.Session, error) {
		return repo.Open(c.String("repo"), sessionOptions(cfg))
	}

	return &cli.App{
		Name:    "gitstore",
		Usage:   "stage, commit and synchronize a git repository",
		Version: buildinfo.Version(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repo", Aliases: []string{"C"}, Value: ".", Usage: "repository path"},
			&cli.StringFlag{Name: "config", Usage: "gitstore YAML config file"},
			&cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			var err error
			cfg, err = config.Load(c.String("config"))
			return err
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create a repository with an empty initial commit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "remote", Usage: "remote URL to associate"},
				},
				Action: func(c *cli.Context) error {
					url := c.String("remote")
					if url == "" {
						url = cfg.Remote.URL
					}
					s, err := repo.Init(c.String("repo"), url, sessionOptions(cfg))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "initialized repository at %s\n", s.Path())
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "show the two-axis classification of every path",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "watch", Usage: "re-print on working tree changes"},
				},
				Action: func(c *cli.Context) error {
					s, err := openSession(c)
					if err != nil {
						return err
					}
					if err := printStatus(c, s); err != nil {
						return err
					}
					if !c.Bool("watch") {
						return nil
					}
					return watchStatus(c, s)
				},
			},
			{
				Name:      "add",
				Usage:     "stage the listed paths, or everything without arguments",
				ArgsUsage: "[path ...]",
				Action: func(c *cli.Context) error {
					s, err := openSession(c)
					if err != nil {
						return err
					}
					if c.Args().Len() == 0 {
						return s.Add()
					}
					failed, err := s.AddFiles(c.Args().Slice())
					if err != nil {
						return err
					}
					for _, path := range failed {
						fmt.Fprintf(c.App.ErrWriter, "could not stage %s\n", path)
					}
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "stage deletion of the listed paths",
				ArgsUsage: "path [path ...]",
				Action: func(c *cli.Context) error {
					if c.Args().Len() == 0 {
						return cli.Exit("rm: at least one path required", 1)
					}
					s, err := openSession(c)
					if err != nil {
						return err
					}
					failed, err := s.RemoveFiles(c.Args().Slice())
					if err != nil {
						return err
					}
					for _, path := range failed {
						fmt.Fprintf(c.App.ErrWriter, "could not remove %s\n", path)
					}
					return nil
				},
			},
			{
				Name:      "rmdir",
				Usage:     "recursively stage deletion of a tracked directory",
				ArgsUsage: "dir",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return cli.Exit("rmdir: exactly one directory required", 1)
					}
					s, err := openSession(c)
					if err != nil {
						return err
					}
					return s.RemoveDirectory(c.Args().First())
				},
			},
			{
				Name:  "commit",
				Usage: "commit the index on the current branch",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Required: true},
				},
				Action: func(c *cli.Context) error {
					s, err := openSession(c)
					if err != nil {
						return err
					}
					return s.Commit(c.String("message"))
				},
			},
			{
				Name:  "log",
				Usage: "print the message of the HEAD commit",
				Action: func(c *cli.Context) error {
					s, err := openSession(c)
					if err != nil {
						return err
					}
					msg, err := s.LastCommitMessage()
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, msg)
					return nil
				},
			},
			{
				Name:  "diff",
				Usage: "show unstaged changes, or staged ones with --staged",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "staged", Usage: "diff the index against HEAD"},
					&cli.BoolFlag{Name: "color", Usage: "colorize the diff"},
				},
				Action: func(c *cli.Context) error {
					s, err := openSession(c)
					if err != nil {
						return err
					}
					text, err := s.DiffText(c.Bool("staged"))
					if err != nil {
						return err
					}
					if c.Bool("color") {
						text = colorizeDiff(text)
					}
					fmt.Fprint(c.App.Writer, text)
					return nil
				},
			},
			{
				Name:  "push",
				Usage: "send local commits to the configured remote",
				Action: func(c *cli.Context) error {
					s, err := openSession(c)
					if err != nil {
						return err
					}
					return s.Push()
				},
			},
			{
				Name:  "pull",
				Usage: "fast-forward the current branch to the remote tip",
				Action: func(c *cli.Context) error {
					s, err := openSession(c)
					if err != nil {
						return err
					}
					return s.Pull()
				},
			},
			{
				Name:      "reset",
				Usage:     "move the current branch back N commits",
				ArgsUsage: "N",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return cli.Exit("reset: commit count required", 1)
					}
					n, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return cli.Exit(fmt.Sprintf("reset: invalid count %q", c.Args().First()), 1)
					}
					s, err := openSession(c)
					if err != nil {
						return err
					}
					return s.Reset(n)
				},
			},
			{
				Name:      "clone",
				Usage:     "clone a remote repository into an empty directory",
				ArgsUsage: "url path",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 2 {
						return cli.Exit("clone: url and path required", 1)
					}
					s, err := repo.CloneRepository(c.Args().Get(0), c.Args().Get(1), sessionOptions(cfg))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "cloned into %s\n", s.Path())
					return nil
				},
			},
			{
				Name:      "up-to-date",
				Usage:     "check whether a branch matches its remote tip",
				ArgsUsage: "[branch]",
				Action: func(c *cli.Context) error {
					s, err := openSession(c)
					if err != nil {
						return err
					}
					branch := c.Args().First()
					if branch == "" {
						branch = cfg.DefaultBranch
					}
					up, err := s.BranchUpToDate(branch)
					if err != nil {
						return err
					}
					if up {
						fmt.Fprintf(c.App.Writer, "%s is up to date\n", branch)
						return nil
					}
					fmt.Fprintf(c.App.Writer, "%s differs from the remote\n", branch)
					return nil
				},
			},
		},
	}
}

func sessionOptions(cfg *config.Config) repo.Options {
	return repo.Options{
		Author:     repo.Identity{Name: cfg.Author.Name, Email: cfg.Author.Email},
		RemoteName: cfg.Remote.Name,
		Auth: repo.Credentials{
			Username: cfg.Auth.Username,
			Password: cfg.Auth.Password,
			Token:    cfg.Auth.Token,
		},
	}
}

func printStatus(c *cli.Context, s *repo.Session) error {
	entries, err := s.Status()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(c.App.Writer, "%-10s %-10s %s\n", e.Handling, e.Change, e.Path)
	}
	return nil
}

func watchStatus(c *cli.Context, s *repo.Session) error {
	w, err := s.Watch(0, func() {
		if err := printStatus(c, s); err != nil {
			slog.Error("status", slog.Any("error", err))
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := w.Close(); err != nil {
			slog.Error("watcher close", slog.Any("error", err))
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	<-interrupt
	return nil
}
