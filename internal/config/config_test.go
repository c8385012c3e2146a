package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "origin", cfg.Remote.Name)
	assert.Equal(t, "master", cfg.DefaultBranch)
	assert.Empty(t, cfg.Author.Name)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitstore.yaml")
	content := `
author:
  name: Jane Doe
  email: jane@example.com
remote:
  name: upstream
  url: https://example.com/repo.git
auth:
  token: secret
default_branch: main
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", cfg.Author.Name)
	assert.Equal(t, "jane@example.com", cfg.Author.Email)
	assert.Equal(t, "upstream", cfg.Remote.Name)
	assert.Equal(t, "https://example.com/repo.git", cfg.Remote.URL)
	assert.Equal(t, "secret", cfg.Auth.Token)
	assert.Equal(t, "main", cfg.DefaultBranch)
}

func TestLoadFillsPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("author:\n  name: Solo\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Solo", cfg.Author.Name)
	assert.Equal(t, "origin", cfg.Remote.Name)
	assert.Equal(t, "master", cfg.DefaultBranch)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("author: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
