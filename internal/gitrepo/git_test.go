package gitrepo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(context.Background(), dir, args...)
	require.NoError(t, err)
	return out
}

// initRepo creates a repository with one initial commit
func initRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)

	dir := t.TempDir()
	git(t, dir, "init", "-q")
	git(t, dir, "config", "user.email", "builder@example.org")
	git(t, dir, "config", "user.name", "Builder")
	git(t, dir, "config", "commit.gpgsign", "false")
	git(t, dir, "config", "tag.gpgsign", "false")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# pkg\n"), 0644))
	git(t, dir, "add", "README.md")
	git(t, dir, "commit", "-q", "-m", "initial")
	return dir
}

func writeModels(t *testing.T, dir string) []string {
	t.Helper()
	current := filepath.Join(dir, "src", "opensemantic", "core", "_model.py")
	legacy := filepath.Join(dir, "src", "opensemantic", "core", "v1", "_model.py")
	for _, p := range []string{current, legacy} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("class Entity: ...\n"), 0644))
	}
	return []string{current, legacy}
}

func commitCount(t *testing.T, dir string) string {
	return git(t, dir, "rev-list", "--count", "HEAD")
}

func TestIsRepo(t *testing.T) {
	requireGit(t)

	assert.False(t, IsRepo(t.TempDir()))
	assert.False(t, IsRepo(filepath.Join(t.TempDir(), "missing")))

	dir := initRepo(t)
	assert.True(t, IsRepo(dir))

	sub := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(sub, 0755))
	assert.False(t, IsRepo(sub))
}

func TestCommitAndTag(t *testing.T) {
	dir := initRepo(t)
	files := writeModels(t, dir)
	c := NewCommitter(zap.NewNop())

	ok := c.CommitAndTag(context.Background(), dir, files, "generate code from world.opensemantic.core@v0.53.2", "v0.53.2.post000001001000")
	require.True(t, ok)

	assert.Equal(t, "2", commitCount(t, dir))
	assert.Equal(t, "v0.53.2.post000001001000", git(t, dir, "tag", "-l"))
	assert.Equal(t, "Release v0.53.2.post000001001000",
		git(t, dir, "tag", "-l", "--format=%(contents:subject)", "v0.53.2.post000001001000"))

	changed := git(t, dir, "show", "--name-only", "--format=", "HEAD")
	assert.ElementsMatch(t, []string{
		"src/opensemantic/core/_model.py",
		"src/opensemantic/core/v1/_model.py",
	}, strings.Split(changed, "\n"))
}

func TestCommitAndTag_SkipsHooks(t *testing.T) {
	dir := initRepo(t)
	hook := filepath.Join(dir, ".git", "hooks", "pre-commit")
	require.NoError(t, os.WriteFile(hook, []byte("#!/bin/sh\nexit 1\n"), 0755))

	ok := NewCommitter(nil).CommitAndTag(context.Background(), dir, writeModels(t, dir), "generate", "v1.0.0.post000001001000")
	assert.True(t, ok)
}

func TestCommitAndTag_DuplicateTag(t *testing.T) {
	dir := initRepo(t)
	files := writeModels(t, dir)

	core, logs := observer.New(zapcore.InfoLevel)
	c := NewCommitter(zap.New(core))

	require.True(t, c.CommitAndTag(context.Background(), dir, files, "first", "v1.0.0.post000001001000"))
	require.Equal(t, "2", commitCount(t, dir))

	assert.False(t, c.CommitAndTag(context.Background(), dir, files, "second", "v1.0.0.post000001001000"))
	assert.False(t, c.CommitAndTag(context.Background(), dir, files, "third", "v1.0.0.post000001001000"))

	// no empty commits pile up on reruns
	assert.Equal(t, "2", commitCount(t, dir))
	assert.Equal(t, "v1.0.0.post000001001000", git(t, dir, "tag", "-l"))
	assert.Equal(t, 2, logs.FilterMessage("tag already exists, skipping commit").Len())
}

func TestTagExists(t *testing.T) {
	dir := initRepo(t)
	assert.False(t, TagExists(context.Background(), dir, "v1"))

	git(t, dir, "tag", "-a", "v1", "-m", "Release v1")
	assert.True(t, TagExists(context.Background(), dir, "v1"))
}

// chdir switches the working directory for the rest of the test
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestCommitAndTag_RelativePaths(t *testing.T) {
	requireGit(t)
	base := t.TempDir()
	repo := filepath.Join(base, "python_packages", "opensemantic.core-python")
	require.NoError(t, os.MkdirAll(repo, 0755))
	git(t, repo, "init", "-q")
	git(t, repo, "config", "user.email", "builder@example.org")
	git(t, repo, "config", "user.name", "Builder")
	git(t, repo, "config", "commit.gpgsign", "false")
	git(t, repo, "config", "tag.gpgsign", "false")
	writeModels(t, repo)

	chdir(t, base)
	relRepo := filepath.Join("python_packages", "opensemantic.core-python")
	files := []string{
		filepath.Join(relRepo, "src", "opensemantic", "core", "_model.py"),
		filepath.Join(relRepo, "src", "opensemantic", "core", "v1", "_model.py"),
	}

	require.True(t, NewCommitter(nil).CommitAndTag(context.Background(), relRepo, files, "generate", "v1.0.0.post000001001000"))

	changed := git(t, repo, "show", "--name-only", "--format=", "HEAD")
	assert.ElementsMatch(t, []string{
		"src/opensemantic/core/_model.py",
		"src/opensemantic/core/v1/_model.py",
	}, strings.Split(changed, "\n"))
}

func TestCommitAndTag_FileOutsideRepository(t *testing.T) {
	dir := initRepo(t)
	outside := filepath.Join(t.TempDir(), "_model.py")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))

	assert.False(t, NewCommitter(nil).CommitAndTag(context.Background(), dir, []string{outside}, "msg", "v1"))
	assert.Equal(t, "1", commitCount(t, dir))
}

func TestCommitAndTag_NotARepository(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()

	assert.False(t, NewCommitter(nil).CommitAndTag(context.Background(), dir, nil, "msg", "v1"))
}

func TestCommitAndTag_MissingFile(t *testing.T) {
	dir := initRepo(t)

	ok := NewCommitter(nil).CommitAndTag(context.Background(), dir, []string{filepath.Join(dir, "absent.py")}, "msg", "v1")
	assert.False(t, ok)
	assert.Empty(t, git(t, dir, "tag", "-l"))
}

func TestLsRemoteTags(t *testing.T) {
	dir := initRepo(t)
	git(t, dir, "tag", "v0.1.0")
	git(t, dir, "tag", "-a", "v0.2.0", "-m", "annotated")

	tags, err := LsRemoteTags(context.Background(), dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v0.1.0", "v0.2.0"}, tags)
}

func TestLsRemoteTags_InvalidRemote(t *testing.T) {
	requireGit(t)

	_, err := LsRemoteTags(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestTagMessage(t *testing.T) {
	assert.Equal(t, "Release v1.post000001001000", TagMessage("v1.post000001001000"))
}
