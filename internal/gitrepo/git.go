// Package gitrepo stages, commits and tags generated code in a local git
// working tree, and lists release tags of remote package repositories.
// All operations shell out to the git binary.
package gitrepo

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// TagMessage returns the annotation used for release tags
func TagMessage(tag string) string {
	return "Release " + tag
}

// run executes git in dir and returns trimmed stdout. Stderr is folded into
// the returned error.
func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether dir is the top level of a git working tree. A
// missing directory, a plain directory or a subdirectory of some other
// repository all yield false.
func IsRepo(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
		return false
	}

	top, err := run(context.Background(), abs, "rev-parse", "--show-toplevel")
	if err != nil {
		return false
	}
	return samePath(top, abs)
}

func samePath(a, b string) bool {
	ra, err := filepath.EvalSymlinks(a)
	if err != nil {
		return false
	}
	rb, err := filepath.EvalSymlinks(b)
	if err != nil {
		return false
	}
	return filepath.Clean(ra) == filepath.Clean(rb)
}

// Committer records generated files in a working tree
type Committer struct {
	logger *zap.Logger
}

// NewCommitter creates a committer logging to logger
func NewCommitter(logger *zap.Logger) *Committer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Committer{logger: logger}
}

// CommitAndTag stages files, commits them with hooks disabled and creates
// an annotated tag. It reports failure as false and logs the cause. A
// failure after staging or committing leaves that state in place.
func (c *Committer) CommitAndTag(ctx context.Context, dir string, files []string, message, tag string) bool {
	log := c.logger.With(zap.String("repo", dir), zap.String("tag", tag))

	if !IsRepo(dir) {
		log.Info("not a git repository")
		return false
	}

	if TagExists(ctx, dir, tag) {
		log.Error("tag already exists, skipping commit")
		return false
	}

	paths, err := repoPaths(dir, files)
	if err != nil {
		log.Error("git operation failed", zap.Error(err))
		return false
	}

	add := append([]string{"add", "--"}, paths...)
	if _, err := run(ctx, dir, add...); err != nil {
		log.Error("git operation failed", zap.Error(err))
		return false
	}

	if _, err := run(ctx, dir, "commit", "--no-verify", "--allow-empty", "-m", message); err != nil {
		log.Error("git operation failed", zap.Error(err))
		return false
	}

	if _, err := run(ctx, dir, "tag", "-a", tag, "-m", TagMessage(tag)); err != nil {
		log.Error("git operation failed", zap.Error(err))
		return false
	}

	log.Info("committed generated code and created tag", zap.Strings("files", files))
	return true
}

// TagExists reports whether tag names a tag in the repository at dir
func TagExists(ctx context.Context, dir, tag string) bool {
	_, err := run(ctx, dir, "rev-parse", "-q", "--verify", "refs/tags/"+tag)
	return err == nil
}

// repoPaths makes files relative to dir. Relative files are resolved
// against the working directory of the process, not against dir.
func repoPaths(dir string, files []string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(absDir, abs)
		if err != nil {
			return nil, err
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%s is outside of %s", f, dir)
		}
		paths = append(paths, filepath.ToSlash(rel))
	}
	return paths, nil
}

// LsRemoteTags lists the tag names of a remote repository
func LsRemoteTags(ctx context.Context, url string) ([]string, error) {
	out, err := run(ctx, "", "ls-remote", "--tags", "--refs", url)
	if err != nil {
		return nil, err
	}

	var tags []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		if name, ok := strings.CutPrefix(fields[1], "refs/tags/"); ok {
			tags = append(tags, name)
		}
	}
	return tags, scanner.Err()
}
