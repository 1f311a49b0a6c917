// Package pipeline runs the per-package build: resolve, download, filter,
// generate, and optionally commit and tag.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opensemanticworld/oswgen/internal/generator"
	"github.com/opensemanticworld/oswgen/internal/gitrepo"
	"github.com/opensemanticworld/oswgen/internal/history"
	"github.com/opensemanticworld/oswgen/internal/pages"
	"github.com/opensemanticworld/oswgen/internal/pkgref"
	"github.com/opensemanticworld/oswgen/internal/version"
)

var (
	// ErrGenerationFailed marks packages whose generator reported errors
	// while strict mode is enabled
	ErrGenerationFailed = errors.New("code generation reported errors")

	// ErrCommitFailed marks packages whose generated code could not be
	// committed or tagged
	ErrCommitFailed = errors.New("commit and tag failed")
)

// Fetcher downloads a package and resolves floating references
type Fetcher interface {
	Fetch(ctx context.Context, ref pkgref.Reference) (pages.Set, error)
	LatestVersion(ctx context.Context, name string) (string, error)
}

// Generator writes the model files of one package
type Generator interface {
	Generate(ctx context.Context, titles []string, set pages.Set, workdir string) (*generator.Report, error)
}

// Committer commits and tags generated files
type Committer interface {
	CommitAndTag(ctx context.Context, dir string, files []string, message, tag string) bool
}

// Recorder stores build outcomes
type Recorder interface {
	Record(ctx context.Context, b history.Build) error
}

// Config holds the settings that shape every package build
type Config struct {
	// Tool is the generator tool version encoded into tags
	Tool version.Tool
	// RunNumber is the last tag field. Bump it to tag a rerun that
	// produces different output for the same package and tool version.
	RunNumber int
	// Strict fails a package, and skips its commit, when the generator
	// reports errors
	Strict bool
}

// Option configures a Builder
type Option func(*Builder)

// WithRecorder records every package result
func WithRecorder(r Recorder) Option {
	return func(b *Builder) {
		b.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithRepoCheck replaces the git repository check
func WithRepoCheck(isRepo func(dir string) bool) Option {
	return func(b *Builder) {
		b.isRepo = isRepo
	}
}

// Builder drives the build of a batch of packages
type Builder struct {
	fetcher   Fetcher
	gen       Generator
	committer Committer
	recorder  Recorder
	logger    *zap.Logger
	cfg       Config
	isRepo    func(dir string) bool
	now       func() time.Time
}

// NewBuilder creates a builder
func NewBuilder(fetcher Fetcher, gen Generator, committer Committer, cfg Config, opts ...Option) *Builder {
	b := &Builder{
		fetcher:   fetcher,
		gen:       gen,
		committer: committer,
		logger:    zap.NewNop(),
		cfg:       cfg,
		isRepo:    gitrepo.IsRepo,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result is the outcome of one package
type Result struct {
	// Input is the reference as given by the caller
	Input      string
	Reference  pkgref.Reference
	Tag        string
	WorkingDir string
	Paths      []string
	Report     *generator.Report
	Committed  bool
	Err        error
	Duration   time.Duration
}

// Failed reports whether the package did not build
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Batch is the outcome of one BuildPackages call
type Batch struct {
	ID      string
	Results []*Result
}

// Failed returns the results of packages that did not build
func (b *Batch) Failed() []*Result {
	var failed []*Result
	for _, r := range b.Results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}

// BuildPackages builds every reference in order. A failing package never
// stops the batch; its error is carried in its Result.
func (b *Builder) BuildPackages(ctx context.Context, refs []string, root string, commit bool) *Batch {
	batch := &Batch{ID: uuid.NewString()}
	log := b.logger.With(zap.String("batch_id", batch.ID))

	// git resolves paths against the repository, so everything handed to
	// the committer must be absolute
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	for _, input := range refs {
		started := b.now()
		res := &Result{Input: input}

		if err := ctx.Err(); err != nil {
			res.Err = err
		} else {
			res.Err = b.build(ctx, log, res, root, commit)
		}
		res.Duration = b.now().Sub(started)

		if res.Err != nil {
			log.Error("package build failed", zap.String("package", input), zap.Error(res.Err))
		}
		b.record(ctx, log, batch.ID, res, started)
		batch.Results = append(batch.Results, res)
	}

	log.Info("batch finished",
		zap.Int("packages", len(batch.Results)),
		zap.Int("failed", len(batch.Failed())))
	return batch
}

func (b *Builder) build(ctx context.Context, log *zap.Logger, res *Result, root string, commit bool) error {
	ref, err := pkgref.Parse(res.Input)
	if err != nil {
		return err
	}

	if ref.Floating() {
		v, err := b.fetcher.LatestVersion(ctx, ref.Name)
		if err != nil {
			return fmt.Errorf("resolving latest version of %s: %w", ref.Name, err)
		}
		if err := pkgref.ValidateVersion(v); err != nil {
			return fmt.Errorf("resolving latest version of %s: %w", ref.Name, err)
		}
		ref = ref.WithVersion(v)
		log.Info("resolved latest version", zap.String("package", ref.Name), zap.String("version", v))
	}
	res.Reference = ref

	res.WorkingDir = ref.WorkingDir(root)
	if err := os.MkdirAll(res.WorkingDir, 0755); err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}

	res.Tag = version.Compose(ref.Version, b.cfg.Tool, b.cfg.RunNumber)
	log = log.With(zap.String("package", ref.PythonPackageName()), zap.String("version", res.Tag))
	log.Info("building package", zap.String("path", res.WorkingDir))

	set, err := b.fetcher.Fetch(ctx, ref)
	if err != nil {
		return err
	}

	titles := pages.SchemaTitles(set)
	log.Debug("filtered schema pages", zap.Int("pages", len(set)), zap.Int("schemas", len(titles)))

	report, err := b.gen.Generate(ctx, titles, set, res.WorkingDir)
	if err != nil {
		return err
	}
	res.Report = report
	res.Paths = report.Paths

	if b.cfg.Strict && report.HasErrors() {
		return fmt.Errorf("%w: %d error(s)", ErrGenerationFailed, report.Errors)
	}

	if !commit {
		log.Info("done, skipping commit and tag")
		return nil
	}

	repoDir := ref.RepoDir(root)
	log.Info("done, tagging git repository", zap.String("repo", repoDir))
	if !b.isRepo(repoDir) {
		log.Info("not a git repository, skipping commit and tag", zap.String("repo", repoDir))
		return nil
	}

	if !b.committer.CommitAndTag(ctx, repoDir, res.Paths, "generate code from "+ref.String(), res.Tag) {
		return ErrCommitFailed
	}
	res.Committed = true
	return nil
}

func (b *Builder) record(ctx context.Context, log *zap.Logger, batchID string, res *Result, started time.Time) {
	if b.recorder == nil {
		return
	}

	build := history.Build{
		ID:         uuid.NewString(),
		BatchID:    batchID,
		Package:    res.Reference.Name,
		Version:    res.Reference.Version,
		Tag:        res.Tag,
		Status:     history.StatusSucceeded,
		Committed:  res.Committed,
		StartedAt:  started.UTC(),
		FinishedAt: started.Add(res.Duration).UTC(),
	}
	if build.Package == "" {
		build.Package = res.Input
	}
	if res.Report != nil {
		build.Warnings = res.Report.Warnings
		build.Errors = res.Report.Errors
	}
	if res.Err != nil {
		build.Status = history.StatusFailed
		build.Error = res.Err.Error()
	}

	// recorded even when the batch was canceled
	if err := b.recorder.Record(context.WithoutCancel(ctx), build); err != nil {
		log.Warn("recording build history failed", zap.Error(err))
	}
}
