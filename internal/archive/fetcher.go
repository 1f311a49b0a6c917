// Package archive downloads tagged schema package archives and reads the
// page package they contain.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/opensemanticworld/oswgen/internal/cache"
	"github.com/opensemanticworld/oswgen/internal/gitrepo"
	"github.com/opensemanticworld/oswgen/internal/pages"
	"github.com/opensemanticworld/oswgen/internal/pkgref"
)

// DefaultBaseURL hosts one repository per schema package
const DefaultBaseURL = "https://github.com/OpenSemanticWorld-Packages"

const downloadName = "downloaded.zip"

// RepoURL returns the repository URL of a package
func RepoURL(base, name string) string {
	return strings.TrimSuffix(base, "/") + "/" + name
}

// ArchiveURL returns the tag archive URL:
// <base>/<name>/archive/refs/tags/<version>.zip
func ArchiveURL(base, name, version string) string {
	return RepoURL(base, name) + "/archive/refs/tags/" + version + ".zip"
}

// ValidateScheme rejects URLs that are not http or https
func ValidateScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &InvalidSchemeError{URL: rawURL}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	}
	return &InvalidSchemeError{URL: rawURL, Scheme: u.Scheme}
}

// TagLister lists the tags of a remote repository
type TagLister func(ctx context.Context, repoURL string) ([]string, error)

// Option configures a Fetcher
type Option func(*Fetcher)

// WithCache serves and stores archive bytes through c
func WithCache(c cache.Cache) Option {
	return func(f *Fetcher) {
		f.cache = c
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithTempDir sets the parent directory of scratch directories
func WithTempDir(dir string) Option {
	return func(f *Fetcher) {
		f.tempDir = dir
	}
}

// WithTagLister replaces the git based tag listing
func WithTagLister(l TagLister) Option {
	return func(f *Fetcher) {
		f.listTags = l
	}
}

// Fetcher downloads package archives into scoped scratch directories and
// hands the extracted tree to a page reader.
type Fetcher struct {
	baseURL  string
	client   *http.Client
	reader   pages.Reader
	cache    cache.Cache
	logger   *zap.Logger
	tempDir  string
	listTags TagLister
}

// NewFetcher creates a fetcher. client is the session's shared HTTP client.
func NewFetcher(baseURL string, client *http.Client, reader pages.Reader, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		baseURL:  baseURL,
		client:   client,
		reader:   reader,
		logger:   zap.NewNop(),
		listTags: gitrepo.LsRemoteTags,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads and extracts the archive of ref and returns its pages.
// The scratch directory is removed on every return path.
func (f *Fetcher) Fetch(ctx context.Context, ref pkgref.Reference) (pages.Set, error) {
	archiveURL := ArchiveURL(f.baseURL, ref.Name, ref.Version)
	if err := ValidateScheme(archiveURL); err != nil {
		return nil, err
	}

	tmp, err := os.MkdirTemp(f.tempDir, "oswgen-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			f.logger.Warn("removing scratch directory failed", zap.String("path", tmp), zap.Error(err))
		}
	}()

	zipPath := filepath.Join(tmp, downloadName)
	if err := f.download(ctx, archiveURL, zipPath); err != nil {
		return nil, err
	}

	extracted, err := extractZip(zipPath, tmp)
	if err != nil {
		f.evict(ctx, archiveURL)
		return nil, &ExtractionError{Archive: archiveURL, Err: err}
	}
	f.logger.Debug("extracted archive", zap.String("url", archiveURL), zap.Strings("entries", extracted))

	root := filepath.Join(tmp, ref.ArchiveRoot())
	if !within(tmp, root) {
		return nil, &ExtractionError{Archive: archiveURL, Err: fmt.Errorf("package root %q escapes the scratch directory", ref.ArchiveRoot())}
	}
	set, err := f.reader.ReadPackage(root)
	if err != nil {
		return nil, fmt.Errorf("reading page package %s: %w", ref, err)
	}
	return set, nil
}

func (f *Fetcher) download(ctx context.Context, archiveURL, dest string) error {
	key := cache.ArchiveKey(archiveURL)
	if f.cache != nil {
		data, err := f.cache.Get(ctx, key)
		switch {
		case err == nil:
			f.logger.Debug("archive served from cache", zap.String("url", archiveURL))
			return os.WriteFile(dest, data, 0600)
		case !cache.IsCacheMiss(err):
			f.logger.Warn("archive cache lookup failed", zap.String("url", archiveURL), zap.Error(err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return &DownloadError{URL: archiveURL, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &DownloadError{URL: archiveURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DownloadError{URL: archiveURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return &DownloadError{URL: archiveURL, Err: err}
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	f.logger.Debug("downloaded archive", zap.String("url", archiveURL), zap.Int("bytes", buf.Len()))

	if f.cache != nil {
		if err := f.cache.Set(ctx, key, buf.Bytes(), 0); err != nil {
			f.logger.Warn("storing archive in cache failed", zap.String("url", archiveURL), zap.Error(err))
		}
	}
	return nil
}

// evict drops a cached archive that turned out to be unusable, so the next
// fetch downloads it again
func (f *Fetcher) evict(ctx context.Context, archiveURL string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Delete(ctx, cache.ArchiveKey(archiveURL)); err != nil {
		f.logger.Warn("evicting cached archive failed", zap.String("url", archiveURL), zap.Error(err))
	}
}

// LatestVersion returns the highest semver release tag of a package
// repository. Pre-release tags are only considered when no release exists.
func (f *Fetcher) LatestVersion(ctx context.Context, name string) (string, error) {
	repo := RepoURL(f.baseURL, name)
	tags, err := f.listTags(ctx, repo)
	if err != nil {
		return "", fmt.Errorf("listing tags of %s: %w", repo, err)
	}

	latest := pickLatest(tags, false)
	if latest == "" {
		latest = pickLatest(tags, true)
	}
	if latest == "" {
		return "", fmt.Errorf("no semver tags found in %s", repo)
	}
	return latest, nil
}

func pickLatest(tags []string, allowPrerelease bool) string {
	var best, bestCanon string
	for _, tag := range tags {
		canon := tag
		if !strings.HasPrefix(canon, "v") {
			canon = "v" + canon
		}
		if !semver.IsValid(canon) {
			continue
		}
		if semver.Prerelease(canon) != "" && !allowPrerelease {
			continue
		}
		if best == "" || semver.Compare(canon, bestCanon) > 0 {
			best, bestCanon = tag, canon
		}
	}
	return best
}
