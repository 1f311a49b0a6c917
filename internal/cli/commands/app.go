package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/opensemanticworld/oswgen/internal/archive"
	"github.com/opensemanticworld/oswgen/internal/cache"
	"github.com/opensemanticworld/oswgen/internal/cli/config"
	"github.com/opensemanticworld/oswgen/internal/generator"
	"github.com/opensemanticworld/oswgen/internal/gitrepo"
	"github.com/opensemanticworld/oswgen/internal/history"
	"github.com/opensemanticworld/oswgen/internal/pages"
	"github.com/opensemanticworld/oswgen/internal/pipeline"
	"github.com/opensemanticworld/oswgen/internal/session"
	"github.com/opensemanticworld/oswgen/internal/version"
)

// app is everything one command invocation shares: the session, the
// archive cache, the history store and the builder wired on top of them.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *session.Session
	cache   cache.Cache
	history *history.Store
	builder *pipeline.Builder
}

// newApp wires a builder from cfg. Without a Redis address archives are
// only cached in memory when longRunning is set; a one-shot build fetches
// each archive once anyway.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, longRunning bool) (*app, error) {
	sess, err := session.New(session.Config{
		SiteIRI:         cfg.Site.IRI,
		CredentialsFile: cfg.Site.CredentialsFile,
		HTTPTimeout:     cfg.HTTP.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if _, ok := sess.Credential(); !ok {
		logger.Debug("no credentials for site", zap.String("site", sess.SiteIRI))
	}

	a := &app{cfg: cfg, logger: logger, session: sess}

	a.cache, err = openCache(ctx, cfg.Cache, longRunning)
	if err != nil {
		return nil, err
	}

	if cfg.History.DSN != "" {
		a.history, err = history.Open(ctx, cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	fetchOpts := []archive.Option{archive.WithLogger(logger)}
	if a.cache != nil {
		fetchOpts = append(fetchOpts, archive.WithCache(a.cache))
	}
	fetcher := archive.NewFetcher(cfg.Source.BaseURL, sess.HTTPClient, pages.NewPackageReader(), fetchOpts...)

	gen, err := generator.NewExecGenerator(cfg.Generator.Command, sess,
		generator.WithTimeout(cfg.Generator.Timeout),
		generator.WithExecLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if a.history != nil {
		opts = append(opts, pipeline.WithRecorder(a.history))
	}
	a.builder = pipeline.NewBuilder(
		fetcher,
		generator.NewInvoker(gen, logger),
		gitrepo.NewCommitter(logger),
		pipeline.Config{
			Tool:      version.MustParseTool(version.Current),
			RunNumber: cfg.Build.RunNumber,
			Strict:    cfg.Build.Strict,
		},
		opts...,
	)
	return a, nil
}

func openCache(ctx context.Context, cfg config.CacheConfig, memory bool) (cache.Cache, error) {
	cc := cache.DefaultConfig()
	if cfg.TTL > 0 {
		cc.DefaultTTL = cfg.TTL
	}
	if cfg.RedisAddr == "" {
		if !memory {
			return nil, nil
		}
		return cache.NewMemoryCache(cc), nil
	}
	c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Config:   cc,
	})
	if err != nil {
		return nil, fmt.Errorf("archive cache: %w", err)
	}
	return c, nil
}

// Close releases the cache and the history store
func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	return errors.Join(errs...)
}
