// Package generator drives the external schema-to-code generator that turns
// schema pages into Python data model modules.
package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/opensemanticworld/oswgen/internal/pages"
)

// Request asks the generator to produce one model file
type Request struct {
	// SchemaTitles are the pages treated as schema definitions
	SchemaTitles []string `json:"schema_title"`
	// OfflinePages lets the generator resolve references without
	// fetching from the site
	OfflinePages pages.Set `json:"offline_pages"`
	// ResultModelPath is the file to write
	ResultModelPath string  `json:"result_model_path"`
	Mode            string  `json:"mode"`
	Options         Options `json:"generator_options"`
}

// Result is what one generator invocation reports back
type Result struct {
	WarningMessages     []string `json:"warning_messages"`
	ErrorMessages       []string `json:"error_messages"`
	FetchedSchemaTitles []string `json:"fetched_schema_titles"`
}

// Generator is the external schema fetch and code generation engine
type Generator interface {
	FetchSchema(ctx context.Context, req Request) (*Result, error)
}

// Report summarizes the invocations for one package
type Report struct {
	// Paths holds the generated files, current dialect first
	Paths    []string
	Warnings int
	Errors   int
	// UnknownTitles are fetched schema titles missing from the page set
	UnknownTitles []string
}

// HasErrors reports whether the generator reported any error message
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Invoker runs the generator once per dialect and logs what it reports
type Invoker struct {
	gen    Generator
	logger *zap.Logger
}

// NewInvoker creates an invoker
func NewInvoker(gen Generator, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{gen: gen, logger: logger}
}

// Generate writes one model file per dialect below workdir. Reported
// warnings and errors are logged and counted but never stop generation;
// callers decide what a non-empty error list means. An error is only
// returned when the generator could not be run at all.
func (i *Invoker) Generate(ctx context.Context, titles []string, set pages.Set, workdir string) (*Report, error) {
	report := &Report{}

	for _, d := range Dialects() {
		path := d.OutputPath(workdir)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}

		res, err := i.gen.FetchSchema(ctx, Request{
			SchemaTitles:    titles,
			OfflinePages:    set,
			ResultModelPath: path,
			Mode:            ModeReplace,
			Options:         d.Options(),
		})
		if err != nil {
			return nil, fmt.Errorf("generating %s models at %s: %w", d, path, err)
		}

		log := i.logger.With(zap.Stringer("dialect", d), zap.String("path", path))
		for _, msg := range res.WarningMessages {
			log.Warn("schema fetch warning", zap.String("message", msg))
		}
		for _, msg := range res.ErrorMessages {
			log.Error("schema fetch error", zap.String("message", msg))
		}
		if missing := set.Missing(res.FetchedSchemaTitles); len(missing) > 0 {
			log.Warn("not all fetched schemas are in the offline pages", zap.Strings("titles", missing))
			report.UnknownTitles = appendUnique(report.UnknownTitles, missing...)
		}

		report.Warnings += len(res.WarningMessages)
		report.Errors += len(res.ErrorMessages)
		report.Paths = append(report.Paths, path)
	}

	return report, nil
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
