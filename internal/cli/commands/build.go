package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opensemanticworld/oswgen/internal/cli/config"
	"github.com/opensemanticworld/oswgen/internal/cli/ui"
	"github.com/opensemanticworld/oswgen/internal/pipeline"
)

var (
	buildRoot        string
	buildCommit      bool
	buildRunNumber   int
	buildStrict      bool
	buildInteractive bool
)

var errNoPackages = errors.New("no packages to build")

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [name@version ...]",
		Short: "Generate Python packages for schema package references",
		Long: `Build one Python package per schema package reference.

For every reference:
  1. Download the schema package archive for the version tag
  2. Collect the Category pages it ships
  3. Generate <root>/<name>-python/src/<name as path>/_model.py (pydantic v2)
     and v1/_model.py (pydantic v1)
  4. With --commit, commit both files and create the annotated tag
     <version>.post<major><minor><patch><run>

A reference without @version builds the newest release tag. Without
arguments the packages listed in the config file are built.

The generator (generator.command) is run once per model file. It reads a
JSON request on stdin:
  {"schema_title": [...], "offline_pages": {...}, "result_model_path": "...",
   "mode": "replace", "generator_options": {"output_model_type": "...",
   "disable_timestamp": true}}
and writes a JSON result to stdout:
  {"warning_messages": [...], "error_messages": [...],
   "fetched_schema_titles": [...]}
The result must be all of stdout or its last line. Earlier stdout lines
and all of stderr are logged with --verbose. The site and login are
passed as OSW_SITE, OSW_USERNAME and OSW_PASSWORD.`,
		Example: `  # Build a single package version
  oswgen build world.opensemanticworld.package.common@v0.1.0

  # Build, commit and tag into a custom root
  oswgen build --root ./packages --commit world.opensemanticworld.package.common@v0.1.0

  # Tag a rerun of the same package and tool version
  oswgen build --commit --run-number 1 world.opensemanticworld.package.common@v0.1.0

  # Pick from the configured packages
  oswgen build --interactive`,
		ValidArgsFunction: completePackages,
		RunE:              runBuild,
	}

	cmd.Flags().StringVarP(&buildRoot, "root", "r", "", "Directory holding the <name>-python repositories (default: build.root)")
	cmd.Flags().BoolVar(&buildCommit, "commit", false, "Commit the generated models and create a release tag")
	cmd.Flags().IntVar(&buildRunNumber, "run-number", 0, "Run number encoded as the last tag field (0-999)")
	cmd.Flags().BoolVar(&buildStrict, "strict", false, "Fail a package when the generator reports errors")
	cmd.Flags().BoolVarP(&buildInteractive, "interactive", "i", false, "Select packages and confirm the commit interactively")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyBuildFlags(cmd, cfg); err != nil {
		return err
	}

	refs := args
	if len(refs) == 0 {
		refs = cfg.Packages
	}
	commit := buildCommit
	if buildInteractive {
		refs, commit, err = promptBuild(unique(append(append([]string{}, cfg.Packages...), args...)), refs, commit)
		if err != nil {
			return err
		}
	}
	if len(refs) == 0 {
		ui.Write(cmd.ErrOrStderr(), ui.NoPackages(color.NoColor))
		return errNoPackages
	}

	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	batch := a.builder.BuildPackages(cmd.Context(), refs, cfg.Build.Root, commit)
	return reportBatch(cmd.OutOrStdout(), cmd.ErrOrStderr(), batch, time.Since(startTime))
}

// applyBuildFlags overrides config values with the flags that were set
func applyBuildFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Build.Root = buildRoot
	}
	if flags.Changed("run-number") {
		cfg.Build.RunNumber = buildRunNumber
	}
	if flags.Changed("strict") {
		cfg.Build.Strict = buildStrict
	}
	return config.Validate(cfg)
}

func promptBuild(options, selected []string, commit bool) ([]string, bool, error) {
	if len(options) == 0 {
		return nil, false, errNoPackages
	}

	var picked []string
	if err := survey.AskOne(&survey.MultiSelect{
		Message: "Packages to build:",
		Options: options,
		Default: selected,
	}, &picked, survey.WithValidator(survey.MinItems(1))); err != nil {
		return nil, false, err
	}

	if err := survey.AskOne(&survey.Confirm{
		Message: "Commit and tag the generated models?",
		Default: commit,
	}, &commit); err != nil {
		return nil, false, err
	}
	return picked, commit, nil
}

// reportBatch prints one line per package and a failure summary. It
// returns an error when any package failed.
func reportBatch(out, errOut io.Writer, batch *pipeline.Batch, elapsed time.Duration) error {
	nc := color.NoColor
	gray := color.New(color.FgHiBlack)

	for _, r := range batch.Results {
		if r.Failed() {
			fmt.Fprintln(out, ui.Failure(r.Input, nc))
			continue
		}

		line := ui.Success(fmt.Sprintf("%s → %s", r.Reference, r.Tag), nc)
		if r.Report != nil && (r.Report.Warnings > 0 || r.Report.Errors > 0) {
			line += gray.Sprintf(" (%d warnings, %d errors)", r.Report.Warnings, r.Report.Errors)
		}
		if r.Committed {
			line += gray.Sprint(" committed")
		}
		fmt.Fprintln(out, line)
		for _, p := range r.Paths {
			if rel, err := filepath.Rel(r.WorkingDir, p); err == nil {
				p = rel
			}
			gray.Fprintf(out, "    %s\n", p)
		}
	}

	failed := batch.Failed()
	if len(failed) == 0 {
		fmt.Fprintf(out, "\n%d packages built in %s\n", len(batch.Results), elapsed.Round(time.Millisecond))
		return nil
	}

	details := make([]string, 0, len(failed))
	for _, r := range failed {
		details = append(details, fmt.Sprintf("%s: %v", r.Input, r.Err))
	}
	fmt.Fprintln(errOut)
	ui.Write(errOut, ui.BuildFailed(len(failed), len(batch.Results), details, nc))
	return fmt.Errorf("%d of %d packages failed", len(failed), len(batch.Results))
}

// completePackages offers the configured references not yet on the line
func completePackages(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, p := range cfg.Packages {
		if strings.HasPrefix(p, toComplete) && !slices.Contains(args, p) {
			out = append(out, p)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
