package commands

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opensemanticworld/oswgen/internal/cli/ui"
	"github.com/opensemanticworld/oswgen/internal/history"
	"github.com/opensemanticworld/oswgen/internal/pkgref"
)

var (
	historyLimit   int
	historyPackage string
	historyJSON    bool
)

var errHistoryDisabled = errors.New("build history is disabled: history.dsn is empty")

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded package builds",
		Long:  "List the package builds recorded in the history database, newest first.",
		Example: `  # Last 50 builds
  oswgen history

  # Builds of one package as JSON
  oswgen history --package world.opensemanticworld.package.common --json`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Maximum number of builds to show")
	cmd.Flags().StringVarP(&historyPackage, "package", "p", "", "Only show builds of this package")
	cmd.Flags().BoolVar(&historyJSON, "json", false, "Output builds as JSON")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.DSN == "" {
		return errHistoryDisabled
	}

	ctx := cmd.Context()
	store, err := history.Open(ctx, cfg.History.Driver, cfg.History.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	builds, err := store.List(ctx, history.Filter{Package: historyPackage, Limit: historyLimit})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(builds)
	}

	if len(builds) == 0 {
		if historyPackage == "" {
			ui.Write(out, ui.Message{Level: ui.LevelInfo, Problem: "No builds recorded yet.", NoColor: color.NoColor})
			return nil
		}
		known := configuredNames(cfg.Packages)
		if all, err := store.List(ctx, history.Filter{}); err == nil {
			for _, b := range all {
				known = append(known, b.Package)
			}
		}
		ui.Write(out, ui.NoBuildsFound(historyPackage, ui.Suggest(historyPackage, known), color.NoColor))
		return nil
	}

	table := ui.NewTable(out, color.NoColor, "STARTED", "PACKAGE", "VERSION", "TAG", "STATUS", "COMMITTED", "WARN/ERR")
	for _, b := range builds {
		status := string(b.Status)
		if b.Status == history.StatusFailed && b.Error != "" {
			status += ": " + b.Error
		}
		table.AddRow(
			b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			b.Package,
			b.Version,
			b.Tag,
			status,
			strconv.FormatBool(b.Committed),
			strconv.Itoa(b.Warnings)+"/"+strconv.Itoa(b.Errors),
		)
	}
	table.Render()
	return nil
}

// configuredNames returns the package names of the configured references
func configuredNames(refs []string) []string {
	names := make([]string, 0, len(refs))
	for _, s := range refs {
		if ref, err := pkgref.Parse(s); err == nil {
			names = append(names, ref.Name)
		}
	}
	return names
}
