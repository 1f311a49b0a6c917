package commands

import (
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opensemanticworld/oswgen/internal/cli/config"
	"github.com/opensemanticworld/oswgen/internal/cli/ui"
	"github.com/opensemanticworld/oswgen/internal/logging"
	"github.com/opensemanticworld/oswgen/internal/version"
)

var (
	// Build information - set at build time
	GitCommit = "unknown"
	BuildDate = "unknown"

	configFile string
	verbose    bool
	noColor    bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "oswgen",
		Short: "Generate Python data model packages from OpenSemanticWorld schema packages",
		Long: color.CyanString(`oswgen - OpenSemanticWorld Python package builder

Downloads versioned schema packages, generates pydantic v2 and v1 data
model modules from their Category pages and tags the result so every
generated package maps to exactly one schema package version.`),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor || os.Getenv("NO_COLOR") != "" {
				color.NoColor = true
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./oswgen.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewScheduleCommand())
	rootCmd.AddCommand(NewHistoryCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the oswgen version that is encoded into every release tag, the Git commit, build date and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			kv.AddRow("oswgen version", version.Current)
			kv.AddRow("Git commit", GitCommit)
			kv.AddRow("Build date", BuildDate)
			kv.AddRow("Go version", runtime.Version())
			kv.Render()
		},
	}
}

// loadConfig reads the config named by --config, or oswgen.yml in the
// working directory
func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{File: configFile})
}

func newLogger() *zap.Logger {
	return logging.NewOrNop(verbose)
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
