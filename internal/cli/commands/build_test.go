package commands

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensemanticworld/oswgen/internal/generator"
	"github.com/opensemanticworld/oswgen/internal/history"
	"github.com/opensemanticworld/oswgen/internal/pipeline"
	"github.com/opensemanticworld/oswgen/internal/pkgref"
)

func TestNewBuildCommand(t *testing.T) {
	cmd := NewBuildCommand()

	assert.Equal(t, "build", cmd.Name())
	for _, flag := range []string{"root", "commit", "run-number", "strict", "interactive"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), flag)
	}
}

func TestNewBuildCommand_DocumentsGeneratorProtocol(t *testing.T) {
	long := NewBuildCommand().Long

	for _, field := range []string{`"schema_title"`, `"result_model_path"`, `"generator_options"`, `"warning_messages"`, `"fetched_schema_titles"`} {
		assert.Contains(t, long, field)
	}
	assert.Contains(t, long, "last line")
}

func TestBuild_NoPackages(t *testing.T) {
	cfgPath, _ := writeConfig(t, nil)

	_, stderr, err := execute(context.Background(), "build", "--config", cfgPath)
	require.ErrorIs(t, err, errNoPackages)
	assert.Contains(t, stderr, "NO PACKAGES")
}

func TestBuild_InvalidRunNumber(t *testing.T) {
	cfgPath, _ := writeConfig(t, nil)

	_, _, err := execute(context.Background(), "build", "world.a@v1.0.0", "--run-number", "1000", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestBuild_FailedPackageIsReportedAndRecorded(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "history.db")
	cfgPath, cfgDir := writeConfig(t, map[string]any{
		"source":  map[string]any{"base_url": "ftp://example.org/packages"},
		"history": map[string]any{"driver": "sqlite3", "dsn": dsn},
	})

	stdout, stderr, err := execute(context.Background(), "build", "world.a@v1.0.0", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 packages failed")
	assert.Contains(t, stdout, "✗ world.a@v1.0.0")
	assert.Contains(t, stderr, "BUILD FAILED")
	assert.Contains(t, stderr, "ftp")

	// the working directory exists even though the download was refused
	assert.DirExists(t, filepath.Join(cfgDir, "out", "world.a-python", "src", "world", "a"))

	store, err := history.Open(context.Background(), history.DriverSQLite, dsn)
	require.NoError(t, err)
	defer store.Close()

	builds, err := store.List(context.Background(), history.Filter{})
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "world.a", builds[0].Package)
	assert.Equal(t, "v1.0.0.post000001001000", builds[0].Tag)
	assert.Equal(t, history.StatusFailed, builds[0].Status)
}

func TestBuild_ConfiguredPackages(t *testing.T) {
	cfgPath, _ := writeConfig(t, map[string]any{
		"source":   map[string]any{"base_url": "ftp://example.org/packages"},
		"packages": []string{"world.a@v1.0.0", "world.b@v2.0.0"},
	})

	stdout, _, err := execute(context.Background(), "build", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 packages failed")
	assert.Contains(t, stdout, "✗ world.a@v1.0.0")
	assert.Contains(t, stdout, "✗ world.b@v2.0.0")
}

func TestReportBatch(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	workdir := filepath.Join("root", "world.a-python", "src", "world", "a")
	batch := &pipeline.Batch{Results: []*pipeline.Result{{
		Input:      "world.a@v1.0.0",
		Reference:  pkgref.Reference{Name: "world.a", Version: "v1.0.0"},
		Tag:        "v1.0.0.post000001001000",
		WorkingDir: workdir,
		Paths: []string{
			filepath.Join(workdir, "_model.py"),
			filepath.Join(workdir, "v1", "_model.py"),
		},
		Report:    &generator.Report{Warnings: 2},
		Committed: true,
	}}}

	var out, errOut bytes.Buffer
	require.NoError(t, reportBatch(&out, &errOut, batch, 0))

	assert.Contains(t, out.String(), "✓ world.a@v1.0.0 → v1.0.0.post000001001000 (2 warnings, 0 errors) committed")
	assert.Contains(t, out.String(), "    _model.py\n")
	assert.Contains(t, out.String(), "    "+filepath.Join("v1", "_model.py")+"\n")
	assert.Contains(t, out.String(), "1 packages built")
	assert.Empty(t, errOut.String())
}

func TestReportBatch_Failures(t *testing.T) {
	batch := &pipeline.Batch{Results: []*pipeline.Result{
		{Input: "world.a@v1.0.0", Err: errors.New("boom")},
		{Input: "world.b@v1.0.0", Reference: pkgref.Reference{Name: "world.b", Version: "v1.0.0"}},
	}}

	var out, errOut bytes.Buffer
	err := reportBatch(&out, &errOut, batch, 0)
	require.EqualError(t, err, "1 of 2 packages failed")
	assert.Contains(t, errOut.String(), "world.a@v1.0.0: boom")
}

func TestCompletePackages(t *testing.T) {
	cfgPath, _ := writeConfig(t, map[string]any{
		"packages": []string{"world.a@v1.0.0", "world.ab@v2.0.0", "other@v1"},
	})
	configFile = cfgPath
	defer func() { configFile = "" }()

	got, directive := completePackages(NewBuildCommand(), []string{"world.a@v1.0.0"}, "world.a")
	assert.Equal(t, []string{"world.ab@v2.0.0"}, got)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, unique([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, unique(nil))
}
