package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexandro/ferret/analysis"
	"github.com/lexandro/ferret/config"
)

func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func Test_AnalyzeCmd_JSON(t *testing.T) {
	root := writeTree(t, map[string]string{
		"budget.xlsx":    "identical bytes",
		"budget_v2.xlsx": "identical bytes",
		"unrelated.txt":  "something else entirely",
	})

	out, err := executeCmd(t, "analyze", root, "--format", "json", "--no-fd", "--log-level", "error", "--env-file", "")
	require.NoError(t, err)

	var results analysis.AnalysisResults
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, 3, results.TotalFiles)
	require.NotNil(t, results.DuplicateResults)
	assert.Equal(t, 1, results.DuplicateResults.TotalDuplicates)
}

func Test_AnalyzeCmd_OutputFile(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "alpha"})
	reportPath := filepath.Join(t.TempDir(), "report.md")

	_, err := executeCmd(t, "analyze", root, "--format", "markdown", "--output", reportPath, "--no-fd", "--log-level", "error", "--env-file", "")
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#")
}

func Test_AnalyzeCmd_MissingRoot(t *testing.T) {
	_, err := executeCmd(t, "analyze", filepath.Join(t.TempDir(), "nope"), "--log-level", "error", "--env-file", "")
	assert.ErrorIs(t, err, analysis.ErrRootNotFound)
}

func Test_AnalyzeCmd_InvalidFlagValue(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "alpha"})
	_, err := executeCmd(t, "analyze", root, "--similarity-threshold", "1.5", "--log-level", "error", "--env-file", "")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func Test_AnalyzeCmd_ZeroSimilarityThreshold(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "alpha"})
	_, err := executeCmd(t, "analyze", root, "--similarity-threshold", "0", "--log-level", "error", "--env-file", "")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func Test_AnalyzeCmd_UnknownFormat(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "alpha"})
	_, err := executeCmd(t, "analyze", root, "--format", "html", "--env-file", "")
	assert.Error(t, err)
}

func Test_loadConfig_FileThenFlags(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "ferret.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("grouping:\n  threshold: 80\nworkers: 2\n"), 0644))

	cmd := &cobra.Command{Use: "test"}
	var flags analysisFlags
	flags.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--workers", "6", "--no-cross-group", "--exclude", "*.bak"}))

	captured, err := loadConfig(&globalOptions{configPath: configPath})
	require.NoError(t, err)
	flags.apply(cmd, &captured)

	assert.Equal(t, 80, captured.Grouping.Threshold)
	assert.Equal(t, 6, captured.Workers)
	assert.False(t, captured.Hashing.CrossGroup)
	assert.Equal(t, []string{"*.bak"}, captured.Discovery.Excludes)
	// Flags not given on the command line keep the file/default value.
	assert.True(t, captured.Discovery.UseFd)
}

func Test_RegisterCmd_Project(t *testing.T) {
	dir := t.TempDir()
	out, err := executeCmd(t, "register", "project", "--dir", dir, "--name", "ferret-docs", "--", "--algorithm", "blake3")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, ".mcp.json"))

	data, err := os.ReadFile(filepath.Join(dir, ".mcp.json"))
	require.NoError(t, err)
	var written struct {
		MCPServers map[string]struct {
			Args []string `json:"args"`
		} `json:"mcpServers"`
	}
	require.NoError(t, json.Unmarshal(data, &written))
	entry, ok := written.MCPServers["ferret-docs"]
	require.True(t, ok)
	assert.Contains(t, entry.Args, "serve")
	assert.Contains(t, entry.Args, "blake3")
	assert.Equal(t, dir, entry.Args[len(entry.Args)-1])
}

func Test_RegisterCmd_UnknownScope(t *testing.T) {
	_, err := executeCmd(t, "register", "global")
	assert.Error(t, err)
}
