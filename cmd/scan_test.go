package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/model"
)

func TestCollectFiles_WalksProjectForPythonFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "__pycache__"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "__pycache__", "b.py"), []byte("y = 2\n"), 0o644))

	files, err := collectFiles(dir, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "a.py", files[0].Path)
}

func TestCollectFiles_ExplicitFilesListBypassesWalk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.py"), []byte("z = 3\n"), 0o644))

	files, err := collectFiles(dir, []string{"only.py"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "only.py", files[0].Path)
}

func TestWriteReport_TextFormatWritesToFile(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")
	report := model.ScanReport{Summary: "No issues detected."}

	require.NoError(t, writeReport(report, "text", outPath))

	content, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(content), "no issues found")
}

func TestWriteReport_JSONFormatIsValidJSON(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.json")
	report := model.ScanReport{Summary: "No issues detected.", RiskScore: 0}

	require.NoError(t, writeReport(report, "json", outPath))

	var decoded model.ScanReport
	content, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(content, &decoded))
	require.Equal(t, report.Summary, decoded.Summary)
}
