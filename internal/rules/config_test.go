package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromYAML_PartialOverrideLeavesOtherListsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sleep_equivalents:\n  - custom.sleep\n"), 0o644))

	cfg, err := LoadConfigFromYAML(path)
	require.NoError(t, err)
	require.Equal(t, []string{"custom.sleep"}, cfg.SleepEquivalents)
	require.Equal(t, DefaultConfig().BlockingSinks, cfg.BlockingSinks)
}

func TestLoadConfigFromYAML_MissingFileErrors(t *testing.T) {
	_, err := LoadConfigFromYAML(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoadConfigFromYAML_MalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sleep_equivalents: [unterminated\n"), 0o644))

	_, err := LoadConfigFromYAML(path)
	require.Error(t, err)
}
