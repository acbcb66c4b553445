package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the user-extensible allow-lists the rule engine consults.
// SleepEquivalents is the concrete
// "sleep-equivalent" allow-list is left configurable here, defaulting to
// the three named in DESIGN.md's Open Question decision.
type Config struct {
	SleepEquivalents []string
	BlockingSinks    []string
	IOSinks          []string
	Sanitisers       []string
}

// DefaultConfig returns the allow-lists used when the caller does not
// override them.
func DefaultConfig() Config {
	return Config{
		SleepEquivalents: []string{"time.sleep", "asyncio.sleep", "trio.sleep"},
		BlockingSinks: []string{
			"time.sleep", "requests.get", "requests.post", "requests.put",
			"requests.delete", "requests.request", "open",
			"psycopg2.connect", "pymysql.connect", "sqlite3.connect",
		},
		IOSinks: []string{
			"os.system",
			"subprocess.run", "subprocess.call", "subprocess.Popen",
			"open",
		},
		Sanitisers: []string{
			"shlex.quote", "html.escape", "bleach.clean", "sanitize", "escape", "quote",
		},
	}
}

// yamlConfig mirrors Config's fields for partial overrides: an absent
// key in the file leaves the corresponding DefaultConfig allow-list
// untouched, rather than overwriting it with an empty slice.
type yamlConfig struct {
	SleepEquivalents []string `yaml:"sleep_equivalents"`
	BlockingSinks    []string `yaml:"blocking_sinks"`
	IOSinks          []string `yaml:"io_sinks"`
	Sanitisers       []string `yaml:"sanitisers"`
}

// LoadConfigFromYAML reads an allow-list override file and merges it
// onto DefaultConfig, so a caller only needs to name the lists they
// want to extend.
func LoadConfigFromYAML(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading rule config %s: %w", path, err)
	}

	var parsed yamlConfig
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return Config{}, fmt.Errorf("parsing rule config %s: %w", path, err)
	}

	if len(parsed.SleepEquivalents) > 0 {
		cfg.SleepEquivalents = parsed.SleepEquivalents
	}
	if len(parsed.BlockingSinks) > 0 {
		cfg.BlockingSinks = parsed.BlockingSinks
	}
	if len(parsed.IOSinks) > 0 {
		cfg.IOSinks = parsed.IOSinks
	}
	if len(parsed.Sanitisers) > 0 {
		cfg.Sanitisers = parsed.Sanitisers
	}
	return cfg, nil
}
