// Package config reads the engine's environment-variable configuration
// surface. Every option documented in the external-interfaces contract has
// a default, so the engine runs deterministic-only with zero environment
// configured. Grounded on the typed, validated EnvVar/EnvVars pattern
// rather than a YAML file, since this surface is env-var-only by contract.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LLMProvider selects which CompletionClient implementation the engine
// wires up.
type LLMProvider string

const (
	LLMProviderNone   LLMProvider = "none"
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderMock   LLMProvider = "mock"
)

// Config is the fully resolved engine configuration.
type Config struct {
	// LLM
	LLMProvider         LLMProvider
	LLMAPIKey           string // Sensitive: redact in logs via bslog.Sensitive
	LLMModelID          string
	LLMTimeout          time.Duration
	LLMMaxRetries       int
	LLMTemperature      float64
	LLMMaxTokensPerScan int
	LLMRiskThreshold    int

	// File limits
	MaxFileSizeBytes int64

	// Scheduling
	BackgroundFileThreshold int

	// Test harness
	TestHarnessEnabled bool
	TestHarnessTimeout time.Duration

	// Cache
	CacheTTL time.Duration

	// Graph
	MaxGraphDepth int

	// Transport-only (carried for completeness, unused by the engine
	// itself, since there is no HTTP transport layer here)
	CORSOrigins []string
	Host        string
	Port        int

	// Audit
	AuditLogPath string

	// RuleConfigPath optionally overrides internal/rules.DefaultConfig's
	// allow-lists from a YAML file; empty uses the built-in defaults.
	RuleConfigPath string
}

// Default returns the configuration the engine runs with when no
// environment variables are set: deterministic-only, LLM disabled, test
// harness disabled.
func Default() Config {
	return Config{
		LLMProvider:             LLMProviderNone,
		LLMModelID:              "gpt-4o-mini",
		LLMTimeout:              30 * time.Second,
		LLMMaxRetries:           3,
		LLMTemperature:          0.2,
		LLMMaxTokensPerScan:     20000,
		LLMRiskThreshold:        50,
		MaxFileSizeBytes:        500 * 1024,
		BackgroundFileThreshold: 10,
		TestHarnessEnabled:      false,
		TestHarnessTimeout:      5 * time.Second,
		CacheTTL:                10 * time.Minute,
		MaxGraphDepth:           20,
		CORSOrigins:             nil,
		Host:                    "0.0.0.0",
		Port:                    8080,
		AuditLogPath:            "blastshield-audit.ndjson",
		RuleConfigPath:          "",
	}
}

// FromEnv resolves configuration starting from Default and overriding
// with any present environment variable.
func FromEnv() Config {
	c := Default()

	if v, ok := lookup("BLASTSHIELD_LLM_PROVIDER"); ok {
		c.LLMProvider = LLMProvider(strings.ToLower(v))
	}
	if v, ok := lookup("BLASTSHIELD_LLM_API_KEY"); ok {
		c.LLMAPIKey = v
		if c.LLMProvider == LLMProviderNone {
			// credentials present but provider unset: default to openai,
			// matching "absence forces deterministic-only", implying
			// presence should not.
			c.LLMProvider = LLMProviderOpenAI
		}
	}
	if v, ok := lookup("BLASTSHIELD_LLM_MODEL_ID"); ok {
		c.LLMModelID = v
	}
	if v, ok := lookupDuration("BLASTSHIELD_LLM_TIMEOUT_S"); ok {
		c.LLMTimeout = v
	}
	if v, ok := lookupInt("BLASTSHIELD_LLM_MAX_RETRIES"); ok {
		c.LLMMaxRetries = v
	}
	if v, ok := lookupFloat("BLASTSHIELD_LLM_TEMPERATURE"); ok {
		c.LLMTemperature = v
	}
	if v, ok := lookupInt("BLASTSHIELD_LLM_MAX_TOKENS_PER_SCAN"); ok {
		c.LLMMaxTokensPerScan = v
	}
	if v, ok := lookupInt("BLASTSHIELD_LLM_RISK_THRESHOLD"); ok {
		c.LLMRiskThreshold = v
	}
	if v, ok := lookupInt64("BLASTSHIELD_MAX_FILE_SIZE_BYTES"); ok {
		c.MaxFileSizeBytes = v
	}
	if v, ok := lookupInt("BLASTSHIELD_BACKGROUND_FILE_THRESHOLD"); ok {
		c.BackgroundFileThreshold = v
	}
	if v, ok := lookupBool("BLASTSHIELD_TEST_HARNESS_ENABLED"); ok {
		c.TestHarnessEnabled = v
	}
	if v, ok := lookupDuration("BLASTSHIELD_TEST_HARNESS_TIMEOUT_S"); ok {
		c.TestHarnessTimeout = v
	}
	if v, ok := lookupDuration("BLASTSHIELD_CACHE_TTL_S"); ok {
		c.CacheTTL = v
	}
	if v, ok := lookupInt("BLASTSHIELD_MAX_GRAPH_DEPTH"); ok {
		c.MaxGraphDepth = v
	}
	if v, ok := lookup("BLASTSHIELD_CORS_ORIGINS"); ok {
		c.CORSOrigins = strings.Split(v, ",")
	}
	if v, ok := lookup("BLASTSHIELD_HOST"); ok {
		c.Host = v
	}
	if v, ok := lookupInt("BLASTSHIELD_PORT"); ok {
		c.Port = v
	}
	if v, ok := lookup("BLASTSHIELD_AUDIT_LOG_PATH"); ok {
		c.AuditLogPath = v
	}
	if v, ok := lookup("BLASTSHIELD_RULE_CONFIG_PATH"); ok {
		c.RuleConfigPath = v
	}

	return c
}

// DeterministicOnly reports whether the configuration forces the LLM
// refiner off entirely (no credentials, no provider selected).
func (c Config) DeterministicOnly() bool {
	return c.LLMProvider == LLMProviderNone || (c.LLMProvider != LLMProviderMock && c.LLMAPIKey == "")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func lookupInt(key string) (int, bool) {
	v, ok := lookup(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupInt64(key string) (int64, bool) {
	v, ok := lookup(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupFloat(key string) (float64, bool) {
	v, ok := lookup(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func lookupBool(key string) (bool, bool) {
	v, ok := lookup(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func lookupDuration(key string) (time.Duration, bool) {
	n, ok := lookupInt(key)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
