// Package config loads process configuration: provider credentials from
// the environment and an optional TOML file, and the static agent roster.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/caldermed/psurd/internal/provider"
)

// Defaults applied when neither environment nor file says otherwise.
const (
	DefaultMaxRevisions  = 3
	DefaultRetryAttempts = 3

	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultOpenAIModel    = "gpt-5.2"
	DefaultGoogleModel    = "gemini-2.5-pro"
	DefaultXAIModel       = "grok-4"
)

// Settings is everything the process needs at startup. Built once by
// Load; read-only afterwards.
type Settings struct {
	Addr    string
	MCPAddr string

	Credentials provider.CredentialTable

	// MaxRevisions bounds QC iterations per section; RetryAttempts bounds
	// transient retries inside one runner invocation.
	MaxRevisions   int
	RetryAttempts  int
}

// credentialsFile mirrors the optional credentials.toml layout:
//
//	[anthropic]
//	api_key = "sk-..."
//	model = "claude-sonnet-4-5"
type credentialsFile struct {
	Anthropic vendorCreds `toml:"anthropic"`
	OpenAI    vendorCreds `toml:"openai"`
	Google    vendorCreds `toml:"google"`
	XAI       vendorCreds `toml:"xai"`
}

type vendorCreds struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// Load builds Settings from, in increasing precedence: built-in defaults,
// the credentials file (if path is non-empty and exists), a .env file (if
// envPath is non-empty), and the process environment. A missing
// credentials file at an explicitly given path is an error; a missing
// .env is not, matching the usual dev-versus-deploy split.
func Load(envPath, credentialsPath string) (*Settings, error) {
	if envPath != "" {
		// Ignore a missing .env; env vars may come from the real
		// environment in deployment.
		_ = godotenv.Load(envPath)
	}

	table := provider.CredentialTable{}

	if credentialsPath != "" {
		var file credentialsFile
		if _, err := toml.DecodeFile(credentialsPath, &file); err != nil {
			return nil, fmt.Errorf("config: read credentials %s: %w", credentialsPath, err)
		}
		fromFile := map[string]vendorCreds{
			provider.VendorAnthropic: file.Anthropic,
			provider.VendorOpenAI:    file.OpenAI,
			provider.VendorGoogle:    file.Google,
			provider.VendorXAI:       file.XAI,
		}
		for vendor, vc := range fromFile {
			if vc.APIKey != "" {
				table[vendor] = provider.Credential{APIKey: vc.APIKey, DefaultModel: vc.Model}
			}
		}
	}

	// Environment wins over the file.
	envKeys := map[string]struct{ key, model, fallback string }{
		provider.VendorAnthropic: {"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", DefaultAnthropicModel},
		provider.VendorOpenAI:    {"OPENAI_API_KEY", "OPENAI_MODEL", DefaultOpenAIModel},
		provider.VendorGoogle:    {"GOOGLE_API_KEY", "GOOGLE_MODEL", DefaultGoogleModel},
		provider.VendorXAI:       {"XAI_API_KEY", "XAI_MODEL", DefaultXAIModel},
	}
	for vendor, names := range envKeys {
		if key := os.Getenv(names.key); key != "" {
			model := os.Getenv(names.model)
			if model == "" {
				if existing, ok := table[vendor]; ok && existing.DefaultModel != "" {
					model = existing.DefaultModel
				} else {
					model = names.fallback
				}
			}
			table[vendor] = provider.Credential{APIKey: key, DefaultModel: model}
		} else if cred, ok := table[vendor]; ok && cred.DefaultModel == "" {
			cred.DefaultModel = names.fallback
			table[vendor] = cred
		}
	}

	s := &Settings{
		Addr:          envOr("PSURD_ADDR", ":8080"),
		MCPAddr:       os.Getenv("PSURD_MCP_ADDR"),
		Credentials:   table,
		MaxRevisions:  envInt("PSURD_MAX_REVISIONS", DefaultMaxRevisions),
		RetryAttempts: envInt("PSURD_RETRY_ATTEMPTS", DefaultRetryAttempts),
	}
	return s, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
