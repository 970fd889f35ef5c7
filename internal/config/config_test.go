package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldermed/psurd/internal/provider"
	"github.com/caldermed/psurd/internal/template"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL",
		"OPENAI_API_KEY", "OPENAI_MODEL",
		"GOOGLE_API_KEY", "GOOGLE_MODEL",
		"XAI_API_KEY", "XAI_MODEL",
		"PSURD_ADDR", "PSURD_MCP_ADDR", "PSURD_MAX_REVISIONS", "PSURD_RETRY_ATTEMPTS",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearProviderEnv(t)

	s, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, ":8080", s.Addr)
	assert.Equal(t, DefaultMaxRevisions, s.MaxRevisions)
	assert.Equal(t, DefaultRetryAttempts, s.RetryAttempts)
	assert.Empty(t, s.Credentials)
}

func TestLoad_EnvironmentCredentials(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PSURD_MAX_REVISIONS", "5")

	s, err := Load("", "")
	require.NoError(t, err)

	cred, ok := s.Credentials[provider.VendorOpenAI]
	require.True(t, ok)
	assert.Equal(t, "sk-test", cred.APIKey)
	assert.Equal(t, DefaultOpenAIModel, cred.DefaultModel)
	assert.Equal(t, 5, s.MaxRevisions)
}

func TestLoad_CredentialsFile(t *testing.T) {
	clearProviderEnv(t)

	path := filepath.Join(t.TempDir(), "credentials.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[anthropic]
api_key = "sk-file"
model = "claude-sonnet-4-5"

[google]
api_key = "g-file"
`), 0o600))

	s, err := Load("", path)
	require.NoError(t, err)

	assert.Equal(t, "sk-file", s.Credentials[provider.VendorAnthropic].APIKey)
	assert.Equal(t, "claude-sonnet-4-5", s.Credentials[provider.VendorAnthropic].DefaultModel)
	// File entry without a model falls back to the built-in default.
	assert.Equal(t, DefaultGoogleModel, s.Credentials[provider.VendorGoogle].DefaultModel)
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")

	path := filepath.Join(t.TempDir(), "credentials.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[anthropic]
api_key = "sk-file"
model = "claude-sonnet-4-5"
`), 0o600))

	s, err := Load("", path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", s.Credentials[provider.VendorAnthropic].APIKey)
	// Env key without an env model keeps the file's model.
	assert.Equal(t, "claude-sonnet-4-5", s.Credentials[provider.VendorAnthropic].DefaultModel)
}

func TestLoad_MissingCredentialsFileIsError(t *testing.T) {
	clearProviderEnv(t)
	_, err := Load("", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	clearProviderEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("XAI_API_KEY=xai-test\n"), 0o600))

	s, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "xai-test", s.Credentials[provider.VendorXAI].APIKey)

	os.Unsetenv("XAI_API_KEY")
}

func TestRoster_CoversEverySectionAgent(t *testing.T) {
	roster := Roster()
	for _, sec := range template.Builtin().Sections {
		a, ok := roster[sec.Agent]
		require.True(t, ok, "no roster entry for agent %s (section %s)", sec.Agent, sec.ID)
		assert.Equal(t, "author", a.Role)
		assert.NotEmpty(t, a.PreferredProvider)
	}
	assert.Equal(t, "qc", roster[QCAgentName].Role)
	assert.Equal(t, "orchestrator", roster[OrchestratorAgentName].Role)
}
