package helpers

import (
	"os"
	"testing"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/config"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/logging"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/oapif"
	"github.com/stretchr/testify/require"
)

const (
	// EnvUIURL must point at a running portal for browser tests to run.
	EnvUIURL = "E2E_UI_URL"
	// EnvConfig optionally names a YAML config file.
	EnvConfig = "E2E_CONFIG"
)

// TestContext bundles what browser scenarios need: the loaded config and an
// API client for following download links.
type TestContext struct {
	t         *testing.T
	Config    *config.Config
	APIClient *oapif.Client
}

// SetupE2ETest loads the suite config. It skips the test in short mode and when
// E2E_UI_URL is unset.
func SetupE2ETest(t *testing.T) *TestContext {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping e2e test in short mode")
	}
	if os.Getenv(EnvUIURL) == "" {
		t.Skipf("Skipping e2e test: %s is not set", EnvUIURL)
	}

	cfg, err := config.Load(os.Getenv(EnvConfig))
	require.NoError(t, err, "failed to load e2e config")
	require.NoError(t, logging.Initialize(cfg.LogLevel, logging.PackageLevelsFromEnv()), "invalid LOG_LEVEL_* override")

	client, err := oapif.NewClient(cfg.APIURL)
	require.NoError(t, err)

	return &TestContext{
		t:         t,
		Config:    cfg,
		APIClient: client,
	}
}
