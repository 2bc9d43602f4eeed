package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
)

// loadTestConfig sets the package config to the defaults.
func loadTestConfig(t *testing.T) {
	t.Helper()
	c, err := config.Load()
	require.NoError(t, err)
	cfg = c
}

func TestAppEnv_Close_Nil(t *testing.T) {
	env := &appEnv{}
	assert.NotPanics(t, func() {
		env.Close()
	})
}

func TestInitApp_NoStore(t *testing.T) {
	loadTestConfig(t)

	env, err := initApp(context.Background(), config.ModeAnalyze)
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Store)
	assert.Nil(t, env.Placement)
	assert.Nil(t, env.Reports)
	require.NotNil(t, env.Router)
	assert.False(t, env.Gateway.Available(), "no provider is configured")

	res := env.Router.Analyze(context.Background(), model.ClaimAuditInput{
		Items: []model.LineItem{{Description: "Laminated shingles", Quantity: 10, QuotedPrice: 4000}},
	})
	assert.True(t, res.Success)
	assert.Equal(t, "v1-rules", res.Version)
}

func TestInitApp_RequiresStoreForPlacement(t *testing.T) {
	loadTestConfig(t)

	env, err := initApp(context.Background(), config.ModePlace)
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestInitApp_BadRulePack(t *testing.T) {
	loadTestConfig(t)
	cfg.Rules.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := initApp(context.Background(), config.ModeHealth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load rule pack")
}

func TestInitApp_SQLite(t *testing.T) {
	loadTestConfig(t)
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "maxclaim.db")

	env, err := initApp(context.Background(), config.ModeServe)
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Store)
	require.NotNil(t, env.Placement)

	n, err := env.Store.UpsertPrices(context.Background(), env.Rules.PriceTable())
	require.NoError(t, err)
	assert.Positive(t, n)

	h := env.Router.Health(context.Background())
	assert.True(t, h.Versions[1].Available, "database analyzer is available with a live store")

	a := newAPI(env)
	assert.NotNil(t, a.audits)
	assert.NotNil(t, a.placements)
	assert.Nil(t, a.reports)
	assert.True(t, a.saveAudits)
}

func TestInitApp_ReportsEnabled(t *testing.T) {
	loadTestConfig(t)
	cfg.Reports.Endpoint = "localhost:9000"
	cfg.Reports.UseSSL = false

	env, err := initApp(context.Background(), config.ModeValidate)
	require.NoError(t, err)
	defer env.Close()
	assert.NotNil(t, env.Reports)
}

func TestInitGateway_ConfiguredProviders(t *testing.T) {
	loadTestConfig(t)
	cfg.SelfHosted.BaseURL = "http://localhost:11434/v1"

	gw := initGateway(resilience.NewServiceBreakers(breakerConfig()))
	assert.True(t, gw.Available(), "self-hosted provider is configured")
	assert.Contains(t, gw.Breakers(), "selfhosted")
	assert.Contains(t, gw.Breakers(), "anthropic")
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claim.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"zip_code":"78701"}`), 0o644))

	b, err := readInput(nil, path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zip_code":"78701"}`, string(b))

	b, err = readInput(bytes.NewBufferString("from stdin"), "-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(b))

	_, err = readInput(nil, filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
