package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile_OverridesPricing(t *testing.T) {
	cfg := &Config{Pricing: DefaultPricing()}

	raw := `
pricing:
  research_costs:
    simple: 7
    full: 14
    max: 28
  credits_per_sei: 25
  credit_packages:
    - id: tiny
      name: Tiny
      credits: 10
      sei_amount: "0.4"
      price_usd_cents: 100
`
	require.NoError(t, LoadConfigFile(strings.NewReader(raw), cfg))

	assert.Equal(t, 7, cfg.Pricing.ResearchCosts["simple"])
	assert.Equal(t, 28, cfg.Pricing.ResearchCosts["max"])
	assert.Equal(t, int64(25), cfg.Pricing.CreditsPerSEI)
	require.Len(t, cfg.Pricing.CreditPackages, 1)

	pkg, ok := cfg.Pricing.Package("tiny")
	require.True(t, ok)
	assert.Equal(t, int64(10), pkg.Credits)
	assert.Equal(t, "0.4", pkg.SEIAmount)

	_, ok = cfg.Pricing.Package("missing")
	assert.False(t, ok)
}

func TestLoadConfigFile_EmptyFileKeepsDefaults(t *testing.T) {
	cfg := &Config{Pricing: DefaultPricing()}

	require.NoError(t, LoadConfigFile(strings.NewReader(""), cfg))
	assert.Equal(t, 10, cfg.Pricing.ResearchCosts["full"])
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:            "postgres://localhost/test",
			WorkflowCallbackSecret: "secret",
			Pricing:                DefaultPricing(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DATABASE_URL"},
		{name: "missing callback secret", mutate: func(c *Config) { c.WorkflowCallbackSecret = "" }, wantErr: "WORKFLOW_CALLBACK_SECRET"},
		{name: "missing depth cost", mutate: func(c *Config) { delete(c.Pricing.ResearchCosts, "max") }, wantErr: "research_costs.max"},
		{name: "zero exchange rate", mutate: func(c *Config) { c.Pricing.CreditsPerSEI = 0 }, wantErr: "credits_per_sei"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_LIST", " a, b ,,c ")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BAD_INT", "twelve")

	assert.Equal(t, []string{"a", "b", "c"}, getEnvAsList("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvAsList("TEST_LIST_UNSET", []string{"x"}))
	assert.Equal(t, 90*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.Equal(t, 12, getEnvAsInt("TEST_BAD_INT", 12))
	assert.Equal(t, "fallback", getEnvOrDefault("TEST_UNSET_KEY", "fallback"))
}
