package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePolicyDefaults(t *testing.T) {
	p, err := normalizePolicy(Policy{Name: "api", Limit: 100, Window: 60})
	require.NoError(t, err)

	require.Equal(t, TokenBucket, p.Algorithm)
	require.Equal(t, KeyIP, p.KeyStrategy)
	require.Equal(t, 100, p.Burst)
	require.Equal(t, 1, p.Cost)
	require.Equal(t, defaultPrecision, p.Precision)
}

func TestNormalizePolicyKeepsExplicitFields(t *testing.T) {
	p, err := normalizePolicy(Policy{
		Name: "api", Limit: 100, Window: 60,
		Burst: 150, Cost: 2, Algorithm: LeakyBucket, KeyStrategy: KeyAPIKey, Precision: 20,
	})
	require.NoError(t, err)

	require.Equal(t, 150, p.Burst)
	require.Equal(t, 2, p.Cost)
	require.Equal(t, LeakyBucket, p.Algorithm)
	require.Equal(t, KeyAPIKey, p.KeyStrategy)
	require.Equal(t, 20, p.Precision)
}

func TestNormalizePolicyValidation(t *testing.T) {
	var cfgErr *ConfigError

	_, err := normalizePolicy(Policy{Name: "api", Limit: 0, Window: 60})
	require.ErrorAs(t, err, &cfgErr)

	_, err = normalizePolicy(Policy{Name: "api", Limit: -5, Window: 60})
	require.ErrorAs(t, err, &cfgErr)

	_, err = normalizePolicy(Policy{Name: "api", Limit: 10, Window: 0})
	require.ErrorAs(t, err, &cfgErr)

	_, err = normalizePolicy(Policy{Name: "api", Limit: 10, Window: 60, Burst: 5})
	require.ErrorAs(t, err, &cfgErr)
}

func TestPlanPolicyKnownTiers(t *testing.T) {
	for _, name := range PlanNames() {
		p, err := PlanPolicy(name)
		require.NoError(t, err, name)
		require.Positive(t, p.Limit)
		require.Positive(t, p.Window)
		require.GreaterOrEqual(t, p.Burst, p.Limit)
	}
}

func TestPlanPolicyUnknownListsValidNames(t *testing.T) {
	_, err := PlanPolicy("platinum")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	for _, name := range PlanNames() {
		require.Contains(t, err.Error(), name)
	}
}

func TestPlanNamesSorted(t *testing.T) {
	require.Equal(t, []string{"business", "enterprise", "free", "pro", "starter"}, PlanNames())
}
