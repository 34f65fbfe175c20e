package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultTenantConfig(t *testing.T) {
	cfg := DefaultTenantConfig()
	require.Equal(t, 0.7, cfg.FaceMatchThreshold)
	require.Equal(t, 0.7, cfg.LivenessThreshold)
	require.Equal(t, 4, cfg.ProofOfWorkDifficulty)
	require.Equal(t, "basic", cfg.ProviderName)
	require.True(t, cfg.BiometricRequired)
	require.True(t, cfg.BlockchainRequired)
	require.Equal(t, 3, cfg.MaxBiometricAttempts)
	require.Equal(t, time.Hour, cfg.CacheTTL())
}

func TestParseTenantConfigMergesOverDefaults(t *testing.T) {
	cfg, err := ParseTenantConfig([]byte(`{
		"face_match_threshold": 0.9,
		"provider_name": "rich",
		"biometric_required": false
	}`))
	require.NoError(t, err)
	require.Equal(t, 0.9, cfg.FaceMatchThreshold)
	require.Equal(t, "rich", cfg.ProviderName)
	require.False(t, cfg.BiometricRequired)
	// Unspecified keys keep defaults.
	require.Equal(t, 0.7, cfg.LivenessThreshold)
	require.Equal(t, 4, cfg.ProofOfWorkDifficulty)
}

func TestParseTenantConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"threshold above one", `{"face_match_threshold": 1.5}`},
		{"difficulty zero", `{"proof_of_work_difficulty": 0}`},
		{"difficulty too high", `{"proof_of_work_difficulty": 9}`},
		{"unknown provider", `{"provider_name": "docuthing"}`},
		{"unknown key", `{"surprise_option": true}`},
		{"wrong type", `{"biometric_required": "yes"}`},
		{"zero attempts", `{"max_biometric_attempts": 0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTenantConfig([]byte(tc.raw))
			require.Error(t, err)
		})
	}
}

func TestParseTenantConfigEmptyObject(t *testing.T) {
	cfg, err := ParseTenantConfig([]byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, DefaultTenantConfig(), *cfg)
}

func TestCacheTTLZeroDisables(t *testing.T) {
	cfg, err := ParseTenantConfig([]byte(`{"cache_ttl_seconds": 0}`))
	require.NoError(t, err)
	require.Zero(t, cfg.CacheTTL())
}
