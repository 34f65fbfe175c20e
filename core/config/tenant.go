package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// TenantConfig is the per-tenant / per-business option bundle. It is
// validated against tenantSchema at load time so unknown provider names or
// out-of-range thresholds are rejected before any request is processed.
type TenantConfig struct {
	FaceMatchThreshold    float64 `json:"face_match_threshold"`
	LivenessThreshold     float64 `json:"liveness_threshold"`
	ProofOfWorkDifficulty int     `json:"proof_of_work_difficulty"`
	CacheTTLSeconds       int     `json:"cache_ttl_seconds"`
	ProviderName          string  `json:"provider_name"`
	BiometricRequired     bool    `json:"biometric_required"`
	BlockchainRequired    bool    `json:"blockchain_required"`
	MaxBiometricAttempts  int     `json:"max_biometric_attempts"`
}

const tenantSchema = `{
	"type": "object",
	"properties": {
		"face_match_threshold":     {"type": "number", "minimum": 0, "maximum": 1},
		"liveness_threshold":       {"type": "number", "minimum": 0, "maximum": 1},
		"proof_of_work_difficulty": {"type": "integer", "minimum": 1, "maximum": 8},
		"cache_ttl_seconds":        {"type": "integer", "minimum": 0},
		"provider_name":            {"type": "string", "enum": ["basic", "rich"]},
		"biometric_required":       {"type": "boolean"},
		"blockchain_required":      {"type": "boolean"},
		"max_biometric_attempts":   {"type": "integer", "minimum": 1, "maximum": 10}
	},
	"additionalProperties": false
}`

// DefaultTenantConfig returns the option bundle used when no tenant config
// is supplied.
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		FaceMatchThreshold:    0.7,
		LivenessThreshold:     0.7,
		ProofOfWorkDifficulty: 4,
		CacheTTLSeconds:       3600,
		ProviderName:          "basic",
		BiometricRequired:     true,
		BlockchainRequired:    true,
		MaxBiometricAttempts:  3,
	}
}

// ParseTenantConfig validates raw JSON against the tenant schema and merges
// it over the defaults. Missing keys keep their default values.
func ParseTenantConfig(data []byte) (*TenantConfig, error) {
	schema := gojsonschema.NewStringLoader(tenantSchema)
	doc := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schema, doc)
	if err != nil {
		return nil, fmt.Errorf("tenant config validation error: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid tenant config: %s", strings.Join(msgs, "; "))
	}

	cfg := DefaultTenantConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tenant config: %w", err)
	}
	return &cfg, nil
}

// CacheTTL returns the cache TTL as a duration. Zero disables caching.
func (t TenantConfig) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLSeconds) * time.Second
}
