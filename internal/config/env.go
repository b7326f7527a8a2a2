package config

import (
	"os"
	"strconv"
	"time"

	"github.com/imamik/exposer/internal/readiness"
)

// Environment variables overriding fleet file fields.
const (
	EnvDomain          = "EXPOSER_DOMAIN"
	EnvZoneID          = "EXPOSER_ZONE_ID"
	EnvIssuer          = "EXPOSER_ISSUER"
	EnvGatewayHostname = "EXPOSER_GATEWAY_HOSTNAME"

	EnvReadinessMaxAttempts  = "EXPOSER_READINESS_MAX_ATTEMPTS"
	EnvReadinessInitialDelay = "EXPOSER_READINESS_INITIAL_DELAY"
	EnvReadinessMaxDelay     = "EXPOSER_READINESS_MAX_DELAY"
)

// ApplyEnv overrides shared fields from the environment. A zone ID, issuer
// or gateway hostname override creates the reference when the file has none,
// except for the gateway, which also needs a name and namespace.
func ApplyEnv(f *Fleet) {
	if v := os.Getenv(EnvDomain); v != "" {
		f.BaseDomain = v
	}
	if v := os.Getenv(EnvZoneID); v != "" {
		if f.Zone == nil {
			f.Zone = &Zone{Domain: f.BaseDomain}
		}
		f.Zone.ID = v
	}
	if v := os.Getenv(EnvIssuer); v != "" {
		if f.Issuer == nil {
			f.Issuer = &Issuer{}
		}
		f.Issuer.Name = v
	}
	if v := os.Getenv(EnvGatewayHostname); v != "" && f.Gateway != nil {
		f.Gateway.Hostname = v
	}
}

// LoadBudget loads the readiness wait budget from the environment.
// Unset or invalid values fall back to readiness.DefaultBudget.
//
// Environment Variables:
//   - EXPOSER_READINESS_MAX_ATTEMPTS (default: 10)
//   - EXPOSER_READINESS_INITIAL_DELAY (default: 2s)
//   - EXPOSER_READINESS_MAX_DELAY (default: 30s)
func LoadBudget() readiness.Budget {
	def := readiness.DefaultBudget()
	return readiness.Budget{
		MaxAttempts:  parseInt(EnvReadinessMaxAttempts, def.MaxAttempts),
		InitialDelay: parseDuration(EnvReadinessInitialDelay, def.InitialDelay),
		MaxDelay:     parseDuration(EnvReadinessMaxDelay, def.MaxDelay),
	}
}

func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
