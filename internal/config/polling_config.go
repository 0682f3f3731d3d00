package config

import (
	"fmt"
	"time"

	"github.com/gametester/runctl/internal/runs"
)

const (
	PollingPolicyBaseline = "baseline"
	PollingPolicyBounded  = "bounded"
	PollingPolicyCustom   = "custom"
)

type PollingConfig struct {
	PolicyName   string        `mapstructure:"policy"`
	InitialDelay time.Duration `mapstructure:"initial_delay,omitempty"`
	Interval     time.Duration `mapstructure:"interval,omitempty"`
	MaxAttempts  int           `mapstructure:"max_attempts,omitempty"`
	// CountErrors makes failed status checks count toward max_attempts. Unset
	// keeps the preset value, custom starts from the bounded preset (true).
	CountErrors     *bool `mapstructure:"count_errors"`
	AutoFetchReport bool `mapstructure:"auto_fetch_report"`
}

// Policy resolves the configured preset into a polling policy. A nil config
// or an empty policy name resolves to the bounded preset.
func (p *PollingConfig) Policy() (runs.Policy, error) {
	if p == nil {
		return runs.BoundedPolicy(), nil
	}
	var policy runs.Policy
	switch p.PolicyName {
	case "", PollingPolicyBounded:
		policy = runs.BoundedPolicy()
	case PollingPolicyBaseline:
		policy = runs.BaselinePolicy()
	case PollingPolicyCustom:
		policy = runs.Policy{
			InitialDelay: p.InitialDelay,
			Interval:     p.Interval,
			MaxAttempts:  p.MaxAttempts,
			CountErrors:  runs.BoundedPolicy().CountErrors,
		}
	default:
		return runs.Policy{}, fmt.Errorf("unknown polling policy %q, expected one of %s, %s, %s", p.PolicyName, PollingPolicyBaseline, PollingPolicyBounded, PollingPolicyCustom)
	}
	if p.CountErrors != nil {
		policy.CountErrors = *p.CountErrors
	}
	policy.AutoFetchReport = p.AutoFetchReport
	if err := policy.Validate(); err != nil {
		return runs.Policy{}, err
	}
	return policy, nil
}
