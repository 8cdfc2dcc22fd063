// Package policy loads and exposes the frozen policy snapshot consumed by the
// planner, executor, critic, and RBAC gate. The snapshot is parsed once at
// startup and is read-only thereafter, so it is safe to share across
// concurrently handled events.
package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	// SLO bounds plan size, retries, and end-to-end latency.
	SLO struct {
		// MaxSteps caps the number of steps in a plan. Zero disables the check.
		MaxSteps int `yaml:"max_steps"`
		// MaxLatencyMS bounds per-event latency as observed by the critic at
		// step completion. Zero disables the check.
		MaxLatencyMS int64 `yaml:"max_latency_ms"`
		// MaxRetries is the number of retries (beyond the first attempt) a
		// step is granted for transient failures.
		MaxRetries int `yaml:"max_retries"`
	}

	// Retry configures the executor's exponential backoff.
	Retry struct {
		BaseMS int64 `yaml:"base_ms"`
		MaxMS  int64 `yaml:"max_ms"`
	}

	// Execution groups execution-time tunables.
	Execution struct {
		Retry Retry `yaml:"retry"`
	}

	// Role is an RBAC role granting access to named tools.
	Role struct {
		AllowTools []string `yaml:"allow_tools"`
	}

	// RBAC maps role names to grants. The dispatch path consults the "agent"
	// role.
	RBAC struct {
		Roles map[string]Role `yaml:"roles"`
	}

	// DataPolicy names payload fields that must never appear in telemetry.
	DataPolicy struct {
		RedactFields []string `yaml:"redact_fields"`
	}

	// Snapshot is the complete, read-only policy document.
	Snapshot struct {
		SLO        SLO        `yaml:"slo"`
		Execution  Execution  `yaml:"execution"`
		RBAC       RBAC       `yaml:"rbac"`
		DataPolicy DataPolicy `yaml:"data_policy"`
	}
)

// Default returns the snapshot used when no policies file is supplied.
func Default() *Snapshot {
	return &Snapshot{
		SLO:       SLO{MaxSteps: 10, MaxLatencyMS: 5000, MaxRetries: 2},
		Execution: Execution{Retry: Retry{BaseMS: 100, MaxMS: 1000}},
		RBAC: RBAC{Roles: map[string]Role{
			"agent": {AllowTools: []string{"call_rest", "publish_kafka", "transform_json", "open_ticket", "route_jms"}},
		}},
	}
}

// Load parses a policy snapshot from a YAML file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	return &s, nil
}

// AllowsTool reports whether the agent role grants access to the named tool.
func (s *Snapshot) AllowsTool(name string) bool {
	role, ok := s.RBAC.Roles["agent"]
	if !ok {
		return false
	}
	for _, t := range role.AllowTools {
		if t == name {
			return true
		}
	}
	return false
}

// RedactSet returns the lower-cased set of field names to redact.
func (s *Snapshot) RedactSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.DataPolicy.RedactFields))
	for _, f := range s.DataPolicy.RedactFields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return set
}
