// Package config loads policy templates and link definitions from YAML,
// independent of whatever loads node-wide configuration upstream of the
// bonding engine. Grounded in cmd/dpi-framework/main.go's loadConfig
// pattern.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// File is the top-level shape of a policy-template YAML document.
type File struct {
	DefaultPolicy         string             `yaml:"default_policy"`
	DefaultPolicyTemplate string             `yaml:"default_policy_template"`
	Templates             []TemplateSpec     `yaml:"templates"`
	PeerAssignments       []PeerAssignment   `yaml:"peer_assignments"`
}

// TemplateSpec describes one named policy template and its links.
type TemplateSpec struct {
	Name                  string     `yaml:"name"`
	Policy                string     `yaml:"policy"`
	FailoverIntervalMs    int64      `yaml:"failover_interval_ms"`
	UpDelayMs             int64      `yaml:"up_delay_ms"`
	DownDelayMs           int64      `yaml:"down_delay_ms"`
	PacketsPerLink        int        `yaml:"packets_per_link"`
	ReselectPolicy        string     `yaml:"reselect_policy"`
	QualityWeights        *Weights   `yaml:"quality_weights,omitempty"`
	Links                 []LinkSpec `yaml:"links"`
}

// Weights mirrors the six quality-estimation weight terms.
type Weights struct {
	Latency        float32 `yaml:"latency"`
	Jitter         float32 `yaml:"jitter"`
	Loss           float32 `yaml:"loss"`
	Error          float32 `yaml:"error"`
	ThroughputMean float32 `yaml:"throughput_mean"`
	Scope          float32 `yaml:"scope"`
}

// LinkSpec describes one user-defined link within a template.
type LinkSpec struct {
	IfName     string `yaml:"ifname"`
	SpeedMbps  uint32 `yaml:"speed_mbps"`
	Primary    bool   `yaml:"primary"`
	FailoverTo string `yaml:"failover_to"`
	IPVPref    int    `yaml:"ipv_pref"`
}

// PeerAssignment pins a peer id to a named template.
type PeerAssignment struct {
	PeerID   int64  `yaml:"peer_id"`
	Template string `yaml:"template"`
}

// Load reads and parses a policy-template file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &f, nil
}

// FailoverInterval returns the spec's millisecond field as a time.Duration,
// defaulting to zero (caller applies its own default) when unset.
func (t TemplateSpec) FailoverInterval() time.Duration {
	return time.Duration(t.FailoverIntervalMs) * time.Millisecond
}
