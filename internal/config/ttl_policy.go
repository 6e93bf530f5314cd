package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ttlPolicyFile is the on-disk shape of a TTL policy override:
//
//	default: 5m
//	classes:
//	  profile: 10m
//	  list: 2m
//	  purchases: 3m
//	  public: 15m
type ttlPolicyFile struct {
	Default string            `yaml:"default"`
	Classes map[string]string `yaml:"classes"`
}

// TTLOverrides is a parsed TTL policy file. A zero Default keeps the built-in default.
type TTLOverrides struct {
	Default time.Duration
	Classes map[string]time.Duration
}

// LoadTTLOverrides reads a YAML TTL policy. An empty path yields no overrides.
func LoadTTLOverrides(path string) (*TTLOverrides, error) {
	out := &TTLOverrides{Classes: make(map[string]time.Duration)}
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read TTL policy: %w", err)
	}

	var raw ttlPolicyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse TTL policy %s: %w", path, err)
	}

	if raw.Default != "" {
		d, err := time.ParseDuration(raw.Default)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid default TTL %q", raw.Default)
		}
		out.Default = d
	}
	for class, value := range raw.Classes {
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid TTL %q for class %s", value, class)
		}
		out.Classes[class] = d
	}
	return out, nil
}
