package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlatformOverride adjusts a built-in platform definition from PLATFORMS_FILE.
type PlatformOverride struct {
	BaseURL  string `yaml:"base_url"`
	Disabled bool   `yaml:"disabled"`
	// Headers are sent on every call, e.g. app keys the platform expects.
	Headers  map[string]string `yaml:"headers"`
	Rewrites []RewriteRule     `yaml:"rewrites"`
}

// RewriteRule turns a manifest URL served from one host into a playable one.
// Match must occur in the URL for the rule to fire.
type RewriteRule struct {
	Match   string `yaml:"match"`
	Replace string `yaml:"replace"`
	FromExt string `yaml:"from_ext"`
	ToExt   string `yaml:"to_ext"`
}

type PlatformsFile struct {
	Platforms map[string]PlatformOverride `yaml:"platforms"`
}

// LoadPlatforms reads overrides from path. An empty path yields no overrides.
func LoadPlatforms(path string) (map[string]PlatformOverride, error) {
	if path == "" {
		return map[string]PlatformOverride{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platforms file: %w", err)
	}

	var f PlatformsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse platforms file: %w", err)
	}
	if f.Platforms == nil {
		f.Platforms = map[string]PlatformOverride{}
	}

	for key, o := range f.Platforms {
		for i, r := range o.Rewrites {
			if r.Match == "" {
				return nil, fmt.Errorf("platform %s: rewrite %d: empty match", key, i)
			}
			if r.Replace != "" && strings.Contains(strings.ToLower(r.Replace), strings.ToLower(r.Match)) {
				return nil, fmt.Errorf("platform %s: rewrite %d: replacement contains match", key, i)
			}
		}
	}

	return f.Platforms, nil
}
