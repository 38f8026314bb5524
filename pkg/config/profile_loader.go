package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lattice-compute/routectl/pkg/auditor"
	"github.com/lattice-compute/routectl/pkg/reward"
	"github.com/lattice-compute/routectl/pkg/strategist"
)

// Profile is a named bundle of strategist hyperparameters, reward
// constants, and the auditor mode to run under, per §9 "configuration is
// a keyed file with a named-profile section". Operators switch behavior
// by name (GPUROUTE_PROFILE) instead of editing individual env vars.
type Profile struct {
	Name            string                     `yaml:"name" json:"name"`
	Hyperparameters strategist.Hyperparameters `yaml:"hyperparameters" json:"hyperparameters"`
	Reward          reward.Constants           `yaml:"reward" json:"reward"`
	AuditorMode     auditor.Mode               `yaml:"auditor_mode" json:"auditor_mode"`

	// RequirePeerSignature is parsed from the profile. No code path reads
	// it: federation ingestion (pkg/federation) does not check signatures
	// on incoming anchors, whatever its value.
	RequirePeerSignature bool `yaml:"require_peer_signature" json:"require_peer_signature"`
}

// LoadProfile loads a named profile from profilesDir/profile_<name>.yaml.
func LoadProfile(profilesDir, name string) (*Profile, error) {
	key := normalizeName(name)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", key))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}

	if p.Name == "" {
		p.Name = name
	}

	return &p, nil
}

// LoadAllProfiles loads every profile_*.yaml file in profilesDir, keyed by
// profile name.
func LoadAllProfiles(profilesDir string) (map[string]*Profile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*Profile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if p.Name == "" {
			base := filepath.Base(path)
			p.Name = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}

		profiles[p.Name] = &p
	}

	return profiles, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
}
