package federation

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PeerConfig is one entry in a federation peer-list file (§9
// "federation peer list path").
type PeerConfig struct {
	Name            string        `yaml:"name"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	ProtocolVersion string        `yaml:"protocol_version"`
}

// LoadPeerList reads a YAML peer-list file into a set of HTTPPeer clients,
// keyed by name.
func LoadPeerList(path string) (map[string]*HTTPPeer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("federation: read peer list %s: %w", path, err)
	}

	var entries []PeerConfig
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("federation: parse peer list %s: %w", path, err)
	}

	peers := make(map[string]*HTTPPeer, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.BaseURL == "" {
			return nil, fmt.Errorf("federation: peer entry missing name or base_url in %s", path)
		}
		if e.ProtocolVersion != "" {
			if err := CheckProtocolCompatible(e.ProtocolVersion); err != nil {
				return nil, fmt.Errorf("federation: peer %q: %w", e.Name, err)
			}
		}
		timeout := e.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		peers[e.Name] = NewHTTPPeer(e.BaseURL, timeout)
	}
	return peers, nil
}
