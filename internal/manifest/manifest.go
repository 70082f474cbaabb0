// Package manifest defines declarative capability manifests for agents.
//
// A manifest is pure data: the maximal set of filesystem, network, and
// environment grants one agent may request. Grants are fixed at
// construction; nothing can be added afterwards (deny-by-default,
// add-never).
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FSGrant allows access to a filesystem path.
type FSGrant struct {
	Path  string `yaml:"path"`
	Read  bool   `yaml:"read"`
	Write bool   `yaml:"write"`
}

// Key returns the cache key for this grant.
func (g FSGrant) Key() string {
	mode := "r"
	if g.Write {
		mode = "rw"
	}
	return fmt.Sprintf("fs:%s:%s", g.Path, mode)
}

// String returns a human-readable description used in permission prompts.
func (g FSGrant) String() string {
	mode := "read"
	if g.Write {
		mode = "read/write"
	}
	return fmt.Sprintf("filesystem %s (%s)", g.Path, mode)
}

// NetGrant allows outbound connections to one domain+port pair.
type NetGrant struct {
	Domain string `yaml:"domain"`
	Port   int    `yaml:"port"`
}

// Key returns the cache key for this grant.
func (g NetGrant) Key() string {
	return fmt.Sprintf("net:%s:%d", g.Domain, g.Port)
}

// String returns a human-readable description used in permission prompts.
func (g NetGrant) String() string {
	return fmt.Sprintf("network egress to %s:%d", g.Domain, g.Port)
}

// EnvGrant allows reading one environment variable.
type EnvGrant string

// Key returns the cache key for this grant.
func (g EnvGrant) Key() string {
	return fmt.Sprintf("env:%s", string(g))
}

// String returns a human-readable description used in permission prompts.
func (g EnvGrant) String() string {
	return fmt.Sprintf("environment variable %s", string(g))
}

// Manifest declares what a sandboxed agent may touch. Immutable once
// constructed; use the accessors, which return copies.
type Manifest struct {
	name       string
	filesystem []FSGrant
	network    []NetGrant
	env        []EnvGrant
}

// fileForm is the YAML wire form of a manifest.
type fileForm struct {
	Name       string     `yaml:"name"`
	Filesystem []FSGrant  `yaml:"filesystem"`
	Network    []NetGrant `yaml:"network"`
	Env        []string   `yaml:"env"`
}

// New constructs a manifest from its grants.
func New(name string, fs []FSGrant, net []NetGrant, env []string) (*Manifest, error) {
	m := &Manifest{name: name}
	m.filesystem = append(m.filesystem, fs...)
	m.network = append(m.network, net...)
	for _, e := range env {
		m.env = append(m.env, EnvGrant(e))
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFile loads a manifest from a YAML file.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var s fileForm
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return New(s.Name, s.Filesystem, s.Network, s.Env)
}

func (m *Manifest) validate() error {
	if m.name == "" {
		return fmt.Errorf("manifest name is required")
	}
	for _, g := range m.filesystem {
		if g.Path == "" {
			return fmt.Errorf("manifest %s: filesystem grant with empty path", m.name)
		}
		if !g.Read && !g.Write {
			return fmt.Errorf("manifest %s: filesystem grant %s allows neither read nor write", m.name, g.Path)
		}
	}
	for _, g := range m.network {
		if g.Domain == "" {
			return fmt.Errorf("manifest %s: network grant with empty domain", m.name)
		}
		if g.Port < 1 || g.Port > 65535 {
			return fmt.Errorf("manifest %s: network grant %s has invalid port %d", m.name, g.Domain, g.Port)
		}
	}
	for _, g := range m.env {
		if g == "" {
			return fmt.Errorf("manifest %s: empty environment grant", m.name)
		}
	}
	return nil
}

// Name returns the manifest name.
func (m *Manifest) Name() string { return m.name }

// Filesystem returns a copy of the filesystem grants.
func (m *Manifest) Filesystem() []FSGrant {
	out := make([]FSGrant, len(m.filesystem))
	copy(out, m.filesystem)
	return out
}

// Network returns a copy of the network grants.
func (m *Manifest) Network() []NetGrant {
	out := make([]NetGrant, len(m.network))
	copy(out, m.network)
	return out
}

// Env returns a copy of the environment grants.
func (m *Manifest) Env() []EnvGrant {
	out := make([]EnvGrant, len(m.env))
	copy(out, m.env)
	return out
}

// FindFS returns the filesystem grant covering path with the requested
// mode, or false if the manifest does not allow it.
func (m *Manifest) FindFS(path string, write bool) (FSGrant, bool) {
	for _, g := range m.filesystem {
		if g.Path != path {
			continue
		}
		if write && !g.Write {
			continue
		}
		if !write && !g.Read {
			continue
		}
		return g, true
	}
	return FSGrant{}, false
}

// FindNet returns the network grant for domain:port, or false.
func (m *Manifest) FindNet(domain string, port int) (NetGrant, bool) {
	for _, g := range m.network {
		if g.Domain == domain && g.Port == port {
			return g, true
		}
	}
	return NetGrant{}, false
}

// FindEnv returns the environment grant for name, or false.
func (m *Manifest) FindEnv(name string) (EnvGrant, bool) {
	for _, g := range m.env {
		if string(g) == name {
			return g, true
		}
	}
	return "", false
}
