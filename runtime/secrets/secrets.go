// Package secrets resolves named secrets and builds Authorization headers from
// service auth specs. Resolution order is environment variable, then file path
// from the config's files map, then the static map. The provider is read-only
// after construction.
package secrets

import (
	"os"
	"strings"
)

// Config is the secrets section of the service configuration.
type Config struct {
	// Files maps secret names to file paths holding the secret value.
	Files map[string]string `yaml:"files"`
	// Static maps secret names directly to values. Lowest priority; intended
	// for development defaults only.
	Static map[string]string `yaml:"static"`
}

// Provider resolves named secrets.
type Provider struct {
	cfg Config
}

// NewProvider builds a provider over the given configuration.
func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Get resolves the named secret, or returns "" when it cannot be found.
func (p *Provider) Get(name string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	if path, ok := p.cfg.Files[name]; ok && path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return p.cfg.Static[name]
}

// AuthHeader builds the Authorization header for a service auth spec of the
// form "<kind>:<secret_key>" with kind bearer or basic. Returns ("", false)
// when the spec is malformed, the kind is unknown, or the secret resolves
// empty; callers then send the request unauthenticated.
func (p *Provider) AuthHeader(spec string) (string, bool) {
	if spec == "" {
		return "", false
	}
	kind, key, ok := strings.Cut(spec, ":")
	if !ok {
		return "", false
	}
	secret := p.Get(key)
	if secret == "" {
		return "", false
	}
	switch kind {
	case "bearer":
		return "Bearer " + secret, true
	case "basic":
		return "Basic " + secret, true
	default:
		return "", false
	}
}
