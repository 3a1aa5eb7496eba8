package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// Duration wraps time.Duration so YAML fields accept values like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the resolver's runtime settings.
type Config struct {
	// Listen is the UDP address queries arrive on. The default stays off
	// port 53 so the server runs unprivileged.
	Listen string `yaml:"listen"`
	// MetricsListen is the HTTP address the Prometheus endpoint binds to.
	// Empty disables metrics.
	MetricsListen string `yaml:"metricsListen"`
	// UpstreamPort is the port upstream nameservers are queried on.
	UpstreamPort int `yaml:"upstreamPort"`
	// UpstreamTimeout bounds each upstream round trip.
	UpstreamTimeout Duration `yaml:"upstreamTimeout"`
	// MaxSteps caps delegation retries per query before giving up.
	MaxSteps int `yaml:"maxSteps"`
	// PrefetchTLDs lists TLDs whose NS records are resolved at startup to
	// warm the cache.
	PrefetchTLDs []string `yaml:"prefetchTLDs"`
	// RootHints optionally points at a YAML file of root server addresses,
	// replacing the built-in IANA set.
	RootHints string `yaml:"rootHints"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:          ":10053",
		MetricsListen:   ":9090",
		UpstreamPort:    53,
		UpstreamTimeout: Duration(5 * time.Second),
		MaxSteps:        16,
		PrefetchTLDs:    []string{"com", "org", "net", "edu", "gov", "mil"},
	}
}

// Load reads the resolver configuration from the given path, falling back to
// the YK_DNS_RESOLVER_CONFIG environment variable and then to
// "configs/resolver.yaml". Unset fields take their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("YK_DNS_RESOLVER_CONFIG")
	}
	if path == "" {
		path = "configs/resolver.yaml"
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the resolver configuration from the given file path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand ${ENV_VAR} references in path and address fields.
	cfg.Listen = os.ExpandEnv(cfg.Listen)
	cfg.MetricsListen = os.ExpandEnv(cfg.MetricsListen)
	cfg.RootHints = os.ExpandEnv(cfg.RootHints)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: missing required field 'listen'")
	}
	if c.UpstreamPort <= 0 || c.UpstreamPort > 65535 {
		return fmt.Errorf("config: upstream port %d out of range", c.UpstreamPort)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("config: upstream timeout must be positive")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("config: max steps must be positive")
	}
	return nil
}
