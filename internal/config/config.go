package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultStoreDirName   = ".panopto-relink"
	defaultAPIUser        = "relink-service"
	DefaultRemediationURL = "https://support.panopto.com/s/article/Copy-a-Course-in-Moodle"
)

type Config struct {
	InstanceName   string     `json:"instance_name"`
	APIUser        string     `json:"api_user"`
	Instances      []Instance `json:"instances"`
	RemediationURL string     `json:"remediation_url"`
	DefaultRate    string     `json:"default_rate"`
}

func ResolveStoreDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv("PANOPTO_STORE"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, defaultStoreDirName), nil
}

func ConfigPath(storeDir string) string {
	return filepath.Join(storeDir, "config.json")
}

func Load(storeDir string) (*Config, error) {
	path := ConfigPath(storeDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.renumber()

	return &cfg, nil
}

func Save(storeDir string, cfg *Config) error {
	if err := os.MkdirAll(storeDir, 0700); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(storeDir), data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// LoadDotEnv reads .env files from the store dir and the working directory.
// Variables already present in the environment win.
func LoadDotEnv(storeDir string) error {
	for _, path := range []string{filepath.Join(storeDir, ".env"), ".env"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment settings. Numbered instance slots in the
// environment replace the instances from the config file.
func ApplyEnv(cfg *Config) {
	if env := os.Getenv("PANOPTO_INSTANCE_NAME"); env != "" {
		cfg.InstanceName = env
	}
	if env := os.Getenv("PANOPTO_API_USER"); env != "" {
		cfg.APIUser = env
	}
	if env := os.Getenv("PANOPTO_REMEDIATION_URL"); env != "" {
		cfg.RemediationURL = env
	}
	if env := os.Getenv("PANOPTO_RATE"); env != "" {
		cfg.DefaultRate = env
	}
	if slots := NumberedSlots(os.Getenv, envPrefix); len(slots) > 0 {
		cfg.Instances = slots
	}
}

func (c *Config) ApplyDefaults() {
	if c.APIUser == "" {
		c.APIUser = defaultAPIUser
	}
	if c.RemediationURL == "" {
		c.RemediationURL = DefaultRemediationURL
	}
}

func (c *Config) ValidateIdentity() error {
	if c.InstanceName == "" {
		return fmt.Errorf("provider instance name not set. Set instance_name in config or PANOPTO_INSTANCE_NAME")
	}
	return nil
}

// UserKey is the identity the API user is known by on the remote side.
func (c *Config) UserKey() string {
	return c.InstanceName + `\` + c.APIUser
}

func (c *Config) renumber() {
	for i := range c.Instances {
		c.Instances[i].Slot = i + 1
	}
}

// NormalizeServerURL turns a configured server name (bare host or URL) into
// an https base URL without path, query or fragment noise.
func NormalizeServerURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.TrimRight(raw, "/")
	}
	if parsed.Scheme == "" && parsed.Host == "" && parsed.Path != "" {
		parsed, err = url.Parse("https://" + raw)
		if err != nil {
			return strings.TrimRight(raw, "/")
		}
	}

	parsed.Fragment = ""
	parsed.RawQuery = ""

	if strings.Contains(parsed.Path, "/Panopto") {
		parts := strings.Split(parsed.Path, "/Panopto")
		parsed.Path = parts[0]
	}

	normalized := parsed.String()
	return strings.TrimRight(normalized, "/")
}

// ServerHost returns the host part of a server name, which is what the
// remote auth scheme signs.
func ServerHost(raw string) string {
	normalized := NormalizeServerURL(raw)
	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(raw)
	}
	return parsed.Host
}
