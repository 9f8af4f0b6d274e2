package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the daemon's config.toml.
type Config struct {
	ListenAddr    string   `toml:"listen_addr"`
	DataDir       string   `toml:"data_dir"`
	JWTSecret     string   `toml:"jwt_secret"`
	TokenTTLHours int      `toml:"token_ttl_hours"`
	STUNServers   []string `toml:"stun_servers"`
}

// Default returns the config used when no file exists yet.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		ListenAddr:    "127.0.0.1:8420",
		DataDir:       filepath.Join(home, ".msgd"),
		TokenTTLHours: 24,
		STUNServers:   []string{"stun:stun.l.google.com:19302"},
	}
}

// DatabasePath is the SQLite file inside the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "messaging.db")
}

// LogPath is the daemon log file inside the data dir.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "msgd.log")
}

// Load reads config from the given path, filling unset fields with
// defaults. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.TokenTTLHours <= 0 {
		cfg.TokenTTLHours = 24
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
