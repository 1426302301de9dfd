package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"tokenwarden/internal/provider"
	"tokenwarden/internal/storage"
	"tokenwarden/pkg/logging"
)

const (
	userConfigDir  = ".config/tokenwarden"
	configFileName = "config.yaml"

	envPrefix = "TOKENWARDEN_"
)

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

// DefaultConfigPath returns ~/.config/tokenwarden.
func DefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// globalEnv holds the environment overrides that apply to every command.
type globalEnv struct {
	LogLevel        string        `env:"LOG_LEVEL"`
	StorageDriver   string        `env:"STORAGE_DRIVER"`
	StoragePath     string        `env:"STORAGE_PATH"`
	StorageCacheTTL time.Duration `env:"STORAGE_CACHE_TTL"`
	CallbackPort    string        `env:"CALLBACK_PORT"`
}

// providerEnv holds TOKENWARDEN_<NAME>_CLIENT_ID and _CLIENT_SECRET.
type providerEnv struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// Load reads config.yaml from configPath (the default directory when empty),
// applies environment overrides and validates the result.
func Load(configPath string) (Config, error) {
	if configPath == "" {
		var err error
		if configPath, err = DefaultConfigPath(); err != nil {
			return Config{}, err
		}
	}

	cfg, err := loadFile(filepath.Join(configPath, configFileName))
	if err != nil {
		return Config{}, err
	}
	cfg.dir = configPath

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, &LoadError{FilePath: filepath.Join(configPath, configFileName), ErrorType: ErrorTypeValidation, Err: err}
	}
	return cfg, nil
}

func loadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", path)
			return cfg, nil
		}
		return Config{}, &LoadError{FilePath: path, ErrorType: ErrorTypeIO, Err: err}
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, newParseError(path, err)
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderSettings{}
	}

	logging.Debug("ConfigLoader", "Loaded configuration from %s", path)
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var global globalEnv
	if err := env.ParseWithOptions(&global, env.Options{Prefix: envPrefix}); err != nil {
		return &LoadError{ErrorType: ErrorTypeEnv, Err: err}
	}

	if global.LogLevel != "" {
		c.LogLevel = global.LogLevel
	}
	if global.StorageDriver != "" {
		c.Storage.Driver = global.StorageDriver
	}
	if global.StoragePath != "" {
		c.Storage.Path = global.StoragePath
	}
	if global.StorageCacheTTL != 0 {
		c.Storage.CacheTTL = global.StorageCacheTTL
	}
	if global.CallbackPort != "" {
		port, err := strconv.Atoi(global.CallbackPort)
		if err != nil {
			return &LoadError{ErrorType: ErrorTypeEnv, Err: fmt.Errorf("%sCALLBACK_PORT: %w", envPrefix, err)}
		}
		c.Callback.Port = port
	}

	names := append(provider.Known(), provider.Generic)
	for _, name := range names {
		var creds providerEnv
		prefix := envPrefix + strings.ToUpper(string(name)) + "_"
		if err := env.ParseWithOptions(&creds, env.Options{Prefix: prefix}); err != nil {
			return &LoadError{ErrorType: ErrorTypeEnv, Err: err}
		}
		if creds.ClientID == "" && creds.ClientSecret == "" {
			continue
		}
		key := string(name)
		c.Providers[key] = c.Providers[key].merge(ProviderSettings{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
		})
	}
	return nil
}

// ProviderConfig merges the built-in template for name with the configured
// settings and validates the result.
func (c Config) ProviderConfig(name provider.Name) (provider.Config, error) {
	base := provider.Config{Name: name}
	builtin, known := provider.Builtin(name)
	if known {
		base = builtin
	} else if _, err := provider.ParseName(string(name)); err != nil {
		return provider.Config{}, err
	}

	settings := c.Providers[string(name)]
	cfg := base
	cfg.ClientID = settings.ClientID
	cfg.ClientSecret = settings.ClientSecret
	if len(settings.Scopes) > 0 {
		cfg.Scopes = append([]string(nil), settings.Scopes...)
	}
	if settings.AuthEndpoint != "" {
		cfg.AuthEndpoint = settings.AuthEndpoint
	}
	if settings.TokenEndpoint != "" {
		cfg.TokenEndpoint = settings.TokenEndpoint
	}
	if settings.RevokeEndpoint != "" {
		cfg.RevokeEndpoint = settings.RevokeEndpoint
	}

	switch {
	case settings.Confidential != nil:
		cfg.Confidential = *settings.Confidential
	case !known:
		cfg.Confidential = settings.ClientSecret != ""
	}

	return provider.New(cfg)
}

// Configured returns the providers that have a client id, sorted.
func (c Config) Configured() []provider.Name {
	var names []provider.Name
	for key, settings := range c.Providers {
		if settings.ClientID == "" {
			continue
		}
		if name, err := provider.ParseName(key); err == nil {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// StorageOptions resolves the storage settings, filling in a default path
// inside the configuration directory.
func (c Config) StorageOptions() (storage.Options, error) {
	opts := storage.Options{
		Driver:   c.Storage.Driver,
		Path:     c.Storage.Path,
		CacheTTL: c.Storage.CacheTTL,
	}
	if opts.Driver == "" {
		opts.Driver = DefaultStorageDriver
	}
	if opts.Path != "" || opts.Driver == storage.DriverMemory {
		return opts, nil
	}

	dir := c.dir
	if dir == "" {
		var err error
		if dir, err = DefaultConfigPath(); err != nil {
			return storage.Options{}, err
		}
	}

	switch opts.Driver {
	case storage.DriverFile:
		opts.Path = filepath.Join(dir, tokenDirName)
	case storage.DriverSQLite:
		opts.Path = filepath.Join(dir, sqliteFileName)
	}
	return opts, nil
}

// Dir returns the directory the configuration was loaded from.
func (c Config) Dir() string {
	return c.dir
}
