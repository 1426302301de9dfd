package config

import (
	"time"
)

// Config is the top-level configuration structure for tokenwarden.
type Config struct {
	LogLevel  string                      `yaml:"logLevel,omitempty"`
	Storage   StorageConfig               `yaml:"storage"`
	Callback  CallbackConfig              `yaml:"callback"`
	Providers map[string]ProviderSettings `yaml:"providers,omitempty"`

	dir string
}

// StorageConfig selects where token records are persisted.
type StorageConfig struct {
	Driver   string        `yaml:"driver,omitempty"`   // memory, file or sqlite (default: file)
	Path     string        `yaml:"path,omitempty"`     // Directory (file) or database file (sqlite)
	CacheTTL time.Duration `yaml:"cacheTTL,omitempty"` // Read-through cache in front of file/sqlite; 0 disables
}

// CallbackConfig configures the loopback redirect listener.
type CallbackConfig struct {
	Port int `yaml:"port,omitempty"` // 0 picks a free port
}

// ProviderSettings holds the user-supplied part of a provider descriptor.
// Empty fields keep the built-in value.
type ProviderSettings struct {
	ClientID       string   `yaml:"clientId,omitempty"`
	ClientSecret   string   `yaml:"clientSecret,omitempty"`
	Confidential   *bool    `yaml:"confidential,omitempty"`
	Scopes         []string `yaml:"scopes,omitempty"`
	AuthEndpoint   string   `yaml:"authEndpoint,omitempty"`
	TokenEndpoint  string   `yaml:"tokenEndpoint,omitempty"`
	RevokeEndpoint string   `yaml:"revokeEndpoint,omitempty"`
}

// merge overlays the non-empty fields of other onto s.
func (s ProviderSettings) merge(other ProviderSettings) ProviderSettings {
	if other.ClientID != "" {
		s.ClientID = other.ClientID
	}
	if other.ClientSecret != "" {
		s.ClientSecret = other.ClientSecret
	}
	if other.Confidential != nil {
		s.Confidential = other.Confidential
	}
	if len(other.Scopes) > 0 {
		s.Scopes = append([]string(nil), other.Scopes...)
	}
	if other.AuthEndpoint != "" {
		s.AuthEndpoint = other.AuthEndpoint
	}
	if other.TokenEndpoint != "" {
		s.TokenEndpoint = other.TokenEndpoint
	}
	if other.RevokeEndpoint != "" {
		s.RevokeEndpoint = other.RevokeEndpoint
	}
	return s
}
