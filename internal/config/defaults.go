package config

import (
	"tokenwarden/internal/launcher"
	"tokenwarden/internal/storage"
)

const (
	// DefaultLogLevel is used when neither the file nor the environment set one.
	DefaultLogLevel = "info"

	// DefaultStorageDriver persists tokens as one JSON file per key.
	DefaultStorageDriver = storage.DriverFile

	tokenDirName   = "tokens"
	sqliteFileName = "tokens.db"
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Storage: StorageConfig{
			Driver: DefaultStorageDriver,
		},
		Callback: CallbackConfig{
			Port: launcher.DefaultCallbackPort,
		},
		Providers: map[string]ProviderSettings{},
	}
}
