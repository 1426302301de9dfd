package config

import (
	"fmt"

	"tokenwarden/internal/provider"
	"tokenwarden/internal/storage"
	"tokenwarden/pkg/logging"
)

// Validate checks the settings that can be checked without a provider
// name. Provider descriptors are validated by ProviderConfig.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			errs.Add("logLevel", err.Error())
		}
	}

	switch c.Storage.Driver {
	case "", storage.DriverMemory, storage.DriverFile, storage.DriverSQLite:
	default:
		errs.Add("storage.driver", fmt.Sprintf("unknown driver %q (want %s, %s or %s)",
			c.Storage.Driver, storage.DriverMemory, storage.DriverFile, storage.DriverSQLite))
	}
	if c.Storage.CacheTTL < 0 {
		errs.Add("storage.cacheTTL", "must not be negative")
	}

	if c.Callback.Port < 0 || c.Callback.Port > 65535 {
		errs.Add("callback.port", fmt.Sprintf("%d is not a valid port", c.Callback.Port))
	}

	for name := range c.Providers {
		if _, err := provider.ParseName(name); err != nil {
			errs.Add("providers."+name, "unknown provider")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
