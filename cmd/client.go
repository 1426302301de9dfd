package cmd

import (
	"fmt"
	"io"

	"tokenwarden/internal/auth"
	"tokenwarden/internal/config"
	"tokenwarden/internal/launcher"
	"tokenwarden/internal/provider"
	"tokenwarden/internal/storage"
	"tokenwarden/pkg/logging"
)

// browserOpener is replaced in tests to drive the consent screen.
var browserOpener = launcher.OpenBrowser

// openStore opens the configured token store.
func openStore(cfg config.Config) (storage.Store, error) {
	opts, err := cfg.StorageOptions()
	if err != nil {
		return nil, err
	}
	return storage.Open(opts)
}

// providerClient bundles an auth.Client with the resources it holds open.
type providerClient struct {
	*auth.Client
	store    storage.Store
	loopback *launcher.Loopback
}

// Close releases the loopback port and the store.
func (p *providerClient) Close() {
	if p.loopback != nil {
		p.loopback.Close()
	}
	if err := p.store.Close(); err != nil {
		logging.Warn("CLI", "Failed to close token storage: %v", err)
	}
}

// newProviderClient builds a client for name from the loaded configuration.
// With interactive set it binds the loopback listener so that the redirect
// URI matches the one the provider will call.
func newProviderClient(name provider.Name, interactive, noBrowser bool, out io.Writer) (*providerClient, error) {
	cfg, err := loadedConfig.ProviderConfig(name)
	if err != nil {
		return nil, err
	}

	store, err := openStore(loadedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open token storage: %w", err)
	}

	pc := &providerClient{store: store}
	opts := []auth.Option{auth.WithStorage(store)}
	redirectURI := launcher.LoopbackRedirectURI(loadedConfig.Callback.Port)

	if interactive {
		opener := browserOpener
		if noBrowser {
			opener = func(string) error { return fmt.Errorf("browser disabled") }
		}
		pc.loopback, err = launcher.NewLoopback(loadedConfig.Callback.Port,
			launcher.WithBrowserOpener(opener),
			launcher.WithOutput(out),
		)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to start callback listener: %w", err)
		}
		redirectURI = pc.loopback.RedirectURI()
		opts = append(opts, auth.WithLauncher(pc.loopback))
	}

	pc.Client, err = auth.NewClient(cfg, redirectURI, opts...)
	if err != nil {
		pc.Close()
		return nil, err
	}
	return pc, nil
}

// providerNames resolves the positional provider argument, or every
// configured provider when none is given.
func providerNames(args []string) ([]provider.Name, error) {
	if len(args) == 0 {
		return loadedConfig.Configured(), nil
	}
	names := make([]provider.Name, 0, len(args))
	for _, arg := range args {
		name, err := provider.ParseName(arg)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// printf writes progress output unless --quiet is set.
func printf(w io.Writer, format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Fprintf(w, format, args...)
}
