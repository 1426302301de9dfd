package provider

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"tokenwarden/pkg/oauth"
)

// Name identifies a supported identity provider.
type Name string

const (
	Google  Name = "google"
	Spotify Name = "spotify"
	Fitbit  Name = "fitbit"
	GitHub  Name = "github"

	// Generic is any standards-following provider configured entirely from
	// configuration (endpoints included).
	Generic Name = "generic"
)

// Config is the static descriptor of one provider. It is immutable once
// returned by New.
type Config struct {
	Name Name

	ClientID string

	// ClientSecret is set iff Confidential is true.
	ClientSecret string

	// Confidential clients authenticate to the token endpoint with a secret.
	// Public clients (browser extensions, CLIs) rely on PKCE alone.
	Confidential bool

	// Scopes are requested in order, space-joined.
	Scopes []string

	AuthEndpoint   string
	TokenEndpoint  string
	RevokeEndpoint string
}

// New validates cfg and returns a copy that callers cannot mutate through
// the original Scopes slice.
func New(cfg Config) (Config, error) {
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.Scopes = append([]string(nil), cfg.Scopes...)
	return cfg, nil
}

// Validate checks that a provider descriptor is usable.
func (c Config) Validate() error {
	if c.Name == "" {
		return oauth.NewConfigurationError("name", "must not be empty")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return oauth.NewConfigurationError("client_id", fmt.Sprintf("must not be empty for provider %s", c.Name))
	}
	if c.Confidential && c.ClientSecret == "" {
		return oauth.NewConfigurationError("client_secret", fmt.Sprintf("provider %s requires a confidential client", c.Name))
	}
	if !c.Confidential && c.ClientSecret != "" {
		return oauth.NewConfigurationError("client_secret", fmt.Sprintf("provider %s is a public client and must not carry a secret", c.Name))
	}
	if err := validateEndpoint("auth_endpoint", c.AuthEndpoint, true); err != nil {
		return err
	}
	if err := validateEndpoint("token_endpoint", c.TokenEndpoint, true); err != nil {
		return err
	}
	return validateEndpoint("revoke_endpoint", c.RevokeEndpoint, false)
}

func validateEndpoint(field, raw string, required bool) error {
	if raw == "" {
		if required {
			return oauth.NewConfigurationError(field, "must not be empty")
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return oauth.NewConfigurationError(field, err.Error())
	}
	if !u.IsAbs() || u.Host == "" {
		return oauth.NewConfigurationError(field, fmt.Sprintf("%q is not an absolute URL", raw))
	}
	return nil
}

// StorageKey returns the key under which this provider's TokenRecord lives.
func (c Config) StorageKey() string {
	return oauth.StorageKey(string(c.Name))
}

// ScopeString returns the scopes joined by a single space.
func (c Config) ScopeString() string {
	return strings.Join(c.Scopes, " ")
}

// CanRevoke reports whether the provider exposes a revocation endpoint.
func (c Config) CanRevoke() bool {
	return c.RevokeEndpoint != ""
}

var builtins = map[Name]Config{
	Google: {
		Name:           Google,
		Scopes:         []string{"openid", "profile"},
		AuthEndpoint:   "https://accounts.google.com/o/oauth2/v2/auth",
		TokenEndpoint:  "https://oauth2.googleapis.com/token",
		RevokeEndpoint: "https://oauth2.googleapis.com/revoke",
	},
	Spotify: {
		Name:          Spotify,
		AuthEndpoint:  "https://accounts.spotify.com/authorize",
		TokenEndpoint: "https://accounts.spotify.com/api/token",
	},
	Fitbit: {
		Name:           Fitbit,
		AuthEndpoint:   "https://www.fitbit.com/oauth2/authorize",
		TokenEndpoint:  "https://api.fitbit.com/oauth2/token",
		RevokeEndpoint: "https://api.fitbit.com/oauth2/revoke",
	},
	GitHub: {
		Name:          GitHub,
		Confidential:  true,
		Scopes:        []string{"user"},
		AuthEndpoint:  "https://github.com/login/oauth/authorize",
		TokenEndpoint: "https://github.com/login/oauth/access_token",
	},
}

// Builtin returns the catalogue template for a known provider. The template
// has no client credentials; fill them in and pass the result to New.
func Builtin(name Name) (Config, bool) {
	cfg, ok := builtins[name]
	if !ok {
		return Config{}, false
	}
	cfg.Scopes = append([]string(nil), cfg.Scopes...)
	return cfg, true
}

// Known returns the names of all built-in providers, sorted.
func Known() []Name {
	names := make([]Name, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// ParseName converts a string to a Name, accepting any built-in provider or
// "generic".
func ParseName(s string) (Name, error) {
	name := Name(strings.ToLower(strings.TrimSpace(s)))
	if name == Generic {
		return name, nil
	}
	if _, ok := builtins[name]; ok {
		return name, nil
	}
	return "", oauth.NewConfigurationError("provider", fmt.Sprintf("unknown provider %q", s))
}
