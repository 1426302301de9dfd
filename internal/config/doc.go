// Package config loads tokenwarden configuration.
//
// Configuration lives in a single YAML file, by default
// ~/.config/tokenwarden/config.yaml. A missing file is not an error: the
// defaults from DefaultConfig apply. Environment variables are applied on
// top of the file:
//
//	TOKENWARDEN_LOG_LEVEL           debug, info, warn or error
//	TOKENWARDEN_STORAGE_DRIVER      memory, file or sqlite
//	TOKENWARDEN_STORAGE_PATH        token directory or database file
//	TOKENWARDEN_STORAGE_CACHE_TTL   read-through cache lifetime, e.g. 30s
//	TOKENWARDEN_CALLBACK_PORT       loopback port for the redirect listener
//	TOKENWARDEN_<NAME>_CLIENT_ID    client id for provider <NAME>
//	TOKENWARDEN_<NAME>_CLIENT_SECRET
//
// # Example
//
//	logLevel: info
//	storage:
//	  driver: sqlite
//	  path: /home/me/.config/tokenwarden/tokens.db
//	callback:
//	  port: 3000
//	providers:
//	  google:
//	    clientId: 1234.apps.googleusercontent.com
//	  generic:
//	    clientId: cli
//	    authEndpoint: https://idp.example.com/authorize
//	    tokenEndpoint: https://idp.example.com/token
//	    scopes: [openid, profile]
//
// Provider settings are merged onto the built-in catalogue by
// Config.ProviderConfig, which validates the result.
package config
