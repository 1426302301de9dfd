// Package logging provides the structured logging used across tokenwarden.
//
// It is a thin layer over Go's standard slog package that tags every entry
// with a subsystem and offers printf-style helpers for CLI code.
//
// # Usage Examples
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Config", "Loaded configuration from %s", path)
//	logging.Error("Storage", err, "Failed to open token database")
//
// Components that accept an injected *slog.Logger get one tagged with their
// subsystem:
//
//	client, err := auth.NewClient(cfg, redirectURI,
//	    auth.WithLogger(logging.Logger("auth:google")))
//
// # Audit Logging
//
// Credential writes, deletions and revocations are logged with Audit. Audit
// lines carry a "SECURITY_AUDIT:" prefix so log pipelines can filter them.
// Token values are never logged; only provider names, storage keys and
// outcomes. As a backstop, attributes with credential names such as
// access_token, refresh_token, code or client_secret are replaced with
// [REDACTED] by the installed handler.
package logging
