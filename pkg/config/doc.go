// Package config defines the runtime configuration for the SDK: API and
// push transport endpoints, credentials, transfer tuning, object storage
// and operation timeouts.
//
// A Config can be built in code, loaded from a file with environment
// overrides, or read from a credentials profile:
//
//	cfg, err := config.Load("norman.yaml")        // YAML/JSON/TOML + NORMAN_* env
//	cfg, err := config.LoadProfile(config.DefaultProfilePath(), "default")
//
// Both loaders return a validated Config. Configs built in code are
// validated by sdk.New.
//
// # Environment
//
// Every key can be overridden with a NORMAN_ variable; nested keys join
// with underscores:
//
//	NORMAN_API_KEY=...
//	NORMAN_S3_MODE=stream
//	NORMAN_TIMEOUTS_FLAG_WAIT=10m
//
// # Timeouts
//
// Zero timeouts take defaults from Timeouts.WithDefaults. Transfer stays
// zero unless set, so a single upload is bounded only by the caller's
// context.
package config
