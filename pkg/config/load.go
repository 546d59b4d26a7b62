package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// EnvPrefix prefixes environment overrides: NORMAN_API_KEY,
// NORMAN_S3_MODE, NORMAN_TIMEOUTS_FLAG_WAIT and so on.
const EnvPrefix = "NORMAN"

var keys = []string{
	"api_key", "api_url", "filepush_addr", "digest", "chunk_size",
	"max_concurrent_transfers", "debug", "log_file",
	"s3.region", "s3.endpoint", "s3.access_key_id", "s3.secret_access_key",
	"s3.session_token", "s3.use_path_style", "s3.mode", "s3.presign_ttl",
	"timeouts.dial", "timeouts.http", "timeouts.transfer",
	"timeouts.flag_wait", "timeouts.flag_interval",
}

// Load reads a YAML, JSON or TOML file (by extension) and overlays NORMAN_*
// environment variables. An empty path reads the environment only. The
// result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: config %s", errs.ErrNotFound, path)
			}
			return nil, fmt.Errorf("%w: read config %s: %w", errs.ErrInvalidArgument, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", errs.ErrInvalidArgument, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultProfilePath is ~/.norman/credentials.
func DefaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".norman", "credentials")
	}
	return filepath.Join(home, ".norman", "credentials")
}

type profile struct {
	APIKey       string `ini:"api_key"`
	APIURL       string `ini:"api_url"`
	FilePushAddr string `ini:"filepush_addr"`
	Digest       string `ini:"digest"`
	Region       string `ini:"s3_region"`
	Endpoint     string `ini:"s3_endpoint"`
}

// LoadProfile reads one section of an INI credentials file:
//
//	[default]
//	api_key = ...
//	api_url = https://api.norman-ai.com
//
// An empty name selects "default". The result is validated.
func LoadProfile(path, name string) (*Config, error) {
	if name == "" {
		name = "default"
	}
	f, err := ini.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: credentials %s", errs.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: read credentials %s: %w", errs.ErrInvalidArgument, path, err)
	}
	sec, err := f.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("%w: profile %q in %s", errs.ErrNotFound, name, path)
	}
	var p profile
	if err := sec.MapTo(&p); err != nil {
		return nil, fmt.Errorf("%w: profile %q: %w", errs.ErrInvalidArgument, name, err)
	}

	cfg := &Config{
		APIKey:       p.APIKey,
		APIURL:       p.APIURL,
		FilePushAddr: p.FilePushAddr,
		Digest:       p.Digest,
		S3:           S3{Region: p.Region, Endpoint: p.Endpoint},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveProfile writes the connection settings of cfg as section name of the
// INI credentials file at path, keeping the other sections. The file is
// created with mode 0600.
func SaveProfile(path, name string, cfg *Config) error {
	if name == "" {
		name = "default"
	}
	f, err := ini.LooseLoad(path)
	if err != nil {
		return fmt.Errorf("%w: read credentials %s: %w", errs.ErrInvalidArgument, path, err)
	}
	f.DeleteSection(name)
	sec, err := f.NewSection(name)
	if err != nil {
		return err
	}
	p := profile{
		APIKey:       cfg.APIKey,
		APIURL:       cfg.APIURL,
		FilePushAddr: cfg.FilePushAddr,
		Digest:       cfg.Digest,
		Region:       cfg.S3.Region,
		Endpoint:     cfg.S3.Endpoint,
	}
	if err := sec.ReflectFrom(&p); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteTo(out); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
