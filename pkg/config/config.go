package config

import (
	"net/url"
	"time"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
)

const (
	DefaultAPIURL       = "https://api.norman-ai.com"
	DefaultFilePushAddr = "https://filepush.norman-ai.com:443"
	DefaultChunkSize    = 1 << 20

	DigestSHA256 = "sha256"
	DigestCID    = "cid"

	S3Presign = "presign"
	S3Stream  = "stream"
)

// Config holds every SDK setting. Use Validate to fill implicit defaults and
// to check enumerated fields.
type Config struct {
	// APIKey authenticates the account. Empty means an anonymous default
	// signup on first use.
	APIKey string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	// APIURL is the platform HTTP API. Default: https://api.norman-ai.com
	APIURL string `json:"api_url" yaml:"api_url" mapstructure:"api_url"`
	// FilePushAddr is the push transport endpoint. Its scheme selects TLS.
	// Default: https://filepush.norman-ai.com:443
	FilePushAddr string `json:"filepush_addr" yaml:"filepush_addr" mapstructure:"filepush_addr"`
	// Digest names the checksum sent when a transfer is finalized:
	// "sha256" (default) or "cid".
	Digest string `json:"digest" yaml:"digest" mapstructure:"digest"`
	// ChunkSize bounds each write to the push channel. Default 1 MiB.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size" mapstructure:"chunk_size"`
	// MaxConcurrentTransfers limits the fan-out. Zero means unlimited.
	MaxConcurrentTransfers int `json:"max_concurrent_transfers" yaml:"max_concurrent_transfers" mapstructure:"max_concurrent_transfers"`
	// Debug enables verbose logging.
	Debug bool `json:"debug" yaml:"debug" mapstructure:"debug"`
	// LogFile, when set, also writes logs to a rotating file.
	LogFile string `json:"log_file" yaml:"log_file" mapstructure:"log_file"`
	// S3 configures resolution of s3://bucket/key items.
	S3 S3 `json:"s3" yaml:"s3" mapstructure:"s3"`
	// Timeouts configures per-operation timeouts. See Timeouts.WithDefaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts" mapstructure:"timeouts"`
}

// S3 holds object storage settings. Empty keys fall back to the default
// AWS credential chain.
type S3 struct {
	Region          string `json:"region" yaml:"region" mapstructure:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token" mapstructure:"session_token"`
	UsePathStyle    bool   `json:"use_path_style" yaml:"use_path_style" mapstructure:"use_path_style"`
	// Mode is "presign" (hand a presigned URL to the platform, default) or
	// "stream" (read the object and push its bytes).
	Mode       string        `json:"mode" yaml:"mode" mapstructure:"mode"`
	PresignTTL time.Duration `json:"presign_ttl" yaml:"presign_ttl" mapstructure:"presign_ttl"`
}

// Timeouts controls SDK operation deadlines.
// Zero values will be replaced by defaults in WithDefaults, except Transfer
// where zero means no limit.
type Timeouts struct {
	Dial         time.Duration `json:"dial" yaml:"dial" mapstructure:"dial"`                            // push transport connect
	HTTP         time.Duration `json:"http" yaml:"http" mapstructure:"http"`                            // one API request
	Transfer     time.Duration `json:"transfer" yaml:"transfer" mapstructure:"transfer"`                // one item upload
	FlagWait     time.Duration `json:"flag_wait" yaml:"flag_wait" mapstructure:"flag_wait"`             // status flag polling
	FlagInterval time.Duration `json:"flag_interval" yaml:"flag_interval" mapstructure:"flag_interval"` // between flag queries
}

// Validate applies implicit defaults and checks enumerated and numeric
// fields. Errors match errs.ErrInvalidArgument.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.FilePushAddr == "" {
		c.FilePushAddr = DefaultFilePushAddr
	}
	if c.Digest == "" {
		c.Digest = DigestSHA256
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.S3.Mode == "" {
		c.S3.Mode = S3Presign
	}
	if c.S3.PresignTTL == 0 {
		c.S3.PresignTTL = 15 * time.Minute
	}
	c.Timeouts = c.Timeouts.WithDefaults()

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errs.Invalid("api_url %q must be an http(s) URL", c.APIURL)
	}
	if c.Digest != DigestSHA256 && c.Digest != DigestCID {
		return errs.Invalid("digest %q must be %s or %s", c.Digest, DigestSHA256, DigestCID)
	}
	if c.ChunkSize < 0 {
		return errs.Invalid("chunk_size must be positive")
	}
	if c.MaxConcurrentTransfers < 0 {
		return errs.Invalid("max_concurrent_transfers must not be negative")
	}
	if c.S3.Mode != S3Presign && c.S3.Mode != S3Stream {
		return errs.Invalid("s3.mode %q must be %s or %s", c.S3.Mode, S3Presign, S3Stream)
	}
	if c.Timeouts.Transfer < 0 {
		return errs.Invalid("timeouts.transfer must not be negative")
	}
	return nil
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	Dial:         5s
//	HTTP:         30s
//	FlagWait:     30m
//	FlagInterval: 2s
//
// Transfer keeps zero (no per-item limit).
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.Dial == 0 {
		tt.Dial = 5 * time.Second
	}
	if tt.HTTP == 0 {
		tt.HTTP = 30 * time.Second
	}
	if tt.FlagWait == 0 {
		tt.FlagWait = 30 * time.Minute
	}
	if tt.FlagInterval == 0 {
		tt.FlagInterval = 2 * time.Second
	}
	return tt
}
