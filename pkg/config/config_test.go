package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
)

// TestConfigValidate_AppliesDefaults verifies that Validate fills URLs,
// digest, chunk size, S3 mode and timeouts when they are not set.
func TestConfigValidate_AppliesDefaults(t *testing.T) {
	cfg := &Config{APIKey: "k"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("unexpected APIURL: %s", cfg.APIURL)
	}
	if cfg.FilePushAddr != DefaultFilePushAddr {
		t.Fatalf("unexpected FilePushAddr: %s", cfg.FilePushAddr)
	}
	if cfg.Digest != DigestSHA256 || cfg.ChunkSize != 1<<20 {
		t.Fatalf("unexpected digest/chunk: %s %d", cfg.Digest, cfg.ChunkSize)
	}
	if cfg.S3.Mode != S3Presign || cfg.S3.PresignTTL != 15*time.Minute {
		t.Fatalf("unexpected S3 defaults: %+v", cfg.S3)
	}
	if cfg.Timeouts.FlagWait != 30*time.Minute {
		t.Fatalf("timeouts not defaulted: %+v", cfg.Timeouts)
	}
}

func TestConfigValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "bad url scheme", cfg: Config{APIURL: "ftp://x"}},
		{name: "url without host", cfg: Config{APIURL: "https://"}},
		{name: "unknown digest", cfg: Config{Digest: "md5"}},
		{name: "negative chunk", cfg: Config{ChunkSize: -1}},
		{name: "negative concurrency", cfg: Config{MaxConcurrentTransfers: -2}},
		{name: "unknown s3 mode", cfg: Config{S3: S3{Mode: "copy"}}},
		{name: "negative transfer timeout", cfg: Config{Timeouts: Timeouts{Transfer: -time.Second}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, errs.ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}

// TestTimeoutsWithDefaults verifies that WithDefaults preserves explicitly set
// timeout values and fills in defaults for zero values.
func TestTimeoutsWithDefaults(t *testing.T) {
	in := Timeouts{
		Dial:     time.Second,
		FlagWait: 42 * time.Second,
	}

	out := in.WithDefaults()

	if out.Dial != time.Second {
		t.Fatalf("Dial overwritten: got %v", out.Dial)
	}
	if out.FlagWait != 42*time.Second {
		t.Fatalf("FlagWait overwritten: got %v", out.FlagWait)
	}

	if out.HTTP != 30*time.Second {
		t.Fatalf("HTTP default mismatch: %v", out.HTTP)
	}
	if out.FlagInterval != 2*time.Second {
		t.Fatalf("FlagInterval default mismatch: %v", out.FlagInterval)
	}
	if out.Transfer != 0 {
		t.Fatalf("Transfer must stay unlimited: %v", out.Transfer)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, "norman.yaml", `
api_key: from-file
api_url: http://localhost:8080
digest: cid
max_concurrent_transfers: 4
s3:
  region: eu-west-1
  mode: stream
timeouts:
  flag_wait: 90s
  flag_interval: 500ms
`)
	t.Setenv("NORMAN_API_KEY", "from-env")
	t.Setenv("NORMAN_TIMEOUTS_DIAL", "2s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "from-env" {
		t.Fatalf("env must override file, got %q", cfg.APIKey)
	}
	if cfg.APIURL != "http://localhost:8080" || cfg.Digest != DigestCID || cfg.MaxConcurrentTransfers != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.S3.Region != "eu-west-1" || cfg.S3.Mode != S3Stream {
		t.Fatalf("unexpected S3: %+v", cfg.S3)
	}
	if cfg.Timeouts.FlagWait != 90*time.Second || cfg.Timeouts.FlagInterval != 500*time.Millisecond {
		t.Fatalf("unexpected timeouts: %+v", cfg.Timeouts)
	}
	if cfg.Timeouts.Dial != 2*time.Second || cfg.Timeouts.HTTP != 30*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg.Timeouts)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("NORMAN_API_KEY", "k")
	t.Setenv("NORMAN_DEBUG", "true")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "k" || !cfg.Debug || cfg.APIURL != DefaultAPIURL {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing file: %v", err)
	}
	bad := writeFile(t, "bad.yaml", "digest: md5\n")
	if _, err := Load(bad); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("invalid digest: %v", err)
	}
}

func TestLoadProfile(t *testing.T) {
	path := writeFile(t, "credentials", `
[default]
api_key = default-key

[staging]
api_key = staging-key
api_url = https://staging.norman-ai.com
s3_region = us-east-2
`)

	cfg, err := LoadProfile(path, "")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if cfg.APIKey != "default-key" || cfg.APIURL != DefaultAPIURL {
		t.Fatalf("unexpected default profile: %+v", cfg)
	}

	cfg, err = LoadProfile(path, "staging")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if cfg.APIKey != "staging-key" || cfg.APIURL != "https://staging.norman-ai.com" || cfg.S3.Region != "us-east-2" {
		t.Fatalf("unexpected staging profile: %+v", cfg)
	}

	if _, err := LoadProfile(path, "prod"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing profile: %v", err)
	}
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "none"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSaveProfileKeepsOtherSections(t *testing.T) {
	path := writeFile(t, "credentials", `
[staging]
api_key = staging-key
`)
	cfg := &Config{APIKey: "new-key", APIURL: "https://api.example.com", S3: S3{Region: "eu-west-1"}}
	if err := SaveProfile(path, "", cfg); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	got, err := LoadProfile(path, "default")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got.APIKey != "new-key" || got.APIURL != "https://api.example.com" || got.S3.Region != "eu-west-1" {
		t.Fatalf("unexpected saved profile: %+v", got)
	}
	if staging, err := LoadProfile(path, "staging"); err != nil || staging.APIKey != "staging-key" {
		t.Fatalf("staging profile lost: %+v, %v", staging, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v", info.Mode().Perm())
	}
}

func TestSaveProfileCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".norman", "credentials")
	if err := SaveProfile(path, "ci", &Config{APIKey: "ci-key"}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	got, err := LoadProfile(path, "ci")
	if err != nil || got.APIKey != "ci-key" {
		t.Fatalf("LoadProfile = %+v, %v", got, err)
	}
}
