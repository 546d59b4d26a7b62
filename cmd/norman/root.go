package main

import (
	"context"
	"errors"
	"os"

	"github.com/norman-ai/norman-sdk-go/pkg/config"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/sdk"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath  string
	profile     string
	credentials string
	debug       bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "norman",
		Short:        "Upload and invoke models on the Norman platform",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML, JSON or TOML config file")
	root.PersistentFlags().StringVar(&g.profile, "profile", "", "credentials profile (default \"default\")")
	root.PersistentFlags().StringVar(&g.credentials, "credentials", config.DefaultProfilePath(), "credentials file")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "debug logging")

	root.AddCommand(
		newUploadCmd(g),
		newInvokeCmd(g),
		newSignupCmd(g),
		newHealthCmd(g),
	)
	return root
}

// loadConfig picks the config file when given, the credentials profile
// when one exists, and the environment otherwise. NORMAN_API_KEY always
// overrides a profile key.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case g.configPath != "":
		cfg, err = config.Load(g.configPath)
	case g.profile != "":
		cfg, err = config.LoadProfile(g.credentials, g.profile)
	default:
		cfg, err = config.LoadProfile(g.credentials, "")
		if errors.Is(err, errs.ErrNotFound) {
			cfg, err = config.Load("")
		}
	}
	if err != nil {
		return nil, err
	}
	if key := os.Getenv(config.EnvPrefix + "_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if g.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func (g *globalFlags) client(ctx context.Context) (*sdk.Core, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return sdk.New(ctx, cfg)
}
