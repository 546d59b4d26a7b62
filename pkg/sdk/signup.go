package sdk

import (
	"context"

	"github.com/norman-ai/norman-sdk-go/pkg/api"
	"github.com/norman-ai/norman-sdk-go/pkg/auth"
	"github.com/norman-ai/norman-sdk-go/pkg/config"
)

// Signup creates a password account on the platform at cfg.APIURL and
// registers an API key for it. cfg.APIKey is ignored.
func Signup(ctx context.Context, cfg *config.Config, name, password string) (*auth.SignupResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := api.New(cfg.APIURL, api.WithTimeout(cfg.Timeouts.HTTP))
	return auth.Signup(ctx, client, name, password)
}
