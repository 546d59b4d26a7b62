package auth

import (
	"context"
	"fmt"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
)

// Registrar is the account-creation side of the authentication collaborator.
type Registrar interface {
	SignupWithPassword(ctx context.Context, name, password string) (*model.Account, error)
	LoginWithPassword(ctx context.Context, accountID, password string) (*model.LoginResponse, error)
	GenerateAPIKey(ctx context.Context, token string, req model.APIKeyRequest) (string, error)
}

// SignupResult carries the new account and its API key. The key is shown
// once by the platform and cannot be fetched again.
type SignupResult struct {
	Account model.Account
	APIKey  string
}

// Signup creates a password account and registers an API key for it. Two
// logins are made: the first token authorizes the key registration and the
// second is presented as the second factor.
func Signup(ctx context.Context, r Registrar, name, password string) (*SignupResult, error) {
	if name == "" || password == "" {
		return nil, errs.At(errs.StageValidation, "", errs.Invalid("name and password are required"))
	}

	account, err := r.SignupWithPassword(ctx, name, password)
	if err != nil {
		return nil, errs.At(errs.StageAuth, name, fmt.Errorf("signup: %w", err))
	}
	if account == nil || !model.IsAssigned(account.ID) {
		return nil, errs.At(errs.StageAuth, name, fmt.Errorf("%w: signup returned no account", errs.ErrCreationFailed))
	}

	first, err := r.LoginWithPassword(ctx, account.ID, password)
	if err != nil {
		return nil, errs.At(errs.StageAuth, name, fmt.Errorf("%w: first login: %w", errs.ErrUnauthenticated, err))
	}
	second, err := r.LoginWithPassword(ctx, account.ID, password)
	if err != nil {
		return nil, errs.At(errs.StageAuth, name, fmt.Errorf("%w: second login: %w", errs.ErrUnauthenticated, err))
	}

	key, err := r.GenerateAPIKey(ctx, first.AccessToken, model.APIKeyRequest{
		AccountID:   account.ID,
		SecondToken: second.AccessToken,
	})
	if err != nil {
		return nil, errs.At(errs.StageAuth, name, fmt.Errorf("generate api key: %w", err))
	}
	return &SignupResult{Account: *account, APIKey: key}, nil
}
