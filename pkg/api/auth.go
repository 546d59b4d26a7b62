package api

import (
	"context"
	"net/http"

	"github.com/norman-ai/norman-sdk-go/pkg/model"
)

type apiKeyLogin struct {
	APIKey string `json:"api_key"`
}

type passwordSignup struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type passwordLogin struct {
	AccountID string `json:"account_id"`
	Password  string `json:"password"`
}

// LoginWithKey exchanges an API key for an access token.
func (c *Client) LoginWithKey(ctx context.Context, apiKey string) (*model.LoginResponse, error) {
	var out model.LoginResponse
	if err := c.do(ctx, http.MethodPost, RouteLoginKey, "", apiKeyLogin{APIKey: apiKey}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignupDefault creates an anonymous account and logs into it.
func (c *Client) SignupDefault(ctx context.Context) (*model.LoginResponse, error) {
	var out model.LoginResponse
	if err := c.do(ctx, http.MethodPost, RouteSignupDefault, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignupWithPassword(ctx context.Context, name, password string) (*model.Account, error) {
	var out model.Account
	if err := c.do(ctx, http.MethodPost, RouteSignupPassword, "", passwordSignup{Name: name, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LoginWithPassword(ctx context.Context, accountID, password string) (*model.LoginResponse, error) {
	var out model.LoginResponse
	if err := c.do(ctx, http.MethodPost, RouteLoginPassword, "", passwordLogin{AccountID: accountID, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateAPIKey registers a new API key for the account of token.
func (c *Client) GenerateAPIKey(ctx context.Context, token string, req model.APIKeyRequest) (string, error) {
	var key string
	if err := c.do(ctx, http.MethodPost, RouteRegisterAPIKey, token, req, &key); err != nil {
		return "", err
	}
	return key, nil
}
