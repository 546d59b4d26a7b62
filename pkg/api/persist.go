package api

import (
	"context"
	"net/http"

	"github.com/norman-ai/norman-sdk-go/pkg/model"
)

// flagQuery selects status flags whose entity ID is in Values.
type flagQuery struct {
	Table  string   `json:"table"`
	Column string   `json:"column"`
	Values []string `json:"values"`
}

// CreateModels persists models and returns them with assigned IDs.
func (c *Client) CreateModels(ctx context.Context, token string, models []model.Model) ([]model.Model, error) {
	var out []model.Model
	if err := c.do(ctx, http.MethodPost, RouteCreateModels, token, models, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateInvocations creates count invocations per model name.
func (c *Client) CreateInvocations(ctx context.Context, token string, counts map[string]int) ([]model.Invocation, error) {
	var out []model.Invocation
	if err := c.do(ctx, http.MethodPost, RouteCreateInvocation, token, counts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusFlags returns the flags of the given entities keyed by entity ID.
// Entities without flags may be absent from the result.
func (c *Client) StatusFlags(ctx context.Context, token string, entityIDs []string) (map[string][]model.StatusFlag, error) {
	q := flagQuery{Table: "Status_Flags", Column: "Entity_ID", Values: entityIDs}
	var out map[string][]model.StatusFlag
	if err := c.do(ctx, http.MethodPost, RouteStatusFlags, token, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
