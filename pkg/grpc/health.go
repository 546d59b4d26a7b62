package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc/health/grpc_health_v1"
)

// Health runs the standard gRPC health check for service ("" for the whole
// server) and returns the serving status name.
func (c *Client) Health(ctx context.Context, service string) (string, error) {
	resp, err := grpc_health_v1.NewHealthClient(c.GRPC).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return resp.GetStatus().String(), fmt.Errorf("health check: %s", resp.GetStatus())
	}
	return resp.GetStatus().String(), nil
}
