package sdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// HealthReport is the result of Health. Transport is empty when the push
// transport is not a gRPC client.
type HealthReport struct {
	API       map[string]any
	Transport string
	Took      time.Duration
}

// Health checks the API with GET /health and the push transport with the
// standard gRPC health service. Both checks always run; their errors are
// joined.
func (c *Core) Health(ctx context.Context) (*HealthReport, error) {
	start := time.Now()
	report := &HealthReport{}

	var errList []error
	api, err := c.api.Health(ctx)
	if err != nil {
		errList = append(errList, fmt.Errorf("api: %w", err))
	}
	report.API = api

	if c.push != nil {
		dctx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Dial)
		st, err := c.push.Health(dctx, "")
		cancel()
		if err != nil {
			errList = append(errList, fmt.Errorf("transport: %w", err))
		}
		report.Transport = st
	}
	report.Took = time.Since(start)

	if c.cfg.Debug {
		zap.L().Debug("health",
			zap.Any("api", report.API),
			zap.String("transport", report.Transport),
			zap.Duration("took", report.Took))
	}
	return report, errors.Join(errList...)
}
