// Package sdk exposes the high-level Norman entry points. It wires together
// authentication, the platform API, the push transport, object storage, the
// upload dispatcher and the completion poller.
package sdk

import (
	"context"
	"fmt"
	"io"

	"github.com/norman-ai/norman-sdk-go/pkg/api"
	"github.com/norman-ai/norman-sdk-go/pkg/auth"
	"github.com/norman-ai/norman-sdk-go/pkg/config"
	"github.com/norman-ai/norman-sdk-go/pkg/dispatch"
	"github.com/norman-ai/norman-sdk-go/pkg/grpc"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"github.com/norman-ai/norman-sdk-go/pkg/poller"
	"github.com/norman-ai/norman-sdk-go/pkg/storage"
	"github.com/norman-ai/norman-sdk-go/pkg/transfer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/norman-ai/norman-sdk-go/pkg/sdk"

// Norman is the public interface of the SDK.
type Norman interface {
	// UploadModel creates a model version, uploads its assets and waits
	// until the platform reports the version and every asset finished.
	UploadModel(ctx context.Context, cfg *model.ModelConfig) (*model.Model, error)
	// Invoke creates an invocation, uploads its inputs, waits for it to
	// finish and returns its outputs.
	Invoke(ctx context.Context, cfg *model.InvocationConfig) (*Result, error)
	// Health checks the platform API and the push transport.
	Health(ctx context.Context) (*HealthReport, error)
	// Close releases network clients.
	Close() error
}

// Platform is the set of HTTP collaborators the workflows use.
// *api.Client implements it.
type Platform interface {
	auth.Authenticator
	poller.FlagQuerier
	dispatch.Puller
	CreateModels(ctx context.Context, token string, models []model.Model) ([]model.Model, error)
	CreateInvocations(ctx context.Context, token string, counts map[string]int) ([]model.Invocation, error)
	OpenOutput(ctx context.Context, token string, req model.OutputRequest) (io.ReadCloser, error)
	Health(ctx context.Context) (map[string]any, error)
}

var _ Platform = (*api.Client)(nil)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	logger, err := consoleConfig(false).Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// Core is the concrete SDK implementation.
type Core struct {
	cfg        *config.Config
	api        Platform
	push       *grpc.Client
	transport  transfer.Transport
	objects    *storage.Client
	session    *auth.Session
	dispatcher *dispatch.Dispatcher
	poller     *poller.Poller
	pollOpts   []poller.Option
	tracer     trace.Tracer
}

var _ Norman = (*Core)(nil)

type Option func(*Core)

// WithPlatform replaces the HTTP API client.
func WithPlatform(p Platform) Option {
	return func(c *Core) { c.api = p }
}

// WithTransport replaces the push transport. No gRPC connection is made.
func WithTransport(t transfer.Transport) Option {
	return func(c *Core) { c.transport = t }
}

// WithPushClient uses an existing FilePush client, for example one dialed
// over a custom connection. Close closes it.
func WithPushClient(gc *grpc.Client) Option {
	return func(c *Core) { c.push = gc }
}

// WithObjectStore sets the resolver for s3:// items.
func WithObjectStore(s *storage.Client) Option {
	return func(c *Core) { c.objects = s }
}

// WithPollerOptions adds options to the completion poller, after the ones
// derived from the configuration.
func WithPollerOptions(opts ...poller.Option) Option {
	return func(c *Core) { c.pollOpts = append(c.pollOpts, opts...) }
}

// WithTracer replaces the tracer obtained from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Core) { c.tracer = t }
}

// New validates cfg, reconfigures the global logger from it and builds
// every collaborator not supplied through options.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := configureLogger(cfg); err != nil {
		return nil, err
	}

	c := &Core{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.api == nil {
		c.api = api.New(cfg.APIURL, api.WithTimeout(cfg.Timeouts.HTTP))
	}
	if c.transport == nil {
		if c.push == nil {
			gc, err := grpc.NewClient(cfg.FilePushAddr, nil)
			if err != nil {
				return nil, err
			}
			c.push = gc
		}
		c.transport = grpc.NewFilePush(c.push, 0)
	}
	if c.objects == nil {
		backend, err := storage.NewS3(ctx, cfg.S3)
		if err != nil {
			zap.L().Warn("object storage disabled", zap.Error(err))
		} else {
			c.objects = storage.NewClient(cfg.S3.Mode, cfg.S3.PresignTTL, backend, backend)
		}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	digest, err := transfer.DigestByName(cfg.Digest)
	if err != nil {
		return nil, err
	}
	transfers := transfer.NewSession(c.transport,
		transfer.WithDigest(digest),
		transfer.WithChunkSize(cfg.ChunkSize),
		transfer.WithTimeout(cfg.Timeouts.Transfer))

	c.session = auth.NewSession(c.api, cfg.APIKey)
	c.dispatcher = dispatch.New(transfers, c.api, dispatch.WithConcurrency(cfg.MaxConcurrentTransfers))

	pollOpts := append([]poller.Option{
		poller.WithTimeout(cfg.Timeouts.FlagWait),
		poller.WithInterval(cfg.Timeouts.FlagInterval),
	}, c.pollOpts...)
	c.poller = poller.New(c.api, pollOpts...)

	zap.L().Debug("sdk initialized",
		zap.String("api_url", cfg.APIURL),
		zap.String("filepush_addr", cfg.FilePushAddr),
		zap.String("digest", cfg.Digest))
	return c, nil
}

// Session returns the authentication session shared by every workflow.
func (c *Core) Session() *auth.Session { return c.session }

// Close shuts down the push transport connection.
func (c *Core) Close() error {
	return c.push.Close()
}
