// Package transfer drives the push protocol for one item: allocate a
// channel for a declared byte length, stream the bytes while digesting them,
// then finalize with the digest. The byte transport itself is supplied as a
// Transport.
package transfer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"go.uber.org/zap"
)

// Channel is an allocated transfer channel. Writes carry payload bytes;
// Close flushes and confirms them. Abort releases the channel after a
// failure.
type Channel interface {
	io.WriteCloser
	PairingID() string
	Abort()
}

// Transport is the push collaborator.
type Transport interface {
	Allocate(ctx context.Context, token string, req model.PairingRequest) (Channel, error)
	Finalize(ctx context.Context, token string, req model.ChecksumRequest) error
}

const DefaultChunkSize = 1 << 20

// Session runs transfers over one Transport. It is safe for concurrent use;
// every Transfer owns its channel, digest and buffer.
type Session struct {
	transport Transport
	digest    DigestFunc
	chunkSize int
	timeout   time.Duration
}

type Option func(*Session)

// WithDigest selects the checksum sent on finalize. Default: SHA-256 hex.
func WithDigest(f DigestFunc) Option {
	return func(s *Session) {
		if f != nil {
			s.digest = f
		}
	}
}

// WithChunkSize sets the copy buffer, which bounds the size of each write.
func WithChunkSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithTimeout bounds each transfer. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

func NewSession(t Transport, opts ...Option) *Session {
	s := &Session{
		transport: t,
		digest:    NewSHA256,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transfer uploads src for the entity addressed by req. The declared length
// in req is replaced by the measured length of src before allocation. Any
// failure is returned wrapped in errs.ErrTransferFailed and is not retried.
// The source is closed on every path.
func (s *Session) Transfer(ctx context.Context, token string, req model.PairingRequest, src ByteSource) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rc, size, err := src.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s source: %w", errs.ErrTransferFailed, src.Kind(), err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			zap.L().Warn("close transfer source", zap.String("entity", req.EntityID()), zap.Error(cerr))
		}
	}()

	req.FileSizeInBytes = size
	ch, err := s.transport.Allocate(ctx, token, req)
	if err != nil {
		return fmt.Errorf("%w: allocate channel: %w", errs.ErrTransferFailed, err)
	}
	zap.L().Debug("transfer channel allocated",
		zap.String("entity", req.EntityID()),
		zap.String("pairing_id", ch.PairingID()),
		zap.Int64("bytes", size))

	digest := s.digest()
	buf := make([]byte, s.chunkSize)
	n, err := io.CopyBuffer(io.MultiWriter(ch, digest), ctxReader{ctx: ctx, r: rc}, buf)
	if err != nil {
		ch.Abort()
		return fmt.Errorf("%w: write after %d of %d bytes: %w", errs.ErrTransferFailed, n, size, err)
	}
	if n != size {
		ch.Abort()
		return fmt.Errorf("%w: source yielded %d bytes, declared %d", errs.ErrTransferFailed, n, size)
	}
	if err := ch.Close(); err != nil {
		return fmt.Errorf("%w: close channel: %w", errs.ErrTransferFailed, err)
	}

	sum := digest.Sum()
	err = s.transport.Finalize(ctx, token, model.ChecksumRequest{PairingID: ch.PairingID(), Checksum: sum})
	if err != nil {
		return fmt.Errorf("%w: finalize: %w", errs.ErrTransferFailed, err)
	}
	zap.L().Debug("transfer finalized",
		zap.String("entity", req.EntityID()),
		zap.String(digest.Name(), sum))
	return nil
}
