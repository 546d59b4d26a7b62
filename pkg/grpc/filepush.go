package grpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"github.com/norman-ai/norman-sdk-go/pkg/transfer"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	methodAllocateAsset = "AllocateAssetSocket"
	methodAllocateInput = "AllocateInputSocket"
	methodWrite         = "Write"
	methodComplete      = "CompleteTransfer"

	// DefaultMaxMessage bounds one Chunk payload, below the default 4 MiB
	// gRPC receive limit.
	DefaultMaxMessage = 2 << 20
)

// FilePush is the push transport over the FilePush service. Each
// allocated channel is one client stream of Chunk messages.
type FilePush struct {
	client     *Client
	maxMessage int
}

var _ transfer.Transport = (*FilePush)(nil)

func NewFilePush(c *Client, maxMessage int) *FilePush {
	if maxMessage <= 0 {
		maxMessage = DefaultMaxMessage
	}
	return &FilePush{client: c, maxMessage: maxMessage}
}

// Allocate pairs the request with a socket and opens the write stream.
func (f *FilePush) Allocate(ctx context.Context, token string, req model.PairingRequest) (transfer.Channel, error) {
	var method string
	switch req.Kind {
	case model.TargetAsset:
		method = methodAllocateAsset
	case model.TargetInput:
		method = methodAllocateInput
	default:
		return nil, errs.Invalid("pairing request without target kind")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	ctx = WithToken(ctx, token)
	raw, err := f.client.CallWithJSON(ctx, method, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, statusErr(err))
	}
	var info struct {
		PairingID string `json:"pairing_id"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", method, err)
	}
	if info.PairingID == "" {
		return nil, fmt.Errorf("%s: empty pairing id", method)
	}

	fd, md, err := FindMethod(f.client.ProtoFiles, methodWrite)
	if err != nil {
		return nil, err
	}
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := f.client.GRPC.NewStream(streamCtx,
		&grpc.StreamDesc{StreamName: methodWrite, ClientStreams: true},
		FullMethodName(fd, md))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open write stream: %w", statusErr(err))
	}

	zap.L().Debug("push channel allocated",
		zap.String("pairing_id", info.PairingID),
		zap.String("entity_id", req.EntityID()),
		zap.Int64("size", req.FileSizeInBytes))

	return &pushChannel{
		pairingID:  info.PairingID,
		stream:     stream,
		cancel:     cancel,
		chunk:      md.Input(),
		ack:        md.Output(),
		maxMessage: f.maxMessage,
	}, nil
}

// Finalize sends the digest of the pushed bytes. A rejected checksum is an
// error.
func (f *FilePush) Finalize(ctx context.Context, token string, req model.ChecksumRequest) error {
	_, md, err := FindMethod(f.client.ProtoFiles, methodComplete)
	if err != nil {
		return err
	}
	in := dynamicpb.NewMessage(md.Input())
	fields := md.Input().Fields()
	in.Set(fields.ByName("pairing_id"), protoreflect.ValueOfString(req.PairingID))
	in.Set(fields.ByName("checksum"), protoreflect.ValueOfString(req.Checksum))

	out, err := f.client.CallWithProto(WithToken(ctx, token), methodComplete, in)
	if err != nil {
		return fmt.Errorf("%s: %w", methodComplete, statusErr(err))
	}
	res := out.ProtoReflect()
	if !res.Get(md.Output().Fields().ByName("accepted")).Bool() {
		msg := res.Get(md.Output().Fields().ByName("message")).String()
		return fmt.Errorf("%s: pairing %s rejected: %s", methodComplete, req.PairingID, msg)
	}
	return nil
}

type pushChannel struct {
	pairingID  string
	stream     grpc.ClientStream
	cancel     context.CancelFunc
	chunk      protoreflect.MessageDescriptor
	ack        protoreflect.MessageDescriptor
	maxMessage int
	offset     int64
	done       bool
}

func (c *pushChannel) PairingID() string { return c.pairingID }

func (c *pushChannel) Write(p []byte) (int, error) {
	if c.done {
		return 0, errors.New("write on closed push channel")
	}
	written := 0
	for len(p) > 0 {
		n := min(len(p), c.maxMessage)
		msg := dynamicpb.NewMessage(c.chunk)
		fields := c.chunk.Fields()
		msg.Set(fields.ByName("pairing_id"), protoreflect.ValueOfString(c.pairingID))
		msg.Set(fields.ByName("offset"), protoreflect.ValueOfInt64(c.offset))
		msg.Set(fields.ByName("data"), protoreflect.ValueOfBytes(bytes.Clone(p[:n])))
		if err := c.stream.SendMsg(msg); err != nil {
			return written, fmt.Errorf("push %s: %w", c.pairingID, statusErr(err))
		}
		c.offset += int64(n)
		written += n
		p = p[n:]
	}
	return written, nil
}

// Close ends the stream and checks the server received every byte written.
func (c *pushChannel) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	defer c.cancel()

	if err := c.stream.CloseSend(); err != nil {
		return fmt.Errorf("push %s: close: %w", c.pairingID, statusErr(err))
	}
	ack := dynamicpb.NewMessage(c.ack)
	if err := c.stream.RecvMsg(ack); err != nil {
		return fmt.Errorf("push %s: ack: %w", c.pairingID, statusErr(err))
	}
	got := ack.Get(c.ack.Fields().ByName("bytes_received")).Int()
	if got != c.offset {
		return fmt.Errorf("push %s: server received %d of %d bytes", c.pairingID, got, c.offset)
	}
	return nil
}

func (c *pushChannel) Abort() {
	c.done = true
	c.cancel()
}

// statusErr tags gRPC status codes with the matching sentinel.
func statusErr(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %w", errs.ErrUnauthenticated, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %w", errs.ErrNotFound, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %w", errs.ErrInvalidArgument, err)
	}
	return err
}
