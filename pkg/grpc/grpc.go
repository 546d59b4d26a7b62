package grpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bufbuild/protocompile/linker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Client is a dynamic gRPC client that holds a ClientConn and the compiled
// descriptors used to locate services and methods at runtime.
type Client struct {
	// GRPC is the underlying client connection.
	GRPC *grpc.ClientConn `json:"-"`
	// ProtoFiles are the compiled descriptors, filepush.proto included.
	ProtoFiles linker.Files `json:"-"`
}

// NewClient creates a dynamic client for endpoint. The endpoint scheme
// determines transport security:
//   - "https://": TLS (system defaults)
//   - "http://":  insecure
//   - no scheme:  insecure
//
// The returned client proactively starts connecting.
func NewClient(endpoint string, protoFiles map[string]string) (*Client, error) {
	addr, creds := grpcCredsFromEndpoint(endpoint)
	conn, err := grpc.NewClient(addr, creds)
	if err != nil {
		zap.L().Error("grpc client", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("grpc client %s: %w", endpoint, err)
	}

	c, err := NewClientFromConn(conn, protoFiles)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	conn.Connect()
	return c, nil
}

// NewClientFromConn wraps an existing connection. Close closes conn.
func NewClientFromConn(conn *grpc.ClientConn, protoFiles map[string]string) (*Client, error) {
	descriptors, err := getProtoDescriptors(protoFiles)
	if err != nil {
		return nil, err
	}
	return &Client{GRPC: conn, ProtoFiles: descriptors}, nil
}

// DialEndpoint connects to endpoint and blocks until the connection is
// ready, ctx is done or timeout elapses.
func DialEndpoint(ctx context.Context, endpoint string, timeout time.Duration) (*grpc.ClientConn, error) {
	addr, creds := grpcCredsFromEndpoint(endpoint)
	conn, err := grpc.NewClient(addr, creds)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return conn, nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			_ = conn.Close()
			return nil, fmt.Errorf("dial %s: %w", endpoint, ctx.Err())
		}
	}
}

// Close shuts down the underlying connection. It is safe on a nil receiver.
func (c *Client) Close() error {
	if c == nil || c.GRPC == nil {
		return nil
	}
	return c.GRPC.Close()
}

// CallWithProto invokes a unary RPC with a concrete request message and
// returns a dynamic response.
func (c *Client) CallWithProto(ctx context.Context, method string, req proto.Message) (proto.Message, error) {
	fd, methodDesc, err := FindMethod(c.ProtoFiles, method)
	if err != nil {
		return nil, err
	}
	out := dynamicpb.NewMessage(methodDesc.Output())
	if err := c.GRPC.Invoke(ctx, FullMethodName(fd, methodDesc), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CallWithJSON invokes a unary RPC with a JSON body. Unknown fields are
// discarded; the response is marshaled with proto field names and
// unpopulated fields emitted.
func (c *Client) CallWithJSON(ctx context.Context, method string, body []byte) ([]byte, error) {
	fd, methodDesc, err := FindMethod(c.ProtoFiles, method)
	if err != nil {
		return nil, err
	}

	in := dynamicpb.NewMessage(methodDesc.Input())
	out := dynamicpb.NewMessage(methodDesc.Output())

	err = protojson.UnmarshalOptions{
		AllowPartial:   true,
		DiscardUnknown: true,
	}.Unmarshal(body, in)
	if err != nil {
		return nil, err
	}

	if err := c.GRPC.Invoke(ctx, FullMethodName(fd, methodDesc), in, out); err != nil {
		return nil, err
	}

	return protojson.MarshalOptions{
		EmitUnpopulated: true,
		UseProtoNames:   true,
	}.Marshal(out)
}

// WithToken attaches a bearer token to outgoing metadata.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// grpcCredsFromEndpoint derives a dial address and dial option from an endpoint URL.
func grpcCredsFromEndpoint(endpoint string) (string, grpc.DialOption) {
	if strings.HasPrefix(endpoint, "https://") {
		return strings.TrimPrefix(endpoint, "https://"), grpc.WithTransportCredentials(credentials.NewTLS(nil))
	}
	if strings.HasPrefix(endpoint, "http://") {
		return strings.TrimPrefix(endpoint, "http://"), grpc.WithTransportCredentials(insecure.NewCredentials())
	}
	return endpoint, grpc.WithTransportCredentials(insecure.NewCredentials())
}
