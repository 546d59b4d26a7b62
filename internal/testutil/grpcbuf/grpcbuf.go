// Package grpcbuf runs in-memory gRPC servers over bufconn for tests: a
// dynamic FilePush fake built from proto source and the standard health
// service.
package grpcbuf

import (
	"context"
	"net"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// MetaCapture captures incoming metadata on the server side for later inspection in tests.
type MetaCapture struct {
	last atomic.Value // stores metadata.MD
}

func (m *MetaCapture) store(ctx context.Context) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		m.last.Store(md)
	}
}

// Interceptor records incoming metadata and forwards the request to the next handler.
func (m *MetaCapture) Interceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	m.store(ctx)
	return handler(ctx, req)
}

// StreamInterceptor is Interceptor for streaming calls.
func (m *MetaCapture) StreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	m.store(ss.Context())
	return handler(srv, ss)
}

// Last returns the most recently captured metadata or nil if none.
func (m *MetaCapture) Last() metadata.MD {
	if v := m.last.Load(); v != nil {
		return v.(metadata.MD)
	}
	return nil
}

// Server is a running bufconn server.
type Server struct {
	GRPC     *grpc.Server
	Listener *bufconn.Listener
	Meta     *MetaCapture
	Health   *health.Server
	FilePush *FilePushServer
}

// Start serves the FilePush fake compiled from the given proto file
// together with the health service.
func Start(protoName, protoSource string) (*Server, error) {
	fp, err := NewFilePushServer(protoName, protoSource)
	if err != nil {
		return nil, err
	}
	lis := bufconn.Listen(bufSize)
	meta := &MetaCapture{}
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(meta.Interceptor),
		grpc.StreamInterceptor(meta.StreamInterceptor),
	)
	fp.Register(srv)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	return &Server{GRPC: srv, Listener: lis, Meta: meta, Health: hs, FilePush: fp}, nil
}

// Dial connects to the server over its bufconn listener.
func (s *Server) Dial(opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	return Dial(context.Background(), s.Listener, opts...)
}

func (s *Server) Stop() {
	s.GRPC.Stop()
	_ = s.Listener.Close()
}

// Dial connects to the provided bufconn listener using the standard gRPC client stack.
func Dial(ctx context.Context, lis *bufconn.Listener, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialer := func(dctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(dctx) }
	// bufconn has no TLS; passthrough keeps the custom dialer in use.
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	}
	base = append(base, opts...)
	return grpc.NewClient("passthrough://bufnet", base...)
}
