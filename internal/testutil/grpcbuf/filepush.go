package grpcbuf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bufbuild/protocompile"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Upload is one paired transfer as seen by the fake.
type Upload struct {
	PairingID string
	Method    string
	// Fields holds the string fields of the pairing request by proto name.
	Fields   map[string]string
	Size     int64
	Data     []byte
	Chunks   int
	Checksum string
	Complete bool
}

// EntityID is the asset_id or input_id the upload was paired for.
func (u Upload) EntityID() string {
	if id := u.Fields["asset_id"]; id != "" {
		return id
	}
	return u.Fields["input_id"]
}

// FilePushServer is a dynamic FilePush service. Its hooks may be set
// before serving.
type FilePushServer struct {
	service protoreflect.ServiceDescriptor

	// Token, when set, is the bearer every call must carry.
	Token string
	// AllocateErr fails every allocation.
	AllocateErr error
	// ShortAck makes the write ack report one byte less than received.
	ShortAck bool
	// Checksum computes the expected digest. Default: SHA-256 hex.
	Checksum func([]byte) string
	// OnComplete runs after an accepted CompleteTransfer.
	OnComplete func(Upload)

	mu      sync.Mutex
	seq     int
	uploads map[string]*Upload
}

func NewFilePushServer(protoName, protoSource string) (*FilePushServer, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(map[string]string{protoName: protoSource}),
		}),
	}
	files, err := compiler.Compile(context.Background(), protoName)
	if err != nil {
		return nil, err
	}
	svc := files[0].Services().ByName("FilePush")
	if svc == nil {
		return nil, fmt.Errorf("%s: no FilePush service", protoName)
	}
	return &FilePushServer{service: svc, uploads: map[string]*Upload{}}, nil
}

// Uploads returns a snapshot of every paired upload.
func (s *FilePushServer) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Upload, 0, len(s.uploads))
	for i := 1; i <= s.seq; i++ {
		if u, ok := s.uploads[pairingID(i)]; ok {
			cp := *u
			cp.Data = append([]byte(nil), u.Data...)
			out = append(out, cp)
		}
	}
	return out
}

// Upload returns the upload paired for an entity.
func (s *FilePushServer) Upload(entityID string) (Upload, bool) {
	for _, u := range s.Uploads() {
		if u.EntityID() == entityID {
			return u, true
		}
	}
	return Upload{}, false
}

func pairingID(n int) string { return fmt.Sprintf("pair-%d", n) }

// Register adds the service to srv.
func (s *FilePushServer) Register(srv *grpc.Server) {
	name := string(s.service.FullName())
	desc := grpc.ServiceDesc{
		ServiceName: name,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			s.unary("AllocateAssetSocket", s.allocate),
			s.unary("AllocateInputSocket", s.allocate),
			s.unary("CompleteTransfer", s.complete),
		},
		Streams: []grpc.StreamDesc{{
			StreamName:    "Write",
			ClientStreams: true,
			Handler: func(_ any, stream grpc.ServerStream) error {
				return s.write(stream)
			},
		}},
	}
	srv.RegisterService(&desc, s)
}

type unaryFunc func(ctx context.Context, md protoreflect.MethodDescriptor, in *dynamicpb.Message) (*dynamicpb.Message, error)

func (s *FilePushServer) unary(method string, fn unaryFunc) grpc.MethodDesc {
	md := s.service.Methods().ByName(protoreflect.Name(method))
	full := "/" + string(s.service.FullName()) + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(_ any, ctx context.Context, dec func(any) error, icpt grpc.UnaryServerInterceptor) (any, error) {
			in := dynamicpb.NewMessage(md.Input())
			if err := dec(in); err != nil {
				return nil, err
			}
			h := func(ctx context.Context, req any) (any, error) {
				if err := s.authorize(ctx); err != nil {
					return nil, err
				}
				return fn(ctx, md, req.(*dynamicpb.Message))
			}
			if icpt == nil {
				return h(ctx, in)
			}
			return icpt(ctx, in, &grpc.UnaryServerInfo{Server: s, FullMethod: full}, h)
		},
	}
}

func (s *FilePushServer) authorize(ctx context.Context) error {
	if s.Token == "" {
		return nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get("authorization") {
		if v == "Bearer "+s.Token {
			return nil
		}
	}
	return status.Error(codes.Unauthenticated, "invalid token")
}

func (s *FilePushServer) allocate(_ context.Context, md protoreflect.MethodDescriptor, in *dynamicpb.Message) (*dynamicpb.Message, error) {
	if s.AllocateErr != nil {
		return nil, s.AllocateErr
	}
	u := &Upload{Method: string(md.Name()), Fields: map[string]string{}}
	in.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch fd.Kind() {
		case protoreflect.StringKind:
			u.Fields[string(fd.Name())] = v.String()
		case protoreflect.Int64Kind:
			if fd.Name() == "file_size_in_bytes" {
				u.Size = v.Int()
			}
		}
		return true
	})
	if u.Size < 0 {
		return nil, status.Error(codes.InvalidArgument, "negative size")
	}

	s.mu.Lock()
	s.seq++
	u.PairingID = pairingID(s.seq)
	s.uploads[u.PairingID] = u
	s.mu.Unlock()

	out := dynamicpb.NewMessage(md.Output())
	out.Set(md.Output().Fields().ByName("pairing_id"), protoreflect.ValueOfString(u.PairingID))
	return out, nil
}

func (s *FilePushServer) write(stream grpc.ServerStream) error {
	if err := s.authorize(stream.Context()); err != nil {
		return err
	}
	md := s.service.Methods().ByName("Write")
	fields := md.Input().Fields()
	var received int64
	for {
		chunk := dynamicpb.NewMessage(md.Input())
		err := stream.RecvMsg(chunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		id := chunk.Get(fields.ByName("pairing_id")).String()
		offset := chunk.Get(fields.ByName("offset")).Int()
		data := chunk.Get(fields.ByName("data")).Bytes()

		s.mu.Lock()
		u, ok := s.uploads[id]
		if ok && offset == int64(len(u.Data)) {
			u.Data = append(u.Data, data...)
			u.Chunks++
		}
		s.mu.Unlock()
		if !ok {
			return status.Errorf(codes.NotFound, "unknown pairing %s", id)
		}
		if offset != received {
			return status.Errorf(codes.InvalidArgument, "offset %d, expected %d", offset, received)
		}
		received += int64(len(data))
	}

	if s.ShortAck && received > 0 {
		received--
	}
	ack := dynamicpb.NewMessage(md.Output())
	ack.Set(md.Output().Fields().ByName("bytes_received"), protoreflect.ValueOfInt64(received))
	return stream.SendMsg(ack)
}

func (s *FilePushServer) complete(_ context.Context, md protoreflect.MethodDescriptor, in *dynamicpb.Message) (*dynamicpb.Message, error) {
	fields := md.Input().Fields()
	id := in.Get(fields.ByName("pairing_id")).String()
	sum := in.Get(fields.ByName("checksum")).String()

	s.mu.Lock()
	u, ok := s.uploads[id]
	var accepted bool
	var msg string
	var snapshot Upload
	if ok {
		checksum := s.Checksum
		if checksum == nil {
			checksum = sha256Hex
		}
		u.Checksum = sum
		switch {
		case int64(len(u.Data)) != u.Size:
			msg = fmt.Sprintf("received %d of %d bytes", len(u.Data), u.Size)
		case checksum(u.Data) != sum:
			msg = "checksum mismatch"
		default:
			accepted = true
			u.Complete = true
		}
		snapshot = *u
	}
	s.mu.Unlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown pairing %s", id)
	}
	if accepted && s.OnComplete != nil {
		s.OnComplete(snapshot)
	}

	out := dynamicpb.NewMessage(md.Output())
	out.Set(md.Output().Fields().ByName("accepted"), protoreflect.ValueOfBool(accepted))
	out.Set(md.Output().Fields().ByName("message"), protoreflect.ValueOfString(msg))
	return out, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
