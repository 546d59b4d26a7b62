package grpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/norman-ai/norman-sdk-go/internal/testutil/grpcbuf"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// startFilePush serves the FilePush fake over bufconn and returns a client
// connected to it.
func startFilePush(t *testing.T) (*grpcbuf.Server, *Client) {
	t.Helper()
	srv, err := grpcbuf.Start(FilePushProtoName, FilePushProto)
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)

	conn, err := srv.Dial()
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client, err := NewClientFromConn(conn, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestClientCallVariants(t *testing.T) {
	srv, client := startFilePush(t)
	ctx := context.Background()

	t.Run("CallWithJSON", func(t *testing.T) {
		resp, err := client.CallWithJSON(ctx, "AllocateAssetSocket",
			[]byte(`{"asset_id":"a1","file_size_in_bytes":3,"unknown":true}`))
		if err != nil {
			t.Fatalf("CallWithJSON error: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(resp, &m); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if m["pairing_id"] != "pair-1" {
			t.Fatalf("pairing_id = %v", m["pairing_id"])
		}
		u, ok := srv.FilePush.Upload("a1")
		if !ok || u.Size != 3 {
			t.Fatalf("upload = %+v, %v", u, ok)
		}
	})

	t.Run("CallWithJSON input", func(t *testing.T) {
		resp, err := client.CallWithJSON(ctx, "AllocateInputSocket", []byte(`{"input_id":"i1"}`))
		if err != nil {
			t.Fatalf("CallWithJSON error: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(resp, &m); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if m["pairing_id"] != "pair-2" {
			t.Fatalf("unexpected response %v", m)
		}
	})

	t.Run("CallWithProto", func(t *testing.T) {
		_, md, err := FindMethod(client.ProtoFiles, "CompleteTransfer")
		if err != nil {
			t.Fatal(err)
		}
		in := dynamicpb.NewMessage(md.Input())
		in.Set(md.Input().Fields().ByName("pairing_id"), protoreflect.ValueOfString("pair-2"))
		out, err := client.CallWithProto(ctx, "CompleteTransfer", in)
		if err != nil {
			t.Fatalf("CallWithProto error: %v", err)
		}
		msg := out.ProtoReflect()
		if msg.Get(md.Output().Fields().ByName("accepted")).Bool() {
			t.Fatal("empty checksum must not be accepted")
		}
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		if _, err := client.CallWithJSON(ctx, "Nope", []byte(`{}`)); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestHealth(t *testing.T) {
	srv, client := startFilePush(t)
	ctx := context.Background()

	st, err := client.Health(ctx, "")
	if err != nil || st != "SERVING" {
		t.Fatalf("Health = %q, %v", st, err)
	}

	srv.Health.Shutdown()
	if _, err := client.Health(ctx, ""); err == nil {
		t.Fatal("expected NOT_SERVING error")
	}
}

func TestWithToken(t *testing.T) {
	srv, client := startFilePush(t)
	ctx := WithToken(context.Background(), "tok")
	if _, err := client.CallWithJSON(ctx, "AllocateAssetSocket", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	got := srv.Meta.Last().Get("authorization")
	if len(got) != 1 || got[0] != "Bearer tok" {
		t.Fatalf("authorization = %v", got)
	}
	if WithToken(context.Background(), "") != context.Background() {
		t.Fatal("empty token must not touch the context")
	}
}
