package grpc

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/norman-ai/norman-sdk-go/internal/testutil/grpcbuf"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"github.com/norman-ai/norman-sdk-go/pkg/transfer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func assetRequest(id string) model.PairingRequest {
	return model.PairingRequest{EntityRefs: model.EntityRefs{
		Kind: model.TargetAsset, AccountID: "acc", ModelID: "m1", AssetID: id, AssetName: model.AssetFile,
	}}
}

func TestFilePushTransfer(t *testing.T) {
	srv, client := startFilePush(t)
	srv.FilePush.Token = "tok"
	var completed []string
	srv.FilePush.OnComplete = func(u grpcbuf.Upload) { completed = append(completed, u.EntityID()) }

	payload := bytes.Repeat([]byte("norman"), 1000)
	session := transfer.NewSession(NewFilePush(client, 1000), transfer.WithChunkSize(2500))

	err := session.Transfer(context.Background(), "tok", assetRequest("a1"), transfer.Bytes(payload))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	u, ok := srv.FilePush.Upload("a1")
	if !ok {
		t.Fatal("no upload recorded")
	}
	if !u.Complete || !bytes.Equal(u.Data, payload) {
		t.Fatalf("upload incomplete: complete=%v len=%d", u.Complete, len(u.Data))
	}
	if u.Size != int64(len(payload)) {
		t.Fatalf("declared size %d", u.Size)
	}
	if u.Method != "AllocateAssetSocket" || u.Fields["asset_name"] != string(model.AssetFile) {
		t.Fatalf("unexpected pairing %+v", u)
	}
	// Writes of 2500, 2500 and 1000 bytes, split into messages of at most 1000.
	if u.Chunks != 7 {
		t.Fatalf("chunks = %d", u.Chunks)
	}
	if len(completed) != 1 || completed[0] != "a1" {
		t.Fatalf("completed = %v", completed)
	}
}

func TestFilePushInputAndCID(t *testing.T) {
	srv, client := startFilePush(t)
	srv.FilePush.Checksum = func(b []byte) string {
		d := transfer.NewCID()
		_, _ = d.Write(b)
		return d.Sum()
	}
	req := model.PairingRequest{EntityRefs: model.EntityRefs{
		Kind: model.TargetInput, InvocationID: "inv", InputID: "in1", SignatureID: "sig",
	}}
	session := transfer.NewSession(NewFilePush(client, 0), transfer.WithDigest(transfer.NewCID))
	if err := session.Transfer(context.Background(), "", req, transfer.Bytes([]byte("hello"))); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	u, _ := srv.FilePush.Upload("in1")
	if u.Method != "AllocateInputSocket" || u.Fields["signature_id"] != "sig" || !u.Complete {
		t.Fatalf("unexpected upload %+v", u)
	}
	if !strings.HasPrefix(u.Checksum, "b") {
		t.Fatalf("checksum %q is not a base32 CID", u.Checksum)
	}
}

func TestFilePushFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unauthenticated", func(t *testing.T) {
		srv, client := startFilePush(t)
		srv.FilePush.Token = "tok"
		err := transfer.NewSession(NewFilePush(client, 0)).
			Transfer(ctx, "bad", assetRequest("a1"), transfer.Bytes([]byte("x")))
		if !errors.Is(err, errs.ErrUnauthenticated) || !errors.Is(err, errs.ErrTransferFailed) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("allocate error", func(t *testing.T) {
		srv, client := startFilePush(t)
		srv.FilePush.AllocateErr = status.Error(codes.ResourceExhausted, "busy")
		err := transfer.NewSession(NewFilePush(client, 0)).
			Transfer(ctx, "", assetRequest("a1"), transfer.Bytes([]byte("x")))
		if err == nil || !strings.Contains(err.Error(), "busy") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("short ack", func(t *testing.T) {
		srv, client := startFilePush(t)
		srv.FilePush.ShortAck = true
		err := transfer.NewSession(NewFilePush(client, 0)).
			Transfer(ctx, "", assetRequest("a1"), transfer.Bytes([]byte("abc")))
		if err == nil || !strings.Contains(err.Error(), "received 2 of 3 bytes") {
			t.Fatalf("err = %v", err)
		}
		if u, _ := srv.FilePush.Upload("a1"); u.Complete {
			t.Fatal("upload must not complete")
		}
	})

	t.Run("checksum rejected", func(t *testing.T) {
		srv, client := startFilePush(t)
		srv.FilePush.Checksum = func([]byte) string { return "other" }
		err := transfer.NewSession(NewFilePush(client, 0)).
			Transfer(ctx, "", assetRequest("a1"), transfer.Bytes([]byte("abc")))
		if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("no kind", func(t *testing.T) {
		_, client := startFilePush(t)
		_, err := NewFilePush(client, 0).Allocate(ctx, "", model.PairingRequest{})
		if !errors.Is(err, errs.ErrInvalidArgument) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestPushChannelAbort(t *testing.T) {
	_, client := startFilePush(t)
	ch, err := NewFilePush(client, 0).Allocate(context.Background(), "", assetRequest("a1"))
	if err != nil {
		t.Fatal(err)
	}
	if ch.PairingID() == "" {
		t.Fatal("empty pairing id")
	}
	ch.Abort()
	if _, err := ch.Write([]byte("x")); err == nil {
		t.Fatal("write after abort must fail")
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("close after abort: %v", err)
	}
}
