// Package grpc is the push transport of the SDK. It keeps a dynamic gRPC
// client that compiles .proto sources at runtime (protocompile) and speaks
// dynamicpb messages, so no generated stubs are needed.
//
// The embedded filepush.proto defines the FilePush service. FilePush
// implements transfer.Transport on top of it:
//
//	AllocateAssetSocket / AllocateInputSocket  pairing request → pairing id
//	Write (client stream of Chunk)             payload bytes → bytes received
//	CompleteTransfer                           pairing id + digest → accepted
//
// A typical setup:
//
//	client, err := grpc.NewClient("https://filepush.norman-ai.com:443", nil)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	session := transfer.NewSession(grpc.NewFilePush(client, 0))
//	err = session.Transfer(ctx, token, req, transfer.File("model.pt"))
//
// The access token travels as "authorization: Bearer <token>" metadata.
// Calls can also be made directly with JSON or proto messages via
// CallWithJSON and CallWithProto.
package grpc
