// Package storage resolves object storage items before dispatch. An item
// whose data is an s3://bucket/key string is rewritten according to the
// configured mode:
//
//   - presign (default): the object becomes a presigned HTTPS Link that the
//     platform pulls itself; no bytes pass through the SDK.
//   - stream: the object becomes a sized Stream pushed over the transfer
//     channel. Its size comes from HeadObject and the body is fetched on
//     first read.
//
// Usage:
//
//	backend, err := storage.NewS3(ctx, cfg.S3)
//	if err != nil {
//		return err
//	}
//	objects := storage.NewClient(cfg.S3.Mode, cfg.S3.PresignTTL, backend, backend)
//	data, src, ok, err := objects.Resolve(ctx, "s3://bucket/model.pt", "")
//
// A custom endpoint (MinIO and other S3-compatible stores) switches to
// path-style addressing.
package storage
