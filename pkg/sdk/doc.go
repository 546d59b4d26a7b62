// Package sdk provides the high-level entry point for the Norman platform.
//
// The SDK uploads model versions with their assets, invokes models with
// their inputs and hands back the outputs. It hides token refresh, record
// creation, the choice between pushing bytes and handing links to the
// platform, and the wait on status flags.
//
// # Quick Start
//
//	import (
//		"github.com/norman-ai/norman-sdk-go/pkg/config"
//		"github.com/norman-ai/norman-sdk-go/pkg/model"
//		"github.com/norman-ai/norman-sdk-go/pkg/sdk"
//	)
//
//	func main() {
//		ctx := context.Background()
//		cfg := &config.Config{APIKey: os.Getenv("NORMAN_API_KEY")}
//
//		norman, err := sdk.New(ctx, cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer norman.Close()
//
//		res, err := norman.Invoke(ctx, &model.InvocationConfig{
//			ModelName: "sentiment",
//			Inputs:    []model.InputConfig{{DisplayTitle: "text", Data: "what a day"}},
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer res.Close()
//		fmt.Printf("%s\n", res.Outputs["score"].Bytes)
//	}
//
// # Workflows
//
// UploadModel and Invoke run the same stages, each in its own trace span:
//
//  1. auth: obtain a valid access token, logging in again when it expired
//  2. validation and classification: check the config and decide the
//     source of every asset or input, before anything is created
//  3. create: persist the model version or invocation records
//  4. dispatch: push bytes over the FilePush stream or submit links,
//     concurrently
//  5. poll: wait until every created entity reports Finished
//
// Invoke then retrieves every output as bytes or as an open stream,
// following InvocationConfig.OutputsFormat.
//
// Failures are *errs.Error values carrying the stage and the item that
// failed; match the cause with errors.Is against the errs sentinels.
//
// # Object storage
//
// Items given as s3://bucket/key are presigned and handed to the platform as
// links, or streamed through the SDK when config.S3.Mode is "stream".
//
// # Logging
//
// New replaces the global zap logger. Console output is always on; set
// config.Config.LogFile to also keep rotated JSON logs.
package sdk
