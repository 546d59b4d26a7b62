// Package model defines the data exchanged between the SDK, its callers and
// the Norman platform.
//
// # Entities
//
// Model, ModelAsset, ModelSignature, Invocation, InvocationInput and
// InvocationOutput are records created by the platform. Their IDs are
// assigned server-side; IsAssigned reports whether an ID is real ("" and
// "0" are placeholders). Every entity exposes completion through one or more
// StatusFlag values.
//
// # Configurations
//
// ModelConfig and InvocationConfig are what callers write, either in Go,
// through ModelBuilder, or as YAML/JSON files read with LoadModelConfig and
// LoadInvocationConfig:
//
//	model_name: sentiment
//	inputs:
//	  - display_title: text
//	    data: "I loved it"
//	outputs_format:
//	  score: bytes
//
// Validate checks required fields, enum values and name uniqueness with
// go-playground/validator and reports failures as errs.ErrInvalidArgument.
//
// # Requests
//
// PairingRequest, ChecksumRequest, LinkRequest and OutputRequest address an
// uploaded or retrieved item through EntityRefs. TargetKind tells asset
// uploads from invocation input uploads.
package model
