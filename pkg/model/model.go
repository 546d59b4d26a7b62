package model

import (
	"fmt"
	"strings"
)

// Source tells how the bytes of an asset or input are obtained.
type Source string

const (
	SourcePrimitive Source = "Primitive"
	SourceFile      Source = "File"
	SourceLink      Source = "Link"
	SourceStream    Source = "Stream"
)

// ParseSource accepts a source name case-insensitively.
func ParseSource(s string) (Source, error) {
	for _, src := range []Source{SourcePrimitive, SourceFile, SourceLink, SourceStream} {
		if strings.EqualFold(strings.TrimSpace(s), string(src)) {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Modality is the coarse data category derived from an encoding string.
type Modality string

const (
	ModalityAudio   Modality = "Audio"
	ModalityImage   Modality = "Image"
	ModalityText    Modality = "Text"
	ModalityVideo   Modality = "Video"
	ModalityFloat   Modality = "Float"
	ModalityInteger Modality = "Integer"
	ModalityFile    Modality = "File"
)

// FlagValue is the state carried by a status flag.
type FlagValue string

const (
	FlagNotStarted FlagValue = "Not_Started"
	FlagEnqueued   FlagValue = "Enqueued"
	FlagInProgress FlagValue = "In_Progress"
	FlagFinished   FlagValue = "Finished"
	FlagError      FlagValue = "Error"
)

type AssetName string

const (
	AssetLogo AssetName = "Logo"
	AssetFile AssetName = "File"
)

type OutputFormat string

const (
	OutputJSON   OutputFormat = "Json"
	OutputBinary OutputFormat = "Binary"
	OutputText   OutputFormat = "Text"
)

type ModelType string

const (
	ModelPytorchJIT    ModelType = "Pytorch_jit"
	ModelTransformerHF ModelType = "Transformer_hf"
)

type RequestType string

const (
	RequestGet  RequestType = "Get"
	RequestPost RequestType = "Post"
	RequestPut  RequestType = "Put"
)

type HostingLocation string

const (
	HostingInternal HostingLocation = "Internal"
	HostingExternal HostingLocation = "External"
)

type SignatureType string

const (
	SignatureInput  SignatureType = "Input"
	SignatureOutput SignatureType = "Output"
)

type HTTPLocation string

const (
	HTTPBody  HTTPLocation = "Body"
	HTTPPath  HTTPLocation = "Path"
	HTTPQuery HTTPLocation = "Query"
)

// OutputDelivery selects how an invocation output is handed back: fully read
// into memory or as an open stream the caller drains.
type OutputDelivery string

const (
	DeliverBytes  OutputDelivery = "bytes"
	DeliverStream OutputDelivery = "stream"
)

// IsAssigned reports whether id was issued by the platform. Empty and "0"
// mean the entity has not been persisted yet.
func IsAssigned(id string) bool {
	return id != "" && id != "0"
}

// StatusFlag is one completion signal of an entity. An entity may carry
// several flags; it is complete only when all of them are Finished.
type StatusFlag struct {
	EntityID  string    `json:"entity_id"`
	FlagName  string    `json:"flag_name,omitempty"`
	FlagValue FlagValue `json:"flag_value"`
}

// Model is a model version record as stored by the platform.
type Model struct {
	ID               string            `json:"id,omitempty"`
	VersionID        string            `json:"version_id,omitempty"`
	AccountID        string            `json:"account_id"`
	Name             string            `json:"name"`
	VersionLabel     string            `json:"version_label"`
	ShortDescription string            `json:"short_description"`
	LongDescription  string            `json:"long_description"`
	ModelClass       string            `json:"model_class"`
	URL              string            `json:"url"`
	RequestType      RequestType       `json:"request_type"`
	ModelType        ModelType         `json:"model_type"`
	HostingLocation  HostingLocation   `json:"hosting_location"`
	OutputFormat     OutputFormat      `json:"output_format"`
	HTTPHeaders      map[string]string `json:"http_headers"`
	CudaVersion      string            `json:"cuda_version,omitempty"`
	PythonVersion    string            `json:"python_version,omitempty"`
	Active           bool              `json:"active"`
	Inputs           []ModelSignature  `json:"inputs"`
	Outputs          []ModelSignature  `json:"outputs"`
	Assets           []ModelAsset      `json:"assets"`
	Category         string            `json:"category,omitempty"`
	Tags             []Tag             `json:"tags"`
	UserAddedTags    []Tag             `json:"user_added_tags"`
}

// Tag labels a model version. AccountID is set only on tags added by a user.
type Tag struct {
	AccountID string `json:"account_id,omitempty"`
	Name      string `json:"name"`
}

// PollID is the entity whose flags gate the model record itself: the
// version when the platform reports one, the model otherwise.
func (m *Model) PollID() string {
	if IsAssigned(m.VersionID) {
		return m.VersionID
	}
	return m.ID
}

// ModelAsset is a binary attached to a model version (weights, logo).
type ModelAsset struct {
	ID        string    `json:"id,omitempty"`
	AccountID string    `json:"account_id"`
	ModelID   string    `json:"model_id,omitempty"`
	AssetName AssetName `json:"asset_name"`
}

// ModelSignature describes one input or output of a model.
type ModelSignature struct {
	ID            string        `json:"id,omitempty"`
	ModelID       string        `json:"model_id,omitempty"`
	SignatureType SignatureType `json:"signature_type"`
	DisplayTitle  string        `json:"display_title"`
	DataModality  Modality      `json:"data_modality"`
	DataDomain    string        `json:"data_domain,omitempty"`
	DataEncoding  string        `json:"data_encoding"`
	FileEncoding  string        `json:"file_encoding,omitempty"`
	ReceiveFormat string        `json:"receive_format"`
	HTTPLocation  HTTPLocation  `json:"http_location"`
	Hidden        bool          `json:"hidden"`
	DefaultValue  *string       `json:"default_value,omitempty"`
	Parameters    []ModelParam  `json:"parameters"`
}

type ModelParam struct {
	ParameterName string   `json:"parameter_name"`
	DataEncoding  string   `json:"data_encoding"`
	DataModality  Modality `json:"data_modality"`
}

// Invocation is one call of a model together with the input and output
// entities the platform created for it.
type Invocation struct {
	ID        string             `json:"id"`
	AccountID string             `json:"account_id"`
	ModelID   string             `json:"model_id"`
	Inputs    []InvocationInput  `json:"inputs"`
	Outputs   []InvocationOutput `json:"outputs"`
}

type InvocationInput struct {
	ID           string `json:"id"`
	AccountID    string `json:"account_id"`
	ModelID      string `json:"model_id"`
	InvocationID string `json:"invocation_id"`
	SignatureID  string `json:"signature_id"`
	DisplayTitle string `json:"display_title"`
}

type InvocationOutput struct {
	ID           string `json:"id"`
	AccountID    string `json:"account_id"`
	ModelID      string `json:"model_id"`
	InvocationID string `json:"invocation_id"`
	SignatureID  string `json:"signature_id"`
	DisplayTitle string `json:"display_title"`
}

// EntityIDs lists the invocation, its inputs and its outputs.
func (inv *Invocation) EntityIDs() []string {
	ids := make([]string, 0, 1+len(inv.Inputs)+len(inv.Outputs))
	ids = append(ids, inv.ID)
	for _, in := range inv.Inputs {
		ids = append(ids, in.ID)
	}
	for _, out := range inv.Outputs {
		ids = append(ids, out.ID)
	}
	return ids
}

type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LoginResponse is returned by every login and signup route.
type LoginResponse struct {
	Account     Account `json:"account"`
	AccessToken string  `json:"access_token"`
}
