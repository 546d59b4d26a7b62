package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"sigs.k8s.io/yaml"
)

// ModelConfig is the caller's description of a model version to upload.
type ModelConfig struct {
	Name             string            `json:"name" validate:"required"`
	VersionLabel     string            `json:"version_label" validate:"required"`
	ShortDescription string            `json:"short_description" validate:"required"`
	LongDescription  string            `json:"long_description" validate:"required"`
	Inputs           []SignatureConfig `json:"inputs" validate:"unique=DisplayTitle,dive"`
	Outputs          []SignatureConfig `json:"outputs" validate:"unique=DisplayTitle,dive"`
	Assets           []AssetConfig     `json:"assets" validate:"unique=AssetName,dive"`
	OutputFormat     OutputFormat      `json:"output_format,omitempty" validate:"omitempty,oneof=Json Binary Text"`
	ModelType        ModelType         `json:"model_type,omitempty" validate:"omitempty,oneof=Pytorch_jit Transformer_hf"`
	RequestType      RequestType       `json:"request_type,omitempty" validate:"omitempty,oneof=Get Post Put"`
	HostingLocation  HostingLocation   `json:"hosting_location,omitempty" validate:"omitempty,oneof=Internal External"`
	ModelClass       string            `json:"model_class,omitempty"`
	URL              string            `json:"url,omitempty" validate:"omitempty,url"`
	HTTPHeaders      map[string]string `json:"http_headers,omitempty"`
	CudaVersion      string            `json:"cuda_version,omitempty"`
	PythonVersion    string            `json:"python_version,omitempty"`
	Category         string            `json:"category,omitempty"`
	Tags             []TagConfig       `json:"tags,omitempty" validate:"unique=Name,dive"`
	UserTags         []TagConfig       `json:"user_tags,omitempty" validate:"unique=Name,dive"`
}

// TagConfig names a tag. Tags are shared across accounts; user tags are
// stamped with the uploading account.
type TagConfig struct {
	Name string `json:"name" validate:"required"`
}

// SignatureConfig declares one model input or output.
type SignatureConfig struct {
	DisplayTitle  string            `json:"display_title" validate:"required"`
	DataEncoding  string            `json:"data_encoding" validate:"required"`
	ReceiveFormat string            `json:"receive_format" validate:"required"`
	DataDomain    string            `json:"data_domain,omitempty"`
	FileEncoding  string            `json:"file_encoding,omitempty"`
	HTTPLocation  HTTPLocation      `json:"http_location,omitempty" validate:"omitempty,oneof=Body Path Query"`
	Hidden        bool              `json:"hidden,omitempty"`
	DefaultValue  *string           `json:"default_value,omitempty"`
	Parameters    []ParameterConfig `json:"parameters" validate:"dive"`
}

type ParameterConfig struct {
	ParameterName string `json:"parameter_name" validate:"required"`
	DataEncoding  string `json:"data_encoding" validate:"required"`
}

// AssetConfig pairs an asset slot with its payload. Data may be a path,
// a URL, raw bytes, an io.Reader or any primitive value; Source is resolved
// from Data when left empty.
type AssetConfig struct {
	AssetName AssetName `json:"asset_name" validate:"required,oneof=Logo File"`
	Data      any       `json:"data"`
	Source    Source    `json:"source,omitempty" validate:"omitempty,oneof=Primitive File Link Stream"`
}

// InvocationConfig is the caller's description of one model call.
// OutputsFormat maps output display titles to their delivery; outputs
// missing from it are delivered as bytes.
type InvocationConfig struct {
	ModelName     string                    `json:"model_name" validate:"required"`
	Inputs        []InputConfig             `json:"inputs" validate:"required,min=1,unique=DisplayTitle,dive"`
	OutputsFormat map[string]OutputDelivery `json:"outputs_format,omitempty" validate:"dive,keys,required,endkeys,oneof=bytes stream"`
}

type InputConfig struct {
	DisplayTitle string `json:"display_title" validate:"required"`
	Data         any    `json:"data"`
	Source       Source `json:"source,omitempty" validate:"omitempty,oneof=Primitive File Link Stream"`
}

// DeliveryFor returns the requested delivery of an output.
func (c *InvocationConfig) DeliveryFor(title string) OutputDelivery {
	if d, ok := c.OutputsFormat[title]; ok {
		return d
	}
	return DeliverBytes
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks required fields, enum values and unique names.
// External hosting additionally requires URL.
func (c *ModelConfig) Validate() error {
	if c == nil {
		return errs.Invalid("nil model config")
	}
	if err := validate.Struct(c); err != nil {
		return validationError(err)
	}
	if c.HostingLocation == HostingExternal && c.URL == "" {
		return errs.Invalid("external models must define url")
	}
	return nil
}

// Validate checks the model name, the inputs and the output deliveries.
func (c *InvocationConfig) Validate() error {
	if c == nil {
		return errs.Invalid("nil invocation config")
	}
	if err := validate.Struct(c); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", errs.ErrInvalidArgument, strings.Join(msgs, "; "))
}

// LoadModelConfig reads a YAML or JSON model description from path.
func LoadModelConfig(path string) (*ModelConfig, error) {
	var cfg ModelConfig
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadInvocationConfig reads a YAML or JSON invocation description from path.
func LoadInvocationConfig(path string) (*InvocationConfig, error) {
	var cfg InvocationConfig
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	// numbers stay json.Number so their text survives into primitive uploads
	useNumber := func(d *json.Decoder) *json.Decoder {
		d.UseNumber()
		return d
	}
	if err := yaml.Unmarshal(raw, out, useNumber); err != nil {
		return fmt.Errorf("%w: parse %s: %v", errs.ErrInvalidArgument, path, err)
	}
	return nil
}
