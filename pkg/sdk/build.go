package sdk

import (
	"context"
	"io"
	"maps"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/modality"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"github.com/norman-ai/norman-sdk-go/pkg/source"
)

// buildModel turns a validated config into the record sent for creation.
// Defaults: Post, Pytorch_jit, Json, Internal hosting (which clears URL),
// Body as HTTP location, an empty header map and empty tag lists. User tags
// carry the account id.
func buildModel(cfg *model.ModelConfig, accountID string) (model.Model, error) {
	m := model.Model{
		AccountID:        accountID,
		Name:             cfg.Name,
		VersionLabel:     cfg.VersionLabel,
		ShortDescription: cfg.ShortDescription,
		LongDescription:  cfg.LongDescription,
		ModelClass:       cfg.ModelClass,
		URL:              cfg.URL,
		RequestType:      or(cfg.RequestType, model.RequestPost),
		ModelType:        or(cfg.ModelType, model.ModelPytorchJIT),
		HostingLocation:  or(cfg.HostingLocation, model.HostingInternal),
		OutputFormat:     or(cfg.OutputFormat, model.OutputJSON),
		HTTPHeaders:      map[string]string{},
		CudaVersion:      cfg.CudaVersion,
		PythonVersion:    cfg.PythonVersion,
		Active:           true,
		Category:         cfg.Category,
		Tags:             make([]model.Tag, 0, len(cfg.Tags)),
		UserAddedTags:    make([]model.Tag, 0, len(cfg.UserTags)),
	}
	maps.Copy(m.HTTPHeaders, cfg.HTTPHeaders)
	if m.HostingLocation == model.HostingInternal {
		m.URL = ""
	}

	var err error
	if m.Inputs, err = buildSignatures(cfg.Inputs, model.SignatureInput); err != nil {
		return model.Model{}, err
	}
	if m.Outputs, err = buildSignatures(cfg.Outputs, model.SignatureOutput); err != nil {
		return model.Model{}, err
	}
	for _, t := range cfg.Tags {
		m.Tags = append(m.Tags, model.Tag{Name: t.Name})
	}
	for _, t := range cfg.UserTags {
		m.UserAddedTags = append(m.UserAddedTags, model.Tag{AccountID: accountID, Name: t.Name})
	}
	for _, a := range cfg.Assets {
		m.Assets = append(m.Assets, model.ModelAsset{AccountID: accountID, AssetName: a.AssetName})
	}
	return m, nil
}

func buildSignatures(sigs []model.SignatureConfig, typ model.SignatureType) ([]model.ModelSignature, error) {
	out := make([]model.ModelSignature, 0, len(sigs))
	for _, s := range sigs {
		mod, err := modality.Signature.Resolve(s.DataEncoding)
		if err != nil {
			return nil, errs.At(errs.StageValidation, s.DisplayTitle, err)
		}
		sig := model.ModelSignature{
			SignatureType: typ,
			DisplayTitle:  s.DisplayTitle,
			DataModality:  mod,
			DataDomain:    s.DataDomain,
			DataEncoding:  s.DataEncoding,
			FileEncoding:  s.FileEncoding,
			ReceiveFormat: s.ReceiveFormat,
			HTTPLocation:  or(s.HTTPLocation, model.HTTPBody),
			Hidden:        s.Hidden,
			DefaultValue:  s.DefaultValue,
			Parameters:    []model.ModelParam{},
		}
		for _, p := range s.Parameters {
			pm, err := modality.Parameter.Resolve(p.DataEncoding)
			if err != nil {
				return nil, errs.At(errs.StageValidation, s.DisplayTitle+"."+p.ParameterName, err)
			}
			sig.Parameters = append(sig.Parameters, model.ModelParam{
				ParameterName: p.ParameterName,
				DataEncoding:  p.DataEncoding,
				DataModality:  pm,
			})
		}
		out = append(out, sig)
	}
	return out, nil
}

func or[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// item is one asset or input before its record exists.
type item struct {
	name   string
	data   any
	source model.Source
}

// prepare resolves s3:// objects and classifies every item, so nothing is
// created on the platform when an item cannot be sent.
func (c *Core) prepare(ctx context.Context, items []item) error {
	for i := range items {
		it := &items[i]
		if c.objects != nil {
			data, src, ok, err := c.objects.Resolve(ctx, it.data, it.source)
			if err != nil {
				closeItems(items)
				return errs.At(errs.StageClassification, it.name, err)
			}
			if ok {
				it.data, it.source = data, src
			}
		}
		src, err := source.Resolve(it.data, it.source)
		if err != nil {
			closeItems(items)
			return errs.At(errs.StageClassification, it.name, err)
		}
		it.source = src
	}
	return nil
}

// closeItems releases caller streams when a workflow ends before dispatch.
func closeItems(items []item) {
	for _, it := range items {
		if c, ok := it.data.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
