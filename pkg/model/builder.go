package model

import "maps"

// ModelBuilder assembles a ModelConfig step by step.
//
//	cfg, err := model.NewModelBuilder("sentiment", "Scores text", "Scores English text from -1 to 1").
//		WithVersionLabel("v1").
//		AddAsset(model.AssetFile, "", "./weights.pt").
//		AddInput(model.SignatureConfig{DisplayTitle: "text", DataEncoding: "utf-8", ReceiveFormat: "Primitive"}).
//		AddOutput(model.SignatureConfig{DisplayTitle: "score", DataEncoding: "utf-8", ReceiveFormat: "Primitive"}).
//		Build()
type ModelBuilder struct {
	cfg ModelConfig
}

func NewModelBuilder(name, shortDescription, longDescription string) *ModelBuilder {
	return &ModelBuilder{cfg: ModelConfig{
		Name:             name,
		ShortDescription: shortDescription,
		LongDescription:  longDescription,
	}}
}

// AddAsset attaches an asset. An empty source is resolved from data at upload time.
func (b *ModelBuilder) AddAsset(name AssetName, source Source, data any) *ModelBuilder {
	b.cfg.Assets = append(b.cfg.Assets, AssetConfig{AssetName: name, Source: source, Data: data})
	return b
}

func (b *ModelBuilder) AddInput(sig SignatureConfig) *ModelBuilder {
	b.cfg.Inputs = append(b.cfg.Inputs, sig)
	return b
}

func (b *ModelBuilder) AddOutput(sig SignatureConfig) *ModelBuilder {
	b.cfg.Outputs = append(b.cfg.Outputs, sig)
	return b
}

func (b *ModelBuilder) WithVersionLabel(label string) *ModelBuilder {
	b.cfg.VersionLabel = label
	return b
}

func (b *ModelBuilder) WithHostingLocation(loc HostingLocation) *ModelBuilder {
	b.cfg.HostingLocation = loc
	return b
}

func (b *ModelBuilder) WithOutputFormat(f OutputFormat) *ModelBuilder {
	b.cfg.OutputFormat = f
	return b
}

func (b *ModelBuilder) WithRequestType(rt RequestType) *ModelBuilder {
	b.cfg.RequestType = rt
	return b
}

func (b *ModelBuilder) WithModelType(mt ModelType) *ModelBuilder {
	b.cfg.ModelType = mt
	return b
}

func (b *ModelBuilder) WithHTTPHeaders(headers map[string]string) *ModelBuilder {
	b.cfg.HTTPHeaders = maps.Clone(headers)
	return b
}

func (b *ModelBuilder) WithCategory(category string) *ModelBuilder {
	b.cfg.Category = category
	return b
}

// WithTags appends shared tags.
func (b *ModelBuilder) WithTags(names ...string) *ModelBuilder {
	for _, n := range names {
		b.cfg.Tags = append(b.cfg.Tags, TagConfig{Name: n})
	}
	return b
}

// WithUserTags appends tags owned by the uploading account.
func (b *ModelBuilder) WithUserTags(names ...string) *ModelBuilder {
	for _, n := range names {
		b.cfg.UserTags = append(b.cfg.UserTags, TagConfig{Name: n})
	}
	return b
}

func (b *ModelBuilder) WithURL(url string) *ModelBuilder {
	b.cfg.URL = url
	return b
}

// Build returns a validated copy of the accumulated configuration.
func (b *ModelBuilder) Build() (*ModelConfig, error) {
	cfg := b.cfg
	cfg.Inputs = append([]SignatureConfig(nil), b.cfg.Inputs...)
	cfg.Outputs = append([]SignatureConfig(nil), b.cfg.Outputs...)
	cfg.Assets = append([]AssetConfig(nil), b.cfg.Assets...)
	cfg.Tags = append([]TagConfig(nil), b.cfg.Tags...)
	cfg.UserTags = append([]TagConfig(nil), b.cfg.UserTags...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
