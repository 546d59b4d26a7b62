package sdk

import (
	"context"
	"fmt"

	"github.com/norman-ai/norman-sdk-go/pkg/dispatch"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// UploadModel creates a model version and uploads its assets. It returns
// once the version and every asset report Finished.
func (c *Core) UploadModel(ctx context.Context, cfg *model.ModelConfig) (_ *model.Model, err error) {
	if cfg == nil {
		return nil, errs.At(errs.StageValidation, "", errs.Invalid("nil model config"))
	}
	ctx, span := c.tracer.Start(ctx, "UploadModel", trace.WithAttributes(attribute.String("model.name", cfg.Name)))
	defer endSpan(span, &err)

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, errs.At(errs.StageValidation, cfg.Name, err)
	}
	record, err := buildModel(cfg, c.session.AccountID())
	if err != nil {
		return nil, err
	}
	items := make([]item, len(cfg.Assets))
	for i, a := range cfg.Assets {
		items[i] = item{name: string(a.AssetName), data: a.Data, source: a.Source}
	}
	if err := c.prepare(ctx, items); err != nil {
		return nil, err
	}

	var created model.Model
	err = c.stage(ctx, "create", func(ctx context.Context) error {
		models, err := c.api.CreateModels(ctx, token, []model.Model{record})
		if err != nil {
			return errs.At(errs.StageCreation, cfg.Name, err)
		}
		if len(models) == 0 {
			return errs.At(errs.StageCreation, cfg.Name, fmt.Errorf("%w: no model record returned", errs.ErrCreationFailed))
		}
		created = models[0]
		return nil
	})
	if err != nil {
		closeItems(items)
		return nil, err
	}
	zap.L().Info("model created",
		zap.String("model", created.Name),
		zap.String("model_id", created.ID),
		zap.String("version_id", created.VersionID))

	work, err := assetItems(&created, items)
	if err != nil {
		closeItems(items)
		return nil, err
	}
	if err := c.dispatch(ctx, work); err != nil {
		return nil, err
	}

	ids := []string{created.PollID()}
	for _, w := range work {
		ids = append(ids, w.Refs.EntityID())
	}
	if err := c.wait(ctx, ids); err != nil {
		return nil, err
	}
	return &created, nil
}

// assetItems pairs every prepared asset with its created record by name.
func assetItems(created *model.Model, items []item) ([]dispatch.Item, error) {
	byName := make(map[model.AssetName]model.ModelAsset, len(created.Assets))
	for _, a := range created.Assets {
		byName[a.AssetName] = a
	}
	work := make([]dispatch.Item, 0, len(items))
	for _, it := range items {
		a, ok := byName[model.AssetName(it.name)]
		if !ok || !model.IsAssigned(a.ID) {
			return nil, errs.At(errs.StageCreation, it.name, fmt.Errorf("%w: no asset record", errs.ErrCreationFailed))
		}
		if a.AccountID == "" {
			a.AccountID = created.AccountID
		}
		if a.ModelID == "" {
			a.ModelID = created.ID
		}
		work = append(work, dispatch.Item{Name: it.name, Data: it.data, Source: it.source, Refs: model.AssetRefs(a)})
	}
	return work, nil
}

func (c *Core) authenticate(ctx context.Context) (token string, err error) {
	err = c.stage(ctx, "auth", func(ctx context.Context) error {
		token, err = c.session.AccessToken(ctx)
		return err
	})
	return token, err
}

func (c *Core) dispatch(ctx context.Context, items []dispatch.Item) error {
	return c.stage(ctx, "dispatch", func(ctx context.Context) error {
		token, err := c.session.AccessToken(ctx)
		if err != nil {
			return err
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("items", len(items)))
		return c.dispatcher.Dispatch(ctx, token, items)
	})
}

func (c *Core) wait(ctx context.Context, ids []string) error {
	return c.stage(ctx, "poll", func(ctx context.Context) error {
		token, err := c.session.AccessToken(ctx)
		if err != nil {
			return err
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.StringSlice("entities", ids))
		return c.poller.Wait(ctx, token, ids)
	})
}

// stage runs fn in a child span.
func (c *Core) stage(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	ctx, span := c.tracer.Start(ctx, name)
	defer endSpan(span, &err)
	return fn(ctx)
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
