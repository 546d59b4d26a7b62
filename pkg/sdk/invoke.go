package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/norman-ai/norman-sdk-go/pkg/dispatch"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Output is one resolved invocation output. Exactly one of Bytes and
// Stream is set, following the delivery requested for it.
type Output struct {
	Bytes  []byte
	Stream io.ReadCloser
}

// Result is the outcome of Invoke. Outputs are keyed by display title.
type Result struct {
	Invocation model.Invocation
	Outputs    map[string]Output
}

// Close closes every output delivered as a stream.
func (r *Result) Close() error {
	var errList []error
	for _, o := range r.Outputs {
		if o.Stream != nil {
			errList = append(errList, o.Stream.Close())
		}
	}
	return errors.Join(errList...)
}

// Invoke creates an invocation of cfg.ModelName, uploads its inputs, waits
// until the invocation, its inputs and its outputs report Finished and then
// retrieves every output.
func (c *Core) Invoke(ctx context.Context, cfg *model.InvocationConfig) (_ *Result, err error) {
	if cfg == nil {
		return nil, errs.At(errs.StageValidation, "", errs.Invalid("nil invocation config"))
	}
	ctx, span := c.tracer.Start(ctx, "Invoke", trace.WithAttributes(attribute.String("model.name", cfg.ModelName)))
	defer endSpan(span, &err)

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, errs.At(errs.StageValidation, cfg.ModelName, err)
	}
	items := make([]item, len(cfg.Inputs))
	for i, in := range cfg.Inputs {
		items[i] = item{name: in.DisplayTitle, data: in.Data, source: in.Source}
	}
	if err := c.prepare(ctx, items); err != nil {
		return nil, err
	}

	var inv model.Invocation
	err = c.stage(ctx, "create", func(ctx context.Context) error {
		invs, err := c.api.CreateInvocations(ctx, token, map[string]int{cfg.ModelName: 1})
		if err != nil {
			return errs.At(errs.StageCreation, cfg.ModelName, err)
		}
		if len(invs) == 0 {
			return errs.At(errs.StageCreation, cfg.ModelName, fmt.Errorf("%w: no invocation record returned", errs.ErrCreationFailed))
		}
		inv = invs[0]
		return nil
	})
	if err != nil {
		closeItems(items)
		return nil, err
	}
	zap.L().Info("invocation created",
		zap.String("model", cfg.ModelName),
		zap.String("invocation_id", inv.ID),
		zap.Int("inputs", len(inv.Inputs)),
		zap.Int("outputs", len(inv.Outputs)))

	work, err := inputItems(&inv, items)
	if err != nil {
		closeItems(items)
		return nil, err
	}
	if err := c.dispatch(ctx, work); err != nil {
		return nil, err
	}
	if err := c.wait(ctx, inv.EntityIDs()); err != nil {
		return nil, err
	}

	res := &Result{Invocation: inv, Outputs: make(map[string]Output, len(inv.Outputs))}
	err = c.stage(ctx, "retrieve", func(ctx context.Context) error {
		return c.retrieve(ctx, cfg, res)
	})
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	return res, nil
}

// inputItems pairs every prepared input with its created record by title.
// Every input of the invocation must be supplied.
func inputItems(inv *model.Invocation, items []item) ([]dispatch.Item, error) {
	byTitle := make(map[string]model.InvocationInput, len(inv.Inputs))
	for _, in := range inv.Inputs {
		byTitle[in.DisplayTitle] = in
	}
	supplied := make(map[string]bool, len(items))
	work := make([]dispatch.Item, 0, len(items))
	for _, it := range items {
		in, ok := byTitle[it.name]
		if !ok {
			return nil, errs.At(errs.StageValidation, it.name, errs.Invalid("model has no input %q", it.name))
		}
		if in.AccountID == "" {
			in.AccountID = inv.AccountID
		}
		if in.ModelID == "" {
			in.ModelID = inv.ModelID
		}
		if in.InvocationID == "" {
			in.InvocationID = inv.ID
		}
		supplied[it.name] = true
		work = append(work, dispatch.Item{Name: it.name, Data: it.data, Source: it.source, Refs: model.InputRefs(in)})
	}
	for _, in := range inv.Inputs {
		if !supplied[in.DisplayTitle] {
			return nil, errs.At(errs.StageValidation, in.DisplayTitle, errs.Invalid("no data for input %q", in.DisplayTitle))
		}
	}
	return work, nil
}

func (c *Core) retrieve(ctx context.Context, cfg *model.InvocationConfig, res *Result) error {
	token, err := c.session.AccessToken(ctx)
	if err != nil {
		return err
	}
	inv := res.Invocation
	for _, out := range inv.Outputs {
		rc, err := c.api.OpenOutput(ctx, token, model.OutputRequest{
			AccountID:    or(out.AccountID, inv.AccountID),
			ModelID:      or(out.ModelID, inv.ModelID),
			InvocationID: inv.ID,
			OutputID:     out.ID,
		})
		if err != nil {
			return errs.At(errs.StageRetrieval, out.DisplayTitle, err)
		}

		if cfg.DeliveryFor(out.DisplayTitle) == model.DeliverStream {
			res.Outputs[out.DisplayTitle] = Output{Stream: rc}
			continue
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return errs.At(errs.StageRetrieval, out.DisplayTitle, fmt.Errorf("read output: %w", err))
		}
		res.Outputs[out.DisplayTitle] = Output{Bytes: b}
	}
	return nil
}
