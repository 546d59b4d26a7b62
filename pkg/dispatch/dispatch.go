// Package dispatch fans out the uploads of a set of named items (model
// assets or invocation inputs) and waits for all of them.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"github.com/norman-ai/norman-sdk-go/pkg/source"
	"github.com/norman-ai/norman-sdk-go/pkg/transfer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Item is one named unit of work. Source may be empty, in which case it is
// classified from Data before anything is sent.
type Item struct {
	Name   string
	Data   any
	Source model.Source
	Refs   model.EntityRefs
}

// Transferer pushes one byte source.
type Transferer interface {
	Transfer(ctx context.Context, token string, req model.PairingRequest, src transfer.ByteSource) error
}

// Puller hands links to the platform, which fetches them asynchronously.
type Puller interface {
	SubmitLinks(ctx context.Context, token string, req model.LinkRequest) error
}

// Dispatcher runs one operation per item concurrently.
//
// Failure policy: the first failing item cancels the context shared by its
// siblings, and Dispatch returns that first error once every started item
// has returned. Items are classified before any of them starts, so a
// classification failure sends nothing.
type Dispatcher struct {
	transfers Transferer
	links     Puller
	limit     int
}

type Option func(*Dispatcher)

// WithConcurrency caps the number of items in flight. Zero or less means
// every item starts at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) { d.limit = n }
}

func New(t Transferer, p Puller, opts ...Option) *Dispatcher {
	d := &Dispatcher{transfers: t, links: p}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type job struct {
	item   Item
	source model.Source
}

// Dispatch uploads every item. Errors are tagged with the item name and the
// stage (classification or transfer) that failed.
func (d *Dispatcher) Dispatch(ctx context.Context, token string, items []Item) error {
	jobs := make([]job, 0, len(items))
	for _, it := range items {
		src, err := source.Resolve(it.Data, it.Source)
		if err != nil {
			closeAll(items)
			return errs.At(errs.StageClassification, it.Name, err)
		}
		jobs = append(jobs, job{item: it, source: src})
	}

	g, gctx := errgroup.WithContext(ctx)
	if d.limit > 0 {
		g.SetLimit(d.limit)
	}
	for _, j := range jobs {
		g.Go(func() error {
			if err := d.run(gctx, token, j); err != nil {
				return errs.At(errs.StageTransfer, j.item.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) run(ctx context.Context, token string, j job) error {
	log := zap.L().With(zap.String("item", j.item.Name), zap.String("source", string(j.source)))

	switch j.source {
	case model.SourceLink:
		link, ok := j.item.Data.(string)
		if !ok {
			return errs.Invalid("link source needs a URL string, got %T", j.item.Data)
		}
		log.Debug("submitting link")
		req := model.LinkRequest{EntityRefs: j.item.Refs, Links: []string{strings.TrimSpace(link)}}
		if err := d.links.SubmitLinks(ctx, token, req); err != nil {
			return fmt.Errorf("submit link: %w", err)
		}
		return nil

	case model.SourcePrimitive, model.SourceFile, model.SourceStream:
		src, err := transfer.FromData(ctx, j.source, j.item.Data)
		if err != nil {
			return err
		}
		log.Debug("starting transfer")
		return d.transfers.Transfer(ctx, token, model.PairingRequest{EntityRefs: j.item.Refs}, src)

	default:
		return fmt.Errorf("%w: %q", errs.ErrUnsupportedSource, j.source)
	}
}

// closeAll releases caller streams when nothing will consume them.
func closeAll(items []Item) {
	for _, it := range items {
		if c, ok := it.Data.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}
