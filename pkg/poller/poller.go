// Package poller waits for a set of platform entities to finish by polling
// their status flags.
package poller

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"go.uber.org/zap"
)

// FlagQuerier reads the status flags of entities, keyed by entity ID.
type FlagQuerier interface {
	StatusFlags(ctx context.Context, token string, entityIDs []string) (map[string][]model.StatusFlag, error)
}

const (
	DefaultTimeout  = 30 * time.Minute
	DefaultInterval = 2 * time.Second
)

// Poller checks flags once per interval until every entity is finished,
// any entity failed, or the timeout elapses. Ticks never overlap.
type Poller struct {
	q        FlagQuerier
	timeout  time.Duration
	interval time.Duration
	clock    clock.Clock
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Poller)

func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithSleep replaces the wait between ticks, for tests.
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) { p.sleep = f }
}

func New(q FlagQuerier, opts ...Option) *Poller {
	p := &Poller{
		q:        q,
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sleep == nil {
		p.sleep = p.clockSleep
	}
	return p
}

func (p *Poller) clockSleep(ctx context.Context, d time.Duration) error {
	t := p.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until every entity in ids is finished. It fails with
//
//   - errs.ErrInvalidArgument if ids is empty or holds an unassigned ID,
//     before any query;
//   - errs.ErrEntityFailed as soon as any flag is Error, even if other
//     entities are already finished;
//   - errs.ErrNoFlagsFound if the platform returns no flags at all, or none
//     for some requested entity (an entity without flags is never finished);
//   - errs.ErrTimedOut once the timeout elapses.
//
// Query errors are returned as is.
func (p *Poller) Wait(ctx context.Context, token string, ids []string) error {
	if len(ids) == 0 {
		return errs.At(errs.StagePolling, "", errs.Invalid("empty entity set"))
	}
	for _, id := range ids {
		if !model.IsAssigned(id) {
			return errs.At(errs.StagePolling, id, errs.Invalid("entity id %q is not assigned", id))
		}
	}
	ids = dedupe(ids)

	start := p.clock.Now()
	deadline := start.Add(p.timeout)
	log := zap.L().With(zap.Int("entities", len(ids)))

	for tick := 1; ; tick++ {
		tickStart := p.clock.Now()
		if !tickStart.Before(deadline) {
			break
		}

		flags, err := p.q.StatusFlags(ctx, token, ids)
		if err != nil {
			return errs.At(errs.StagePolling, "", fmt.Errorf("query status flags: %w", err))
		}

		done, entity, err := evaluate(ids, flags)
		if err != nil {
			return errs.At(errs.StagePolling, entity, err)
		}
		if done {
			log.Debug("entities finished", zap.Int("ticks", tick), zap.Duration("elapsed", p.clock.Since(start)))
			return nil
		}

		wait := p.interval - p.clock.Since(tickStart)
		if left := deadline.Sub(p.clock.Now()); wait > left {
			wait = left
		}
		log.Debug("entities pending", zap.Int("tick", tick), zap.Duration("next_in", wait))
		if wait > 0 {
			if err := p.sleep(ctx, wait); err != nil {
				return errs.At(errs.StagePolling, "", err)
			}
		}
	}
	return errs.At(errs.StagePolling, "", fmt.Errorf("%w: entities not finished after %s", errs.ErrTimedOut, p.timeout))
}

// evaluate decides one tick and names the failed entity when there is one.
// Errors take priority over missing or pending entities.
func evaluate(ids []string, flags map[string][]model.StatusFlag) (bool, string, error) {
	total := 0
	for _, fl := range flags {
		total += len(fl)
	}
	if total == 0 {
		return false, "", fmt.Errorf("%w for %d entities", errs.ErrNoFlagsFound, len(ids))
	}

	for _, id := range slices.Sorted(maps.Keys(flags)) {
		for _, f := range flags[id] {
			if f.FlagValue == model.FlagError {
				return false, id, fmt.Errorf("%w: flag %q is %s", errs.ErrEntityFailed, f.FlagName, f.FlagValue)
			}
		}
	}

	var missing []string
	for _, id := range ids {
		if len(flags[id]) == 0 {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return false, "", fmt.Errorf("%w for entities %s", errs.ErrNoFlagsFound, strings.Join(missing, ", "))
	}

	for _, id := range ids {
		for _, f := range flags[id] {
			if f.FlagValue != model.FlagFinished {
				return false, "", nil
			}
		}
	}
	return true, "", nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
