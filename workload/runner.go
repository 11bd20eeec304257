package workload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	antsv2 "github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xset/lib/id"
	"github.com/benz9527/xset/lib/infra"
	xruntime "github.com/benz9527/xset/lib/runtime"
	"github.com/benz9527/xset/lib/tree"
	"github.com/benz9527/xset/observability"
	"github.com/benz9527/xset/xlog"
)

const (
	ContextKeyRunID    = "runID"
	ContextKeyStrategy = "strategy"
	ContextKeyWorker   = "worker"

	runIDLength       = 12
	ctxCheckMask      = 0x3ff
	workloadStatsName = "workload"
)

var ErrModelMismatch = errors.New("set diverges from the reference model")

// Runner drives the workers on an ants pool. Every worker owns one set
// and one map based reference model, so the sets are never shared.
type Runner struct {
	cfg     *Config
	logger  xlog.XLogger
	pool    *antsv2.Pool
	runID   id.NanoIDGen
	setOpts []tree.SetOption
}

func NewRunner(cfg *Config, logger xlog.XLogger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, infra.NewErrorStack("[workload] nil logger")
	}
	runID, err := id.NanoID(runIDLength)
	if err != nil {
		return nil, err
	}
	pool, err := antsv2.NewPool(cfg.Workers, antsv2.WithLogger(xlog.NewAntsXLogger(logger)))
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[workload] new worker pool")
	}
	r := &Runner{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		runID:  runID,
	}
	if cfg.MetricsKind() != observability.MetricsNone {
		r.setOpts = append(r.setOpts, tree.WithSetStats(workloadStatsName))
	}
	return r, nil
}

func (r *Runner) Release() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Release()
}

// Run blocks until all workers finish. The report is returned even if
// some workers failed, together with the combined worker errors.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := r.runID()
	ctx = context.WithValue(ctx, xlog.ContextKey(ContextKeyRunID), runID)
	startedAt := time.Now()
	r.logger.InfoContext(ctx, "workload started",
		zap.String("strategy", r.cfg.Strategy),
		zap.String("pattern", string(r.cfg.Pattern)),
		zap.Int("keys", r.cfg.Keys),
		zap.Int("ops", r.cfg.Ops),
		zap.Int("workers", r.cfg.Workers),
		zap.Uint64("seed", r.cfg.Seed),
	)

	strategies := r.cfg.Strategies()
	results := make([]WorkerResult, len(strategies)*r.cfg.Workers)
	var wg sync.WaitGroup
	for si, strategy := range strategies {
		for w := 0; w < r.cfg.Workers; w++ {
			idx := si*r.cfg.Workers + w
			wg.Add(1)
			if err := r.pool.Submit(func() {
				defer wg.Done()
				results[idx] = r.runWorker(ctx, strategy, w)
			}); err != nil {
				wg.Done()
				results[idx] = WorkerResult{
					Strategy: strategy,
					Worker:   w,
					Err:      infra.WrapErrorStackWithMessage(err, "[workload] submit worker"),
				}
			}
		}
	}
	wg.Wait()

	report := &Report{
		RunID:       runID,
		StartedAt:   startedAt,
		Elapsed:     time.Since(startedAt),
		Pattern:     r.cfg.Pattern,
		Keys:        r.cfg.Keys,
		Ops:         r.cfg.Ops,
		Workers:     r.cfg.Workers,
		Seed:        r.cfg.Seed,
		Env:         xruntime.DetectEnv().String(),
		ContainerID: xruntime.LoadContainerID(),
		Strategies:  summarize(results),
	}
	if rss, err := observability.ProcessRSS(ctx); err != nil {
		r.logger.WarnContext(ctx, "unable to read process rss", zap.Error(err))
	} else {
		report.RSSBytes = rss
	}
	for _, s := range report.Strategies {
		r.logger.InfoContext(ctx, "workload strategy finished",
			zap.String("strategy", s.Strategy),
			zap.Int64("ops", s.Ops),
			zap.Int64("rotations", s.Rotations),
			zap.Int("finalSize", s.FinalSize),
			zap.Float64("opsPerSec", s.OpsPerSec),
			zap.Int("failures", s.Failures),
		)
	}
	err := multierr.Combine(lo.Map(results, func(res WorkerResult, _ int) error {
		return res.Err
	})...)
	return report, err
}

func (r *Runner) runWorker(ctx context.Context, strategy tree.Strategy, worker int) (res WorkerResult) {
	res = WorkerResult{Strategy: strategy, Worker: worker}
	ctx = context.WithValue(ctx, xlog.ContextKey(ContextKeyStrategy), strategy.String())
	ctx = context.WithValue(ctx, xlog.ContextKey(ContextKeyWorker), worker)
	startedAt := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = infra.NewErrorStack(fmt.Sprintf("[workload] %s worker %d panic: %v", strategy, worker, p))
		}
		res.Elapsed = time.Since(startedAt)
		if res.Err != nil {
			r.logger.ErrorStackContext(ctx, res.Err, "workload worker failed", zap.Int64("ops", res.Ops))
		} else {
			r.logger.DebugContext(ctx, "workload worker finished",
				zap.Int64("ops", res.Ops),
				zap.Int64("rotations", res.Rotations),
				zap.Duration("elapsed", res.Elapsed),
			)
		}
	}()

	set, err := tree.NewOrderedSet[uint64](strategy, r.setOpts...)
	if err != nil {
		res.Err = err
		return
	}
	gen, err := newOpGenerator(r.cfg, worker)
	if err != nil {
		res.Err = err
		return
	}
	model := make(map[uint64]struct{}, r.cfg.Keys)
	for i := 1; i <= r.cfg.Ops; i++ {
		if i&ctxCheckMask == 0 {
			if err = ctx.Err(); err != nil {
				res.Err = infra.WrapErrorStackWithMessage(err, "[workload] worker cancelled")
				return
			}
		}
		op := gen.next()
		if err = applyOp(set, model, op, &res); err != nil {
			res.Err = err
			return
		}
		res.Ops++
		if r.cfg.ValidateEvery > 0 && i%r.cfg.ValidateEvery == 0 {
			if err = validateAgainstModel(set, model); err != nil {
				res.Err = err
				return
			}
			res.Validations++
		}
	}
	if err = validateAgainstModel(set, model); err != nil {
		res.Err = err
		return
	}
	res.Validations++
	res.FinalSize = set.Size()
	if rs, ok := set.(interface{ Rotations() int64 }); ok {
		res.Rotations = rs.Rotations()
	}

	set.Clear()
	if !set.IsEmpty() || set.Size() != 0 {
		res.Err = infra.WrapErrorStackWithMessage(ErrModelMismatch, "[workload] set is not empty after clear")
	}
	return
}

// applyOp runs the operation on both the set and the model, the changed
// results have to agree.
func applyOp(set tree.OrderedSet[uint64], model map[uint64]struct{}, op operation, res *WorkerResult) error {
	_, present := model[op.key]
	switch op.kind {
	case opAdd:
		if changed := set.Add(op.key); changed == present {
			return opMismatch(op, changed, present)
		} else if changed {
			model[op.key] = struct{}{}
			res.Adds++
		}
	case opRemove:
		if changed := set.Remove(op.key); changed != present {
			return opMismatch(op, changed, present)
		} else if changed {
			delete(model, op.key)
			res.Removes++
		}
	case opContains:
		hit := set.Contains(op.key)
		if hit != present {
			return opMismatch(op, hit, present)
		}
		res.Contains++
		if hit {
			res.Hits++
		}
	default:
	}
	return nil
}

func opMismatch(op operation, got, present bool) error {
	return infra.WrapErrorStackWithMessage(ErrModelMismatch,
		fmt.Sprintf("[workload] %s(%d) returns %t, key present %t", op.kind, op.key, got, present),
	)
}

func validateAgainstModel(set tree.OrderedSet[uint64], model map[uint64]struct{}) error {
	err := tree.Validate[uint64](set)
	if set.Size() != len(model) {
		err = multierr.Append(err, infra.WrapErrorStackWithMessage(ErrModelMismatch,
			fmt.Sprintf("[workload] set size %d, model size %d", set.Size(), len(model)),
		))
	}
	return err
}
