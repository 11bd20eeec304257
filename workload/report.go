package workload

import (
	"time"

	"github.com/samber/lo"

	"github.com/benz9527/xset/lib/tree"
)

// WorkerResult is the outcome of one worker on its own set.
type WorkerResult struct {
	Strategy    tree.Strategy
	Worker      int
	Ops         int64
	Adds        int64 // Adds which changed the set.
	Removes     int64 // Removes which changed the set.
	Contains    int64
	Hits        int64
	Validations int64
	Rotations   int64
	FinalSize   int
	Elapsed     time.Duration
	Err         error
}

type StrategySummary struct {
	Strategy    string
	Workers     int
	Ops         int64
	Adds        int64
	Removes     int64
	Contains    int64
	Hits        int64
	Validations int64
	Rotations   int64
	FinalSize   int // The sum of the worker final sizes.
	Elapsed     time.Duration
	OpsPerSec   float64
	Failures    int
}

type Report struct {
	RunID       string
	StartedAt   time.Time
	Elapsed     time.Duration
	Pattern     Pattern
	Keys        int
	Ops         int
	Workers     int
	Seed        uint64
	RSSBytes    uint64
	Env         string // host, docker or kubernetes.
	ContainerID string
	Strategies  []StrategySummary
}

func (r *Report) Summary(strategy tree.Strategy) (StrategySummary, bool) {
	if r == nil {
		return StrategySummary{}, false
	}
	return lo.Find(r.Strategies, func(s StrategySummary) bool {
		return s.Strategy == strategy.String()
	})
}

// summarize groups the worker results by strategy. The elapsed time of a
// strategy is its slowest worker.
func summarize(results []WorkerResult) []StrategySummary {
	groups := lo.GroupBy(results, func(r WorkerResult) tree.Strategy {
		return r.Strategy
	})
	strategies := lo.Uniq(lo.Map(results, func(r WorkerResult, _ int) tree.Strategy {
		return r.Strategy
	}))
	return lo.Map(strategies, func(s tree.Strategy, _ int) StrategySummary {
		rs := groups[s]
		summary := StrategySummary{
			Strategy:    s.String(),
			Workers:     len(rs),
			Ops:         lo.SumBy(rs, func(r WorkerResult) int64 { return r.Ops }),
			Adds:        lo.SumBy(rs, func(r WorkerResult) int64 { return r.Adds }),
			Removes:     lo.SumBy(rs, func(r WorkerResult) int64 { return r.Removes }),
			Contains:    lo.SumBy(rs, func(r WorkerResult) int64 { return r.Contains }),
			Hits:        lo.SumBy(rs, func(r WorkerResult) int64 { return r.Hits }),
			Validations: lo.SumBy(rs, func(r WorkerResult) int64 { return r.Validations }),
			Rotations:   lo.SumBy(rs, func(r WorkerResult) int64 { return r.Rotations }),
			FinalSize:   lo.SumBy(rs, func(r WorkerResult) int { return r.FinalSize }),
			Elapsed: lo.MaxBy(rs, func(a, b WorkerResult) bool {
				return a.Elapsed > b.Elapsed
			}).Elapsed,
			Failures: lo.CountBy(rs, func(r WorkerResult) bool { return r.Err != nil }),
		}
		if summary.Elapsed > 0 {
			summary.OpsPerSec = float64(summary.Ops) / summary.Elapsed.Seconds()
		}
		return summary
	})
}
