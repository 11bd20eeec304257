package tree

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	TreeStatsName = "xset/tree"
)

type treeOp string

const (
	opAdd      treeOp = "add"
	opRemove   treeOp = "remove"
	opContains treeOp = "contains"
	opClear    treeOp = "clear"
)

type treeStats struct {
	strategy   attribute.KeyValue
	size       metric.Int64UpDownCounter
	ops        metric.Int64Counter
	rotations  metric.Int64Counter
	fixupSteps metric.Int64Histogram
}

func (stats *treeStats) RecordOp(op treeOp, changed bool) {
	if stats == nil {
		return
	}
	stats.ops.Add(context.Background(), 1, metric.WithAttributeSet(attribute.NewSet(
		stats.strategy,
		attribute.String("xset.tree.op", string(op)),
		attribute.Bool("xset.tree.changed", changed),
	)))
}

func (stats *treeStats) RecordSize(delta int64) {
	if stats == nil || delta == 0 {
		return
	}
	stats.size.Add(context.Background(), delta, metric.WithAttributes(stats.strategy))
}

func (stats *treeStats) RecordRotation(dir Direction) {
	if stats == nil {
		return
	}
	stats.rotations.Add(context.Background(), 1, metric.WithAttributeSet(attribute.NewSet(
		stats.strategy,
		attribute.String("xset.tree.rotation.direction", dir.String()),
	)))
}

func (stats *treeStats) RecordFixupSteps(steps int64) {
	if stats == nil {
		return
	}
	stats.fixupSteps.Record(context.Background(), steps, metric.WithAttributes(stats.strategy))
}

func newTreeStats(name string, strategy Strategy) *treeStats {
	if len(name) == 0 {
		name = "default"
	}
	meterName := fmt.Sprintf("%s/%s", TreeStatsName, name)
	meter := otel.Meter(meterName)
	return &treeStats{
		strategy: attribute.String("xset.tree.strategy", strategy.String()),
		size: lo.Must[metric.Int64UpDownCounter](meter.Int64UpDownCounter(
			"xset.tree.size",
			metric.WithDescription("The number of keys stored in the ordered set."),
		)),
		ops: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xset.tree.ops",
			metric.WithDescription("The number of ordered set operations."),
		)),
		rotations: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xset.tree.rotations",
			metric.WithDescription("The number of single rotations done by rebalancing."),
		)),
		fixupSteps: lo.Must[metric.Int64Histogram](meter.Int64Histogram(
			"xset.tree.fixup.steps",
			metric.WithDescription("The number of nodes visited by an upward fixup walk."),
		)),
	}
}
