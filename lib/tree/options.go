package tree

import (
	"github.com/benz9527/xset/lib/infra"
)

type setConfig struct {
	statsName    string
	statsEnabled bool
}

type SetOption func(*setConfig)

// WithSetStats records the set operations, rotations and fixup steps
// by the global OpenTelemetry meter provider.
func WithSetStats(name string) SetOption {
	return func(cfg *setConfig) {
		cfg.statsEnabled = true
		cfg.statsName = name
	}
}

func newSetConfig(opts ...SetOption) *setConfig {
	cfg := &setConfig{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o(cfg)
	}
	return cfg
}

func (cfg *setConfig) stats(strategy Strategy) *treeStats {
	if !cfg.statsEnabled {
		return nil
	}
	return newTreeStats(cfg.statsName, strategy)
}

func NewOrderedSet[K infra.OrderedKey](strategy Strategy, opts ...SetOption) (OrderedSet[K], error) {
	switch strategy {
	case AVL:
		return NewAVLTree[K](opts...), nil
	case RedBlack:
		return NewRBTree[K](opts...), nil
	default:
	}
	return nil, infra.NewErrorStack("[tree] unknown balancing strategy " + strategy.String())
}
