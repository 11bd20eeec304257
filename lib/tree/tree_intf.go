package tree

import (
	"strings"

	"github.com/benz9527/xset/lib/infra"
)

// go install golang.org/x/tools/cmd/stringer@latest

//go:generate stringer -type=RBColor
type RBColor uint8

const (
	Black RBColor = iota
	Red
)

//go:generate stringer -type=Direction
type Direction int8

const (
	Left Direction = -1 + iota
	Root
	Right
)

// Strategy is the balancing policy of an ordered set.
type Strategy uint8

const (
	AVL Strategy = iota
	RedBlack
	_strategyMax
)

func (s Strategy) String() string {
	switch s {
	case AVL:
		return "avl"
	case RedBlack:
		return "rb"
	default:
	}
	return "unknown"
}

func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "avl":
		return AVL, nil
	case "rb", "redblack", "red-black":
		return RedBlack, nil
	default:
	}
	return _strategyMax, infra.NewErrorStack("[tree] unknown balancing strategy " + name)
}

// OrderedSet stores distinct keys in the key type's own order.
//
// Add and Remove return whether the set has been changed. A NaN key,
// re-adding a present key or removing an absent key is a silent no-op
// and returns false. The result could be ignored.
//
// An OrderedSet is not safe for concurrent use.
type OrderedSet[K infra.OrderedKey] interface {
	Size() int
	IsEmpty() bool
	Clear()
	Contains(key K) bool
	Add(key K) bool
	Remove(key K) bool
	Strategy() Strategy
}

type AVLNode[K infra.OrderedKey] interface {
	Key() K
	Height() int
	Left() AVLNode[K]
	Right() AVLNode[K]
}

type RBNode[K infra.OrderedKey] interface {
	Key() K
	Color() RBColor
	Left() RBNode[K]
	Right() RBNode[K]
	Parent() RBNode[K]
}

type AVLTree[K infra.OrderedKey] interface {
	OrderedSet[K]
	Root() AVLNode[K]
	Rotations() int64
}

type RBTree[K infra.OrderedKey] interface {
	OrderedSet[K]
	Root() RBNode[K]
	Rotations() int64
}
