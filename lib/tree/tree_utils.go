package tree

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/benz9527/xset/lib/infra"
)

// Ordered set rule validation utilities.

var (
	ErrOrderViolation      = errors.New("bst order violation")
	ErrSizeViolation       = errors.New("size violation")
	ErrHeightViolation     = errors.New("avl cached height violation")
	ErrBalanceViolation    = errors.New("avl balance violation")
	ErrRedViolation        = errors.New("rbtree red violation")
	ErrBlackViolation      = errors.New("rbtree black violation")
	ErrParentLinkViolation = errors.New("rbtree parent link violation")
	ErrUnknownSet          = errors.New("unknown ordered set implementation")
)

type bstNode[K infra.OrderedKey, N any] interface {
	Key() K
	Left() N
	Right() N
}

func isNilNode[N any](node N) bool {
	return any(node) == nil
}

// Inorder traversal to implement the DFS.
func inorderForeach[K infra.OrderedKey, N bstNode[K, N]](root N, action func(idx int, node N) bool) {
	aux := root
	stack := make([]N, 0, avlPathCap)
	defer func() {
		clear(stack)
	}()

	for ; !isNilNode(aux); aux = aux.Left() {
		stack = append(stack, aux)
	}

	idx := 0
	for size := len(stack); size > 0; size = len(stack) {
		if aux = stack[size-1]; !action(idx, aux) {
			return
		}
		idx++
		stack = stack[:size-1]
		for aux = aux.Right(); !isNilNode(aux); aux = aux.Left() {
			stack = append(stack, aux)
		}
	}
}

func setForeach[K infra.OrderedKey](set OrderedSet[K], action func(idx int, key K) bool) error {
	switch t := set.(type) {
	case AVLTree[K]:
		inorderForeach[K, AVLNode[K]](t.Root(), func(idx int, node AVLNode[K]) bool {
			return action(idx, node.Key())
		})
	case RBTree[K]:
		inorderForeach[K, RBNode[K]](t.Root(), func(idx int, node RBNode[K]) bool {
			return action(idx, node.Key())
		})
	default:
		return infra.WrapErrorStackWithMessage(ErrUnknownSet, fmt.Sprintf("%T", set))
	}
	return nil
}

func inorderKeys[K infra.OrderedKey](set OrderedSet[K]) []K {
	keys := make([]K, 0, set.Size())
	_ = setForeach[K](set, func(idx int, key K) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// OrderViolationValidate checks the inorder keys are strictly increasing.
func OrderViolationValidate[K infra.OrderedKey](set OrderedSet[K]) error {
	var (
		prev K
		err  error
	)
	if e := setForeach[K](set, func(idx int, key K) bool {
		if idx > 0 && prev >= key {
			err = infra.WrapErrorStackWithMessage(ErrOrderViolation,
				fmt.Sprintf("key %v at %d is not greater than %v", key, idx, prev))
			return false
		}
		prev = key
		return true
	}); e != nil {
		return e
	}
	return err
}

func SizeViolationValidate[K infra.OrderedKey](set OrderedSet[K]) error {
	count := 0
	if err := setForeach[K](set, func(idx int, key K) bool {
		count++
		return true
	}); err != nil {
		return err
	}
	if count != set.Size() {
		return infra.WrapErrorStackWithMessage(ErrSizeViolation,
			fmt.Sprintf("nodes %d, size %d", count, set.Size()))
	}
	if (count == 0) != set.IsEmpty() {
		return infra.WrapErrorStackWithMessage(ErrSizeViolation,
			fmt.Sprintf("nodes %d, empty %v", count, set.IsEmpty()))
	}
	return nil
}

// AVLBalanceViolationValidate recomputes the heights bottom-up and checks
// both the cached height and the balance factor of every node.
func AVLBalanceViolationValidate[K infra.OrderedKey](tree AVLTree[K]) error {
	var check func(node AVLNode[K]) (int, error)
	check = func(node AVLNode[K]) (int, error) {
		if isNilNode(node) {
			return -1, nil
		}
		lh, err := check(node.Left())
		if err != nil {
			return 0, err
		}
		rh, err := check(node.Right())
		if err != nil {
			return 0, err
		}
		h := max(lh, rh) + 1
		if node.Height() != h {
			return 0, infra.WrapErrorStackWithMessage(ErrHeightViolation,
				fmt.Sprintf("key %v cached height %d, real height %d", node.Key(), node.Height(), h))
		}
		if bf := rh - lh; bf < -1 || bf > 1 {
			return 0, infra.WrapErrorStackWithMessage(ErrBalanceViolation,
				fmt.Sprintf("key %v balance factor %d", node.Key(), bf))
		}
		return h, nil
	}
	_, err := check(tree.Root())
	return err
}

func isBlackNode[K infra.OrderedKey](node RBNode[K]) bool {
	return isNilNode(node) || node.Color() == Black
}

func isRedNode[K infra.OrderedKey](node RBNode[K]) bool {
	return !isNilNode(node) && node.Color() == Red
}

func blackDepthTo[K infra.OrderedKey](target, to RBNode[K]) int {
	depth := 0
	for aux := target; aux != to; aux = aux.Parent() {
		if isBlackNode[K](aux) {
			depth++
		}
	}
	return depth
}

// References:
// https://github1s.com/minghu6/rust-minghu6/blob/master/coll_st/src/bst/rb.rs

// Inorder traversal to validate the rbtree properties.
func RedViolationValidate[K infra.OrderedKey](tree RBTree[K]) error {
	root := tree.Root()
	if isNilNode(root) {
		return nil
	}
	if root.Color() != Black {
		return infra.WrapErrorStackWithMessage(ErrRedViolation,
			fmt.Sprintf("root %v is red", root.Key()))
	}

	var err error
	inorderForeach[K, RBNode[K]](root, func(idx int, node RBNode[K]) bool {
		if isRedNode[K](node) && (isRedNode[K](node.Left()) || isRedNode[K](node.Right())) {
			err = infra.WrapErrorStackWithMessage(ErrRedViolation,
				fmt.Sprintf("red node %v has a red child", node.Key()))
			return false
		}
		return true
	})
	return err
}

// BFS traversal to load all nodes next to a nil leaf.
func bfsLeaves[K infra.OrderedKey](tree RBTree[K]) []RBNode[K] {
	aux := tree.Root()
	if isNilNode(aux) {
		return nil
	}

	size := tree.Size()
	leaves := make([]RBNode[K], 0, size>>1+1)
	queue := make([]RBNode[K], 0, size>>1+1)
	defer func() {
		clear(queue)
	}()
	queue = append(queue, aux)

	for len(queue) > 0 {
		aux = queue[0]
		l, r := aux.Left(), aux.Right()
		if /* nil leaves, keep one */ isNilNode(l) || isNilNode(r) {
			leaves = append(leaves, aux)
		}
		if !isNilNode(l) {
			queue = append(queue, l)
		}
		if !isNilNode(r) {
			queue = append(queue, r)
		}
		queue = queue[1:]
	}
	return leaves
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).

	        [13]
			/  \
		 <8>    [15]
		 / \    /  \
	  [6] [11] [14] [17]
	  /              /
	<1>            [16]

2-3-4 tree like:

	       <8> --- [13] --- <15>
		  /  \             /    \
		 /    \           /      \
	  <1>-[6][11]      [14] <16>-[17]

Each leaf node to root node black depth are equal.
*/
func BlackViolationValidate[K infra.OrderedKey](tree RBTree[K]) error {
	leaves := bfsLeaves[K](tree)
	if leaves == nil {
		return nil
	}

	blackDepth := blackDepthTo[K](leaves[0], tree.Root())
	for i := 1; i < len(leaves); i++ {
		if d := blackDepthTo[K](leaves[i], tree.Root()); d != blackDepth {
			return infra.WrapErrorStackWithMessage(ErrBlackViolation,
				fmt.Sprintf("key %v black depth %d, expected %d", leaves[i].Key(), d, blackDepth))
		}
	}
	return nil
}

func ParentLinkViolationValidate[K infra.OrderedKey](tree RBTree[K]) error {
	root := tree.Root()
	if isNilNode(root) {
		return nil
	}
	if !isNilNode(root.Parent()) {
		return infra.WrapErrorStackWithMessage(ErrParentLinkViolation,
			fmt.Sprintf("root %v has a parent", root.Key()))
	}

	var err error
	inorderForeach[K, RBNode[K]](root, func(idx int, node RBNode[K]) bool {
		for _, child := range [2]RBNode[K]{node.Left(), node.Right()} {
			if !isNilNode(child) && child.Parent() != node {
				err = infra.WrapErrorStackWithMessage(ErrParentLinkViolation,
					fmt.Sprintf("child %v does not link back to %v", child.Key(), node.Key()))
				return false
			}
		}
		return true
	})
	return err
}

// Validate runs all the validators of the set's strategy.
func Validate[K infra.OrderedKey](set OrderedSet[K]) error {
	err := multierr.Combine(
		OrderViolationValidate[K](set),
		SizeViolationValidate[K](set),
	)
	switch t := set.(type) {
	case AVLTree[K]:
		err = multierr.Append(err, AVLBalanceViolationValidate[K](t))
	case RBTree[K]:
		err = multierr.Combine(err,
			RedViolationValidate[K](t),
			BlackViolationValidate[K](t),
			ParentLinkViolationValidate[K](t),
		)
	default:
	}
	return err
}
