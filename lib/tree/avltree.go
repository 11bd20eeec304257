package tree

import (
	"github.com/benz9527/xset/lib/infra"
)

// The worst height of an AVL tree is about 1.44*log2(n), a fixed size
// buffer covers the ancestor path of any realistic tree without growing.
const avlPathCap = 64

type avlNode[K infra.OrderedKey] struct {
	left   *avlNode[K]
	right  *avlNode[K]
	key    K
	height int
}

func (node *avlNode[K]) Key() K {
	return node.key
}

func (node *avlNode[K]) Height() int {
	return heightOf(node)
}

func (node *avlNode[K]) Left() AVLNode[K] {
	if node == nil || node.left == nil {
		return nil
	}
	return node.left
}

func (node *avlNode[K]) Right() AVLNode[K] {
	if node == nil || node.right == nil {
		return nil
	}
	return node.right
}

// The absent node height is -1, and a leaf node height is 0.
func heightOf[K infra.OrderedKey](node *avlNode[K]) int {
	if node == nil {
		return -1
	}
	return node.height
}

func (node *avlNode[K]) updateHeight() {
	node.height = max(heightOf(node.left), heightOf(node.right)) + 1
}

// BF = height(right) - height(left)
func (node *avlNode[K]) balanceFactor() int {
	return heightOf(node.right) - heightOf(node.left)
}

type avlTree[K infra.OrderedKey] struct {
	root      *avlNode[K]
	count     int
	rotations int64
	stats     *treeStats
}

func (tree *avlTree[K]) Size() int {
	return tree.count
}

func (tree *avlTree[K]) IsEmpty() bool {
	return tree.root == nil
}

func (tree *avlTree[K]) Strategy() Strategy {
	return AVL
}

func (tree *avlTree[K]) Root() AVLNode[K] {
	if tree.root == nil {
		return nil
	}
	return tree.root
}

func (tree *avlTree[K]) Rotations() int64 {
	return tree.rotations
}

/*
	  |                         |
	  X                         Y
	 / \     rotateLeft(X)     / \
	L   Y    ============>    X   Yr
	   / \                   / \
	 Yl   Yr                L   Yl
*/
func (tree *avlTree[K]) rotateLeft(x *avlNode[K]) *avlNode[K] {
	if x == nil || x.right == nil {
		// impossible run to here
		panic( /* debug assertion */ "[avltree] left rotate node x is nil or x.right is nil")
	}

	y := x.right
	x.right, y.left = y.left, x
	// Bottom node first, the new subtree root height depends on it.
	x.updateHeight()
	y.updateHeight()

	tree.rotations++
	tree.stats.RecordRotation(Left)
	return y
}

/*
	      |                        |
	      X                        Y
	     / \    rotateRight(X)    / \
	    Y   R   ============>   Yl   X
	   / \                          / \
	 Yl   Yr                      Yr   R
*/
func (tree *avlTree[K]) rotateRight(x *avlNode[K]) *avlNode[K] {
	if x == nil || x.left == nil {
		// impossible run to here
		panic( /* debug assertion */ "[avltree] right rotate node x is nil or x.left is nil")
	}

	y := x.left
	x.left, y.right = y.right, x
	x.updateHeight()
	y.updateHeight()

	tree.rotations++
	tree.stats.RecordRotation(Right)
	return y
}

/*
b1: BF < -1, left heavy.
(1) LL, the left child is not right heavy, rotate X right.
(2) LR, the left child is right heavy (zig-zag), rotate the left child
left first, then rotate X right.

	  X                  X                 Z
	 /                  /                 / \
	L    rotateLeft(L) Z  rotateRight(X) L   X
	 \   ===========> /   ============>
	  Z              L

b2: BF > 1, right heavy. Symmetric to b1 with the right child.
*/
func (tree *avlTree[K]) rebalance(x *avlNode[K]) *avlNode[K] {
	if bf := x.balanceFactor(); /* b1 */ bf < -1 {
		if /* b1 (2) */ x.left.balanceFactor() > 0 {
			x.left = tree.rotateLeft(x.left)
		}
		return tree.rotateRight(x)
	} else /* b2 */ if bf > 1 {
		if /* b2 (2) */ x.right.balanceFactor() < 0 {
			x.right = tree.rotateRight(x.right)
		}
		return tree.rotateLeft(x)
	}
	return x
}

// fixup walks the recorded ancestors from the nearest one to the root.
// Each ancestor gets its height refreshed and is rebalanced, the rotated-in
// subtree root is linked back into the parent's child slot.
func (tree *avlTree[K]) fixup(path []*avlNode[K]) {
	for i := len(path) - 1; i >= 0; i-- {
		x := path[i]
		x.updateHeight()
		sub := tree.rebalance(x)
		if sub == x {
			continue
		}
		path[i] = sub
		if i == 0 {
			tree.root = sub
		} else if p := path[i-1]; p.left == x {
			p.left = sub
		} else {
			p.right = sub
		}
	}
	tree.stats.RecordFixupSteps(int64(len(path)))
}

func (tree *avlTree[K]) Contains(key K) bool {
	if infra.IsNullKey(key) {
		tree.stats.RecordOp(opContains, false)
		return false
	}

	for x := tree.root; x != nil; {
		res := infra.Compare(key, x.key)
		if /* equal */ res == 0 {
			tree.stats.RecordOp(opContains, true)
			return true
		} else /* less */ if res < 0 {
			x = x.left
		} else /* greater */ {
			x = x.right
		}
	}
	tree.stats.RecordOp(opContains, false)
	return false
}

func (tree *avlTree[K]) Add(key K) bool {
	if infra.IsNullKey(key) {
		tree.stats.RecordOp(opAdd, false)
		return false
	}

	var buf [avlPathCap]*avlNode[K]
	path := buf[:0]
	res := 0
	for x := tree.root; x != nil; {
		path = append(path, x)
		res = infra.Compare(key, x.key)
		if /* equal */ res == 0 {
			tree.stats.RecordOp(opAdd, false)
			return false
		} else /* less */ if res < 0 {
			x = x.left
		} else /* greater */ {
			x = x.right
		}
	}

	z := &avlNode[K]{key: key}
	if len(path) == 0 {
		tree.root = z
	} else if p := path[len(path)-1]; res < 0 {
		p.left = z
	} else {
		p.right = z
	}
	tree.count++

	tree.fixup(path)
	tree.stats.RecordOp(opAdd, true)
	tree.stats.RecordSize(1)
	return true
}

/*
r1: The found node X has zero or one child, splice it out and link its
child (or nothing) into the parent slot. The root has no parent.

r2: The found node X has two children. Find the succ S (the leftmost node
of X's right subtree) and extend the path to it. Copy the key only, then
splice S out, S has no left child.

	  |                    |
	  X                    S
	 / \                  / \
	L  ..   copy(S, X)   L  ..
	    |   =========>       |
	    P                    P
	   / \                  / \
	  S  ..               Sr  ..
	   \
	    Sr

Then walk up the path to rebalance the same as insertion.
*/
func (tree *avlTree[K]) Remove(key K) bool {
	if infra.IsNullKey(key) {
		tree.stats.RecordOp(opRemove, false)
		return false
	}

	var buf [avlPathCap]*avlNode[K]
	path := buf[:0]
	x := tree.root
	for x != nil {
		res := infra.Compare(key, x.key)
		if /* equal */ res == 0 {
			break
		}
		path = append(path, x)
		if /* less */ res < 0 {
			x = x.left
		} else /* greater */ {
			x = x.right
		}
	}
	if x == nil {
		tree.stats.RecordOp(opRemove, false)
		return false
	}

	y := x
	if /* r2 */ x.left != nil && x.right != nil {
		path = append(path, x)
		for y = x.right; y.left != nil; y = y.left {
			path = append(path, y)
		}
		x.key = y.key
	}

	/* r1 */
	child := y.left
	if child == nil {
		child = y.right
	}
	if len(path) == 0 {
		tree.root = child
	} else if p := path[len(path)-1]; p.left == y {
		p.left = child
	} else {
		p.right = child
	}
	// Unlink node
	y.left, y.right = nil, nil
	tree.count--

	tree.fixup(path)
	tree.stats.RecordOp(opRemove, true)
	tree.stats.RecordSize(-1)
	return true
}

// Clear releases the nodes one by one in order.
func (tree *avlTree[K]) Clear() {
	size := tree.count
	aux := tree.root
	tree.root = nil
	tree.count = 0
	tree.stats.RecordOp(opClear, size > 0)
	tree.stats.RecordSize(-int64(size))
	if aux == nil {
		return
	}

	stack := make([]*avlNode[K], 0, avlPathCap)
	defer func() {
		clear(stack)
	}()

	for ; aux != nil; aux = aux.left {
		stack = append(stack, aux)
	}

	for n := len(stack); n > 0; n = len(stack) {
		aux = stack[n-1]
		r := aux.right
		aux.left, aux.right = nil, nil
		stack = stack[:n-1]
		for aux = r; aux != nil; aux = aux.left {
			stack = append(stack, aux)
		}
	}
}

func NewAVLTree[K infra.OrderedKey](opts ...SetOption) AVLTree[K] {
	cfg := newSetConfig(opts...)
	return &avlTree[K]{
		stats: cfg.stats(AVL),
	}
}
