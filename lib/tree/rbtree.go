package tree

import (
	"github.com/benz9527/xset/lib/infra"
)

type rbNode[K infra.OrderedKey] struct {
	parent *rbNode[K]
	left   *rbNode[K]
	right  *rbNode[K]
	key    K
	color  RBColor
}

func (node *rbNode[K]) Key() K {
	return node.key
}

func (node *rbNode[K]) Color() RBColor {
	if node == nil {
		return Black
	}
	return node.color
}

func (node *rbNode[K]) Left() RBNode[K] {
	if node == nil || node.left == nil {
		return nil
	}
	return node.left
}

func (node *rbNode[K]) Right() RBNode[K] {
	if node == nil || node.right == nil {
		return nil
	}
	return node.right
}

func (node *rbNode[K]) Parent() RBNode[K] {
	if node == nil || node.parent == nil {
		return nil
	}
	return node.parent
}

// The NIL leaf is black.
func (node *rbNode[K]) isBlack() bool {
	return node == nil || node.color == Black
}

func (node *rbNode[K]) isRed() bool {
	return node != nil && node.color == Red
}

func (node *rbNode[K]) isRoot() bool {
	return node != nil && node.parent == nil
}

func (node *rbNode[K]) direction() Direction {
	if node == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] nil leaf node without direction")
	}

	if node.isRoot() {
		return Root
	}
	if node == node.parent.left {
		return Left
	}
	return Right
}

func (node *rbNode[K]) sibling() *rbNode[K] {
	switch node.direction() {
	case Left:
		return node.parent.right
	case Right:
		return node.parent.left
	default:
	}
	return nil
}

func (node *rbNode[K]) uncle() *rbNode[K] {
	return node.parent.sibling()
}

func (node *rbNode[K]) fixLink() {
	if node.left != nil {
		node.left.parent = node
	}
	if node.right != nil {
		node.right.parent = node
	}
}

func (node *rbNode[K]) minimum() *rbNode[K] {
	aux := node
	for ; aux != nil && aux.left != nil; aux = aux.left {
	}
	return aux
}

type rbTree[K infra.OrderedKey] struct {
	root      *rbNode[K]
	count     int
	rotations int64
	stats     *treeStats
}

func (tree *rbTree[K]) Size() int {
	return tree.count
}

func (tree *rbTree[K]) IsEmpty() bool {
	return tree.root == nil
}

func (tree *rbTree[K]) Strategy() Strategy {
	return RedBlack
}

func (tree *rbTree[K]) Root() RBNode[K] {
	if tree.root == nil {
		return nil
	}
	return tree.root
}

func (tree *rbTree[K]) Rotations() int64 {
	return tree.rotations
}

// References:
// https://elixir.bootlin.com/linux/latest/source/lib/rbtree.c
// rbtree properties:
// https://en.wikipedia.org/wiki/Red%E2%80%93black_tree#Properties
// p1. Every node is either red or black.
// p2. All NIL nodes are considered black.
// p3. A red node does not have a red child. (red-violation)
// p4. Every path from a given node to any of its descendant
//   NIL nodes goes through the same number of black nodes. (black-violation)
// p5. The root is black.
// (Conclusion) If a node X has exactly one child, it must be a red child,
//   because if it were black, its NIL descendants would sit at a different
//   black depth than X's NIL child, violating p4.
// So the shortest path nodes are black nodes. Otherwise,
// the path must contain red node.
// The longest path nodes' number is 2 * shortest path nodes' number.

// replaceChild links the child into the slot of p (or the root) and fixes
// the child's parent back-reference in the same step.
func (tree *rbTree[K]) replaceChild(p *rbNode[K], dir Direction, child *rbNode[K]) {
	switch dir {
	case Root:
		tree.root = child
	case Left:
		p.left = child
	case Right:
		p.right = child
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to replace")
	}
	if child != nil {
		child.parent = p
	}
}

/*
	  |                         |
	  X                         S
	 / \     leftRotate(X)     / \
	L   S    ============>    X   Sd
	   / \                   / \
	 Sc   Sd                L   Sc
*/
func (tree *rbTree[K]) leftRotate(x *rbNode[K]) {
	if x == nil || x.right == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] left rotate node x is nil or x.right is nil")
	}

	p, y := x.parent, x.right
	dir := x.direction()
	x.right, y.left = y.left, x

	x.fixLink()
	y.fixLink()
	tree.replaceChild(p, dir, y)

	tree.rotations++
	tree.stats.RecordRotation(Left)
}

/*
	      |                        |
	      X                        S
	     / \    rightRotate(X)    / \
	    S   R   ============>   Sc   X
	   / \                          / \
	 Sc   Sd                      Sd   R
*/
func (tree *rbTree[K]) rightRotate(x *rbNode[K]) {
	if x == nil || x.left == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] right rotate node x is nil or x.left is nil")
	}

	p, y := x.parent, x.left
	dir := x.direction()
	x.left, y.right = y.right, x

	x.fixLink()
	y.fixLink()
	tree.replaceChild(p, dir, y)

	tree.rotations++
	tree.stats.RecordRotation(Right)
}

// rotateToward rotates x down to the dir side.
func (tree *rbTree[K]) rotateToward(x *rbNode[K], dir Direction) {
	switch dir {
	case Left:
		tree.leftRotate(x)
	case Right:
		tree.rightRotate(x)
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to rotate")
	}
}

func (tree *rbTree[K]) search(key K) *rbNode[K] {
	for x := tree.root; x != nil; {
		res := infra.Compare(key, x.key)
		if /* equal */ res == 0 {
			return x
		} else /* less */ if res < 0 {
			x = x.left
		} else /* greater */ {
			x = x.right
		}
	}
	return nil
}

func (tree *rbTree[K]) Contains(key K) bool {
	if infra.IsNullKey(key) {
		tree.stats.RecordOp(opContains, false)
		return false
	}
	found := tree.search(key) != nil
	tree.stats.RecordOp(opContains, found)
	return found
}

// i1: Empty rbtree, the new node becomes the root and is painted into black
// by the rebalance.
func (tree *rbTree[K]) Add(key K) bool {
	if infra.IsNullKey(key) {
		tree.stats.RecordOp(opAdd, false)
		return false
	}

	var x, y *rbNode[K] = tree.root, nil
	dir := Root
	for x != nil {
		y = x
		res := infra.Compare(key, x.key)
		if /* equal */ res == 0 {
			tree.stats.RecordOp(opAdd, false)
			return false
		} else /* less */ if res < 0 {
			x, dir = x.left, Left
		} else /* greater */ {
			x, dir = x.right, Right
		}
	}

	z := &rbNode[K]{
		key:   key,
		color: Red,
	}
	tree.replaceChild(y, dir, z)
	tree.count++

	tree.insertRebalance(z)
	tree.stats.RecordOp(opAdd, true)
	tree.stats.RecordSize(1)
	return true
}

/*
New node X is red by default.

<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

im1: X is root, paint it into black. Or X's parent P is black, nothing
violated.

im2: X's parent P is red and P is root, repaint P into black.

im3: Both the parent P and the uncle U are red, grandpa G is black.
(red-violation)
After repainted G into red may be still red-violation.
Continue to fix grandpa.

	    [G]             <G>
	    / \             / \
	  <P> <U>  ====>  [P] [U]
	  /               /
	<X>             <X>

im4: The parent P is red but the uncle U is black. (red-violation)
X is opposite direction to P (inner grandchild). Rotate P to the
opposite direction first, then X and P swap their roles.

	  [G]                 [G]
	  / \    rotate(P)    / \
	<P> [U]  ========>  <X> [U]
	  \                 /
	  <X>             <P>

im5: X is the same direction as the parent P (outer grandchild).

	    [G]                 <P>               [P]
	    / \    rotate(G)    / \    repaint    / \
	  <P> [U]  ========>  <X> [G]  ======>  <X> <G>
	  /                         \                 \
	<X>                         [U]               [U]
*/
func (tree *rbTree[K]) insertRebalance(x *rbNode[K]) {
	steps := int64(0)
	defer func() {
		tree.stats.RecordFixupSteps(steps)
	}()

	for {
		steps++
		p := x.parent
		if /* im1 */ p == nil {
			x.color = Black
			return
		}
		if /* im1 */ p.isBlack() {
			return
		}

		gp := p.parent
		if /* im2 */ gp == nil {
			p.color = Black
			return
		}

		if u := x.uncle(); /* im3 */ u.isRed() {
			p.color = Black
			u.color = Black
			gp.color = Red
			x = gp
			continue
		}

		dir := x.direction()
		if /* im4 */ dir != p.direction() {
			tree.rotateToward(p, -dir)
			x, p = p, x // enter im5 to fix
		}

		/* im5 */
		tree.rotateToward(gp, -p.direction())
		p.color = Black
		gp.color = Red
		return
	}
}

/*
r1: Current node Z has left and right node.
Find Z's succ Y, copy the key only and remove Y instead.
Y has no left child.

	  |                    |
	  Z                    Y
	 / \                  / \
	L  ..   copy(Y, Z)   L  ..
	    |   =========>       |
	    P                    P
	   / \                  / \
	  Y  ..                X  ..
	   \
	    X

r2: Y has at most one child X. Splice Y out and X takes its place.
(1) Y is red, it must be a leaf (See conclusion), remove directly.
(2) Y is black with a red child X, repaint X into black.
(3) Y is a black leaf, X is a placeholder (no node), which is positioned
by Y's parent and direction. We have to rebalance (black-violation).
*/
func (tree *rbTree[K]) Remove(key K) bool {
	if infra.IsNullKey(key) {
		tree.stats.RecordOp(opRemove, false)
		return false
	}

	z := tree.search(key)
	if z == nil {
		tree.stats.RecordOp(opRemove, false)
		return false
	}

	y := z
	if /* r1 */ z.left != nil && z.right != nil {
		y = z.right.minimum()
		z.key = y.key
	}

	/* r2 */
	x := y.left
	if x == nil {
		x = y.right
	}
	p, dir := y.parent, y.direction()
	tree.replaceChild(p, dir, x)
	removedColor := y.color

	// Unlink node
	y.parent, y.left, y.right = nil, nil, nil
	tree.count--

	if removedColor == Black {
		tree.removeRebalance(x, p, dir)
	}
	tree.stats.RecordOp(opRemove, true)
	tree.stats.RecordSize(-1)
	return true
}

/*
The fixup cursor is (X, P, dir). X may be absent, then the cursor is a
placeholder for the removed black leaf, it is the P's dir side child slot.
X carries an extra black (black-violation).

<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

Sc is the sibling S's child in the same direction as X (near nephew).
Sd is the sibling S's child in the opposite direction to X (far nephew).

rm1: X is root, or X is red. Repaint X into black and exit.

rm2: X's sibling S is red, so the parent P, nephew node Sc and Sd
must be black. (Otherwise, red-violation)
(1) Repaint S into black, P into red.
(2) Rotate P toward X.
(3) X's new sibling is the old Sc, which is black. Continue to rm3-rm5.

	  [P]                   <S>               [S]
	  / \    l-rotate(P)    / \    repaint    / \
	[X] <S>  ==========>  [P] [Sd]  =====>  <P> [Sd]
	    / \               / \               / \
	 [Sc] [Sd]          [X] [Sc]          [X] [Sc]

rm3: S, nephew node Sc and Sd are black.
Repaint S into red to satisfy p4 locally, then the extra black moves up
to P. If P is red, it is repainted into black by rm1. Otherwise continue.

	  {P}             {P}
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	 [Sc] [Sd]       [Sc] [Sd]

rm4: S is black, Sc is red and Sd is black.
(1) Repaint S into red, Sc into black.
(2) Rotate S away from X.
Enter into rm5 to fix.

	                        {P}                {P}
	  {P}                   / \                / \
	  / \    r-rotate(S)  [X] <Sc>   repaint  [X] [Sc]
	[X] [S]  ==========>        \    ======>       \
	    / \                     [S]                <S>
	  <Sc> [Sd]                   \                  \
	                              [Sd]               [Sd]

rm5: S is black and Sd is red.
(1) S takes P's color, repaint P and Sd into black.
(2) Rotate P toward X. The extra black is absorbed.

	  {P}                   [S]                {S}
	  / \    l-rotate(P)    / \     repaint    / \
	[X] [S]  ==========>  {P} <Sd>  ======>  [P] [Sd]
	    / \               / \                / \
	 [Sc] <Sd>          [X] [Sc]           [X] [Sc]
*/
func (tree *rbTree[K]) removeRebalance(x, p *rbNode[K], dir Direction) {
	steps := int64(0)
	defer func() {
		tree.stats.RecordFixupSteps(steps)
	}()

	for p != nil && x.isBlack() {
		steps++
		var s *rbNode[K]
		if dir == Left {
			s = p.right
		} else {
			s = p.left
		}

		if /* rm2 */ s.isRed() {
			s.color = Black
			p.color = Red
			tree.rotateToward(p, dir)
			if dir == Left {
				s = p.right
			} else {
				s = p.left
			}
		}
		if s == nil {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] remove rebalance without sibling, violate (p4)")
		}

		var sc, sd *rbNode[K]
		if dir == Left {
			sc, sd = s.left, s.right
		} else {
			sc, sd = s.right, s.left
		}

		if /* rm3 */ sc.isBlack() && sd.isBlack() {
			s.color = Red
			x, p = p, p.parent
			if p != nil {
				dir = x.direction()
			}
			continue
		}

		if /* rm4 */ sd.isBlack() {
			sc.color = Black
			s.color = Red
			tree.rotateToward(s, -dir)
			s, sd = sc, s
		}

		/* rm5 */
		s.color = p.color
		p.color = Black
		sd.color = Black
		tree.rotateToward(p, dir)
		x, p = tree.root, nil
	}

	if /* rm1 */ x != nil {
		x.color = Black
	}
}

// Clear releases the nodes one by one in order.
func (tree *rbTree[K]) Clear() {
	size := tree.count
	aux := tree.root
	tree.root = nil
	tree.count = 0
	tree.stats.RecordOp(opClear, size > 0)
	tree.stats.RecordSize(-int64(size))
	if aux == nil {
		return
	}

	stack := make([]*rbNode[K], 0, size>>1+1)
	defer func() {
		clear(stack)
	}()

	for ; aux != nil; aux = aux.left {
		stack = append(stack, aux)
	}

	for n := len(stack); n > 0; n = len(stack) {
		aux = stack[n-1]
		r := aux.right
		aux.left, aux.right, aux.parent = nil, nil, nil
		stack = stack[:n-1]
		for aux = r; aux != nil; aux = aux.left {
			stack = append(stack, aux)
		}
	}
}

func NewRBTree[K infra.OrderedKey](opts ...SetOption) RBTree[K] {
	cfg := newSetConfig(opts...)
	return &rbTree[K]{
		stats: cfg.stats(RedBlack),
	}
}
