// Package quadtree implements a mutable, in-memory 2D spatial index.
//
// The index recursively partitions a rectangular region into quadrants so
// that range queries do not have to scan every element. Element memory is
// never owned by the tree: only references are stored and returned.
//
// A tree is single-threaded by default. Installing a LockProvider with
// SetSynchronization enables the two busy-wait gates that make the structure
// shareable between goroutines: a tree-wide gate that makes Clear mutually
// exclusive with every in-flight traversal, and a per-node occupancy gate
// that excludes writers from readers one node at a time. Both gates are
// released before descending into children, so operations on disjoint
// subtrees proceed concurrently once past their common ancestor. The spin
// loops have no bound or backoff; under heavy contention they can livelock.
package quadtree

import "github.com/aukilabs/jord/geom"

// Locator reports whether an element belongs to the given region. It is used
// both to place elements against node bounds during insertion and to match
// them against the window during queries.
type Locator[T any] func(v T, bound geom.AABB) bool

// DefaultCapacity is the number of elements a node holds directly before it
// subdivides.
const DefaultCapacity = 4

// Tree is a quadtree over elements of type T. Elements are compared by
// equality on T, which is pointer identity when T is a pointer type.
type Tree[T comparable] struct {
	locate Locator[T]
	locks  LockProvider

	// gate arbitrates structural resets against traversals. Traversals move
	// it negative, a reset holds it at +1.
	gate     int
	lock     Lock
	capacity int

	root *node[T]
}

// New creates a tree whose root covers the w by h region with its top-left
// corner at (cornerX, cornerY). The locator decides element membership and is
// never validated by the tree.
func New[T comparable](cornerX, cornerY, w, h float64, locate Locator[T]) *Tree[T] {
	t := &Tree[T]{
		locate:   locate,
		locks:    noopProvider{},
		capacity: DefaultCapacity,
	}
	t.lock = t.locks.NewLock()
	t.root = newNode(t, geom.AABBFromCorner(cornerX, cornerY, w, h))
	return t
}

// SetSynchronization installs the provider that creates the tree gate handle
// and every node occupancy handle. Handles of already existing nodes are
// re-created, which costs a full tree walk. It must be called before the
// tree is shared between goroutines; calling it while operations are in
// flight is unsafe. A nil provider restores the no-op single-threaded mode.
func (t *Tree[T]) SetSynchronization(p LockProvider) {
	if p == nil {
		p = noopProvider{}
	}
	t.locks = p

	if t.lock != nil {
		t.lock.Free()
	}
	t.lock = p.NewLock()

	t.root.setLocks(p)
}

// SetCapacity sets the number of elements a node holds before subdividing.
// Zero is coerced to 1 since a zero capacity would subdivide without bound.
// The new value only affects future subdivision decisions; existing nodes
// are never re-split or merged.
func (t *Tree[T]) SetCapacity(n int) {
	if n < 1 {
		n = 1
	}

	t.lock.Lock()
	t.capacity = n
	t.lock.Unlock()
}

// Capacity returns the current per-node element capacity.
func (t *Tree[T]) Capacity() int {
	t.lock.Lock()
	v := t.capacity
	t.lock.Unlock()
	return v
}

// Bound returns the region covered by the root node.
func (t *Tree[T]) Bound() geom.AABB {
	return t.root.bound
}

// Insert places v into the first node whose bound the locator accepts.
// It returns false when v is rejected everywhere, including by the root:
// such an element is not stored.
func (t *Tree[T]) Insert(v T) bool {
	t.enterTraversal()
	ok := t.root.insert(t, v)
	t.leaveTraversal()
	return ok
}

// Remove drops the first stored element equal to v, reporting whether one
// was found. Removing an absent element is a no-op. There is no index from
// element to node, so the cost is a depth-first search.
func (t *Tree[T]) Remove(v T) bool {
	t.enterTraversal()
	ok := t.root.remove(t, v)
	t.leaveTraversal()
	return ok
}

// Query returns the elements the locator matches against the w by h window
// with its top-left corner at (cornerX, cornerY). Results are in depth-first
// traversal order, not sorted spatially, and the returned slice is owned by
// the caller.
func (t *Tree[T]) Query(cornerX, cornerY, w, h float64) []T {
	t.enterTraversal()

	window := geom.AABBFromCorner(cornerX, cornerY, w, h)
	var out []T
	t.root.search(t, window, &out)

	t.leaveTraversal()
	return out
}

// Clear discards every node and replaces the root with a fresh empty node of
// the same bound. It waits for all in-flight traversals to finish and blocks
// new ones until the swap is done. Element payloads are untouched.
func (t *Tree[T]) Clear() {
	t.enterReset()

	old := t.root
	t.root = newNode(t, old.bound)

	t.leaveReset()

	// The old subtree is unreachable once the root is swapped under the
	// exclusive gate, so its handles can be released outside of it.
	old.free()
}

// Close releases every node lock handle plus the tree handle. The tree must
// not be used afterwards.
func (t *Tree[T]) Close() {
	t.lock.Lock()
	t.root.free()
	t.lock.Unlock()
	t.lock.Free()
}

// Stats is a structural snapshot of a tree, in the spirit of a debug info
// dump. Counts are gathered with the reader protocol, node by node, so a
// snapshot taken under concurrent writes is only approximate.
type Stats struct {
	NodeCount    int
	ElementCount int
	MaxDepth     int
	Capacity     int
	Bound        geom.AABB
}

// Stats walks the tree and returns its current shape.
func (t *Tree[T]) Stats() Stats {
	t.enterTraversal()

	s := Stats{
		Capacity: t.Capacity(),
		Bound:    t.root.bound,
	}
	t.root.collectStats(0, &s)

	t.leaveTraversal()
	return s
}

// enterTraversal takes a traversal ticket on the tree gate. Concurrent
// traversals do not block each other here; they are only held while a
// structural reset is in progress.
func (t *Tree[T]) enterTraversal() {
	t.lock.Lock()
	t.gate--
	t.lock.Unlock()

	for {
		t.lock.Lock()
		pass := t.gate < 0
		t.lock.Unlock()
		if pass {
			return
		}
	}
}

func (t *Tree[T]) leaveTraversal() {
	t.lock.Lock()
	t.gate++
	t.lock.Unlock()
}

// enterReset waits until no traversal ticket is outstanding and keeps the
// gate at +1 so none can start.
func (t *Tree[T]) enterReset() {
	t.lock.Lock()
	t.gate++
	t.lock.Unlock()

	for {
		t.lock.Lock()
		sole := t.gate == 1
		t.lock.Unlock()
		if sole {
			return
		}
	}
}

func (t *Tree[T]) leaveReset() {
	t.lock.Lock()
	t.gate--
	t.lock.Unlock()
}
