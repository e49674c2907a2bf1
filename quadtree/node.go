package quadtree

import "github.com/aukilabs/jord/geom"

// node is a single cell of the tree. It holds element references up to the
// tree capacity and either zero or four children covering its quadrants.
type node[T comparable] struct {
	bound geom.AABB
	elems []T

	nw *node[T]
	ne *node[T]
	sw *node[T]
	se *node[T]

	// occupancy is the busy-wait gate arbitrating access to this node.
	// <0: readers are scanning, 0: free, >=1: a writer is working. Individual
	// accesses are made atomic by atomLock; lock serializes gate entries so
	// two writers cannot push occupancy past 1 and stall each other forever.
	occupancy int
	lock      Lock
	atomLock  Lock
}

func newNode[T comparable](t *Tree[T], bound geom.AABB) *node[T] {
	return &node[T]{
		bound:    bound,
		lock:     t.locks.NewLock(),
		atomLock: t.locks.NewLock(),
	}
}

// enterWrite registers the calling operation as a writer and spins until it
// is the sole occupant of the node. The entry lock is held for the whole
// enter sequence; leave operations only touch atomLock, so an occupant on
// its way out never blocks on a waiting entrant.
func (n *node[T]) enterWrite() {
	n.lock.Lock()

	n.atomLock.Lock()
	n.occupancy++
	n.atomLock.Unlock()

	for n.readOccupancy() != 1 {
	}

	n.lock.Unlock()
}

func (n *node[T]) leaveWrite() {
	n.atomLock.Lock()
	n.occupancy--
	n.atomLock.Unlock()
}

// enterRead registers the calling operation as a reader and spins until no
// writer occupies the node. Readers do not exclude each other: once past the
// entry lock, any negative occupancy lets further readers through.
func (n *node[T]) enterRead() {
	n.lock.Lock()

	n.atomLock.Lock()
	n.occupancy--
	n.atomLock.Unlock()

	for n.readOccupancy() >= 0 {
	}

	n.lock.Unlock()
}

func (n *node[T]) leaveRead() {
	n.atomLock.Lock()
	n.occupancy++
	n.atomLock.Unlock()
}

func (n *node[T]) readOccupancy() int {
	n.atomLock.Lock()
	v := n.occupancy
	n.atomLock.Unlock()
	return v
}

// insert places v in this node or in the first descendant whose bound accepts
// it, in NW/NE/SW/SE order. An element overlapping several quadrants goes to
// the first accepting one only; it is never duplicated across siblings, so
// queries restricted to a sibling quadrant will not see it.
func (n *node[T]) insert(t *Tree[T], v T) bool {
	n.enterWrite()

	if !t.locate(v, n.bound) {
		n.leaveWrite()
		return false
	}

	if len(n.elems) < t.Capacity() {
		n.elems = append(n.elems, v)
		n.leaveWrite()
		return true
	}

	if n.nw == nil {
		n.subdivide(t)
	}

	// The gate is released before descending so operations on other subtrees
	// can pass through this node.
	n.leaveWrite()

	return n.nw.insert(t, v) ||
		n.ne.insert(t, v) ||
		n.sw.insert(t, v) ||
		n.se.insert(t, v)
}

// remove drops the first element equal to v, searching this node's own list
// then the children depth-first. List order is not preserved.
func (n *node[T]) remove(t *Tree[T], v T) bool {
	n.enterWrite()

	for i, e := range n.elems {
		if e == v {
			last := len(n.elems) - 1
			n.elems[i] = n.elems[last]
			var zero T
			n.elems[last] = zero
			n.elems = n.elems[:last]

			n.leaveWrite()
			return true
		}
	}

	n.leaveWrite()

	if n.nw == nil {
		return false
	}

	return n.nw.remove(t, v) ||
		n.ne.remove(t, v) ||
		n.sw.remove(t, v) ||
		n.se.remove(t, v)
}

// search appends to out every element under this node that the tree locator
// matches against window. Children are visited unconditionally once the node
// bound intersects the window; results come out in depth-first NW/NE/SW/SE
// order, which depends on insertion history rather than proximity.
func (n *node[T]) search(t *Tree[T], window geom.AABB, out *[]T) {
	n.enterRead()

	if len(n.elems) == 0 && n.nw == nil {
		n.leaveRead()
		return
	}

	if !n.bound.Intersects(window) {
		n.leaveRead()
		return
	}

	for _, e := range n.elems {
		if t.locate(e, window) {
			*out = append(*out, e)
		}
	}

	n.leaveRead()

	if n.nw == nil {
		return
	}

	n.nw.search(t, window, out)
	n.ne.search(t, window, out)
	n.sw.search(t, window, out)
	n.se.search(t, window, out)
}

// subdivide creates the four quadrant children. Elements already stored on
// this node stay where they are.
func (n *node[T]) subdivide(t *Tree[T]) {
	cx := n.bound.Center.X
	cy := n.bound.Center.Y
	hw := n.bound.Extents.X / 2
	hh := n.bound.Extents.Y / 2

	n.nw = newNode(t, geom.NewAABB(cx-hw, cy-hh, hw, hh))
	n.ne = newNode(t, geom.NewAABB(cx+hw, cy-hh, hw, hh))
	n.sw = newNode(t, geom.NewAABB(cx-hw, cy+hh, hw, hh))
	n.se = newNode(t, geom.NewAABB(cx+hw, cy+hh, hw, hh))
}

// setLocks re-creates the lock handles of this node and of every descendant
// with the given provider.
func (n *node[T]) setLocks(p LockProvider) {
	if n.lock != nil {
		n.lock.Free()
	}
	if n.atomLock != nil {
		n.atomLock.Free()
	}
	n.lock = p.NewLock()
	n.atomLock = p.NewLock()

	if n.nw != nil {
		n.nw.setLocks(p)
		n.ne.setLocks(p)
		n.sw.setLocks(p)
		n.se.setLocks(p)
	}
}

// free releases the lock handles of this node and of every descendant,
// depth-first. Element payloads are left untouched.
func (n *node[T]) free() {
	n.lock.Lock()

	n.elems = nil

	if n.nw != nil {
		n.nw.free()
		n.ne.free()
		n.sw.free()
		n.se.free()
	}

	n.lock.Unlock()
	n.lock.Free()
	n.atomLock.Free()
}

func (n *node[T]) collectStats(depth int, s *Stats) {
	n.enterRead()

	s.NodeCount++
	s.ElementCount += len(n.elems)
	if depth > s.MaxDepth {
		s.MaxDepth = depth
	}

	n.leaveRead()

	if n.nw == nil {
		return
	}

	n.nw.collectStats(depth+1, s)
	n.ne.collectStats(depth+1, s)
	n.sw.collectStats(depth+1, s)
	n.se.collectStats(depth+1, s)
}
