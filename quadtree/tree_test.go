package quadtree

import (
	"sync"
	"testing"

	"github.com/aukilabs/jord/geom"
	"github.com/stretchr/testify/require"
)

type point struct {
	x float64
	y float64
}

func pointInRegion(p *point, bound geom.AABB) bool {
	return bound.Contains(p.x, p.y)
}

func newPointTree() *Tree[*point] {
	return New(0, 0, 100, 100, pointInRegion)
}

func TestTreeCreation(t *testing.T) {
	tree := newPointTree()
	defer tree.Close()

	require.Equal(t, DefaultCapacity, tree.Capacity())
	require.True(t, tree.Bound().Center.Equal(geom.Vec2{X: 50, Y: 50}))
	require.True(t, tree.Bound().Extents.Equal(geom.Vec2{X: 50, Y: 50}))

	s := tree.Stats()
	require.Equal(t, 1, s.NodeCount)
	require.Equal(t, 0, s.ElementCount)
}

func TestTreeSetCapacity(t *testing.T) {
	tree := newPointTree()
	defer tree.Close()

	tree.SetCapacity(16)
	require.Equal(t, 16, tree.Capacity())

	t.Run("zero is coerced to one", func(t *testing.T) {
		tree.SetCapacity(0)
		require.Equal(t, 1, tree.Capacity())
	})
}

func TestTreeInsert(t *testing.T) {
	t.Run("element inside the bound is stored", func(t *testing.T) {
		tree := newPointTree()
		defer tree.Close()

		require.True(t, tree.Insert(&point{10, 10}))
		require.Equal(t, 1, tree.Stats().ElementCount)
	})

	t.Run("element outside the bound is rejected", func(t *testing.T) {
		tree := newPointTree()
		defer tree.Close()

		require.False(t, tree.Insert(&point{200, 10}))
		require.Equal(t, 0, tree.Stats().ElementCount)
	})

	t.Run("capacity boundary triggers exactly one subdivision", func(t *testing.T) {
		tree := newPointTree()
		defer tree.Close()

		for i := 0; i < DefaultCapacity; i++ {
			require.True(t, tree.Insert(&point{float64(i + 1), float64(i + 1)}))
		}
		require.Equal(t, 1, tree.Stats().NodeCount)

		require.True(t, tree.Insert(&point{60, 60}))
		s := tree.Stats()
		require.Equal(t, 5, s.NodeCount)
		require.Equal(t, 5, s.ElementCount)
		require.Equal(t, 1, s.MaxDepth)
	})
}

func TestTreeQuery(t *testing.T) {
	tree := newPointTree()
	defer tree.Close()

	points := []*point{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {60, 60}}
	for _, p := range points {
		require.True(t, tree.Insert(p))
	}

	t.Run("north west window", func(t *testing.T) {
		got := tree.Query(0, 0, 50, 50)
		require.ElementsMatch(t, points[:4], got)
	})

	t.Run("south east window", func(t *testing.T) {
		got := tree.Query(50, 50, 50, 50)
		require.Equal(t, []*point{points[4]}, got)
	})

	t.Run("full window returns every element exactly once", func(t *testing.T) {
		got := tree.Query(0, 0, 100, 100)
		require.Len(t, got, len(points))
		require.ElementsMatch(t, points, got)
	})

	t.Run("window outside the bound matches nothing", func(t *testing.T) {
		require.Empty(t, tree.Query(200, 200, 50, 50))
	})
}

func TestTreeRemove(t *testing.T) {
	tree := newPointTree()
	defer tree.Close()

	points := []*point{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {60, 60}}
	for _, p := range points {
		require.True(t, tree.Insert(p))
	}

	t.Run("removal is by reference identity", func(t *testing.T) {
		require.False(t, tree.Remove(&point{1, 1}))
		require.Equal(t, 5, tree.Stats().ElementCount)
	})

	t.Run("stored element is removed", func(t *testing.T) {
		require.True(t, tree.Remove(points[4]))
		require.Empty(t, tree.Query(50, 50, 50, 50))
	})

	t.Run("removal is idempotent", func(t *testing.T) {
		require.True(t, tree.Remove(points[0]))
		require.False(t, tree.Remove(points[0]))
		require.Equal(t, 3, tree.Stats().ElementCount)
	})
}

func TestTreeClear(t *testing.T) {
	tree := newPointTree()
	defer tree.Close()

	for i := 0; i < 10; i++ {
		require.True(t, tree.Insert(&point{float64(i), float64(i)}))
	}

	bound := tree.Bound()
	tree.Clear()

	require.Empty(t, tree.Query(0, 0, 100, 100))
	require.True(t, tree.Bound().Equal(bound))

	s := tree.Stats()
	require.Equal(t, 1, s.NodeCount)
	require.Equal(t, 0, s.ElementCount)

	t.Run("tree accepts fresh insertions", func(t *testing.T) {
		p := &point{10, 10}
		require.True(t, tree.Insert(p))
		require.Equal(t, []*point{p}, tree.Query(0, 0, 100, 100))
	})
}

func TestTreeCapacityChangeIsNotRetroactive(t *testing.T) {
	tree := newPointTree()
	defer tree.Close()

	for i := 0; i < DefaultCapacity+1; i++ {
		require.True(t, tree.Insert(&point{float64(i + 1), float64(i + 1)}))
	}
	require.Equal(t, 5, tree.Stats().NodeCount)

	// Raising the capacity never merges existing nodes.
	tree.SetCapacity(64)
	require.Equal(t, 5, tree.Stats().NodeCount)
}

func TestTreeStraddlingElementIsPlacedOnce(t *testing.T) {
	overlaps := func(b *geom.AABB, bound geom.AABB) bool {
		return bound.Intersects(*b)
	}

	tree := New(0, 0, 100, 100, overlaps)
	defer tree.Close()
	tree.SetCapacity(1)

	require.True(t, tree.Insert(&geom.AABB{Center: geom.Vec2{X: 10, Y: 10}, Extents: geom.Vec2{X: 1, Y: 1}}))

	// Covers the center of the bound, overlapping all four quadrants.
	straddler := &geom.AABB{Center: geom.Vec2{X: 50, Y: 50}, Extents: geom.Vec2{X: 10, Y: 10}}
	require.True(t, tree.Insert(straddler))

	got := tree.Query(0, 0, 100, 100)
	var seen int
	for _, b := range got {
		if b == straddler {
			seen++
		}
	}
	require.Equal(t, 1, seen)
}

func TestTreeSetSynchronization(t *testing.T) {
	tree := newPointTree()
	defer tree.Close()

	// Subdivide first so existing node handles get re-created.
	for i := 0; i < DefaultCapacity+1; i++ {
		require.True(t, tree.Insert(&point{float64(i + 1), float64(i + 1)}))
	}

	tree.SetSynchronization(MutexProvider{})

	got := tree.Query(0, 0, 100, 100)
	require.Len(t, got, 5)

	t.Run("nil provider restores no-op locking", func(t *testing.T) {
		tree.SetSynchronization(nil)
		require.Len(t, tree.Query(0, 0, 100, 100), 5)
	})
}

func TestTreeConcurrentOperations(t *testing.T) {
	tree := newPointTree()
	defer tree.Close()
	tree.SetSynchronization(MutexProvider{})

	const perWorker = 50

	points := make([][]*point, 4)
	for w := range points {
		points[w] = make([]*point, perWorker)
		for i := range points[w] {
			// Spread workers over distinct quadrants so traversals exercise
			// disjoint subtrees as well as the shared root.
			points[w][i] = &point{
				x: float64(w%2)*50 + float64(i%25) + 1,
				y: float64(w/2)*50 + float64(i/25)*25 + 1,
			}
		}
	}

	var wg sync.WaitGroup
	for w := range points {
		wg.Add(1)
		go func(ps []*point) {
			defer wg.Done()
			for _, p := range ps {
				tree.Insert(p)
				tree.Query(p.x-1, p.y-1, 2, 2)
			}
		}(points[w])
	}
	wg.Wait()

	got := tree.Query(0, 0, 100, 100)
	require.Len(t, got, 4*perWorker)

	var rg sync.WaitGroup
	for w := range points {
		rg.Add(1)
		go func(ps []*point) {
			defer rg.Done()
			for _, p := range ps {
				require.True(t, tree.Remove(p))
			}
		}(points[w])
	}
	rg.Wait()

	require.Empty(t, tree.Query(0, 0, 100, 100))
}
