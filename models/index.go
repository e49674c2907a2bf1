package models

import (
	"sync"

	"github.com/aukilabs/jord/geom"
	"github.com/aukilabs/jord/quadtree"
	"github.com/google/uuid"
)

// Index is a named spatial index: a quadtree over elements plus the table
// that resolves element ids to references.
type Index struct {
	ID        uint32
	IndexUUID string
	Name      string

	elementIDs   SequentialIDGenerator
	elementMutex sync.RWMutex
	elements     map[uint32]*Element

	tree *quadtree.Tree[*Element]

	closeOnce sync.Once
}

// NewIndex creates an index covering the w by h region with its top-left
// corner at (cornerX, cornerY). A capacity of 0 keeps the tree default.
func NewIndex(id uint32, name string, cornerX, cornerY, w, h float64, capacity int) *Index {
	tree := quadtree.New(cornerX, cornerY, w, h, Locate)
	tree.SetSynchronization(quadtree.MutexProvider{})
	if capacity != 0 {
		tree.SetCapacity(capacity)
	}

	return &Index{
		ID:        id,
		IndexUUID: uuid.NewString(),
		Name:      name,
		elements:  make(map[uint32]*Element),
		tree:      tree,
	}
}

func (idx *Index) NewElementID() uint32 {
	return idx.elementIDs.New()
}

func (idx *Index) Capacity() int {
	return idx.tree.Capacity()
}

func (idx *Index) Bound() geom.AABB {
	return idx.tree.Bound()
}

// AddElement indexes the element and registers it in the id table. Elements
// whose footprint falls outside the index bound are not stored, which the
// return value reports.
func (idx *Index) AddElement(e *Element) bool {
	if !idx.tree.Insert(e) {
		idx.elementIDs.Reuse(e.ID)
		return false
	}

	idx.elementMutex.Lock()
	idx.elements[e.ID] = e
	idx.elementMutex.Unlock()

	instrumentElementAdd(idx.Name)
	return true
}

// RemoveElement drops the element with the given id from the tree and the id
// table. Removing an unknown id is a no-op.
func (idx *Index) RemoveElement(id uint32) bool {
	idx.elementMutex.Lock()
	e, ok := idx.elements[id]
	if !ok {
		idx.elementMutex.Unlock()
		return false
	}
	delete(idx.elements, id)
	idx.elementMutex.Unlock()

	idx.tree.Remove(e)
	idx.elementIDs.Reuse(id)

	instrumentElementRemove(idx.Name)
	return true
}

func (idx *Index) GetElement(id uint32) (*Element, bool) {
	idx.elementMutex.RLock()
	defer idx.elementMutex.RUnlock()

	e, ok := idx.elements[id]
	return e, ok
}

func (idx *Index) ElementCount() int {
	idx.elementMutex.RLock()
	defer idx.elementMutex.RUnlock()

	return len(idx.elements)
}

// QueryRegion returns the elements located in the w by h window with its
// top-left corner at (cornerX, cornerY).
func (idx *Index) QueryRegion(cornerX, cornerY, w, h float64) []*Element {
	return idx.tree.Query(cornerX, cornerY, w, h)
}

// Clear resets the tree structure and forgets every registered element. The
// index bound is preserved.
func (idx *Index) Clear() {
	idx.tree.Clear()

	idx.elementMutex.Lock()
	removed := len(idx.elements)
	idx.elements = make(map[uint32]*Element)
	idx.elementMutex.Unlock()

	instrumentElementClear(idx.Name, removed)
}

func (idx *Index) Stats() quadtree.Stats {
	return idx.tree.Stats()
}

// Close releases the tree's lock handles. The index must not be used
// afterwards.
func (idx *Index) Close() {
	idx.closeOnce.Do(func() {
		idx.tree.Close()
	})
}
