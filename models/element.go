package models

import (
	"sync"

	"github.com/aukilabs/jord/geom"
	"github.com/google/uuid"
)

// Element is an indexed payload. The spatial index stores references only;
// the element data itself belongs to whoever created it.
type Element struct {
	ID   uint32
	UUID string
	Data []byte

	mutex     sync.RWMutex
	footprint geom.AABB
}

// NewElement creates an element whose footprint is the w by h box with its
// top-left corner at (x, y). A zero-sized footprint makes the element a
// point at (x, y).
func NewElement(id uint32, x, y, w, h float64, data []byte) *Element {
	return &Element{
		ID:        id,
		UUID:      uuid.NewString(),
		Data:      data,
		footprint: geom.AABBFromCorner(x, y, w, h),
	}
}

func (e *Element) Footprint() geom.AABB {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.footprint
}

func (e *Element) SetFootprint(v geom.AABB) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.footprint = v
}

// Locate is the membership predicate wired into every index tree. Point
// elements resolve by inclusive containment of their position, sized ones by
// strict intersection of their footprint.
func Locate(e *Element, bound geom.AABB) bool {
	f := e.Footprint()
	if f.Extents.X == 0 && f.Extents.Y == 0 {
		return bound.Contains(f.Center.X, f.Center.Y)
	}
	return bound.Intersects(f)
}
