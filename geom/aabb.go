package geom

import "math"

type Vec2 struct {
	X float64
	Y float64
}

func NewVec2(x, y float64) Vec2 {
	return Vec2{x, y}
}

func (v Vec2) Equal(o Vec2) bool {
	return v.X == o.X && v.Y == o.Y
}

func (v Vec2) EqualWithEpsilon(o Vec2, epsilon float64) bool {
	return math.Abs(v.X-o.X) <= epsilon && math.Abs(v.Y-o.Y) <= epsilon
}

// AABB is an axis-aligned bounding box described by its center point and its
// half-extents.
type AABB struct {
	Center  Vec2
	Extents Vec2 // Half-Extents!
}

func NewAABB(centerX, centerY, halfW, halfH float64) AABB {
	return AABB{
		Center:  Vec2{centerX, centerY},
		Extents: Vec2{halfW, halfH},
	}
}

// AABBFromCorner builds a box from its top-left corner and its full size.
func AABBFromCorner(x, y, w, h float64) AABB {
	return AABB{
		Center:  Vec2{x + w/2, y + h/2},
		Extents: Vec2{w / 2, h / 2},
	}
}

// Contains reports whether the point lies within the box, edges included.
func (a AABB) Contains(x, y float64) bool {
	return x >= a.Center.X-a.Extents.X &&
		x <= a.Center.X+a.Extents.X &&
		y >= a.Center.Y-a.Extents.Y &&
		y <= a.Center.Y+a.Extents.Y
}

// Intersects reports whether the two boxes overlap. Boxes that merely touch
// along an edge do not intersect.
func (a AABB) Intersects(b AABB) bool {
	return math.Abs(a.Center.X-b.Center.X) < a.Extents.X+b.Extents.X &&
		math.Abs(a.Center.Y-b.Center.Y) < a.Extents.Y+b.Extents.Y
}

func (a AABB) Equal(b AABB) bool {
	return a.Center.Equal(b.Center) && a.Extents.Equal(b.Extents)
}
