package engine

import (
	"image"
	"math"
)

// Point is a position in source-image pixel coordinates.
type Point struct {
	X, Y float64
}

// Quad is an oriented rectangle given by its four corners in drawing order.
type Quad [4]Point

// RectQuad returns the axis-aligned quad covering r, clockwise from the top-left corner.
func RectQuad(r image.Rectangle) Quad {
	x0, y0 := float64(r.Min.X), float64(r.Min.Y)
	x1, y1 := float64(r.Max.X), float64(r.Max.Y)
	return Quad{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// BoundingRect returns the axis-aligned [left, top, right, bottom] rectangle enclosing q.
func (q Quad) BoundingRect() [4]float64 {
	left, top := math.Inf(1), math.Inf(1)
	right, bottom := math.Inf(-1), math.Inf(-1)
	for _, p := range q {
		left = math.Min(left, p.X)
		top = math.Min(top, p.Y)
		right = math.Max(right, p.X)
		bottom = math.Max(bottom, p.Y)
	}
	return [4]float64{left, top, right, bottom}
}

// Center returns the centroid of the four corners.
func (q Quad) Center() Point {
	var c Point
	for _, p := range q {
		c.X += p.X / 4
		c.Y += p.Y / 4
	}
	return c
}

// Contains reports whether p lies inside the bounding rectangle of q.
func (q Quad) Contains(p Point) bool {
	r := q.BoundingRect()
	return p.X >= r[0] && p.X <= r[2] && p.Y >= r[1] && p.Y <= r[3]
}

func overlapArea(a, b [4]float64) float64 {
	w := math.Min(a[2], b[2]) - math.Max(a[0], b[0])
	h := math.Min(a[3], b[3]) - math.Max(a[1], b[1])
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}
