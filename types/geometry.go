package types

// Point is a position in screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in screen space. Min is the top-left
// corner, Max the bottom-right. Bounds arriving from the layout
// collaborator are final, post-layout values.
type Rect struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

func NewRect(x, y, w, h float64) Rect {
	return Rect{Min: Point{X: x, Y: y}, Max: Point{X: x + w, Y: y + h}}
}

func (r Rect) Width() float64 {
	return r.Max.X - r.Min.X
}

func (r Rect) Height() float64 {
	return r.Max.Y - r.Min.Y
}

// Contains reports whether p falls inside r. The right and bottom edges
// are exclusive so that adjacent rects do not both claim their shared
// edge.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// IsEmpty reports whether the rect encloses no points at all. Contains
// is always false on an empty rect.
func (r Rect) IsEmpty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y
}
