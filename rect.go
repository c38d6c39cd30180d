package bivcodec

// Rectangle is an integer-valued region of the canvas: (X, Y) is its
// top-left corner, Width and Height its extent.
type Rectangle struct {
	X, Y          int
	Width, Height int
}

// NewRectangle builds a Rectangle from its four components.
func NewRectangle(x, y, width, height int) Rectangle {
	return Rectangle{X: x, Y: y, Width: width, Height: height}
}

// IsHorizontal reports whether r is wider than it is tall.
func (r Rectangle) IsHorizontal() bool {
	return r.Width > r.Height
}

// IsVertical reports whether r is the vertical case: width <= height.
// Ties (width == height) are broken toward vertical.
func (r Rectangle) IsVertical() bool {
	return !r.IsHorizontal()
}

// Area returns Width*Height.
func (r Rectangle) Area() int {
	return r.Width * r.Height
}

// Split bisects r along its longer side, returning the left/top half
// first and the right/bottom half second. A horizontal rectangle
// splits into left (width w/2, floor) and right (width w - w/2)
// halves; a vertical rectangle splits top/bottom analogously. Ties
// (width == height) take the vertical branch. Split is the single
// place that defines how the canvas is partitioned — every other
// component calls it rather than reimplementing the bisection.
func Split(r Rectangle) (left, right Rectangle) {
	if r.IsHorizontal() {
		half := r.Width / 2
		left = Rectangle{X: r.X, Y: r.Y, Width: half, Height: r.Height}
		right = Rectangle{X: r.X + half, Y: r.Y, Width: r.Width - half, Height: r.Height}
		return left, right
	}

	half := r.Height / 2
	left = Rectangle{X: r.X, Y: r.Y, Width: r.Width, Height: half}
	right = Rectangle{X: r.X, Y: r.Y + half, Width: r.Width, Height: r.Height - half}
	return left, right
}
