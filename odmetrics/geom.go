package odmetrics

// Area returns the box area in square pixels. Degenerate extents clamp to zero
// instead of producing a negative area.
func (bb BoundingBox) Area() float64 {
	return maxFloat64(0, bb.X2-bb.X1) * maxFloat64(0, bb.Y2-bb.Y1)
}

// IntersectionArea returns the area of the overlap rectangle between two boxes,
// zero when they do not overlap.
func IntersectionArea(a, b BoundingBox) float64 {
	xA := maxFloat64(a.X1, b.X1)
	yA := maxFloat64(a.Y1, b.Y1)
	xB := minFloat64(a.X2, b.X2)
	yB := minFloat64(a.Y2, b.Y2)
	return maxFloat64(0, xB-xA) * maxFloat64(0, yB-yA)
}

// IoU calculates Intersection over Union between two boxes.
// A zero-area union (both boxes degenerate) resolves to 0.0 instead of a
// division fault.
func IoU(a, b BoundingBox) float64 {
	interArea := IntersectionArea(a, b)
	unionArea := a.Area() + b.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}
	return interArea / unionArea
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
