package odmetrics

import (
	"math"
	"testing"
)

const (
	eps = 0.00001
)

func TestIoUIdentity(t *testing.T) {
	a := gtBox(t, "img1", "person", 0, 0, 10, 10)
	answer := IoU(a, a)
	if math.Abs(answer-1.0) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, 1.0)
	}
}

func TestIoUDisjoint(t *testing.T) {
	a := gtBox(t, "img1", "person", 0, 0, 10, 10)
	b := gtBox(t, "img1", "person", 20, 20, 30, 30)
	if answer := IoU(a, b); answer != 0.0 {
		t.Errorf("Disjoint boxes must have IoU 0.0, got %v", answer)
	}
	// Touching edges do not overlap
	c := gtBox(t, "img1", "person", 10, 0, 20, 10)
	if answer := IoU(a, c); answer != 0.0 {
		t.Errorf("Touching boxes must have IoU 0.0, got %v", answer)
	}
}

func TestIoUSymmetric(t *testing.T) {
	pairs := [][2]BoundingBox{
		{gtBox(t, "img1", "person", 0, 0, 10, 10), gtBox(t, "img1", "person", 5, 5, 15, 15)},
		{gtBox(t, "img1", "person", 0, 0, 10, 10), gtBox(t, "img1", "person", 20, 20, 30, 30)},
		{gtBox(t, "img1", "person", 1, 2, 3, 4), gtBox(t, "img1", "person", 2, 2, 4, 5)},
	}
	for i, pair := range pairs {
		if IoU(pair[0], pair[1]) != IoU(pair[1], pair[0]) {
			t.Errorf("Pair %d: IoU is not symmetric", i)
		}
	}
}

func TestIoUPartialOverlap(t *testing.T) {
	a := gtBox(t, "img1", "person", 0, 0, 10, 10)
	b := gtBox(t, "img1", "person", 5, 5, 15, 15)
	// Intersection 25, union 175
	correctAnswer := 25.0 / 175.0
	answer := IoU(a, b)
	if math.Abs(answer-correctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correctAnswer)
	}
}

func TestIoUDegenerateUnion(t *testing.T) {
	// Both boxes have zero area: union is zero, IoU is defined as 0.0
	a := gtBox(t, "img1", "person", 5, 5, 5, 5)
	b := gtBox(t, "img1", "person", 5, 5, 5, 5)
	if answer := IoU(a, b); answer != 0.0 {
		t.Errorf("Zero-area union must resolve to IoU 0.0, got %v", answer)
	}
}

func TestAreaClampsNegativeExtents(t *testing.T) {
	// Inverted rectangles are rejected by constructors, but Area itself must
	// clamp instead of going negative
	bb := BoundingBox{ImageID: "img1", Label: "person", X1: 10, Y1: 10, X2: 0, Y2: 0}
	if answer := bb.Area(); answer != 0.0 {
		t.Errorf("Inverted box must have area 0.0, got %v", answer)
	}
}

func TestArea(t *testing.T) {
	bb := gtBox(t, "img1", "person", 2, 3, 12, 8)
	correctAnswer := 50.0
	if answer := bb.Area(); math.Abs(answer-correctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correctAnswer)
	}
}

func TestIntersectionArea(t *testing.T) {
	a := gtBox(t, "img1", "person", 0, 0, 10, 10)
	b := gtBox(t, "img1", "person", 5, 5, 15, 15)
	correctAnswer := 25.0
	if answer := IntersectionArea(a, b); math.Abs(answer-correctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correctAnswer)
	}
}
