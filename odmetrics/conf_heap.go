package odmetrics

type confEntry struct {
	box   BoundingBox
	order int
}

// Copied from container/heap - https://golang.org/pkg/container/heap/
// Why make copy? Just want to avoid type conversion

type confHeap []*confEntry

func (h confHeap) Len() int { return len(h) }

// Less orders by descending confidence; equal confidences fall back to input
// order so that matching stays deterministic (first-seen wins).
func (h confHeap) Less(i, j int) bool {
	if h[i].box.Confidence != h[j].box.Confidence {
		return h[i].box.Confidence > h[j].box.Confidence
	}
	return h[i].order < h[j].order
}

func (h confHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push pushes the element x onto the heap.
// The complexity is O(log n) where n = h.Len().
func (h *confHeap) Push(x *confEntry) {
	*h = append(*h, x)
	h.up(h.Len() - 1)
}

// Pop removes and returns the top element (according to Less) from the heap.
// The complexity is O(log n) where n = h.Len().
func (h *confHeap) Pop() *confEntry {
	n := h.Len() - 1
	h.Swap(0, n)
	h.down(0, n)
	heapSize := len(*h)
	lastNode := (*h)[heapSize-1]
	*h = (*h)[0 : heapSize-1]
	return lastNode
}

func (h confHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		j = i
	}
}

func (h confHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.Less(j2, j1) {
			j = j2
		}
		if !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		i = j
	}
	return i > i0
}

// sortByConfidence returns a new slice ordered by descending confidence with
// first-seen order preserved on ties. The input slice is left untouched.
func sortByConfidence(dets []BoundingBox) []BoundingBox {
	h := make(confHeap, 0, len(dets))
	for i := range dets {
		h.Push(&confEntry{box: dets[i], order: i})
	}
	out := make([]BoundingBox, 0, len(dets))
	for h.Len() > 0 {
		out = append(out, h.Pop().box)
	}
	return out
}

// topKPerGroup keeps the k highest-confidence detections of every
// (image, class) group, ordered by descending confidence inside each group.
func topKPerGroup(dets []BoundingBox, k int) []BoundingBox {
	groups := make(map[groupKey][]BoundingBox)
	groupOrder := make([]groupKey, 0)
	for _, det := range dets {
		gk := groupKey{ImageID: det.ImageID, Label: det.Label}
		if _, ok := groups[gk]; !ok {
			groupOrder = append(groupOrder, gk)
		}
		groups[gk] = append(groups[gk], det)
	}
	out := make([]BoundingBox, 0, len(dets))
	for _, gk := range groupOrder {
		sorted := sortByConfidence(groups[gk])
		if len(sorted) > k {
			sorted = sorted[:k]
		}
		out = append(out, sorted...)
	}
	return out
}
