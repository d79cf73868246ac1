package queue

// seqHeap is a min-heap of items keyed by Seq.
type seqHeap struct {
	items []Item
}

func (h *seqHeap) Len() int { return len(h.items) }

// Top returns the item with the smallest Seq.
func (h *seqHeap) Top() (Item, bool) {
	if len(h.items) == 0 {
		return Item{}, false
	}
	return h.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (h *seqHeap) Push(item Item) {
	h.items = append(h.items, item)
	h.siftUp(len(h.items) - 1)
}

// Pop removes and returns the item with the smallest Seq.
func (h *seqHeap) Pop() (Item, bool) {
	n := len(h.items)
	if n == 0 {
		return Item{}, false
	}
	root := h.items[0]
	last := h.items[n-1]
	h.items[n-1] = Item{} // release the sample for GC
	h.items = h.items[:n-1]
	if n-1 > 0 {
		h.items[0] = last
		h.siftDown(0)
	}
	return root, true
}

func (h *seqHeap) less(i, j int) bool {
	return h.items[i].Seq < h.items[j].Seq
}

func (h *seqHeap) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.less(i, p) {
			return
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *seqHeap) siftDown(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && h.less(r, l) {
			best = r
		}
		if !h.less(best, i) {
			return
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
}
