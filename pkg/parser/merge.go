package parser

import "container/heap"

// MergeTables interleaves several sorted tables into one chronological
// table. Ties keep the order of the input tables. Rows are not
// de-duplicated across tables; that is the store's job on re-import.
func MergeTables(tables ...*Table) *Table {
	total := 0
	h := &cursorHeap{}
	for i, t := range tables {
		if t.Len() == 0 {
			continue
		}
		total += t.Len()
		*h = append(*h, &cursor{records: t.records, table: i})
	}
	heap.Init(h)

	out := make([]Record, 0, total)
	for h.Len() > 0 {
		c := (*h)[0]
		out = append(out, c.records[c.pos])
		c.pos++
		if c.pos == len(c.records) {
			heap.Pop(h)
			continue
		}
		heap.Fix(h, 0)
	}
	return &Table{records: out}
}

// cursor is a read position in one source table.
type cursor struct {
	records []Record
	pos     int
	table   int
}

// cursorHeap orders cursors by their current record's timestamp.
type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	a, b := h[i].records[h[i].pos], h[j].records[h[j].pos]
	if a.Timestamp.Equal(b.Timestamp) {
		return h[i].table < h[j].table
	}
	return a.Timestamp.Before(b.Timestamp)
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x interface{}) {
	*h = append(*h, x.(*cursor))
}

func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}
