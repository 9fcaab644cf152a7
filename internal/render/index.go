package render

import (
	"container/heap"
	"fmt"
	"iter"

	"voxelmap.ai/internal/world/mapblock"
)

// ColumnKey identifies all blocks sharing one horizontal position.
type ColumnKey struct {
	X, Z int16
}

// Range is a half-open interval of block coordinates.
type Range struct {
	Start, End int
}

func (r Range) Len() int { return max(0, r.End-r.Start) }

// BBox covers every occupied column. The zero value is the empty box.
type BBox struct {
	X, Z Range
}

func (b BBox) Empty() bool { return b.X.Len() == 0 || b.Z.Len() == 0 }

// Width is the number of columns along x.
func (b BBox) Width() int { return b.X.Len() }

// Depth is the number of columns along z.
func (b BBox) Depth() int { return b.Z.Len() }

func (b BBox) String() string {
	return fmt.Sprintf("x=[%d,%d) z=[%d,%d)", b.X.Start, b.X.End, b.Z.Start, b.Z.End)
}

func (b *BBox) extend(x, z int) {
	if b.Empty() {
		b.X = Range{x, x + 1}
		b.Z = Range{z, z + 1}
		return
	}
	b.X.Start, b.X.End = min(b.X.Start, x), max(b.X.End, x+1)
	b.Z.Start, b.Z.End = min(b.Z.Start, z), max(b.Z.End, z+1)
}

// YStack yields the y coordinates of one column highest first.
type YStack struct{ h yHeap }

func (s *YStack) Push(y int16) { heap.Push(&s.h, y) }
func (s *YStack) Len() int     { return s.h.Len() }

// Pop returns the highest remaining y.
func (s *YStack) Pop() (int16, bool) {
	if s.h.Len() == 0 {
		return 0, false
	}
	return heap.Pop(&s.h).(int16), true
}

type yHeap []int16

func (h yHeap) Len() int           { return len(h) }
func (h yHeap) Less(i, j int) bool { return h[i] > h[j] }
func (h yHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *yHeap) Push(v any)        { *h = append(*h, v.(int16)) }
func (h *yHeap) Pop() any {
	old := *h
	v := old[len(old)-1]
	*h = old[:len(old)-1]
	return v
}

type Columns map[ColumnKey]*YStack

// Blocks is the total number of indexed blocks.
func (c Columns) Blocks() int {
	n := 0
	for _, s := range c {
		n += s.Len()
	}
	return n
}

// IndexColumns groups block positions by column and computes the bounding
// box. Any error from the sequence aborts indexing.
func IndexColumns(positions iter.Seq2[mapblock.Position, error]) (Columns, BBox, error) {
	cols := Columns{}
	var bbox BBox
	for p, err := range positions {
		if err != nil {
			return nil, BBox{}, fmt.Errorf("enumerate map blocks: %w", err)
		}
		key := ColumnKey{X: p.X, Z: p.Z}
		s, ok := cols[key]
		if !ok {
			s = &YStack{}
			cols[key] = s
		}
		s.Push(p.Y)
		bbox.extend(int(p.X), int(p.Z))
	}
	return cols, bbox, nil
}
