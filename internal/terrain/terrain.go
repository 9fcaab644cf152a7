// Package terrain holds the assembled top-down surface: one cell per node
// column with its composited color and the elevation used for shading.
package terrain

import (
	"fmt"

	"voxelmap.ai/internal/color"
	"voxelmap.ai/internal/world/mapblock"
)

const (
	// ChunkEdge is the width of one block column in cells.
	ChunkEdge = mapblock.Length
	ChunkLen  = ChunkEdge * ChunkEdge
)

type Cell struct {
	color     color.Color
	hasColor  bool
	height    int16
	hasHeight bool
}

func (c *Cell) Color() (color.Color, bool) { return c.color, c.hasColor }

func (c *Cell) Height() (int16, bool) { return c.height, c.hasHeight }

// Alpha is 0 for cells that never received a color.
func (c *Cell) Alpha() uint8 {
	if !c.hasColor {
		return 0
	}
	return c.color.A
}

// AddBackground composites col beneath what the cell already shows.
func (c *Cell) AddBackground(col color.Color) {
	if c.hasColor {
		c.color = c.color.Over(col)
	} else {
		c.color, c.hasColor = col, true
	}
}

func (c *Cell) SetHeight(h int16) { c.height, c.hasHeight = h, true }

// Chunk is the cell grid of one block column, indexed x + z*ChunkEdge.
type Chunk [ChunkLen]Cell

type Terrain struct {
	width, height int
	cells         []Cell
}

func New(width, height int) *Terrain {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("terrain: negative size %dx%d", width, height))
	}
	return &Terrain{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
}

func (t *Terrain) Width() int  { return t.width }
func (t *Terrain) Height() int { return t.height }

func (t *Terrain) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < t.width && y < t.height
}

// Cell returns nil outside the grid.
func (t *Terrain) Cell(x, y int) *Cell {
	if !t.inBounds(x, y) {
		return nil
	}
	return &t.cells[y*t.width+x]
}

func (t *Terrain) Color(x, y int) (color.Color, bool) {
	c := t.Cell(x, y)
	if c == nil {
		return color.Color{}, false
	}
	return c.Color()
}

// InsertChunk copies a block column's cells to the grid with its top-left
// corner at (ox, oy). Block-local z grows northwards while grid rows grow
// southwards, so local row i lands on grid row oy + ChunkEdge-1 - i.
// Writing outside the grid panics: offsets must come from the bounding box.
func (t *Terrain) InsertChunk(ox, oy int, chunk *Chunk) {
	for i := range chunk {
		x := ox + i%ChunkEdge
		y := oy + ChunkEdge - 1 - i/ChunkEdge
		if !t.inBounds(x, y) {
			panic(fmt.Sprintf("terrain: chunk cell (%d,%d) outside %dx%d grid", x, y, t.width, t.height))
		}
		t.cells[y*t.width+x] = chunk[i]
	}
}

// HeightDiffX is the relief of cell (x,y) along the x axis. See heightDiff.
func (t *Terrain) HeightDiffX(x, y int) int16 {
	return t.heightDiff(x, y, x-1, y, x+1, y)
}

// HeightDiffY is the relief of cell (x,y) along the row axis.
func (t *Terrain) HeightDiffY(x, y int) int16 {
	return t.heightDiff(x, y, x, y-1, x, y+1)
}

// heightDiff compares a cell with its neighbours before (bx,by) and after
// (ax,ay). A neighbour outside the grid is replaced by the cell itself.
// The cell is lit by how far it rises above the neighbour before it and
// shadowed by how far the neighbour after it rises above it. Missing
// elevations give 0.
func (t *Terrain) heightDiff(x, y, bx, by, ax, ay int) int16 {
	this := t.Cell(x, y)
	if this == nil {
		return 0
	}
	h, ok := this.Height()
	if !ok {
		return 0
	}
	before, after := t.Cell(bx, by), t.Cell(ax, ay)
	if before == nil {
		before = this
	}
	if after == nil {
		after = this
	}
	hb, okb := before.Height()
	ha, oka := after.Height()
	if !okb || !oka {
		return 0
	}
	rise := max(0, subSat(h, hb))
	shadow := max(0, subSat(ha, h))
	return subSat(rise, shadow)
}

func subSat(a, b int16) int16 { return clamp16(int32(a) - int32(b)) }

// AddSat adds two height differences, saturating at the int16 range.
func AddSat(a, b int16) int16 { return clamp16(int32(a) + int32(b)) }

func clamp16(d int32) int16 {
	switch {
	case d > 32767:
		return 32767
	case d < -32768:
		return -32768
	}
	return int16(d)
}
