package render

import (
	"context"
	"iter"
	"log"

	"voxelmap.ai/internal/color"
	"voxelmap.ai/internal/config"
	"voxelmap.ai/internal/metrics"
	"voxelmap.ai/internal/report"
	"voxelmap.ai/internal/terrain"
	"voxelmap.ai/internal/world/mapblock"
)

// saturationAlpha is the opacity above which a cell is not scanned again
// in deeper blocks. It is independent of config.SufficientAlpha.
const saturationAlpha = 230

const edge = mapblock.Length

// BlockSource is the world storage the renderer reads from.
type BlockSource interface {
	Positions(ctx context.Context) iter.Seq2[mapblock.Position, error]
	MapBlock(ctx context.Context, pos mapblock.Position) (*mapblock.MapBlock, error)
}

type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Render
	Journal *report.Journal
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// ComposeBlock blends the nodes of one block beneath the colors already
// accumulated in acc. baseHeight is the world y of the block's lowest node
// layer.
func ComposeBlock(b *mapblock.MapBlock, cfg *config.Config, baseHeight int16, acc *terrain.Chunk) {
	if b.AirOnly() {
		return
	}
	palette := make(map[uint16]color.Color, len(b.NameIDMappings))
	for id, name := range b.NameIDMappings {
		if c, ok := cfg.NodeColor(name); ok {
			palette[id] = c
		}
	}
	if len(palette) == 0 {
		return
	}

	for z := 0; z < edge; z++ {
		for x := 0; x < edge; x++ {
			cell := &acc[x+edge*z]
			if cell.Alpha() > saturationAlpha {
				continue
			}
			for y := edge - 1; y >= 0; y-- {
				c, ok := palette[b.ContentID(x, y, z)]
				if !ok {
					continue
				}
				cell.AddBackground(c)
				h := baseHeight + int16(y)
				if cfg.HillShading.Enabled && cell.Alpha() > cfg.HillShading.MinAlpha {
					cell.SetHeight(h)
				}
				if cell.Alpha() > cfg.SufficientAlpha {
					cell.SetHeight(h)
					break
				}
			}
		}
	}
}

func resolved(acc *terrain.Chunk, threshold uint8) bool {
	for i := range acc {
		if acc[i].Alpha() <= threshold {
			return false
		}
	}
	return true
}

// ColumnChunk is the composited surface of one column.
type ColumnChunk struct {
	Key   ColumnKey
	Cells *terrain.Chunk
}

// ComposeColumn walks a column top-down until every cell is opaque enough
// or the blocks run out. Unreadable blocks are logged and skipped, so the
// result is always usable.
func ComposeColumn(ctx context.Context, src BlockSource, cfg *config.Config, key ColumnKey, ys *YStack, opts Options) ColumnChunk {
	acc := &terrain.Chunk{}
	early := false
	for {
		y, ok := ys.Pop()
		if !ok {
			break
		}
		pos := mapblock.Position{X: key.X, Y: y, Z: key.Z}
		b, err := src.MapBlock(ctx, pos)
		if err != nil {
			opts.logger().Printf("mapblock %v: %v", pos, err)
			opts.Metrics.BlockFailed()
			opts.Journal.BlockFailed(pos, err)
		} else {
			opts.Metrics.BlockRead(b.AirOnly())
			ComposeBlock(b, cfg, y*edge, acc)
		}
		if resolved(acc, cfg.SufficientAlpha) {
			early = ys.Len() > 0
			break
		}
	}
	opts.Metrics.ColumnDone(early)
	return ColumnChunk{Key: key, Cells: acc}
}
