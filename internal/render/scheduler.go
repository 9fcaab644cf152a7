package render

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"voxelmap.ai/internal/config"
	"voxelmap.ai/internal/terrain"
)

// ComposeColumns runs one ComposeColumn per column concurrently and returns
// once all of them are done. cols is consumed. Result order is unspecified.
func ComposeColumns(ctx context.Context, src BlockSource, cfg *config.Config, cols Columns, opts Options) []ColumnChunk {
	out := make([]ColumnChunk, len(cols))
	var wg sync.WaitGroup
	i := 0
	for key, ys := range cols {
		slot := &out[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			*slot = ComposeColumn(ctx, src, cfg, key, ys, opts)
		}()
		delete(cols, key)
		i++
	}
	wg.Wait()
	return out
}

// Assemble writes column chunks into a grid sized from bbox. Column x grows
// to the right and column z grows upwards; the grid keeps one spare row at
// the bottom.
func Assemble(bbox BBox, chunks []ColumnChunk) *terrain.Terrain {
	t := terrain.New(edge*bbox.Width(), edge*bbox.Depth()+1)
	for _, ch := range chunks {
		ox := edge * (int(ch.Key.X) - bbox.X.Start)
		oy := edge * (bbox.Z.End - 1 - int(ch.Key.Z))
		t.InsertChunk(ox, oy, ch.Cells)
	}
	return t
}

// ComputeTerrain renders the surface colors of the world along with its
// height map. Only a failure to enumerate the stored blocks is an error.
func ComputeTerrain(ctx context.Context, src BlockSource, cfg *config.Config, opts Options) (*terrain.Terrain, error) {
	logger := opts.logger()

	start := time.Now()
	cols, bbox, err := IndexColumns(src.Positions(ctx))
	if err != nil {
		return nil, err
	}
	opts.Metrics.Phase("index", time.Since(start))
	logger.Printf("indexed %s map blocks in %s columns, bbox %v",
		humanize.Comma(int64(cols.Blocks())), humanize.Comma(int64(len(cols))), bbox)

	start = time.Now()
	chunks := ComposeColumns(ctx, src, cfg, cols, opts)
	opts.Metrics.Phase("compose", time.Since(start))

	logger.Printf("finishing surface map")
	start = time.Now()
	t := Assemble(bbox, chunks)
	opts.Metrics.Phase("assemble", time.Since(start))
	return t, nil
}
