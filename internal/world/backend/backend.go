// Package backend reads raw map block blobs from a world database.
package backend

import (
	"context"
	"errors"
	"iter"

	"voxelmap.ai/internal/world/mapblock"
)

var ErrBlockNotFound = errors.New("map block not found")

// Backend is a read-only view of a world's map block storage. It is safe
// for concurrent use.
type Backend interface {
	// Positions enumerates every stored block position. An error ends the
	// sequence.
	Positions(ctx context.Context) iter.Seq2[mapblock.Position, error]
	// Block returns the serialized block at pos or ErrBlockNotFound.
	Block(ctx context.Context, pos mapblock.Position) ([]byte, error)
	Close() error
}
