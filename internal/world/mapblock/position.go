package mapblock

import "fmt"

// Position addresses one map block (not one node).
type Position struct {
	X, Y, Z int16
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// Key is the legacy integer database key: z*2^24 + y*2^12 + x.
func (p Position) Key() int64 {
	return int64(p.Z)*0x1000000 + int64(p.Y)*0x1000 + int64(p.X)
}

// PositionFromKey inverts Key. Every component is a signed 12 bit value.
func PositionFromKey(k int64) Position {
	x := unsignedToSigned(floorMod(k, 4096), 2048)
	k = (k - x) / 4096
	y := unsignedToSigned(floorMod(k, 4096), 2048)
	k = (k - y) / 4096
	z := unsignedToSigned(floorMod(k, 4096), 2048)
	return Position{X: int16(x), Y: int16(y), Z: int16(z)}
}

func floorMod(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

func unsignedToSigned(v, maxPositive int64) int64 {
	if v < maxPositive {
		return v
	}
	return v - 2*maxPositive
}
