// Package mapblock decodes serialized map blocks: 16x16x16 nodes with a
// per-block name-id mapping.
package mapblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

const (
	// Length is the edge length of a map block in nodes.
	Length = 16
	// NodeCount is the number of nodes in a map block.
	NodeCount = Length * Length * Length

	MinVersion = 25
	MaxVersion = 29

	AirName = "air"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported map block version")
	ErrTruncated          = errors.New("truncated map block")
)

type MapBlock struct {
	Version          uint8
	Flags            uint8
	LightingComplete uint16
	Timestamp        uint32

	// NameIDMappings maps the content ids used in Param0 to node names.
	NameIDMappings map[uint16]string

	Param0 [NodeCount]uint16
	Param1 [NodeCount]uint8
	Param2 [NodeCount]uint8
}

func nodeIndex(x, y, z int) int { return x + y*Length + z*Length*Length }

// ContentID returns param0 of the node at block-local (x,y,z).
func (b *MapBlock) ContentID(x, y, z int) uint16 {
	return b.Param0[nodeIndex(x, y, z)]
}

// NodeName returns the name of the node at block-local (x,y,z).
func (b *MapBlock) NodeName(x, y, z int) (string, bool) {
	name, ok := b.NameIDMappings[b.ContentID(x, y, z)]
	return name, ok
}

// AirOnly reports whether the name-id mapping contains nothing but air,
// in which case no node of the block can be visible.
func (b *MapBlock) AirOnly() bool {
	if len(b.NameIDMappings) != 1 {
		return false
	}
	for _, name := range b.NameIDMappings {
		return name == AirName
	}
	return false
}

var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

// Decode parses a map block as stored in the world database.
func Decode(data []byte) (*MapBlock, error) {
	if len(data) == 0 {
		return nil, ErrTruncated
	}
	b := &MapBlock{Version: data[0]}
	if b.Version < MinVersion || b.Version > MaxVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, b.Version)
	}

	var err error
	if b.Version >= 29 {
		err = b.decodeZstd(data[1:])
	} else {
		err = b.decodeZlib(bytes.NewReader(data[1:]))
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if err != nil {
		return nil, fmt.Errorf("map block v%d: %w", b.Version, err)
	}
	return b, nil
}

// v29: everything after the version byte is one zstd frame.
func (b *MapBlock) decodeZstd(body []byte) error {
	dec, err := zstdDecoder()
	if err != nil {
		return err
	}
	raw, err := dec.DecodeAll(body, nil)
	if err != nil {
		return fmt.Errorf("zstd: %w", err)
	}
	r := bytes.NewReader(raw)

	if err := read(r, &b.Flags, &b.LightingComplete, &b.Timestamp); err != nil {
		return err
	}
	if err := b.readNameIDMappings(r); err != nil {
		return err
	}
	if err := readWidths(r); err != nil {
		return err
	}
	return b.readNodes(r)
}

// v25-28: node data and metadata are separate zlib streams, the name-id
// mapping follows the static objects and the timestamp.
func (b *MapBlock) decodeZlib(r *bytes.Reader) error {
	if err := read(r, &b.Flags); err != nil {
		return err
	}
	if b.Version >= 27 {
		if err := read(r, &b.LightingComplete); err != nil {
			return err
		}
	}
	if err := readWidths(r); err != nil {
		return err
	}

	nodes, err := inflate(r)
	if err != nil {
		return fmt.Errorf("node data: %w", err)
	}
	if err := b.readNodes(bytes.NewReader(nodes)); err != nil {
		return err
	}
	if _, err := inflate(r); err != nil {
		return fmt.Errorf("node metadata: %w", err)
	}
	if err := skipStaticObjects(r); err != nil {
		return err
	}
	if err := read(r, &b.Timestamp); err != nil {
		return err
	}
	return b.readNameIDMappings(r)
}

// inflate reads one zlib stream. r must be a bytes.Reader so that the
// decompressor stops exactly at the end of the stream.
func inflate(r *bytes.Reader) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func readWidths(r io.Reader) error {
	var contentWidth, paramsWidth uint8
	if err := read(r, &contentWidth, &paramsWidth); err != nil {
		return err
	}
	if contentWidth != 2 || paramsWidth != 2 {
		return fmt.Errorf("unsupported widths content=%d params=%d", contentWidth, paramsWidth)
	}
	return nil
}

func (b *MapBlock) readNodes(r io.Reader) error {
	return read(r, &b.Param0, &b.Param1, &b.Param2)
}

func (b *MapBlock) readNameIDMappings(r io.Reader) error {
	var version uint8
	var count uint16
	if err := read(r, &version, &count); err != nil {
		return err
	}
	if version != 0 {
		return fmt.Errorf("unsupported name-id mapping version %d", version)
	}
	b.NameIDMappings = make(map[uint16]string, count)
	for i := 0; i < int(count); i++ {
		var id, n uint16
		if err := read(r, &id, &n); err != nil {
			return err
		}
		name := make([]byte, n)
		if _, err := io.ReadFull(r, name); err != nil {
			return err
		}
		b.NameIDMappings[id] = string(name)
	}
	return nil
}

func skipStaticObjects(r *bytes.Reader) error {
	var version uint8
	var count uint16
	if err := read(r, &version, &count); err != nil {
		return fmt.Errorf("static objects: %w", err)
	}
	for i := 0; i < int(count); i++ {
		var kind uint8
		var pos [3]int32
		var n uint16
		if err := read(r, &kind, &pos, &n); err != nil {
			return fmt.Errorf("static object %d: %w", i, err)
		}
		if int(n) > r.Len() {
			return ErrTruncated
		}
		if _, err := r.Seek(int64(n), io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}

func read(r io.Reader, vs ...any) error {
	for _, v := range vs {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}
