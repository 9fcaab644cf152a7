package mapblock

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Encode serializes b in the current (v29) format with empty metadata,
// static objects and node timers.
func Encode(b *MapBlock) ([]byte, error) {
	var body bytes.Buffer
	w := func(v any) { _ = binary.Write(&body, binary.BigEndian, v) }

	w(b.Flags)
	w(b.LightingComplete)
	w(b.Timestamp)

	ids := make([]int, 0, len(b.NameIDMappings))
	for id := range b.NameIDMappings {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	w(uint8(0))
	w(uint16(len(ids)))
	for _, id := range ids {
		name := b.NameIDMappings[uint16(id)]
		w(uint16(id))
		w(uint16(len(name)))
		body.WriteString(name)
	}

	w(uint8(2)) // content width
	w(uint8(2)) // params width
	w(&b.Param0)
	w(&b.Param1)
	w(&b.Param2)

	w(uint8(0))  // metadata version: none
	w(uint8(0))  // static objects version
	w(uint16(0)) // static object count
	w(uint8(10)) // node timer record length
	w(uint16(0)) // node timer count

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	out := []byte{29}
	return enc.EncodeAll(body.Bytes(), out), nil
}

// New returns a v29 block full of air.
func New() *MapBlock {
	b := &MapBlock{Version: MaxVersion}
	b.Fill(AirName)
	return b
}

// Fill sets every node of the block to one content name, replacing the
// name-id mapping.
func (b *MapBlock) Fill(name string) {
	b.NameIDMappings = map[uint16]string{0: name}
	for i := range b.Param0 {
		b.Param0[i] = 0
	}
}

// SetNode places name at block-local (x,y,z), extending the name-id
// mapping when needed.
func (b *MapBlock) SetNode(x, y, z int, name string) {
	if b.NameIDMappings == nil {
		b.NameIDMappings = map[uint16]string{}
	}
	id, found := uint16(0), false
	for k, v := range b.NameIDMappings {
		if v == name {
			id, found = k, true
			break
		}
	}
	if !found {
		for {
			if _, used := b.NameIDMappings[id]; !used {
				break
			}
			id++
		}
		b.NameIDMappings[id] = name
	}
	b.Param0[nodeIndex(x, y, z)] = id
}
