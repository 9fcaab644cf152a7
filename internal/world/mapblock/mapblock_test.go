package mapblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/klauspost/compress/zlib"
)

func sampleBlock() *MapBlock {
	b := New()
	b.Flags = 0x02
	b.LightingComplete = 0xffff
	b.Timestamp = 1234
	b.SetNode(0, 15, 0, "default:stone")
	b.SetNode(3, 4, 5, "default:water_source")
	b.Param2[nodeIndex(3, 4, 5)] = 7
	return b
}

// encodeLegacy writes the v25-28 layout with separate zlib streams.
func encodeLegacy(t *testing.T, version uint8, b *MapBlock) []byte {
	t.Helper()
	var out bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&out, binary.BigEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	zw := func(raw []byte) {
		z := zlib.NewWriter(&out)
		if _, err := z.Write(raw); err != nil {
			t.Fatal(err)
		}
		if err := z.Close(); err != nil {
			t.Fatal(err)
		}
	}

	w(version)
	w(b.Flags)
	if version >= 27 {
		w(b.LightingComplete)
	}
	w(uint8(2))
	w(uint8(2))

	var nodes bytes.Buffer
	_ = binary.Write(&nodes, binary.BigEndian, &b.Param0)
	_ = binary.Write(&nodes, binary.BigEndian, &b.Param1)
	_ = binary.Write(&nodes, binary.BigEndian, &b.Param2)
	zw(nodes.Bytes())
	zw([]byte{0}) // no metadata

	// one static object with a 3 byte payload
	w(uint8(0))
	w(uint16(1))
	w(uint8(7))
	w([3]int32{1000, 2000, 3000})
	w(uint16(3))
	out.Write([]byte{1, 2, 3})

	w(b.Timestamp)
	w(uint8(0))
	w(uint16(len(b.NameIDMappings)))
	for id := uint16(0); int(id) < len(b.NameIDMappings); id++ {
		name := b.NameIDMappings[id]
		w(id)
		w(uint16(len(name)))
		out.WriteString(name)
	}
	return out.Bytes()
}

func checkSample(t *testing.T, got *MapBlock) {
	t.Helper()
	if name, ok := got.NodeName(0, 15, 0); !ok || name != "default:stone" {
		t.Fatalf("node (0,15,0) = %q ok=%v", name, ok)
	}
	if name, _ := got.NodeName(3, 4, 5); name != "default:water_source" {
		t.Fatalf("node (3,4,5) = %q", name)
	}
	if name, _ := got.NodeName(15, 15, 15); name != AirName {
		t.Fatalf("node (15,15,15) = %q", name)
	}
	if got.Param2[nodeIndex(3, 4, 5)] != 7 {
		t.Fatalf("param2 lost")
	}
	if got.Timestamp != 1234 || got.Flags != 0x02 {
		t.Fatalf("header: flags=%d ts=%d", got.Flags, got.Timestamp)
	}
	if got.AirOnly() {
		t.Fatalf("block with stone reported air-only")
	}
}

func TestDecodeV29(t *testing.T) {
	raw, err := Encode(sampleBlock())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Version != 29 || got.LightingComplete != 0xffff {
		t.Fatalf("header: %+v", got.Version)
	}
	checkSample(t, got)
}

func TestDecodeLegacyVersions(t *testing.T) {
	for _, v := range []uint8{25, 26, 27, 28} {
		got, err := Decode(encodeLegacy(t, v, sampleBlock()))
		if err != nil {
			t.Fatalf("v%d: %v", v, err)
		}
		checkSample(t, got)
	}
}

func TestDecodeRejectsUnknownVersions(t *testing.T) {
	for _, v := range []byte{0, 24, 30, 255} {
		_, err := Decode([]byte{v, 0, 0})
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("v%d: got %v", v, err)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	raw := encodeLegacy(t, 28, sampleBlock())
	if _, err := Decode(raw[:len(raw)-4]); err == nil {
		t.Fatalf("expected error for truncated block")
	}
	if _, err := Decode(nil); !errors.Is(err, ErrTruncated) {
		t.Fatalf("empty input: %v", err)
	}
}

func TestAirOnly(t *testing.T) {
	b := New()
	if !b.AirOnly() {
		t.Fatalf("fresh block should be air-only")
	}
	b.Fill("default:stone")
	if b.AirOnly() {
		t.Fatalf("stone block reported air-only")
	}
	b.NameIDMappings = map[uint16]string{0: AirName, 1: "ignore"}
	if b.AirOnly() {
		t.Fatalf("two-entry palette reported air-only")
	}
}
