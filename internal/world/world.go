// Package world opens a world directory and serves decoded map blocks.
package world

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"os"
	"path/filepath"
	"strings"

	"voxelmap.ai/internal/world/backend"
	"voxelmap.ai/internal/world/mapblock"
)

var ErrUnsupportedBackend = errors.New("unsupported map backend")

// Meta is the parsed world.mt file.
type Meta map[string]string

func (m Meta) Get(key, def string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return def
}

// ParseMeta reads "key = value" lines. Blank lines and lines starting
// with '#' are ignored.
func ParseMeta(r io.Reader) (Meta, error) {
	m := Meta{}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("world.mt line %d: missing '='", n)
		}
		m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return m, sc.Err()
}

func ReadMeta(dir string) (Meta, error) {
	f, err := os.Open(filepath.Join(dir, "world.mt"))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return ParseMeta(f)
}

// World is an opened world directory.
type World struct {
	Dir  string
	Meta Meta
}

func New(dir string) (*World, error) {
	meta, err := ReadMeta(dir)
	if err != nil {
		return nil, err
	}
	return &World{Dir: dir, Meta: meta}, nil
}

// OpenMapData connects to the backend named in world.mt (sqlite3 when
// unset).
func (w *World) OpenMapData(ctx context.Context) (*MapData, error) {
	var (
		b   backend.Backend
		err error
	)
	switch kind := w.Meta.Get("backend", "sqlite3"); kind {
	case "sqlite3":
		b, err = backend.OpenSQLite(filepath.Join(w.Dir, "map.sqlite"))
	case "redis":
		b, err = backend.OpenRedis(ctx, backend.RedisOptions{
			Addr: net.JoinHostPort(w.Meta.Get("redis_address", "127.0.0.1"), w.Meta.Get("redis_port", "6379")),
			Hash: w.Meta.Get("redis_hash", ""),
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("open map backend: %w", err)
	}
	return NewMapData(b), nil
}

// MapData decodes blocks from a backend.
type MapData struct {
	b backend.Backend
}

func NewMapData(b backend.Backend) *MapData { return &MapData{b: b} }

func (m *MapData) Positions(ctx context.Context) iter.Seq2[mapblock.Position, error] {
	return m.b.Positions(ctx)
}

func (m *MapData) MapBlock(ctx context.Context, pos mapblock.Position) (*mapblock.MapBlock, error) {
	raw, err := m.b.Block(ctx, pos)
	if err != nil {
		return nil, err
	}
	return mapblock.Decode(raw)
}

func (m *MapData) Close() error { return m.b.Close() }
