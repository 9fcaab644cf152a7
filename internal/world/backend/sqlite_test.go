package backend

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"voxelmap.ai/internal/world/mapblock"
)

func writeMapDB(t *testing.T, split bool, blocks map[mapblock.Position][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "map.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	schema := `CREATE TABLE blocks (pos INT PRIMARY KEY, data BLOB)`
	if split {
		schema = `CREATE TABLE blocks (x INTEGER, y INTEGER, z INTEGER, data BLOB NOT NULL, PRIMARY KEY (x, z, y))`
	}
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	for p, data := range blocks {
		if split {
			_, err = db.Exec(`INSERT INTO blocks (x, y, z, data) VALUES (?, ?, ?, ?)`, p.X, p.Y, p.Z, data)
		} else {
			_, err = db.Exec(`INSERT INTO blocks (pos, data) VALUES (?, ?)`, p.Key(), data)
		}
		if err != nil {
			t.Fatalf("insert %v: %v", p, err)
		}
	}
	return path
}

func collect(t *testing.T, b Backend) []mapblock.Position {
	t.Helper()
	var out []mapblock.Position
	for p, err := range b.Positions(context.Background()) {
		if err != nil {
			t.Fatalf("Positions: %v", err)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func TestSQLiteBothSchemas(t *testing.T) {
	blocks := map[mapblock.Position][]byte{
		{X: 0, Y: 0, Z: 0}:     []byte("a"),
		{X: -3, Y: 2, Z: 7}:    []byte("b"),
		{X: 5, Y: -10, Z: -20}: []byte("c"),
	}
	for _, split := range []bool{false, true} {
		s, err := OpenSQLite(writeMapDB(t, split, blocks))
		if err != nil {
			t.Fatalf("split=%v OpenSQLite: %v", split, err)
		}
		got := collect(t, s)
		if len(got) != len(blocks) {
			t.Fatalf("split=%v positions: %v", split, got)
		}
		for _, p := range got {
			data, err := s.Block(context.Background(), p)
			if err != nil {
				t.Fatalf("split=%v Block(%v): %v", split, p, err)
			}
			if string(data) != string(blocks[p]) {
				t.Fatalf("split=%v Block(%v)=%q", split, p, data)
			}
		}
		_, err = s.Block(context.Background(), mapblock.Position{X: 99, Y: 99, Z: 99})
		if !errors.Is(err, ErrBlockNotFound) {
			t.Fatalf("split=%v missing block: %v", split, err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
}

func TestSQLiteRejectsForeignDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE players (name TEXT)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := OpenSQLite(path); err == nil {
		t.Fatalf("expected error for database without blocks table")
	}
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "missing.sqlite")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSQLiteBlockDuringPositions(t *testing.T) {
	blocks := map[mapblock.Position][]byte{
		{X: 1, Y: 2, Z: 3}: []byte("a"),
		{X: 4, Y: 5, Z: 6}: []byte("b"),
	}
	s, err := OpenSQLite(writeMapDB(t, false, blocks))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	if got := s.db.Stats().MaxOpenConnections; got < 2 {
		t.Fatalf("pool allows %d connections", got)
	}
	// One connection for the open rows, one for the lookup.
	s.db.SetMaxOpenConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n := 0
	for p, err := range s.Positions(ctx) {
		if err != nil {
			t.Fatalf("Positions: %v", err)
		}
		data, err := s.Block(ctx, p)
		if err != nil {
			t.Fatalf("Block(%v) while iterating: %v", p, err)
		}
		if string(data) != string(blocks[p]) {
			t.Fatalf("Block(%v)=%q", p, data)
		}
		n++
	}
	if n != len(blocks) {
		t.Fatalf("visited %d blocks", n)
	}
}

func TestSQLiteBusyTimeoutOnEveryConnection(t *testing.T) {
	s, err := OpenSQLite(writeMapDB(t, false, nil))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	var conns []*sql.Conn
	for i := 0; i < 3; i++ {
		c, err := s.db.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn: %v", err)
		}
		conns = append(conns, c)
	}
	for i, c := range conns {
		var ms int
		if err := c.QueryRowContext(ctx, `PRAGMA busy_timeout`).Scan(&ms); err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		if ms != 5000 {
			t.Fatalf("conn %d busy_timeout=%d", i, ms)
		}
		_ = c.Close()
	}
}
