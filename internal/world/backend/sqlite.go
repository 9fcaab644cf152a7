package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"os"
	"runtime"

	_ "modernc.org/sqlite"

	"voxelmap.ai/internal/world/mapblock"
)

// SQLite reads map.sqlite. Both the legacy single integer key schema
// (blocks(pos, data)) and the split schema (blocks(x, y, z, data)) are
// supported.
const minPoolConns = 4

type SQLite struct {
	db    *sql.DB
	split bool
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	dsn := (&url.URL{Scheme: "file", Opaque: path, RawQuery: "mode=ro&_pragma=busy_timeout(5000)"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A Positions iteration holds one connection while callers fetch blocks.
	conns := max(minPoolConns, runtime.GOMAXPROCS(0))
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(0)

	split, err := detectSplitSchema(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, split: split}, nil
}

func detectSplitSchema(db *sql.DB) (bool, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info('blocks')`)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	switch {
	case cols["x"] && cols["y"] && cols["z"] && cols["data"]:
		return true, nil
	case cols["pos"] && cols["data"]:
		return false, nil
	case len(cols) == 0:
		return false, fmt.Errorf("map database has no blocks table")
	default:
		return false, fmt.Errorf("unrecognized blocks table layout")
	}
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Positions(ctx context.Context) iter.Seq2[mapblock.Position, error] {
	return func(yield func(mapblock.Position, error) bool) {
		q := `SELECT pos FROM blocks`
		if s.split {
			q = `SELECT x, y, z FROM blocks`
		}
		rows, err := s.db.QueryContext(ctx, q)
		if err != nil {
			yield(mapblock.Position{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var p mapblock.Position
			if s.split {
				err = rows.Scan(&p.X, &p.Y, &p.Z)
			} else {
				var key int64
				err = rows.Scan(&key)
				p = mapblock.PositionFromKey(key)
			}
			if err != nil {
				yield(mapblock.Position{}, fmt.Errorf("scan block position: %w", err))
				return
			}
			if !yield(p, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(mapblock.Position{}, err)
		}
	}
}

func (s *SQLite) Block(ctx context.Context, pos mapblock.Position) ([]byte, error) {
	var row *sql.Row
	if s.split {
		row = s.db.QueryRowContext(ctx, `SELECT data FROM blocks WHERE x=? AND y=? AND z=?`, pos.X, pos.Y, pos.Z)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT data FROM blocks WHERE pos=?`, pos.Key())
	}
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w at %v", ErrBlockNotFound, pos)
		}
		return nil, err
	}
	return data, nil
}
