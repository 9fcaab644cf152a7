package main

import (
	"context"
	"database/sql"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"voxelmap.ai/internal/report"
	"voxelmap.ai/internal/world/mapblock"
)

const testConfig = `
background_color: "000000"
node_colors:
  "default:stone": "808080"
hill_shading:
  enabled: false
`

func writeWorld(t *testing.T, blocks map[mapblock.Position][]byte) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "world.mt"), []byte("backend = sqlite3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "map.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE blocks (pos INT PRIMARY KEY, data BLOB)`); err != nil {
		t.Fatal(err)
	}
	for p, raw := range blocks {
		if _, err := db.Exec(`INSERT INTO blocks (pos, data) VALUES (?, ?)`, p.Key(), raw); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func stoneBlock(t *testing.T) []byte {
	t.Helper()
	b := mapblock.New()
	b.Fill("default:stone")
	raw, err := mapblock.Encode(b)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func testOptions(t *testing.T, worldDir string) options {
	t.Helper()
	out := t.TempDir()
	cfgPath := filepath.Join(out, "colors.yaml")
	if err := os.WriteFile(cfgPath, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return options{
		WorldDir:    worldDir,
		ConfigPath:  cfgPath,
		OutputPath:  filepath.Join(out, "map.png"),
		MetricsPath: filepath.Join(out, "voxelmap.prom"),
		JournalPath: filepath.Join(out, "render.jsonl.zst"),
	}
}

func TestRunWritesMap(t *testing.T) {
	dir := writeWorld(t, map[mapblock.Position][]byte{
		{X: 0, Y: 0, Z: 0}: stoneBlock(t),
		{X: 1, Y: 0, Z: 0}: []byte{0xff},
	})
	opts := testOptions(t, dir)

	if err := run(context.Background(), opts, log.New(io.Discard, "", 0)); err != nil {
		t.Fatalf("run: %v", err)
	}

	f, err := os.Open(opts.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 17 {
		t.Fatalf("unexpected size %v", b)
	}
	if r, g, b, a := img.At(3, 3).RGBA(); r>>8 != 0x80 || g>>8 != 0x80 || b>>8 != 0x80 || a>>8 != 0xff {
		t.Fatalf("stone pixel %d %d %d %d", r>>8, g>>8, b>>8, a>>8)
	}
	if r, _, _, _ := img.At(20, 3).RGBA(); r != 0 {
		t.Fatalf("broken block should show the background")
	}

	entries, err := report.Read(opts.JournalPath)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if len(entries) != 2 || entries[0].Kind != "block_error" || entries[1].Summary.Width != 32 {
		t.Fatalf("journal %+v", entries)
	}

	prom, err := os.ReadFile(opts.MetricsPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), "voxelmap_mapblocks_failed_total 1") {
		t.Fatalf("metrics:\n%s", prom)
	}
}

func TestRunEmptyWorldSkipsImage(t *testing.T) {
	opts := testOptions(t, writeWorld(t, nil))
	if err := run(context.Background(), opts, log.New(io.Discard, "", 0)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(opts.OutputPath); !os.IsNotExist(err) {
		t.Fatalf("expected no png, stat err %v", err)
	}
}

func TestRunMissingConfig(t *testing.T) {
	opts := testOptions(t, writeWorld(t, nil))
	opts.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	if err := run(context.Background(), opts, log.New(io.Discard, "", 0)); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("got %v", err)
	}
}

func TestBuildPublisher(t *testing.T) {
	for _, k := range []string{"VM_R2_ENDPOINT", "VM_R2_BUCKET", "VM_R2_ACCESS_KEY_ID", "VM_R2_SECRET_ACCESS_KEY", "VM_R2_PREFIX"} {
		t.Setenv(k, "")
	}
	p, err := buildPublisher(r2Flags{}, nil)
	if err != nil || p != nil {
		t.Fatalf("expected no publisher, got %v %v", p, err)
	}
	if _, err := buildPublisher(r2Flags{Endpoint: "r2.example.com"}, nil); err == nil {
		t.Fatalf("expected error for incomplete flags")
	}
	t.Setenv("VM_R2_SECRET_ACCESS_KEY", "s")
	p, err = buildPublisher(r2Flags{Endpoint: "r2.example.com", Bucket: "b", AccessKeyID: "a"}, nil)
	if err != nil || p == nil {
		t.Fatalf("expected publisher, got %v", err)
	}
}
