// Command mapper renders a top-down PNG map of a Minetest world.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"voxelmap.ai/internal/config"
	"voxelmap.ai/internal/metrics"
	"voxelmap.ai/internal/render"
	"voxelmap.ai/internal/report"
	"voxelmap.ai/internal/world"
)

type options struct {
	WorldDir    string
	WorldURL    string
	ConfigPath  string
	OutputPath  string
	MetricsPath string
	JournalPath string
	R2          r2Flags
}

func main() {
	var opts options
	flag.StringVar(&opts.WorldDir, "world", ".", "world directory (contains world.mt and map.sqlite)")
	flag.StringVar(&opts.WorldURL, "world_url", "", "download the world from this go-getter source first (into -world if set, which must not exist)")
	flag.StringVar(&opts.ConfigPath, "config", "colors.yaml", "render config (.yaml or .toml)")
	flag.StringVar(&opts.OutputPath, "output", "map.png", "output PNG path")
	flag.StringVar(&opts.MetricsPath, "metrics", "", "write Prometheus textfile metrics here (optional)")
	flag.StringVar(&opts.JournalPath, "journal", "", "write a JSONL.zst journal of failed map blocks here (optional)")
	flag.StringVar(&opts.R2.Endpoint, "r2_endpoint", "", "S3-compatible endpoint to upload results to (or VM_R2_ENDPOINT)")
	flag.StringVar(&opts.R2.Bucket, "r2_bucket", "", "upload bucket (or VM_R2_BUCKET)")
	flag.StringVar(&opts.R2.AccessKeyID, "r2_access_key_id", "", "upload access key id (or VM_R2_ACCESS_KEY_ID)")
	flag.StringVar(&opts.R2.SecretAccessKey, "r2_secret_access_key", "", "upload secret (or VM_R2_SECRET_ACCESS_KEY)")
	flag.StringVar(&opts.R2.Prefix, "r2_prefix", "", "object key prefix (or VM_R2_PREFIX)")
	flag.Parse()

	logger := log.New(os.Stdout, "[mapper] ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(ctx context.Context, opts options, logger *log.Logger) error {
	started := time.Now()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	publisher, err := buildPublisher(opts.R2, logger)
	if err != nil {
		return fmt.Errorf("init upload: %w", err)
	}

	if u := strings.TrimSpace(opts.WorldURL); u != "" {
		dst := opts.WorldDir
		if dst == "" || dst == "." {
			tmp, err := os.MkdirTemp("", "voxelmap-world-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmp)
			dst = filepath.Join(tmp, "world")
		}
		logger.Printf("fetching world from %s into %s", u, dst)
		if opts.WorldDir, err = world.Fetch(ctx, u, dst); err != nil {
			return err
		}
	}

	w, err := world.New(opts.WorldDir)
	if err != nil {
		return fmt.Errorf("open world: %w", err)
	}
	data, err := w.OpenMapData(ctx)
	if err != nil {
		return err
	}
	defer data.Close()

	var m *metrics.Render
	if opts.MetricsPath != "" {
		m = metrics.NewRender()
	}
	var journal *report.Journal
	if opts.JournalPath != "" {
		journal, err = report.Create(opts.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
	}

	t, err := render.ComputeTerrain(ctx, data, &cfg, render.Options{
		Logger:  logger,
		Metrics: m,
		Journal: journal,
	})
	if err != nil {
		_ = journal.Finish(report.Summary{World: opts.WorldDir})
		return err
	}

	start := time.Now()
	img, err := render.Render(t, &cfg)
	if err != nil {
		_ = journal.Finish(report.Summary{World: opts.WorldDir})
		return err
	}
	m.Phase("render", time.Since(start))

	var written []string
	if img.Rect.Empty() {
		logger.Printf("world has no map blocks, skipping %s", opts.OutputPath)
	} else {
		start = time.Now()
		if err := writePNG(opts.OutputPath, img); err != nil {
			_ = journal.Finish(report.Summary{World: opts.WorldDir})
			return err
		}
		m.Phase("encode", time.Since(start))
		written = append(written, opts.OutputPath)
	}

	if err := journal.Finish(report.Summary{
		World:      opts.WorldDir,
		Width:      t.Width(),
		Height:     t.Height(),
		DurationMs: time.Since(started).Milliseconds(),
	}); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	if journal != nil {
		written = append(written, opts.JournalPath)
	}
	if opts.MetricsPath != "" {
		if err := m.WriteTextfile(opts.MetricsPath); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		written = append(written, opts.MetricsPath)
	}

	for _, p := range written {
		if st, err := os.Stat(p); err == nil {
			logger.Printf("wrote %s (%s)", p, humanize.Bytes(uint64(st.Size())))
		}
	}

	if publisher != nil && len(written) > 0 {
		if err := publisher.Publish(ctx, written...); err != nil {
			return err
		}
	}
	logger.Printf("done in %s", time.Since(started).Round(time.Millisecond))
	return nil
}

func writePNG(path string, img image.Image) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
