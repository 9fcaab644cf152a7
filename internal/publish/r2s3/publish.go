package r2s3

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Publisher uploads the files of one render run under a common prefix.
type Publisher struct {
	client *Client
	prefix string
	logger *log.Logger
}

func NewPublisher(client *Client, prefix string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{
		client: client,
		prefix: cleanKey(prefix),
		logger: logger,
	}
}

// ObjectKey maps a local file to its key in the bucket.
func (p *Publisher) ObjectKey(localPath string) string {
	name := filepath.Base(localPath)
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads every non-empty path concurrently. Empty paths are
// skipped so optional artifacts can be passed through unconditionally.
func (p *Publisher) Publish(ctx context.Context, paths ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, localPath := range paths {
		if localPath == "" {
			continue
		}
		g.Go(func() error {
			st, err := os.Stat(localPath)
			if err != nil {
				return err
			}
			key := p.ObjectKey(localPath)
			if err := p.client.PutFile(ctx, key, localPath, contentType(localPath)); err != nil {
				return fmt.Errorf("upload %s: %w", localPath, err)
			}
			p.logger.Printf("uploaded %s (%s) to %s", localPath, humanize.Bytes(uint64(st.Size())), key)
			return nil
		})
	}
	return g.Wait()
}

// cleanKey turns a user supplied key or prefix into a relative slash path
// that cannot climb above the bucket root.
func cleanKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

func contentType(localPath string) string {
	switch {
	case strings.HasSuffix(localPath, ".zst"):
		return "application/zstd"
	case strings.HasSuffix(localPath, ".prom"):
		return "text/plain; version=0.0.4"
	}
	if t := mime.TypeByExtension(filepath.Ext(localPath)); t != "" {
		return t
	}
	return "application/octet-stream"
}
