package world

import (
	"context"
	"errors"
	"fmt"
	"os"

	getter "github.com/hashicorp/go-getter"
)

var ErrDestinationExists = errors.New("fetch destination already exists")

// Fetch downloads a world from src (anything go-getter understands: a
// local path, http archive, git, s3 ...) into dst and returns dst. dst
// must not exist yet.
func Fetch(ctx context.Context, src, dst string) (string, error) {
	if _, err := os.Lstat(dst); err == nil {
		return "", fmt.Errorf("%w: %s", ErrDestinationExists, dst)
	} else if !os.IsNotExist(err) {
		return "", err
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return "", fmt.Errorf("fetch world %s: %w", src, err)
	}
	return dst, nil
}
