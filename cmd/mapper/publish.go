package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"voxelmap.ai/internal/publish/r2s3"
)

type r2Flags struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// withEnv fills unset fields from VM_R2_* variables.
func (f r2Flags) withEnv() r2Flags {
	f.Endpoint = firstNonEmpty(f.Endpoint, os.Getenv("VM_R2_ENDPOINT"))
	f.Bucket = firstNonEmpty(f.Bucket, os.Getenv("VM_R2_BUCKET"))
	f.AccessKeyID = firstNonEmpty(f.AccessKeyID, os.Getenv("VM_R2_ACCESS_KEY_ID"))
	f.SecretAccessKey = firstNonEmpty(f.SecretAccessKey, os.Getenv("VM_R2_SECRET_ACCESS_KEY"))
	f.Prefix = firstNonEmpty(f.Prefix, os.Getenv("VM_R2_PREFIX"))
	return f
}

// buildPublisher returns nil when no upload target is configured.
func buildPublisher(f r2Flags, logger *log.Logger) (*r2s3.Publisher, error) {
	f = f.withEnv()
	if f.Endpoint == "" && f.Bucket == "" {
		return nil, nil
	}
	if f.Endpoint == "" || f.Bucket == "" || f.AccessKeyID == "" || f.SecretAccessKey == "" {
		return nil, fmt.Errorf("upload needs endpoint, bucket, access key id and secret access key")
	}
	client, err := r2s3.New(r2s3.Options{
		Endpoint:        f.Endpoint,
		Bucket:          f.Bucket,
		AccessKeyID:     f.AccessKeyID,
		SecretAccessKey: f.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return r2s3.NewPublisher(client, f.Prefix, logger), nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
