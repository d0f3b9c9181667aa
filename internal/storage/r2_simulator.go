package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// R2Simulator stands in for object storage in environments without
// credentials. Uploads are dropped; the returned URL is deterministic.
type R2Simulator struct {
	bucket   string
	endpoint string
}

func NewR2Simulator(bucket, endpoint string) *R2Simulator {
	return &R2Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
	}
}

func (r *R2Simulator) UploadExport(_ context.Context, runID int64, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty export payload")
	}

	sum := sha256.Sum256(payload)
	key := hex.EncodeToString(sum[:8])

	ep := r.endpoint
	if ep == "" {
		ep = "https://r2.example.invalid"
	}
	bucket := r.bucket
	if bucket == "" {
		bucket = "community-atlas"
	}

	return fmt.Sprintf("%s/%s/exports/%d_%s.json", strings.TrimRight(ep, "/"), bucket, runID, key), nil
}
