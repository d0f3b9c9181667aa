package storage

import "context"

// ExportStore persists analysis exports outside the service.
type ExportStore interface {
	UploadExport(ctx context.Context, runID int64, payload []byte) (string, error)
}
