package storage

import (
	"context"
	"time"
)

// Run is the private artifact directory of one generation request.
type Run struct {
	ID  string
	Dir string
}

// Publisher copies a finished artifact somewhere reachable and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, runID, localPath string) (string, error)
}

// Cleaner removes artifacts older than a retention window and reports how
// many runs or objects were deleted.
type Cleaner interface {
	Clean(ctx context.Context, olderThan time.Duration) (int, error)
}
