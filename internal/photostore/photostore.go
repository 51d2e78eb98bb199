// Package photostore persists processed garment images. The storage key a
// store returns is what a clothing record keeps as its ImageRef.
package photostore

import (
	"context"
	"fmt"
	"io"
)

type PhotoStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}

// OwnerPrefix is the key prefix for images uploaded by one user.
func OwnerPrefix(ownerID int64) string {
	return fmt.Sprintf("item_%d", ownerID)
}
