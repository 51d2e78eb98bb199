// Package bgremove defines the background-removal contract used by the
// add-item flow.
package bgremove

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrRateLimited is returned when the service refuses further requests
	// for now.
	ErrRateLimited = errors.New("background removal rate limited")
	// ErrInvalidInput is returned when the service rejects the image itself.
	ErrInvalidInput = errors.New("background removal rejected image")
)

// Remover strips the background from a garment photo and returns the
// processed image bytes (PNG with transparency).
type Remover interface {
	RemoveBackground(ctx context.Context, r io.Reader, mimeType string) ([]byte, error)
}

// Passthrough returns the image unchanged. It stands in for a real remover
// when no service is configured.
type Passthrough struct{}

func (Passthrough) RemoveBackground(ctx context.Context, r io.Reader, mimeType string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}
