// Package local keeps garment images on the local filesystem, one directory
// per key prefix.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vbonduro/wardrobe/internal/domain"
)

type LocalPhotoStore struct {
	root string
}

func NewLocalPhotoStore(basePath string) (*LocalPhotoStore, error) {
	root, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid photo directory: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &LocalPhotoStore{root: root}, nil
}

// Save writes r under prefix and returns "<prefix>/<uuid><ext>" as the
// storage key. The file only appears once fully written.
func (s *LocalPhotoStore) Save(ctx context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prefix == "" || strings.ContainsAny(prefix, `/\`) {
		return "", domain.Invalid("invalid photo prefix")
	}

	key := path.Join(prefix, uuid.NewString()+extFor(mimeType))
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create photo directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	_, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store photo: %w", err)
	}
	return key, nil
}

func (s *LocalPhotoStore) Get(_ context.Context, storageKey string) (io.ReadCloser, string, error) {
	p, err := s.resolve(storageKey)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("photo %s: %w", storageKey, domain.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open photo: %w", err)
	}
	return f, mimeFor(p), nil
}

func (s *LocalPhotoStore) Delete(_ context.Context, storageKey string) error {
	p, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("photo %s: %w", storageKey, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// resolve maps a storage key to a path inside root. Keys that would escape
// root are a validation error.
func (s *LocalPhotoStore) resolve(storageKey string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(storageKey))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.Invalid("photo key outside the store")
	}
	return p, nil
}

var extByMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/png":  ".png",
}

// Background-removed images are PNG unless the remover says otherwise.
func extFor(mimeType string) string {
	if ext, ok := extByMIME[mimeType]; ok {
		return ext
	}
	return ".png"
}

func mimeFor(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
