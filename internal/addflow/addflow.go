// Package addflow runs the add-item pipeline: background removal and an
// optional category suggestion in parallel, then normalization and storage
// of the processed image. A flow can be abandoned at any point; results that
// arrive afterwards are discarded and their stored image deleted.
package addflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/wardrobe/internal/bgremove"
	"github.com/vbonduro/wardrobe/internal/domain"
	"github.com/vbonduro/wardrobe/internal/imaging"
	"github.com/vbonduro/wardrobe/internal/photostore"
	"github.com/vbonduro/wardrobe/internal/vision"
)

// ErrAbandoned is returned by a flow that was abandoned before completion.
var ErrAbandoned = errors.New("add-item flow abandoned")

// SupportedMIME lists the upload types the pipeline accepts.
var SupportedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Result is the processed image waiting to be catalogued.
type Result struct {
	ImageRef   string             `json:"imageRef"`
	MIME       string             `json:"mime"`
	Suggestion *vision.Suggestion `json:"suggestion,omitempty"`
}

type Pipeline struct {
	remover    bgremove.Remover
	classifier vision.Classifier
	photos     photostore.PhotoStore
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline builds a pipeline. classifier may be nil.
func NewPipeline(remover bgremove.Remover, classifier vision.Classifier, photos photostore.PhotoStore, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		remover:    remover,
		classifier: classifier,
		photos:     photos,
		logger:     logger,
		now:        time.Now,
	}
}

// Start validates the upload and begins processing in the background. The
// flow keeps running after ctx's request ends; only Abandon stops it.
func (p *Pipeline) Start(ctx context.Context, prefix string, image []byte, mimeType string) (*Flow, error) {
	if len(image) == 0 {
		return nil, domain.Invalid("image is required")
	}
	if !SupportedMIME[mimeType] {
		return nil, domain.Invalid(fmt.Sprintf("unsupported image type %q", mimeType))
	}

	flowCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &Flow{
		ID:        uuid.NewString(),
		CreatedAt: p.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		photos:    p.photos,
	}
	f.logger = p.logger.With("flow_id", f.ID)

	f.logger.Info("add-item flow started", "mime", mimeType, "bytes", len(image))
	go f.run(flowCtx, p, prefix, image, mimeType)
	return f, nil
}

// Run starts a flow and waits for its processed result.
func (p *Pipeline) Run(ctx context.Context, prefix string, image []byte, mimeType string) (*Flow, *Result, error) {
	f, err := p.Start(ctx, prefix, image, mimeType)
	if err != nil {
		return nil, nil, err
	}
	res, err := f.Wait(ctx)
	if err != nil {
		f.Abandon()
		return nil, nil, err
	}
	return f, res, nil
}

// Flow is one in-progress add-item operation.
type Flow struct {
	ID        string
	CreatedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	photos photostore.PhotoStore
	logger *slog.Logger

	mu        sync.Mutex
	result    *Result
	err       error
	abandoned bool
	completed bool
	// committing is set while Complete's commit runs without mu held. An
	// Abandon arriving then is recorded in abandonAfter and applied only if
	// the commit fails.
	committing   bool
	abandonAfter bool
}

func (f *Flow) run(ctx context.Context, p *Pipeline, prefix string, image []byte, mimeType string) {
	defer close(f.done)
	defer f.cancel()

	res, err := process(ctx, p, prefix, image, mimeType)

	f.mu.Lock()
	abandoned := f.abandoned
	if abandoned {
		f.err = ErrAbandoned
	} else {
		f.result, f.err = res, err
	}
	f.mu.Unlock()

	switch {
	case abandoned && res != nil:
		f.logger.Info("discarding late result of abandoned flow")
		f.deleteImage(res.ImageRef)
	case err != nil:
		f.logger.Error("add-item flow failed", "error", err)
	default:
		f.logger.Info("add-item flow ready", "image_ref", res.ImageRef)
	}
}

func process(ctx context.Context, p *Pipeline, prefix string, image []byte, mimeType string) (*Result, error) {
	var processed []byte
	var suggestion *vision.Suggestion

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := p.remover.RemoveBackground(gctx, bytes.NewReader(image), mimeType)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return domain.External("remove background", err)
		}
		processed = out
		return nil
	})
	if p.classifier != nil {
		g.Go(func() error {
			s, err := p.classifier.Suggest(gctx, bytes.NewReader(image), mimeType)
			if err != nil {
				// A missing suggestion only means the user picks the category.
				p.logger.Warn("category suggestion failed", "error", err)
				return nil
			}
			suggestion = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized, err := imaging.Normalize(bytes.NewReader(processed))
	if err != nil {
		return nil, fmt.Errorf("failed to normalize image: %w", err)
	}

	key, err := p.photos.Save(ctx, prefix, normalized.MIME, bytes.NewReader(normalized.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	return &Result{ImageRef: key, MIME: normalized.MIME, Suggestion: suggestion}, nil
}

// Wait blocks until the processed result is available.
func (f *Flow) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.abandoned {
		return nil, ErrAbandoned
	}
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

// Complete waits for the result and hands it to commit. A successful commit
// finishes the flow; a failed one leaves it open so the caller can retry or
// abandon it. commit runs without the flow's lock, so Finished and Abandon
// never wait on it.
func (f *Flow) Complete(ctx context.Context, commit func(Result) error) error {
	res, err := f.Wait(ctx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	switch {
	case f.abandoned:
		f.mu.Unlock()
		return ErrAbandoned
	case f.completed:
		f.mu.Unlock()
		return domain.Invalid("flow already completed")
	case f.committing:
		f.mu.Unlock()
		return domain.Invalid("flow is already being completed")
	}
	f.committing = true
	f.mu.Unlock()

	err = commit(*res)

	f.mu.Lock()
	f.committing = false
	if err == nil {
		f.completed = true
	}
	abandon := err != nil && f.abandonAfter
	f.abandonAfter = false
	f.mu.Unlock()

	if err != nil {
		if abandon {
			f.Abandon()
		}
		return err
	}
	f.logger.Info("add-item flow completed", "image_ref", res.ImageRef)
	return nil
}

// Abandon cancels the flow. A stored image that was never committed is
// deleted. Abandoning a completed flow does nothing. While a commit is in
// flight the abandon waits for its outcome.
func (f *Flow) Abandon() {
	f.mu.Lock()
	if f.completed || f.abandoned {
		f.mu.Unlock()
		return
	}
	if f.committing {
		f.abandonAfter = true
		f.mu.Unlock()
		return
	}
	f.abandoned = true
	res := f.result
	f.result = nil
	f.mu.Unlock()

	f.cancel()
	f.logger.Info("add-item flow abandoned")
	if res != nil {
		f.deleteImage(res.ImageRef)
	}
}

// Finished reports whether the flow was completed or abandoned.
func (f *Flow) Finished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed || f.abandoned
}

func (f *Flow) deleteImage(key string) {
	if err := f.photos.Delete(context.Background(), key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		f.logger.Error("failed to delete abandoned image", "image_ref", key, "error", err)
	}
}
