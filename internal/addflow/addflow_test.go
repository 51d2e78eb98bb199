package addflow

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vbonduro/wardrobe/internal/domain"
	"github.com/vbonduro/wardrobe/internal/vision"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.NRGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// stubRemover returns out, optionally blocking until release is closed.
type stubRemover struct {
	out     []byte
	err     error
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (s *stubRemover) RemoveBackground(ctx context.Context, r io.Reader, mimeType string) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

func (s *stubRemover) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubClassifier struct {
	suggestion *vision.Suggestion
	err        error
}

func (s *stubClassifier) Suggest(ctx context.Context, r io.Reader, mimeType string) (*vision.Suggestion, error) {
	return s.suggestion, s.err
}

// memPhotos is an in-memory photostore.PhotoStore.
type memPhotos struct {
	mu      sync.Mutex
	files   map[string][]byte
	seq     int
	saveErr error
}

func newMemPhotos() *memPhotos {
	return &memPhotos{files: make(map[string][]byte)}
}

func (m *memPhotos) Save(ctx context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	key := prefix + "_" + string(rune('a'+m.seq)) + ".png"
	m.files[key] = data
	return key, nil
}

func (m *memPhotos) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "image/png", nil
}

func (m *memPhotos) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.files, key)
	return nil
}

func (m *memPhotos) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitDone(t *testing.T, f *Flow) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
		t.Fatal("flow did not finish")
	}
}

func TestStartValidation(t *testing.T) {
	remover := &stubRemover{out: testPNG(t)}
	p := NewPipeline(remover, nil, newMemPhotos(), testLogger())
	ctx := context.Background()

	_, err := p.Start(ctx, "item_1", nil, "image/png")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = p.Start(ctx, "item_1", []byte("data"), "application/pdf")
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Zero(t, remover.Calls(), "no external call on invalid input")
}

func TestFlowCompletes(t *testing.T) {
	photos := newMemPhotos()
	classifier := &stubClassifier{suggestion: &vision.Suggestion{Category: domain.Shirt, Name: "tee"}}
	p := NewPipeline(&stubRemover{out: testPNG(t)}, classifier, photos, testLogger())
	ctx := context.Background()

	f, err := p.Start(ctx, "item_1", []byte("raw-jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)

	res, err := f.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MIME)
	require.NotNil(t, res.Suggestion)
	assert.Equal(t, domain.Shirt, res.Suggestion.Category)
	assert.Equal(t, 1, photos.Len())

	var committed []Result
	commit := func(r Result) error {
		committed = append(committed, r)
		return nil
	}
	require.NoError(t, f.Complete(ctx, commit))
	require.Len(t, committed, 1)
	assert.Equal(t, res.ImageRef, committed[0].ImageRef)

	err = f.Complete(ctx, commit)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, committed, 1, "commit runs exactly once")

	f.Abandon()
	assert.Equal(t, 1, photos.Len(), "abandoning a completed flow keeps its image")
	assert.True(t, f.Finished())
}

func TestFlowFailedCommitCanRetry(t *testing.T) {
	p := NewPipeline(&stubRemover{out: testPNG(t)}, nil, newMemPhotos(), testLogger())
	ctx := context.Background()

	f, err := p.Start(ctx, "item_1", []byte("raw"), "image/png")
	require.NoError(t, err)

	boom := errors.New("remote down")
	assert.ErrorIs(t, f.Complete(ctx, func(Result) error { return boom }), boom)
	assert.False(t, f.Finished())

	assert.NoError(t, f.Complete(ctx, func(Result) error { return nil }))
}

func TestSuggestionFailureIsNotFatal(t *testing.T) {
	p := NewPipeline(&stubRemover{out: testPNG(t)}, &stubClassifier{err: errors.New("model offline")}, newMemPhotos(), testLogger())

	f, err := p.Start(context.Background(), "item_1", []byte("raw"), "image/png")
	require.NoError(t, err)

	res, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Suggestion)
}

func TestRemovalFailure(t *testing.T) {
	photos := newMemPhotos()
	p := NewPipeline(&stubRemover{err: errors.New("429")}, nil, photos, testLogger())

	f, err := p.Start(context.Background(), "item_1", []byte("raw"), "image/png")
	require.NoError(t, err)

	_, err = f.Wait(context.Background())
	assert.ErrorIs(t, err, domain.ErrExternal)
	assert.Zero(t, photos.Len())

	err = f.Complete(context.Background(), func(Result) error {
		t.Fatal("commit must not run")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrExternal)
}

func TestAbandonBeforeResult(t *testing.T) {
	photos := newMemPhotos()
	remover := &stubRemover{out: testPNG(t), release: make(chan struct{})}
	p := NewPipeline(remover, nil, photos, testLogger())

	f, err := p.Start(context.Background(), "item_1", []byte("raw"), "image/png")
	require.NoError(t, err)

	f.Abandon()
	waitDone(t, f)

	_, err = f.Wait(context.Background())
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.ErrorIs(t, f.Complete(context.Background(), func(Result) error { return nil }), ErrAbandoned)
	assert.Zero(t, photos.Len())
	close(remover.release)
}

func TestAbandonAfterResultDeletesImage(t *testing.T) {
	photos := newMemPhotos()
	p := NewPipeline(&stubRemover{out: testPNG(t)}, nil, photos, testLogger())

	f, err := p.Start(context.Background(), "item_1", []byte("raw"), "image/png")
	require.NoError(t, err)
	_, err = f.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, photos.Len())

	f.Abandon()
	assert.Zero(t, photos.Len())
	assert.ErrorIs(t, f.Complete(context.Background(), func(Result) error { return nil }), ErrAbandoned)
}

func TestWaitRespectsContext(t *testing.T) {
	remover := &stubRemover{out: testPNG(t), release: make(chan struct{})}
	p := NewPipeline(remover, nil, newMemPhotos(), testLogger())

	f, err := p.Start(context.Background(), "item_1", []byte("raw"), "image/png")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(remover.release)
	res, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.ImageRef)
}

func TestFlowOutlivesStartContext(t *testing.T) {
	p := NewPipeline(&stubRemover{out: testPNG(t)}, nil, newMemPhotos(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	f, err := p.Start(ctx, "item_1", []byte("raw"), "image/png")
	require.NoError(t, err)
	cancel()

	res, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.ImageRef)
}

func TestRun(t *testing.T) {
	photos := newMemPhotos()
	p := NewPipeline(&stubRemover{out: []byte("not an image")}, nil, photos, testLogger())

	_, _, err := p.Run(context.Background(), "item_1", []byte("raw"), "image/png")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, photos.Len())

	p = NewPipeline(&stubRemover{out: testPNG(t)}, nil, photos, testLogger())
	f, res, err := p.Run(context.Background(), "item_1", []byte("raw"), "image/png")
	require.NoError(t, err)
	assert.NotNil(t, f)
	assert.Equal(t, 1, photos.Len())
	assert.NotEmpty(t, res.ImageRef)
}

func TestFinishedDoesNotWaitForCommit(t *testing.T) {
	photos := newMemPhotos()
	p := NewPipeline(&stubRemover{out: testPNG(t)}, nil, photos, testLogger())
	ctx := context.Background()

	f, err := p.Start(ctx, "item_1", []byte("raw"), "image/png")
	require.NoError(t, err)
	_, err = f.Wait(ctx)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	completed := make(chan error, 1)
	go func() {
		completed <- f.Complete(ctx, func(Result) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	checked := make(chan bool, 1)
	go func() { checked <- f.Finished() }()
	select {
	case finished := <-checked:
		assert.False(t, finished)
	case <-time.After(time.Second):
		t.Fatal("Finished blocked behind the commit")
	}

	assert.ErrorIs(t, f.Complete(ctx, func(Result) error { return nil }), domain.ErrValidation,
		"a second completion is refused while the first is in flight")

	f.Abandon()
	close(release)
	require.NoError(t, <-completed)
	assert.True(t, f.Finished())
	assert.Equal(t, 1, photos.Len(), "a successful commit wins over a concurrent abandon")
}

func TestAbandonDuringFailedCommitDeletesImage(t *testing.T) {
	photos := newMemPhotos()
	p := NewPipeline(&stubRemover{out: testPNG(t)}, nil, photos, testLogger())
	ctx := context.Background()

	f, err := p.Start(ctx, "item_1", []byte("raw"), "image/png")
	require.NoError(t, err)
	_, err = f.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, photos.Len())

	boom := errors.New("remote down")
	err = f.Complete(ctx, func(Result) error {
		f.Abandon()
		assert.Equal(t, 1, photos.Len(), "image stays while the commit runs")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, f.Finished())
	assert.Zero(t, photos.Len())
	assert.ErrorIs(t, f.Complete(ctx, func(Result) error { return nil }), ErrAbandoned)
}
