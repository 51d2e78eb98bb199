// Package removebg is a bgremove.Remover backed by the remove.bg HTTP API.
package removebg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/vbonduro/wardrobe/internal/bgremove"
)

const DefaultURL = "https://api.remove.bg/v1.0/removebg"

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New returns a client for baseURL. An empty baseURL uses DefaultURL.
func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) RemoveBackground(ctx context.Context, r io.Reader, mimeType string) ([]byte, error) {
	body, contentType, err := buildForm(r, mimeType)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "image/png")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call remove.bg: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close remove.bg response body", "error", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, bgremove.ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s", bgremove.ErrInvalidInput, errBody)
	default:
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("remove.bg returned status %d: %s", resp.StatusCode, errBody)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read remove.bg response: %w", err)
	}
	return data, nil
}

func buildForm(r io.Reader, mimeType string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image_file"; filename="`+filename(mimeType)+`"`)
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if err := w.WriteField("size", "auto"); err != nil {
		return nil, "", fmt.Errorf("failed to write form field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func filename(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "image.png"
	case "image/webp":
		return "image.webp"
	default:
		return "image.jpg"
	}
}
