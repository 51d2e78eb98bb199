package claude

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/wardrobe/internal/domain"
	"github.com/vbonduro/wardrobe/internal/vision"
)

// maxTokens covers a single "category | name | color" line with room for a
// chatty preamble.
const maxTokens = 256

type ClaudeClassifier struct {
	client   *anthropic.Client
	model    string
	taxonomy domain.Taxonomy
}

// NewClaudeClassifier builds a classifier. opts are passed to the Anthropic
// client, for example anthropic.WithBaseURL in tests.
func NewClaudeClassifier(apiKey, model string, tax domain.Taxonomy, opts ...anthropic.ClientOption) *ClaudeClassifier {
	return &ClaudeClassifier{
		client:   anthropic.NewClient(apiKey, opts...),
		model:    model,
		taxonomy: tax,
	}
}

func (c *ClaudeClassifier) Suggest(ctx context.Context, r io.Reader, mimeType string) (*vision.Suggestion, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.Message{{
			Role: anthropic.RoleUser,
			Content: []anthropic.MessageContent{
				anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
					anthropic.MessagesContentSourceTypeBase64,
					normaliseMIME(mimeType),
					base64.StdEncoding.EncodeToString(imageData),
				)),
				anthropic.NewTextMessageContent(vision.Prompt(c.taxonomy)),
			},
		}},
	})
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("claude returned %s: %s", apiErr.Type, apiErr.Message)
		}
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	var text string
	for _, blk := range resp.Content {
		if blk.Type == anthropic.MessagesContentTypeText {
			text = blk.GetText()
			break
		}
	}

	return vision.ParseResponse(c.taxonomy, text), nil
}

// normaliseMIME maps MIME types to the values the Anthropic API accepts.
// Unknown types are sent as PNG since background removal outputs PNG.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/png"
	}
}
