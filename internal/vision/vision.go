// Package vision suggests catalog details for a garment photo using a
// multimodal model.
package vision

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vbonduro/wardrobe/internal/domain"
)

type Classifier interface {
	Suggest(ctx context.Context, r io.Reader, mimeType string) (*Suggestion, error)
}

// Suggestion is a model's guess at a garment's details. Category is empty
// when the model answered with something outside the taxonomy.
type Suggestion struct {
	Category    domain.Category `json:"category,omitempty"`
	Name        string          `json:"name,omitempty"`
	Color       string          `json:"color,omitempty"`
	RawResponse string          `json:"-"`
}

// Prompt asks for a single "category | name | color" line using the
// taxonomy's category names.
func Prompt(tax domain.Taxonomy) string {
	names := make([]string, len(tax))
	for i, c := range tax {
		names[i] = string(c)
	}
	return fmt.Sprintf(`This photo shows a single clothing item with the background removed.
Classify it into exactly one of these categories: %s.
Respond with one line in the format: category | short name | main color
Use the category spelling exactly as listed.`, strings.Join(names, ", "))
}
