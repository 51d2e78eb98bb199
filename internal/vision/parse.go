package vision

import (
	"strings"

	"github.com/vbonduro/wardrobe/internal/domain"
)

var preambles = []string{"Here", "I see", "Based on", "This is", "Sure"}

// ParseLine parses one "category | name | color" line. Lines without a pipe
// are treated as preamble and return nil.
func ParseLine(tax domain.Taxonomy, line string) *Suggestion {
	line = strings.TrimSpace(line)
	if line == "" || !strings.Contains(line, "|") {
		return nil
	}
	for _, p := range preambles {
		if strings.HasPrefix(line, p) {
			return nil
		}
	}

	parts := strings.Split(line, "|")
	s := &Suggestion{RawResponse: line}
	if c, err := tax.Parse(strings.Trim(strings.TrimSpace(parts[0]), "*`\"")); err == nil {
		s.Category = c
	}
	if len(parts) >= 2 {
		s.Name = strings.TrimSpace(parts[1])
	}
	if len(parts) >= 3 {
		s.Color = strings.TrimSpace(parts[2])
	}
	if s.Category == "" && s.Name == "" {
		return nil
	}
	return s
}

// ParseResponse returns the first usable suggestion in raw. A bare category
// name on its own line is accepted when no formatted line is present.
func ParseResponse(tax domain.Taxonomy, raw string) *Suggestion {
	lines := strings.Split(raw, "\n")
	for _, line := range lines {
		if s := ParseLine(tax, line); s != nil {
			s.RawResponse = raw
			return s
		}
	}
	for _, line := range lines {
		word := strings.Trim(strings.TrimSpace(line), ".*`\"")
		if c, err := tax.Parse(word); err == nil {
			return &Suggestion{Category: c, RawResponse: raw}
		}
	}
	return &Suggestion{RawResponse: raw}
}
