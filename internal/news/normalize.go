package news

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidArticle is returned by Parse when a raw record fails validation.
var ErrInvalidArticle = errors.New("invalid article")

var validate = validator.New()

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Parse validates raw and returns the canonical Article. The published date
// must be RFC 3339 and is rewritten to UTC.
func Parse(raw RawArticle) (Article, error) {
	if err := validate.Struct(raw); err != nil {
		return Article{}, fmt.Errorf("%w: %w", ErrInvalidArticle, err)
	}
	published, err := parseTime(raw.PublishedDate)
	if err != nil {
		return Article{}, fmt.Errorf("%w: publishedDate: %w", ErrInvalidArticle, err)
	}
	return Article{
		ID:            raw.ID,
		Title:         raw.Title,
		Summary:       raw.Summary,
		Text:          raw.Text,
		URL:           raw.URL,
		PublishedDate: published.UTC().Format(time.RFC3339Nano),
		Image:         raw.Image,
		Favicon:       raw.Favicon,
	}, nil
}

// SafeParse is Parse without the error.
func SafeParse(raw RawArticle) (Article, bool) {
	a, err := Parse(raw)
	return a, err == nil
}

// ParseMany keeps the valid records in order and reports how many were dropped.
func ParseMany(raws []RawArticle) ([]Article, int) {
	out := make([]Article, 0, len(raws))
	for _, raw := range raws {
		if a, ok := SafeParse(raw); ok {
			out = append(out, a)
		}
	}
	return out, len(raws) - len(out)
}
