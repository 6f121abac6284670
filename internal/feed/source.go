// Package feed turns headline providers into batches of normalized
// candidates.
package feed

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/trustfeed/internal/model"
)

// Source yields a fresh, finite batch of candidates on each call. A failed
// call returns an error wrapping model.ErrSourceUnavailable.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Candidate, error)
}

// removedPlaceholder is what NewsAPI puts in every field of a withdrawn
// article.
const removedPlaceholder = "[Removed]"

// cleanText applies NFC normalization and collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// stripHTML returns the visible text of an HTML fragment. Plain text passes
// through unchanged.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

// newCandidate normalizes raw provider fields. ok is false when the title or
// description is unusable.
func newCandidate(title, description, link, sourceName string, published *time.Time) (model.Candidate, bool) {
	c := model.Candidate{
		Title:           cleanText(title),
		Description:     cleanText(stripHTML(description)),
		SourceReference: strings.TrimSpace(link),
		SourceName:      cleanText(sourceName),
		PublishedAt:     published,
	}
	if c.Title == removedPlaceholder || c.Description == removedPlaceholder {
		return model.Candidate{}, false
	}
	if !c.Valid() {
		return model.Candidate{}, false
	}
	return c, true
}
