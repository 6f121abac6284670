package feed

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/resilience"
	"github.com/sells-group/trustfeed/pkg/newsapi"
)

// NewsAPISource reads top headlines from NewsAPI.
type NewsAPISource struct {
	client newsapi.Client
	req    newsapi.TopHeadlinesRequest
	retry  resilience.RetryConfig
}

// NewNewsAPISource creates a source that issues req on every fetch.
func NewNewsAPISource(client newsapi.Client, req newsapi.TopHeadlinesRequest, retry resilience.RetryConfig) *NewsAPISource {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("newsapi", "top_headlines")
	}
	return &NewsAPISource{client: client, req: req, retry: retry}
}

// Name implements Source.
func (s *NewsAPISource) Name() string { return "newsapi" }

// Fetch implements Source.
func (s *NewsAPISource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	resp, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*newsapi.Response, error) {
		return s.client.TopHeadlines(ctx, s.req)
	})
	if err != nil {
		return nil, eris.Wrapf(model.ErrSourceUnavailable, "newsapi: %v", err)
	}
	if resp.Articles == nil {
		return nil, eris.Wrap(model.ErrSourceUnavailable, "newsapi: response has no articles")
	}

	out := make([]model.Candidate, 0, len(resp.Articles))
	dropped := 0
	for _, a := range resp.Articles {
		c, ok := newCandidate(deref(a.Title), deref(a.Description), deref(a.URL), a.Source.Name, parseTime(a.PublishedAt))
		if !ok {
			dropped++
			continue
		}
		out = append(out, c)
	}

	zap.L().Debug("feed: newsapi batch",
		zap.Int("received", len(resp.Articles)),
		zap.Int("kept", len(out)),
		zap.Int("dropped", dropped),
	)
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}
