package feed

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/trustfeed/internal/model"
)

// MultiSource fetches several sources concurrently and concatenates their
// batches in the order the sources were given.
type MultiSource struct {
	sources []Source
}

// NewMultiSource combines sources.
func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources}
}

// Name implements Source.
func (m *MultiSource) Name() string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Fetch implements Source. It fails only when every source fails.
func (m *MultiSource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	batches := make([][]model.Candidate, len(m.sources))
	errs := make([]error, len(m.sources))

	// Goroutines never return an error so one failure does not cancel the
	// others.
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range m.sources {
		g.Go(func() error {
			batches[i], errs[i] = src.Fetch(gctx)
			return nil
		})
	}
	_ = g.Wait()

	var out []model.Candidate
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			zap.L().Warn("feed: source failed", zap.String("source", m.sources[i].Name()), zap.Error(err))
			continue
		}
		out = append(out, batches[i]...)
	}

	if len(m.sources) > 0 && failed == len(m.sources) {
		return nil, eris.Wrapf(model.ErrSourceUnavailable, "%s: every source failed", m.Name())
	}
	return out, nil
}
