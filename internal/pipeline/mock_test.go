package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/verify"
)

// --- Source Mock ---

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Candidate), args.Error(1)
}

// --- Verifier Mock ---

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, title, description, sourceReference string) (verify.Outcome, error) {
	args := m.Called(ctx, title, description, sourceReference)
	return args.Get(0).(verify.Outcome), args.Error(1)
}

// --- Writer Mock ---

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) CreateNews(ctx context.Context, n model.NewNews) (*model.SubmittedNews, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SubmittedNews), args.Error(1)
}

// --- Publisher Mock ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishSubmitted(ctx context.Context, n model.SubmittedNews) error {
	return m.Called(ctx, n).Error(0)
}
