package verify

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/resilience"
	"github.com/sells-group/trustfeed/pkg/oracle"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Verify(ctx context.Context, req oracle.Request) (*oracle.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oracle.Response), args.Error(1)
}

func (m *mockOracle) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func scoreResp(s float64) *oracle.Response {
	return &oracle.Response{ConfidenceScore: &s, IsVerified: s >= 0.7, MatchingDetails: []string{"m"}, Discrepancies: []string{}}
}

func TestToPercent(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{0, 0},
		{1, 100},
		{0.82, 82},
		{0.695, 70},
		{0.694, 69},
		{0.005, 1},
		{0.004, 0},
		{0.125, 13},
		{0.999, 100},
		{0.57, 57},
		{0.29, 29},
	}
	for _, tt := range tests {
		got, err := ToPercent(tt.score)
		require.NoError(t, err, tt.score)
		assert.Equal(t, tt.want, got, "score %v", tt.score)
	}
}

func TestToPercent_Invalid(t *testing.T) {
	for _, s := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		_, err := ToPercent(s)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrVerificationFailure)
	}
}

func TestVerify_Success(t *testing.T) {
	client := &mockOracle{}
	client.On("Verify", mock.Anything, oracle.Request{Headline: "A", Description: "B", SourceURL: "http://x"}).
		Return(scoreResp(0.82), nil)

	v := New(client, nil)
	out, err := v.Verify(context.Background(), "A", "B", "http://x")
	require.NoError(t, err)
	assert.Equal(t, 82, out.Percent)
	assert.Equal(t, 0.82, out.Result.ConfidenceScore)
	assert.True(t, out.Result.IsVerified)
	assert.Equal(t, []string{"m"}, out.Result.MatchingDetails)
}

func TestVerify_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp *oracle.Response
		err  error
	}{
		{"network", nil, errors.New("dial tcp: connection refused")},
		{"status", nil, resilience.StatusError("oracle", 500, nil)},
		{"out of range", scoreResp(1.4), nil},
		{"negative", scoreResp(-0.2), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockOracle{}
			if tt.resp != nil {
				client.On("Verify", mock.Anything, mock.Anything).Return(tt.resp, nil)
			} else {
				client.On("Verify", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			out, err := New(client, nil).Verify(context.Background(), "A", "B", "http://x")
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrVerificationFailure)
			assert.Equal(t, Outcome{}, out)
		})
	}
}

func TestVerify_NoRetry(t *testing.T) {
	client := &mockOracle{}
	client.On("Verify", mock.Anything, mock.Anything).Return(nil, resilience.StatusError("oracle", 503, nil))

	_, err := New(client, nil).Verify(context.Background(), "A", "B", "http://x")
	require.Error(t, err)
	client.AssertNumberOfCalls(t, "Verify", 1)
}

func TestVerify_CircuitOpenFailsFast(t *testing.T) {
	client := &mockOracle{}
	client.On("Verify", mock.Anything, mock.Anything).Return(nil, errors.New("oracle down"))

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "oracle", FailureThreshold: 2})
	v := New(client, breaker)

	for range 2 {
		_, err := v.Verify(context.Background(), "A", "B", "http://x")
		require.Error(t, err)
	}

	_, err := v.Verify(context.Background(), "A", "B", "http://x")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrVerificationFailure)
	assert.Contains(t, err.Error(), "circuit open")
	client.AssertNumberOfCalls(t, "Verify", 2)
}
