// Package verify asks the trust oracle how well a candidate matches its
// source and converts the answer to a whole percentage.
package verify

import (
	"context"
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/resilience"
	"github.com/sells-group/trustfeed/pkg/oracle"
)

// Outcome is a successful verification.
type Outcome struct {
	Percent int
	Result  model.VerificationResult
}

// Verifier scores candidates. Calls are never retried; a circuit breaker
// fails fast while the oracle keeps failing.
type Verifier struct {
	client  oracle.Client
	breaker *resilience.CircuitBreaker
}

// New creates a Verifier. breaker may be nil.
func New(client oracle.Client, breaker *resilience.CircuitBreaker) *Verifier {
	return &Verifier{client: client, breaker: breaker}
}

// Verify scores one claim. Every failure wraps model.ErrVerificationFailure
// and carries no score.
func (v *Verifier) Verify(ctx context.Context, title, description, sourceReference string) (Outcome, error) {
	call := func(ctx context.Context) (*oracle.Response, error) {
		return v.client.Verify(ctx, oracle.Request{
			Headline:    title,
			Description: description,
			SourceURL:   sourceReference,
		})
	}

	var resp *oracle.Response
	var err error
	if v.breaker != nil {
		resp, err = resilience.ExecuteVal(ctx, v.breaker, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return Outcome{}, eris.Wrap(model.ErrVerificationFailure, "oracle unavailable: circuit open")
		}
		return Outcome{}, eris.Wrapf(model.ErrVerificationFailure, "oracle: %v", err)
	}

	pct, err := ToPercent(*resp.ConfidenceScore)
	if err != nil {
		return Outcome{}, err
	}

	zap.L().Debug("verify: scored",
		zap.String("title", title),
		zap.Float64("confidence", *resp.ConfidenceScore),
		zap.Int("percent", pct),
		zap.Bool("oracle_verified", resp.IsVerified),
	)

	return Outcome{
		Percent: pct,
		Result: model.VerificationResult{
			ConfidenceScore: *resp.ConfidenceScore,
			IsVerified:      resp.IsVerified,
			MatchingDetails: resp.MatchingDetails,
			Discrepancies:   resp.Discrepancies,
		},
	}, nil
}

// ToPercent converts a confidence in [0,1] to an integer percentage,
// rounding half up. The epsilon absorbs binary representation error so
// 0.695 yields 70, not 69.
func ToPercent(score float64) (int, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
		return 0, eris.Wrapf(model.ErrVerificationFailure, "confidence score %v outside [0,1]", score)
	}
	pct := int(math.Floor(score*100 + 0.5 + 1e-9))
	return min(max(pct, 0), 100), nil
}
