// Package pipeline runs the triage flow for one user session: fetch
// candidates, record accept/reject decisions, verify accepted candidates and
// submit the ones that clear the gate.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trustfeed/internal/gate"
	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/queue"
	"github.com/sells-group/trustfeed/internal/verify"
)

// Source yields a batch of candidates.
type Source interface {
	Fetch(ctx context.Context) ([]model.Candidate, error)
}

// Verifier scores a claim.
type Verifier interface {
	Verify(ctx context.Context, title, description, sourceReference string) (verify.Outcome, error)
}

// Writer persists a record that cleared the gate.
type Writer interface {
	CreateNews(ctx context.Context, n model.NewNews) (*model.SubmittedNews, error)
}

// Publisher announces persisted records.
type Publisher interface {
	PublishSubmitted(ctx context.Context, n model.SubmittedNews) error
}

// Options holds the placeholder values written with each record.
type Options struct {
	Author    string
	MintPrice int
	Publisher Publisher
}

// RefreshResult reports what a refresh loaded.
type RefreshResult struct {
	Fetched    int `json:"fetched"`
	Pending    int `json:"pending"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// decision is the state of one accepted candidate. gen and cancel form the
// ticket of the call currently in flight, if any.
type decision struct {
	candidate model.Candidate
	state     model.DecisionState
	percent   *int
	result    *model.VerificationResult
	newsID    string
	lastErr   string

	gen    uint64
	cancel context.CancelFunc
}

func (d *decision) review(g gate.Gate) model.Review {
	r := model.Review{
		Candidate: d.candidate,
		State:     d.state,
		NewsID:    d.newsID,
		LastError: d.lastErr,
	}
	if d.percent != nil {
		p := *d.percent
		r.Percent = &p
		r.Admitted = g.Admit(&p)
	}
	if d.result != nil {
		res := *d.result
		r.Result = &res
	}
	return r
}

// Session owns the candidate queue and the decisions for one user. The mutex
// is never held across a network call.
type Session struct {
	source   Source
	verifier Verifier
	writer   Writer
	gate     gate.Gate
	opts     Options

	mu         sync.Mutex
	queue      *queue.Queue
	decisions  map[string]*decision
	accepted   []string
	nextGen    uint64
	refreshGen uint64
	counters   Counters
}

// NewSession wires a session. source may be nil when candidates only arrive
// through Propose.
func NewSession(source Source, verifier Verifier, writer Writer, g gate.Gate, opts Options) *Session {
	return &Session{
		source:    source,
		verifier:  verifier,
		writer:    writer,
		gate:      g,
		opts:      opts,
		queue:     queue.New(),
		decisions: make(map[string]*decision),
	}
}

// Threshold returns the gate threshold shown to users.
func (s *Session) Threshold() int {
	return s.gate.Threshold()
}

// Refresh replaces the pending queue with a fresh batch. Titles that were
// already accepted are left out. On failure the queue is unchanged and the
// error wraps model.ErrSourceUnavailable. If a newer refresh starts while
// this one is fetching, this result is dropped with ErrStale.
func (s *Session) Refresh(ctx context.Context) (RefreshResult, error) {
	if s.source == nil {
		return RefreshResult{}, eris.Wrap(model.ErrSourceUnavailable, "no feed source configured")
	}

	s.mu.Lock()
	s.refreshGen++
	gen := s.refreshGen
	s.mu.Unlock()

	batch, err := s.source.Fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.counters.FetchFailures++
		zap.L().Warn("pipeline: refresh failed", zap.Error(err))
		if !errors.Is(err, model.ErrSourceUnavailable) {
			err = eris.Wrapf(model.ErrSourceUnavailable, "%v", err)
		}
		return RefreshResult{}, err
	}
	if gen != s.refreshGen {
		s.counters.Stale++
		return RefreshResult{}, eris.Wrap(ErrStale, "refresh superseded")
	}

	fresh := make([]model.Candidate, 0, len(batch))
	skipped := 0
	for _, c := range batch {
		if _, decided := s.decisions[c.Title]; decided {
			skipped++
			continue
		}
		fresh = append(fresh, c)
	}
	dups := s.queue.Load(fresh)

	s.counters.Refreshes++
	s.counters.Fetched += len(batch)

	res := RefreshResult{
		Fetched:    len(batch),
		Pending:    s.queue.Len(),
		Duplicates: dups,
		Skipped:    skipped,
	}
	zap.L().Info("pipeline: refreshed candidates",
		zap.Int("fetched", res.Fetched),
		zap.Int("pending", res.Pending),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Pending returns the undecided candidates in order.
func (s *Session) Pending() []model.Candidate {
	return s.queue.List()
}

// Accept moves a pending candidate into review. It reports false, changing
// nothing, when title is not pending.
func (s *Session) Accept(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.queue.Accept(title)
	if !ok {
		return false
	}
	s.addDecision(c)
	s.counters.Accepted++
	return true
}

// Propose adds a manually entered claim straight into review.
func (s *Session) Propose(c model.Candidate) (model.Review, error) {
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.SourceReference = strings.TrimSpace(c.SourceReference)
	if !c.Valid() {
		return model.Review{}, ErrInvalidCandidate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.decisions[c.Title]; exists || s.queue.Contains(c.Title) {
		return model.Review{}, eris.Wrapf(ErrDuplicateTitle, "%q", c.Title)
	}
	d := s.addDecision(c)
	s.counters.Proposed++
	return d.review(s.gate), nil
}

func (s *Session) addDecision(c model.Candidate) *decision {
	d := &decision{candidate: c, state: model.DecisionUnscored}
	s.decisions[c.Title] = d
	s.accepted = append(s.accepted, c.Title)
	return d
}

// Reject discards a pending candidate, or withdraws an accepted one that has
// not been submitted, cancelling any call in flight for it. It reports false
// when there was nothing to reject.
func (s *Session) Reject(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Reject(title) {
		s.counters.Rejected++
		return true
	}

	d, ok := s.decisions[title]
	if !ok || d.state.Terminal() {
		return false
	}
	if d.cancel != nil {
		d.cancel()
		zap.L().Info("pipeline: cancelled in-flight call on reject",
			zap.String("title", title),
			zap.String("state", string(d.state)),
		)
	}
	s.removeDecision(title)
	s.counters.Rejected++
	return true
}

func (s *Session) removeDecision(title string) {
	delete(s.decisions, title)
	for i, t := range s.accepted {
		if t == title {
			s.accepted = append(s.accepted[:i], s.accepted[i+1:]...)
			break
		}
	}
}

// begin issues a ticket for a call on d. Must hold s.mu.
func (s *Session) begin(ctx context.Context, d *decision, state model.DecisionState) (context.Context, context.CancelFunc, uint64) {
	s.nextGen++
	cctx, cancel := context.WithCancel(ctx)
	d.gen = s.nextGen
	d.cancel = cancel
	d.state = state
	return cctx, cancel, d.gen
}

// current returns d if its ticket is still gen. Must hold s.mu.
func (s *Session) current(title string, gen uint64) (*decision, bool) {
	d, ok := s.decisions[title]
	if !ok || d.gen != gen {
		return nil, false
	}
	d.cancel = nil
	return d, true
}

// Verify asks the oracle to score an accepted candidate. A failure leaves the
// candidate unscored-with-error so the user can try again.
func (s *Session) Verify(ctx context.Context, title string) (model.Review, error) {
	s.mu.Lock()
	d, ok := s.decisions[title]
	if !ok {
		s.mu.Unlock()
		return model.Review{}, eris.Wrapf(ErrUnknownCandidate, "%q", title)
	}
	if d.state.InFlight() {
		s.mu.Unlock()
		return d.review(s.gate), eris.Wrapf(ErrInFlight, "%q is %s", title, d.state)
	}
	if d.state.Terminal() {
		r := d.review(s.gate)
		s.mu.Unlock()
		return r, nil
	}
	prev := d.state
	cctx, cancel, gen := s.begin(ctx, d, model.DecisionVerifying)
	defer cancel()
	c := d.candidate
	s.mu.Unlock()

	out, err := s.verifier.Verify(cctx, c.Title, c.Description, c.SourceReference)

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok = s.current(title, gen)
	if !ok {
		s.counters.Stale++
		zap.L().Info("pipeline: discarded stale verification", zap.String("title", title))
		return model.Review{}, eris.Wrapf(ErrStale, "verification of %q", title)
	}

	if err != nil {
		s.counters.VerifyFailures++
		d.state = model.DecisionFailed
		d.percent = nil
		d.result = nil
		d.lastErr = err.Error()
		zap.L().Warn("pipeline: verification failed",
			zap.String("title", title),
			zap.String("previous_state", string(prev)),
			zap.Error(err),
		)
		return d.review(s.gate), err
	}

	s.counters.Verified++
	pct := out.Percent
	res := out.Result
	d.state = model.DecisionScored
	d.percent = &pct
	d.result = &res
	d.lastErr = ""
	zap.L().Info("pipeline: candidate scored",
		zap.String("title", title),
		zap.Int("percent", pct),
		zap.Bool("admitted", s.gate.Admit(&pct)),
	)
	return d.review(s.gate), nil
}

// Submit persists a scored candidate that clears the gate. Submitting an
// already submitted candidate returns its existing record id.
func (s *Session) Submit(ctx context.Context, title string) (model.Review, error) {
	s.mu.Lock()
	d, ok := s.decisions[title]
	if !ok {
		s.mu.Unlock()
		return model.Review{}, eris.Wrapf(ErrUnknownCandidate, "%q", title)
	}
	if d.state.Terminal() {
		r := d.review(s.gate)
		s.mu.Unlock()
		return r, nil
	}
	if d.state.InFlight() {
		r := d.review(s.gate)
		s.mu.Unlock()
		return r, eris.Wrapf(ErrInFlight, "%q is %s", title, d.state)
	}
	if d.percent == nil {
		r := d.review(s.gate)
		s.mu.Unlock()
		return r, eris.Wrapf(ErrNotVerified, "%q has no trust score", title)
	}
	// Re-applied here, under the lock, right before the write.
	if !s.gate.Admit(d.percent) {
		s.counters.BelowThreshold++
		r := d.review(s.gate)
		s.mu.Unlock()
		return r, eris.Wrapf(ErrBelowThreshold, "score %d, threshold %d", *d.percent, s.gate.Threshold())
	}
	rec := model.NewNews{
		Title:       d.candidate.Title,
		Description: d.candidate.Description,
		Author:      s.opts.Author,
		TrustScore:  *d.percent,
		MintPrice:   s.opts.MintPrice,
	}
	cctx, cancel, gen := s.begin(ctx, d, model.DecisionSubmitting)
	defer cancel()
	s.mu.Unlock()

	var saved *model.SubmittedNews
	err := cctx.Err()
	if err == nil {
		saved, err = s.writer.CreateNews(cctx, rec)
	}

	s.mu.Lock()
	d, ok = s.current(title, gen)
	if !ok {
		s.counters.Stale++
		s.mu.Unlock()
		fields := []zap.Field{zap.String("title", title)}
		if saved != nil {
			fields = append(fields, zap.String("news_id", saved.ID))
		}
		zap.L().Warn("pipeline: discarded stale submission", fields...)
		return model.Review{}, eris.Wrapf(ErrStale, "submission of %q", title)
	}

	if err != nil {
		s.counters.PersistFailures++
		d.state = model.DecisionScored
		d.lastErr = err.Error()
		r := d.review(s.gate)
		s.mu.Unlock()
		zap.L().Error("pipeline: persistence failed", zap.String("title", title), zap.Error(err))
		return r, err
	}

	s.counters.Submitted++
	d.state = model.DecisionSubmitted
	d.newsID = saved.ID
	d.lastErr = ""
	r := d.review(s.gate)
	s.mu.Unlock()

	zap.L().Info("pipeline: news submitted",
		zap.String("title", title),
		zap.String("news_id", saved.ID),
		zap.Int("trust_score", saved.TrustScore),
	)
	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.PublishSubmitted(ctx, *saved); err != nil {
			zap.L().Warn("pipeline: publish submitted news failed",
				zap.String("news_id", saved.ID),
				zap.Error(err),
			)
		}
	}
	return r, nil
}

// Review returns the state of an accepted candidate.
func (s *Session) Review(title string) (model.Review, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[title]
	if !ok {
		return model.Review{}, false
	}
	return d.review(s.gate), true
}

// Reviews returns all accepted candidates in the order they were accepted.
func (s *Session) Reviews() []model.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Review, 0, len(s.accepted))
	for _, t := range s.accepted {
		out = append(out, s.decisions[t].review(s.gate))
	}
	return out
}

// Counters returns a snapshot of the session's activity counters.
func (s *Session) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters
	c.Pending = s.queue.Len()
	c.InReview = len(s.decisions)
	return c
}
