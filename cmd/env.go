package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trustfeed/internal/events"
	"github.com/sells-group/trustfeed/internal/feed"
	"github.com/sells-group/trustfeed/internal/gate"
	"github.com/sells-group/trustfeed/internal/pipeline"
	"github.com/sells-group/trustfeed/internal/resilience"
	"github.com/sells-group/trustfeed/internal/store"
	"github.com/sells-group/trustfeed/internal/verify"
	"github.com/sells-group/trustfeed/pkg/oracle"
)

// appEnv holds the initialized components shared by serve, triage and
// submit.
type appEnv struct {
	Store     store.Store
	Oracle    oracle.Client
	Verifier  *verify.Verifier
	Source    feed.Source // nil when the command has no feed
	Publisher events.Publisher
	Session   *pipeline.Session
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Publisher != nil {
		if err := e.Publisher.Close(); err != nil {
			zap.L().Warn("close event publisher", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initVerifier builds the oracle client and wraps it with a circuit breaker.
func initVerifier() (oracle.Client, *verify.Verifier) {
	client := oracle.NewClient(cfg.Oracle.Endpoint,
		oracle.WithTimeout(time.Duration(cfg.Oracle.TimeoutSecs)*time.Second),
	)
	cbCfg := resilience.CircuitFromConfig(cfg.Resilience)
	cbCfg.Name = "oracle"
	return client, verify.New(client, resilience.NewCircuitBreaker(cbCfg))
}

// initEnv validates config for mode and wires the session. withFeed controls
// whether a feed source is built.
func initEnv(ctx context.Context, mode string, withFeed bool) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	env.Oracle, env.Verifier = initVerifier()
	env.Publisher = events.New(cfg.Events)

	var src pipeline.Source
	if withFeed {
		env.Source, err = feed.New(cfg.Feed, cfg.Resilience)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init feed")
		}
		src = env.Source
	}

	env.Session = pipeline.NewSession(src, env.Verifier, st, gate.New(cfg.Gate.AdmitThreshold), pipeline.Options{
		Author:    cfg.Submission.Author,
		MintPrice: cfg.Submission.MintPrice,
		Publisher: env.Publisher,
	})

	zap.L().Info("environment ready",
		zap.String("mode", mode),
		zap.String("store", cfg.Store.Driver),
		zap.Int("threshold", cfg.Gate.AdmitThreshold),
		zap.Bool("feed", withFeed),
	)
	return env, nil
}
