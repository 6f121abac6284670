package store

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rotisserie/eris"

	"github.com/sells-group/trustfeed/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
	// raw is nil when pool is a test double.
	raw *pgxpool.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, raw: pool}, nil
}

// Migrate applies the embedded Postgres migrations.
func (s *PostgresStore) Migrate(_ context.Context) error {
	if s.raw == nil {
		return eris.New("postgres: migrate needs a live pool")
	}

	src, err := iofs.New(migrationFS, "migrations/postgres")
	if err != nil {
		return eris.Wrap(err, "postgres: open migrations")
	}
	defer src.Close() //nolint:errcheck

	db := stdlib.OpenDBFromPool(s.raw)
	defer db.Close() //nolint:errcheck

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return eris.Wrap(err, "postgres: migrate driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return eris.Wrap(err, "postgres: migrate instance")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return eris.Wrap(err, "postgres: migrate up")
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateNews(ctx context.Context, n model.NewNews) (*model.SubmittedNews, error) {
	rec := &model.SubmittedNews{
		ID:          uuid.New().String(),
		Title:       n.Title,
		Description: n.Description,
		Author:      n.Author,
		TrustScore:  n.TrustScore,
		MintPrice:   n.MintPrice,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO news (id, title, description, author, trust_score, mint_price, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Title, rec.Description, rec.Author, rec.TrustScore, rec.MintPrice, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(model.ErrPersistence, "postgres: insert news: %v", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetNews(ctx context.Context, id string) (*model.SubmittedNews, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, title, description, author, trust_score, mint_price, created_at FROM news WHERE id = $1`,
		id,
	)
	n, err := scanNews(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get news")
	}
	return n, nil
}

func (s *PostgresStore) ListNews(ctx context.Context, filter NewsFilter) ([]model.SubmittedNews, error) {
	query, args, err := listNewsQuery(sq.Dollar, filter)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list news")
	}
	defer rows.Close()

	out := []model.SubmittedNews{}
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan news")
		}
		out = append(out, *n)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list news iterate")
}

func (s *PostgresStore) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	query, args, err := statsQuery(sq.Dollar, since)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build stats query")
	}

	st := &Stats{Since: since.UTC()}
	err = s.pool.QueryRow(ctx, query, args...).Scan(&st.Total, &st.AverageTrustScore, &st.MinTrustScore, &st.MaxTrustScore)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return st, nil
}
