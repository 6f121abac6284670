package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/trustfeed/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded SQLite migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	src, err := iofs.New(migrationFS, "migrations/sqlite")
	if err != nil {
		return eris.Wrap(err, "sqlite: open migrations")
	}
	driver, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return eris.Wrap(err, "sqlite: migrate driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return eris.Wrap(err, "sqlite: migrate instance")
	}
	// m.Close would close s.db along with the driver.
	defer src.Close() //nolint:errcheck

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return eris.Wrap(err, "sqlite: migrate up")
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateNews(ctx context.Context, n model.NewNews) (*model.SubmittedNews, error) {
	rec := &model.SubmittedNews{
		ID:          uuid.New().String(),
		Title:       n.Title,
		Description: n.Description,
		Author:      n.Author,
		TrustScore:  n.TrustScore,
		MintPrice:   n.MintPrice,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO news (id, title, description, author, trust_score, mint_price, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Description, rec.Author, rec.TrustScore, rec.MintPrice, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(model.ErrPersistence, "sqlite: insert news: %v", err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetNews(ctx context.Context, id string) (*model.SubmittedNews, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, author, trust_score, mint_price, created_at FROM news WHERE id = ?`,
		id,
	)
	n, err := scanNews(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get news")
	}
	return n, nil
}

func (s *SQLiteStore) ListNews(ctx context.Context, filter NewsFilter) ([]model.SubmittedNews, error) {
	query, args, err := listNewsQuery(sq.Question, filter)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list news")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.SubmittedNews{}
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan news")
		}
		out = append(out, *n)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list news iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	query, args, err := statsQuery(sq.Question, since)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build stats query")
	}

	st := &Stats{Since: since.UTC()}
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&st.Total, &st.AverageTrustScore, &st.MinTrustScore, &st.MaxTrustScore)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	return st, nil
}
