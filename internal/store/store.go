// Package store persists news records that passed the trust gate.
package store

import (
	"context"
	"embed"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/trustfeed/internal/config"
	"github.com/sells-group/trustfeed/internal/model"
)

//go:embed migrations
var migrationFS embed.FS

// ErrNotFound is returned by GetNews for an unknown id.
var ErrNotFound = eris.New("news not found")

// DefaultSQLitePath is used when store.database_url is empty.
const DefaultSQLitePath = "trustfeed.db"

// NewsFilter narrows ListNews. Zero values mean "no constraint".
type NewsFilter struct {
	Since         *time.Time `json:"since,omitempty"`
	MinTrustScore int        `json:"min_trust_score,omitempty"`
	TitleContains string     `json:"title_contains,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}

// Stats summarizes records created since a point in time.
type Stats struct {
	Since             time.Time `json:"since"`
	Total             int       `json:"total"`
	AverageTrustScore float64   `json:"average_trust_score"`
	MinTrustScore     int       `json:"min_trust_score"`
	MaxTrustScore     int       `json:"max_trust_score"`
}

// Store is the persistence interface for submitted news.
type Store interface {
	// CreateNews inserts one record with a fresh id. On failure it returns
	// an error wrapping model.ErrPersistence and no row exists.
	CreateNews(ctx context.Context, n model.NewNews) (*model.SubmittedNews, error)
	GetNews(ctx context.Context, id string) (*model.SubmittedNews, error)
	ListNews(ctx context.Context, filter NewsFilter) ([]model.SubmittedNews, error)
	Stats(ctx context.Context, since time.Time) (*Stats, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		path := cfg.DatabaseURL
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewSQLite(path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

const defaultListLimit = 100

var newsColumns = []string{"id", "title", "description", "author", "trust_score", "mint_price", "created_at"}

func listNewsQuery(ph sq.PlaceholderFormat, f NewsFilter) (string, []any, error) {
	q := sq.Select(newsColumns...).From("news").PlaceholderFormat(ph)

	if f.Since != nil {
		q = q.Where(sq.GtOrEq{"created_at": f.Since.UTC()})
	}
	if f.MinTrustScore > 0 {
		q = q.Where(sq.GtOrEq{"trust_score": f.MinTrustScore})
	}
	if f.TitleContains != "" {
		q = q.Where(sq.Like{"LOWER(title)": "%" + lowerASCII(f.TitleContains) + "%"})
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}
	q = q.OrderBy("created_at DESC", "id").Limit(uint64(limit))
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q.ToSql()
}

func statsQuery(ph sq.PlaceholderFormat, since time.Time) (string, []any, error) {
	return sq.Select(
		"COUNT(*)",
		"COALESCE(AVG(trust_score), 0)",
		"COALESCE(MIN(trust_score), 0)",
		"COALESCE(MAX(trust_score), 0)",
	).
		From("news").
		Where(sq.GtOrEq{"created_at": since.UTC()}).
		PlaceholderFormat(ph).
		ToSql()
}

// lowerASCII lowercases only ASCII letters, matching SQLite's LOWER().
func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNews(row scannable) (*model.SubmittedNews, error) {
	var n model.SubmittedNews
	if err := row.Scan(&n.ID, &n.Title, &n.Description, &n.Author, &n.TrustScore, &n.MintPrice, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}
