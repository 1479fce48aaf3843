package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// PGPoolConfig tunes the pgx connection pool.
type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewPGPool connects to Postgres and applies pool tuning.
func NewPGPool(ctx context.Context, pgURL string, pc PGPoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	if pc.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pc.HealthCheckPeriod
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

// PGStore reads the catalog from Postgres. Tables: experiences,
// availabilities, experience_images, categories, category_experience.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

// NewPGStore wraps an open pool.
func NewPGStore(pool *pgxpool.Pool, logger *zap.Logger) *PGStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGStore{pool: pool, logger: logger, now: time.Now}
}

// Numeric columns are selected as text and parsed with decimal so no pgx
// type registration is needed.
const listQuery = `
	SELECT e.id, e.slug, e.title, COALESCE(e.short_description, ''), COALESCE(e.thumbnail, ''),
	       COALESCE(e.city, ''), e.country_code, COALESCE(e.language, ''),
	       e.latitude::float8, e.longitude::float8, e.rating::float8, e.views,
	       MIN(a.sell_price)::text, MIN(a.buy_price)::text
	FROM experiences e
	JOIN availabilities a ON a.experience_id = e.id
	WHERE e.is_active
	  AND a.start_time >= $1
	  AND a.start_time < $2
	GROUP BY e.id
	ORDER BY e.id;
`

// ListByDateRange returns active experiences with a slot in r.
func (s *PGStore) ListByDateRange(ctx context.Context, r model.DateRange) ([]Record, error) {
	rows, err := s.pool.Query(ctx, listQuery, r.Start.Time(), r.End.AddDays(1).Time())
	if err != nil {
		s.logger.Error("catalog.pg.list_failed", zap.Error(err))
		return nil, fmt.Errorf("list experiences: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			sell, buy string
		)
		if err := rows.Scan(&rec.ID, &rec.Slug, &rec.Title, &rec.ShortDescription, &rec.Thumbnail,
			&rec.City, &rec.CountryCode, &rec.Language,
			&rec.Latitude, &rec.Longitude, &rec.Rating, &rec.Views,
			&sell, &buy); err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		rec.Active = true
		if rec.FromSellPrice, err = decimal.NewFromString(sell); err != nil {
			return nil, fmt.Errorf("experience %d sell price: %w", rec.ID, err)
		}
		if rec.FromBuyPrice, err = decimal.NewFromString(buy); err != nil {
			return nil, fmt.Errorf("experience %d buy price: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiences: %w", err)
	}
	return out, nil
}

// recordColumns and fromPriceJoin select one experience with its lowest
// upcoming slot prices ($1 is the current time), falling back to all slots.
const recordColumns = `
	e.id, e.slug, e.title, COALESCE(e.short_description, ''), COALESCE(e.description, ''),
	COALESCE(e.thumbnail, ''), COALESCE(e.city, ''), e.country_code, COALESCE(e.language, ''),
	e.latitude::float8, e.longitude::float8, e.rating::float8, e.views, e.is_active,
	p.sell::text, p.buy::text`

const fromPriceJoin = `
	LEFT JOIN LATERAL (
		SELECT MIN(a.sell_price) AS sell, MIN(a.buy_price) AS buy
		FROM availabilities a
		WHERE a.experience_id = e.id
		  AND (a.start_time >= $1 OR NOT EXISTS (
		        SELECT 1 FROM availabilities u
		        WHERE u.experience_id = e.id AND u.start_time >= $1))
	) p ON true`

const getQuery = `SELECT` + recordColumns + `
	FROM experiences e` + fromPriceJoin + `
	WHERE e.id = $2;`

const relatedQuery = `SELECT` + recordColumns + `
	FROM experiences e` + fromPriceJoin + `
	WHERE e.is_active AND e.id <> $2
	ORDER BY e.id
	LIMIT $3;`

const imagesQuery = `
	SELECT url
	FROM experience_images
	WHERE experience_id = $1
	ORDER BY position, id;
`

const categoriesQuery = `
	SELECT c.id, c.name, c.slug
	FROM categories c
	JOIN category_experience ce ON ce.category_id = c.id
	WHERE ce.experience_id = $1
	ORDER BY c.id;
`

// Get loads one experience with its images and categories.
func (s *PGStore) Get(ctx context.Context, id int64) (*Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, getQuery, s.now().UTC(), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("catalog.pg.get_failed", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get experience %d: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, imagesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("experience %d images: %w", id, err)
	}
	rec.Images, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("experience %d images: %w", id, err)
	}

	rows, err = s.pool.Query(ctx, categoriesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("experience %d categories: %w", id, err)
	}
	rec.Categories, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Category, error) {
		var (
			c     model.Category
			catID int64
		)
		if err := row.Scan(&catID, &c.Name, &c.Slug); err != nil {
			return c, err
		}
		c.ID = &catID
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("experience %d categories: %w", id, err)
	}
	return &rec, nil
}

const slotsQuery = `
	SELECT start_time, end_time, sell_price::text, buy_price::text
	FROM availabilities
	WHERE experience_id = $1
	  AND start_time >= $2
	  AND start_time < $3
	ORDER BY start_time;
`

// Related returns up to limit other active experiences.
func (s *PGStore) Related(ctx context.Context, excludeID int64, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, relatedQuery, s.now().UTC(), excludeID, limit)
	if err != nil {
		s.logger.Error("catalog.pg.related_failed", zap.Int64("exclude_id", excludeID), zap.Error(err))
		return nil, fmt.Errorf("related experiences: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, fmt.Errorf("related experiences: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec       Record
		sell, buy *string
	)
	if err := row.Scan(&rec.ID, &rec.Slug, &rec.Title,
		&rec.ShortDescription, &rec.Description, &rec.Thumbnail, &rec.City, &rec.CountryCode,
		&rec.Language, &rec.Latitude, &rec.Longitude, &rec.Rating, &rec.Views, &rec.Active,
		&sell, &buy); err != nil {
		return rec, err
	}
	var err error
	if sell != nil {
		if rec.FromSellPrice, err = decimal.NewFromString(*sell); err != nil {
			return rec, fmt.Errorf("experience %d sell price: %w", rec.ID, err)
		}
	}
	if buy != nil {
		if rec.FromBuyPrice, err = decimal.NewFromString(*buy); err != nil {
			return rec, fmt.Errorf("experience %d buy price: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// Slots returns the slots of id that start on date.
func (s *PGStore) Slots(ctx context.Context, id int64, date model.Date) ([]Slot, error) {
	rows, err := s.pool.Query(ctx, slotsQuery, id, date.Time(), date.AddDays(1).Time())
	if err != nil {
		s.logger.Error("catalog.pg.slots_failed", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("slots for %d: %w", id, err)
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var (
			sl        Slot
			sell, buy string
		)
		if err := rows.Scan(&sl.Start, &sl.End, &sell, &buy); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		if sl.SellPrice, err = decimal.NewFromString(sell); err != nil {
			return nil, fmt.Errorf("slot sell price: %w", err)
		}
		if sl.BuyPrice, err = decimal.NewFromString(buy); err != nil {
			return nil, fmt.Errorf("slot buy price: %w", err)
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

// IncrementViews bumps the view counter of id.
func (s *PGStore) IncrementViews(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `UPDATE experiences SET views = views + 1 WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("increment views for %d: %w", id, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PGStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres unavailable")
	}
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
