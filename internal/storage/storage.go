// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/patrickmn/go-cache"

	"birdcatalog/internal/models"
)

var (
	// ErrNotFound is returned when no bird matches the requested id.
	ErrNotFound = errors.New("bird not found")
	// ErrUnknownStatus is returned when a write references a missing conservation status.
	ErrUnknownStatus = errors.New("unknown conservation status")
)

const (
	statusCacheKey      = "conservation_status"
	foreignKeyViolation = "23503"
)

const selectBirdDetail = `
	SELECT B.bird_id, B.primary_name, B.english_name, B.scientific_name, B.order_name,
	       B.family, B.length, B.weight, B.status_id,
	       COALESCE(CS.status_name, '') AS status_name,
	       COALESCE(CS.status_colour, '') AS status_colour,
	       COALESCE(P.filename, '') AS filename,
	       COALESCE(P.photographer, '') AS photographer
	FROM Bird B
	LEFT JOIN ConservationStatus CS ON B.status_id = CS.status_id
	LEFT JOIN Photos P ON B.bird_id = P.bird_id`

type Storage struct {
	pool     *pgxpool.Pool
	db       *sql.DB // For migrations
	statuses *cache.Cache
}

// NewStorage connects to the database at dsn. Conservation statuses are
// cached for statusTTL since the application never writes them.
func NewStorage(ctx context.Context, dsn string, statusTTL time.Duration) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		pool:     pool,
		db:       stdlib.OpenDBFromPool(pool),
		statuses: cache.New(statusTTL, 2*statusTTL),
	}, nil
}

// DB exposes a database/sql handle over the pool for goose.
func (s *Storage) DB() *sql.DB {
	return s.db
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.Ping"
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) ListStatuses(ctx context.Context) ([]models.ConservationStatus, error) {
	const op = "storage.ListStatuses"

	if cached, ok := s.statuses.Get(statusCacheKey); ok {
		return cached.([]models.ConservationStatus), nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT status_id, status_name, status_colour FROM ConservationStatus ORDER BY status_id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	statuses, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.ConservationStatus])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.statuses.SetDefault(statusCacheKey, statuses)
	return statuses, nil
}

func (s *Storage) ListBirds(ctx context.Context) ([]models.BirdDetail, error) {
	const op = "storage.ListBirds"

	rows, err := s.pool.Query(ctx, selectBirdDetail+` ORDER BY B.bird_id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	birds, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.BirdDetail])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return birds, nil
}

func (s *Storage) GetBird(ctx context.Context, id int64) (models.BirdDetail, error) {
	const op = "storage.GetBird"

	rows, err := s.pool.Query(ctx, selectBirdDetail+` WHERE B.bird_id = $1`, id)
	if err != nil {
		return models.BirdDetail{}, fmt.Errorf("%s: %w", op, err)
	}
	bird, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.BirdDetail])
	if errors.Is(err, pgx.ErrNoRows) {
		return models.BirdDetail{}, fmt.Errorf("%s: id %d: %w", op, id, ErrNotFound)
	}
	if err != nil {
		return models.BirdDetail{}, fmt.Errorf("%s: %w", op, err)
	}
	return bird, nil
}

// CreateBird inserts the bird and its photo in one transaction and returns
// the new bird id.
func (s *Storage) CreateBird(ctx context.Context, in models.BirdInput, photo models.Photo) (int64, error) {
	const op = "storage.CreateBird"

	var id int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO Bird (primary_name, english_name, scientific_name, order_name, family, length, weight, status_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING bird_id`,
			in.PrimaryName, in.EnglishName, in.ScientificName, in.OrderName, in.Family,
			in.Length, in.Weight, in.StatusID).Scan(&id)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO Photos (filename, photographer, bird_id) VALUES ($1, $2, $3)`,
			photo.Filename, photo.Photographer, id)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateError(err))
	}
	return id, nil
}

// UpdateBird overwrites the bird's fields. When photo is non-nil the bird's
// photo row is replaced and the previous filename, if any, is returned.
func (s *Storage) UpdateBird(ctx context.Context, id int64, in models.BirdInput, photo *models.Photo) (string, error) {
	const op = "storage.UpdateBird"

	var replaced string
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE Bird
			SET primary_name = $1, english_name = $2, scientific_name = $3, order_name = $4,
			    family = $5, length = $6, weight = $7, status_id = $8
			WHERE bird_id = $9`,
			in.PrimaryName, in.EnglishName, in.ScientificName, in.OrderName, in.Family,
			in.Length, in.Weight, in.StatusID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if photo == nil {
			return nil
		}

		err = tx.QueryRow(ctx,
			`SELECT filename FROM Photos WHERE bird_id = $1 FOR UPDATE`, id).Scan(&replaced)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO Photos (filename, photographer, bird_id) VALUES ($1, $2, $3)
			ON CONFLICT (bird_id) DO UPDATE
			SET filename = EXCLUDED.filename, photographer = EXCLUDED.photographer`,
			photo.Filename, photo.Photographer, id)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s: id %d: %w", op, id, translateError(err))
	}
	return replaced, nil
}

// DeleteBird removes the bird and its photo rows, returning the filenames
// that were referenced.
func (s *Storage) DeleteBird(ctx context.Context, id int64) ([]string, error) {
	const op = "storage.DeleteBird"

	var removed []string
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `DELETE FROM Photos WHERE bird_id = $1 RETURNING filename`, id)
		if err != nil {
			return err
		}
		removed, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM Bird WHERE bird_id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: id %d: %w", op, id, err)
	}
	return removed, nil
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, pgErr.Detail)
	}
	return err
}
