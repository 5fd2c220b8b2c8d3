package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"

	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
)

// Store persists validated records and scrape sessions. Upserts are keyed on
// the records' natural keys, so replaying an unchanged page is a no-op apart
// from the updated_at bump. SQLite serializes writers, which is what gives
// concurrent same-key upserts their last-write-wins behavior.
type Store struct {
	db     *bun.DB
	logger *slog.Logger
}

// NewStore wraps an open bun DB.
func NewStore(db *bun.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Init creates the tables if they do not exist.
func (s *Store) Init(ctx context.Context) error {
	models := []any{
		(*domain.ForecastDay)(nil),
		(*domain.ForecastMedia)(nil),
		(*domain.WeatherWarning)(nil),
		(*domain.ScrapeSession)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	s.logger.Debug("database schema ready")
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertForecast inserts or updates one forecast day keyed on
// (source_id, location, date). Idempotent: identical input leaves exactly one
// row for the key.
func (s *Store) UpsertForecast(ctx context.Context, rec *domain.ForecastDay) error {
	rec.UpdatedAt = domain.Now().UTC()
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (source_id, location, date) DO UPDATE").
		Set("latitude = EXCLUDED.latitude").
		Set("longitude = EXCLUDED.longitude").
		Set("summary = EXCLUDED.summary").
		Set("min_temp = EXCLUDED.min_temp").
		Set("max_temp = EXCLUDED.max_temp").
		Set("min_humidity = EXCLUDED.min_humidity").
		Set("max_humidity = EXCLUDED.max_humidity").
		Set("issued_at = EXCLUDED.issued_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return classifyStorageErr(rec.NaturalKey(), err)
	}
	return nil
}

// UpsertWarning inserts or updates one warning keyed on (source_id, date).
func (s *Store) UpsertWarning(ctx context.Context, rec *domain.WeatherWarning) error {
	rec.UpdatedAt = domain.Now().UTC()
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (source_id, date) DO UPDATE").
		Set("body = EXCLUDED.body").
		Set("issued_at = EXCLUDED.issued_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return classifyStorageErr(rec.NaturalKey(), err)
	}
	return nil
}

// UpsertMedia inserts or updates one media summary keyed on
// (source_id, issued_at).
func (s *Store) UpsertMedia(ctx context.Context, rec *domain.ForecastMedia) error {
	rec.UpdatedAt = domain.Now().UTC()
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (source_id, issued_at) DO UPDATE").
		Set("summary = EXCLUDED.summary").
		Set("images = EXCLUDED.images").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return classifyStorageErr(rec.NaturalKey(), err)
	}
	return nil
}

// LatestForecasts returns the most recently issued forecast set per source,
// optionally filtered to one location. Read-only; used by the presentation
// boundary.
func (s *Store) LatestForecasts(ctx context.Context, location string) ([]domain.ForecastDay, error) {
	var recs []domain.ForecastDay
	q := s.db.NewSelect().
		Model(&recs).
		Where("(source_id, issued_at) IN (SELECT source_id, max(issued_at) FROM forecast_days GROUP BY source_id)").
		Order("location ASC").
		Order("date ASC")
	if location != "" {
		q = q.Where("lower(location) = lower(?)", location)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return recs, nil
}

// LatestWarnings returns the most recently issued warning set per source.
func (s *Store) LatestWarnings(ctx context.Context) ([]domain.WeatherWarning, error) {
	var recs []domain.WeatherWarning
	err := s.db.NewSelect().
		Model(&recs).
		Where("(source_id, issued_at) IN (SELECT source_id, max(issued_at) FROM weather_warnings GROUP BY source_id)").
		Order("date DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// LatestMedia returns the most recently issued media summary per source.
func (s *Store) LatestMedia(ctx context.Context) ([]domain.ForecastMedia, error) {
	var recs []domain.ForecastMedia
	err := s.db.NewSelect().
		Model(&recs).
		Where("(source_id, issued_at) IN (SELECT source_id, max(issued_at) FROM forecast_media GROUP BY source_id)").
		Order("source_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// SaveSession persists a session, inserting the pending row at run start and
// updating it in place when the run finishes.
func (s *Store) SaveSession(ctx context.Context, sess *domain.ScrapeSession) error {
	_, err := s.db.NewInsert().
		Model(sess).
		On("CONFLICT (id) DO UPDATE").
		Set("finished_at = EXCLUDED.finished_at").
		Set("status = EXCLUDED.status").
		Set("outcomes = EXCLUDED.outcomes").
		Exec(ctx)
	if err != nil {
		return classifyStorageErr(sess.ID, err)
	}
	return nil
}

// LatestSession returns the most recently started session, or nil when none
// has run yet.
func (s *Store) LatestSession(ctx context.Context) (*domain.ScrapeSession, error) {
	sess := new(domain.ScrapeSession)
	err := s.db.NewSelect().
		Model(sess).
		Order("started_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]domain.ScrapeSession, error) {
	var sessions []domain.ScrapeSession
	err := s.db.NewSelect().
		Model(&sessions).
		Order("started_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// classifyStorageErr sorts a driver error into the upsert taxonomy. The
// sqliteshim driver does not expose typed errors, so constraint violations
// are recognized by message.
func classifyStorageErr(key string, err error) error {
	cause := domain.UpsertUnavailable
	if strings.Contains(strings.ToLower(err.Error()), "constraint") {
		cause = domain.UpsertConstraint
	}
	return &domain.UpsertError{Key: key, Cause: cause, Err: err}
}
