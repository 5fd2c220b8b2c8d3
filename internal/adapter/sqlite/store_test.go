package sqlite

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("file::memory:?cache=shared", false)
	require.NoError(t, err)
	// A pooled second connection would see its own empty :memory: database.
	db.SetMaxOpenConns(1)

	store := NewStore(db, slog.New(slog.DiscardHandler))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func forecastFixture() domain.ForecastDay {
	return domain.ForecastDay{
		SourceID:    "forecast-map",
		Location:    "Port Vila",
		Date:        time.Date(2023, time.March, 27, 13, 0, 0, 0, time.UTC),
		Latitude:    -17.73,
		Longitude:   168.32,
		Summary:     "Cloudy periods",
		MinTemp:     22,
		MaxTemp:     29,
		MinHumidity: 60,
		MaxHumidity: 85,
		IssuedAt:    time.Date(2023, time.March, 27, 4, 2, 0, 0, time.UTC),
	}
}

func TestValidateUpsertLatestRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := domain.NewValidator(nil).ValidateForecast(domain.CandidateRecord{
		Kind:     domain.KindForecast,
		SourceID: "forecast-map",
		IssuedAt: time.Date(2023, time.March, 27, 4, 2, 0, 0, time.UTC),
		Fields: map[string]string{
			"location":    "Port Vila",
			"date":        "Tuesday 28",
			"summary":     "Cloudy periods",
			"minTemp":     "22",
			"maxTemp":     "29",
			"minHumidity": "60",
			"maxHumidity": "85",
			"latitude":    "-17.73",
			"longitude":   "168.32",
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.UpsertForecast(ctx, &rec))

	got, err := store.LatestForecasts(ctx, "")
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Storage-managed columns aside, what comes back is what went in.
	diff := cmp.Diff(rec, got[0],
		cmpopts.IgnoreFields(domain.ForecastDay{}, "ID", "UpdatedAt"),
	)
	assert.Empty(t, diff)
}

func TestUpsertForecastIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := forecastFixture()
	require.NoError(t, store.UpsertForecast(ctx, &first))

	// Replay the same page with a revised temperature.
	second := forecastFixture()
	second.MaxTemp = 31
	require.NoError(t, store.UpsertForecast(ctx, &second))

	recs, err := store.LatestForecasts(ctx, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 31, recs[0].MaxTemp)
}

func TestUpsertForecastDistinctKeysCoexist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := forecastFixture()
	require.NoError(t, store.UpsertForecast(ctx, &a))

	b := forecastFixture()
	b.Location = "Sola"
	require.NoError(t, store.UpsertForecast(ctx, &b))

	c := forecastFixture()
	c.Date = c.Date.AddDate(0, 0, 1)
	require.NoError(t, store.UpsertForecast(ctx, &c))

	recs, err := store.LatestForecasts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestLatestForecastsFiltersByLocation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := forecastFixture()
	require.NoError(t, store.UpsertForecast(ctx, &a))
	b := forecastFixture()
	b.Location = "Sola"
	require.NoError(t, store.UpsertForecast(ctx, &b))

	recs, err := store.LatestForecasts(ctx, "port vila")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Port Vila", recs[0].Location)
}

func TestLatestForecastsKeepsNewestIssue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := forecastFixture()
	require.NoError(t, store.UpsertForecast(ctx, &old))

	// A fresh issue for a different day; the stale day's row remains but only
	// rows from the newest issue are reported.
	fresh := forecastFixture()
	fresh.Date = fresh.Date.AddDate(0, 0, 1)
	fresh.IssuedAt = fresh.IssuedAt.Add(6 * time.Hour)
	require.NoError(t, store.UpsertForecast(ctx, &fresh))

	recs, err := store.LatestForecasts(ctx, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, fresh.Date, recs[0].Date.UTC())
}

func TestUpsertForecastStampsUpdatedAtFromClock(t *testing.T) {
	frozen := time.Date(2023, time.March, 27, 5, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })

	store := newTestStore(t)
	rec := forecastFixture()
	require.NoError(t, store.UpsertForecast(context.Background(), &rec))

	assert.Equal(t, frozen, rec.UpdatedAt)
}

func TestUpsertMediaIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := domain.ForecastMedia{
		SourceID: "forecast-media",
		IssuedAt: time.Date(2023, time.March, 30, 7, 0, 0, 0, time.UTC),
		Summary:  "Fine weather apart from few showers.",
		Images:   domain.ImageList{"images/map1.png", "images/map2.png"},
	}
	require.NoError(t, store.UpsertMedia(ctx, &m))

	updated := m
	updated.ID = 0
	updated.Summary = "Cloudy with isolated showers."
	require.NoError(t, store.UpsertMedia(ctx, &updated))

	recs, err := store.LatestMedia(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Cloudy with isolated showers.", recs[0].Summary)
	assert.Equal(t, domain.ImageList{"images/map1.png", "images/map2.png"}, recs[0].Images)
}

func TestLatestMediaKeepsNewestIssue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := domain.ForecastMedia{
		SourceID: "forecast-media",
		IssuedAt: time.Date(2023, time.March, 29, 7, 0, 0, 0, time.UTC),
		Summary:  "Old issue.",
		Images:   domain.ImageList{"images/old.png"},
	}
	require.NoError(t, store.UpsertMedia(ctx, &old))

	fresh := domain.ForecastMedia{
		SourceID: "forecast-media",
		IssuedAt: time.Date(2023, time.March, 30, 7, 0, 0, 0, time.UTC),
		Summary:  "Fresh issue.",
		Images:   domain.ImageList{"images/fresh.png"},
	}
	require.NoError(t, store.UpsertMedia(ctx, &fresh))

	recs, err := store.LatestMedia(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Fresh issue.", recs[0].Summary)
}

func TestUpsertWarningIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	w := domain.WeatherWarning{
		SourceID: "warning-marine",
		Date:     time.Date(2023, time.March, 23, 13, 0, 0, 0, time.UTC),
		Body:     "Strong wind warning.",
		IssuedAt: time.Date(2023, time.March, 27, 4, 2, 0, 0, time.UTC),
	}
	require.NoError(t, store.UpsertWarning(ctx, &w))

	updated := w
	updated.ID = 0
	updated.Body = "Strong wind warning, seas to 3 meters."
	require.NoError(t, store.UpsertWarning(ctx, &updated))

	recs, err := store.LatestWarnings(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Strong wind warning, seas to 3 meters.", recs[0].Body)
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := domain.NewScrapeSession()
	require.NoError(t, store.SaveSession(ctx, sess))

	pending, err := store.LatestSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, domain.StatusPending, pending.Status)

	require.NoError(t, sess.RecordOutcome(domain.SourceOutcome{
		SourceID: "forecast-map", Kind: domain.OutcomeSuccess, Fetched: 14, Valid: 14, Stored: 14,
	}))
	require.NoError(t, sess.Finish(domain.RollupPolicy{}))
	require.NoError(t, store.SaveSession(ctx, sess))

	got, err := store.LatestSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, domain.StatusSuccess, got.Status)
	require.Len(t, got.Outcomes, 1)
	assert.Equal(t, 14, got.Outcomes[0].Stored)
}

func TestLatestSessionEmpty(t *testing.T) {
	store := newTestStore(t)

	got, err := store.LatestSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecentSessionsOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var last string
	for i := 0; i < 3; i++ {
		sess := domain.NewScrapeSession()
		sess.StartedAt = time.Date(2023, time.March, 27, i, 0, 0, 0, time.UTC)
		require.NoError(t, store.SaveSession(ctx, sess))
		last = sess.ID
	}

	sessions, err := store.RecentSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, last, sessions[0].ID)
}

func TestClassifyStorageErr(t *testing.T) {
	err := classifyStorageErr("k", assert.AnError)
	var uerr *domain.UpsertError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, domain.UpsertUnavailable, uerr.Cause)

	err = classifyStorageErr("k", errConstraint{})
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, domain.UpsertConstraint, uerr.Cause)
}

type errConstraint struct{}

func (errConstraint) Error() string { return "UNIQUE constraint failed: forecast_days.source_id" }
