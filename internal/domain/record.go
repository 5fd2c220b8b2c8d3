package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// RecordKind distinguishes the record families produced by extraction.
type RecordKind string

const (
	KindForecast RecordKind = "forecast"
	KindWarning  RecordKind = "warning"
	KindMedia    RecordKind = "media"
)

// SourceDocument is one fetched page. It lives only for the duration of a
// single extraction pass and is never persisted.
type SourceDocument struct {
	URL       string
	Body      []byte
	Status    int
	FetchedAt time.Time
}

// CandidateRecord is the extractor's output before validation: raw string
// values keyed by field name. Typing happens in the validator, nowhere else.
type CandidateRecord struct {
	Kind     RecordKind
	SourceID string
	IssuedAt time.Time
	Fields   map[string]string
}

// Extraction is the result of one pass over a fetched page: the page's issue
// timestamp and its candidate records in document order.
type Extraction struct {
	IssuedAt   time.Time
	Candidates []CandidateRecord
}

// ForecastDay is one validated day of forecast for one location.
type ForecastDay struct {
	bun.BaseModel `bun:"table:forecast_days,alias:fd"`

	ID          int64     `bun:"id,pk,autoincrement" json:"-"`
	SourceID    string    `bun:"source_id,notnull,unique:forecast_natural_key" json:"source_id"`
	Location    string    `bun:"location,notnull,unique:forecast_natural_key" json:"location"`
	Date        time.Time `bun:"date,notnull,unique:forecast_natural_key" json:"date"`
	Latitude    float64   `bun:"latitude,nullzero" json:"latitude,omitempty"`
	Longitude   float64   `bun:"longitude,nullzero" json:"longitude,omitempty"`
	Summary     string    `bun:"summary" json:"summary,omitempty"`
	MinTemp     int       `bun:"min_temp,notnull" json:"min_temp"`
	MaxTemp     int       `bun:"max_temp,notnull" json:"max_temp"`
	MinHumidity int       `bun:"min_humidity,nullzero" json:"min_humidity,omitempty"`
	MaxHumidity int       `bun:"max_humidity,nullzero" json:"max_humidity,omitempty"`
	IssuedAt    time.Time `bun:"issued_at,notnull" json:"issued_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// NaturalKey returns the business identity used for idempotent upserts.
func (f ForecastDay) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", f.SourceID, f.Location, f.Date.Format(time.DateOnly))
}

// WeatherWarning is one validated hazard warning entry.
type WeatherWarning struct {
	bun.BaseModel `bun:"table:weather_warnings,alias:ww"`

	ID        int64     `bun:"id,pk,autoincrement" json:"-"`
	SourceID  string    `bun:"source_id,notnull,unique:warning_natural_key" json:"source_id"`
	Date      time.Time `bun:"date,notnull,unique:warning_natural_key" json:"date"`
	Body      string    `bun:"body" json:"body"`
	IssuedAt  time.Time `bun:"issued_at,notnull" json:"issued_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// NaturalKey returns the business identity used for idempotent upserts.
func (w WeatherWarning) NaturalKey() string {
	return fmt.Sprintf("%s|%s", w.SourceID, w.Date.Format(time.DateOnly))
}

// ImageList stores media image URLs in SQLite as a JSON column.
type ImageList []string

func (l ImageList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

func (l *ImageList) Scan(value any) error {
	if value == nil {
		*l = ImageList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("failed to scan ImageList")
	}
}

// ForecastMedia is the narrative public-forecast bulletin: a free-text
// summary plus the chart images published alongside it. One row per issue.
type ForecastMedia struct {
	bun.BaseModel `bun:"table:forecast_media,alias:fm"`

	ID        int64     `bun:"id,pk,autoincrement" json:"-"`
	SourceID  string    `bun:"source_id,notnull,unique:media_natural_key" json:"source_id"`
	IssuedAt  time.Time `bun:"issued_at,notnull,unique:media_natural_key" json:"issued_at"`
	Summary   string    `bun:"summary,notnull" json:"summary"`
	Images    ImageList `bun:"images,type:json" json:"images"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// NaturalKey returns the business identity used for idempotent upserts.
func (m ForecastMedia) NaturalKey() string {
	return fmt.Sprintf("%s|%s", m.SourceID, m.IssuedAt.Format(time.RFC3339))
}
