package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
)

var issuedAt = time.Date(2023, time.March, 27, 4, 2, 0, 0, time.UTC)

func forecastCandidate(overrides map[string]string) domain.CandidateRecord {
	fields := map[string]string{
		"location":    "Port Vila",
		"date":        "Tuesday 28",
		"summary":     "Cloudy periods",
		"minTemp":     "22",
		"maxTemp":     "29",
		"minHumidity": "60",
		"maxHumidity": "85",
		"latitude":    "-17.73",
		"longitude":   "168.32",
	}
	for k, v := range overrides {
		fields[k] = v
	}
	return domain.CandidateRecord{
		Kind:     domain.KindForecast,
		SourceID: "forecast-map",
		IssuedAt: issuedAt,
		Fields:   fields,
	}
}

func TestValidateForecast(t *testing.T) {
	v := domain.NewValidator(nil)

	rec, err := v.ValidateForecast(forecastCandidate(nil))
	require.NoError(t, err)

	assert.Equal(t, "forecast-map", rec.SourceID)
	assert.Equal(t, "Port Vila", rec.Location)
	assert.Equal(t, time.Date(2023, time.March, 27, 13, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "Cloudy periods", rec.Summary)
	assert.Equal(t, 22, rec.MinTemp)
	assert.Equal(t, 29, rec.MaxTemp)
	assert.Equal(t, 60, rec.MinHumidity)
	assert.Equal(t, 85, rec.MaxHumidity)
	assert.InDelta(t, -17.73, rec.Latitude, 0.001)
	assert.InDelta(t, 168.32, rec.Longitude, 0.001)
	assert.Equal(t, issuedAt, rec.IssuedAt)
}

func TestValidateForecastOptionalFieldsAbsent(t *testing.T) {
	v := domain.NewValidator(nil)

	c := domain.CandidateRecord{
		Kind:     domain.KindForecast,
		SourceID: "forecast-week",
		IssuedAt: issuedAt,
		Fields: map[string]string{
			"location": "Sola",
			"date":     "Tuesday 28",
			"minTemp":  "21",
			"maxTemp":  "28",
		},
	}
	rec, err := v.ValidateForecast(c)
	require.NoError(t, err)
	assert.Zero(t, rec.MinHumidity)
	assert.Zero(t, rec.Latitude)
	assert.Empty(t, rec.Summary)
}

func TestValidateForecastRejections(t *testing.T) {
	v := domain.NewValidator(nil)

	tests := []struct {
		name      string
		overrides map[string]string
		field     string
		reason    domain.ValidationReason
	}{
		{
			name:      "missing location",
			overrides: map[string]string{"location": ""},
			field:     "location",
			reason:    domain.ReasonMissingField,
		},
		{
			name:      "missing min temperature",
			overrides: map[string]string{"minTemp": ""},
			field:     "minTemp",
			reason:    domain.ReasonMissingField,
		},
		{
			name:      "non-numeric temperature",
			overrides: map[string]string{"maxTemp": "warm"},
			field:     "maxTemp",
			reason:    domain.ReasonTypeMismatch,
		},
		{
			name:      "temperature above range",
			overrides: map[string]string{"maxTemp": "55"},
			field:     "maxTemp",
			reason:    domain.ReasonOutOfRange,
		},
		{
			name:      "negative temperature",
			overrides: map[string]string{"minTemp": "-3"},
			field:     "minTemp",
			reason:    domain.ReasonOutOfRange,
		},
		{
			name:      "humidity above percentage range",
			overrides: map[string]string{"maxHumidity": "150"},
			field:     "maxHumidity",
			reason:    domain.ReasonOutOfRange,
		},
		{
			name:      "unparseable day label",
			overrides: map[string]string{"date": "whenever"},
			field:     "date",
			reason:    domain.ReasonTypeMismatch,
		},
		{
			name:      "min exceeds max",
			overrides: map[string]string{"minTemp": "30", "maxTemp": "25"},
			field:     "minTemp",
			reason:    domain.ReasonOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateForecast(forecastCandidate(tt.overrides))
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}

func TestValidateForecastLocationEnum(t *testing.T) {
	v := domain.NewValidator([]string{"Port Vila", "Sola"})

	_, err := v.ValidateForecast(forecastCandidate(nil))
	assert.NoError(t, err)

	// Case-insensitive match.
	_, err = v.ValidateForecast(forecastCandidate(map[string]string{"location": "port vila"}))
	assert.NoError(t, err)

	_, err = v.ValidateForecast(forecastCandidate(map[string]string{"location": "Atlantis"}))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.ReasonUnknownEnum, verr.Reason)
}

func TestValidateMedia(t *testing.T) {
	v := domain.NewValidator(nil)

	rec, err := v.ValidateMedia(domain.CandidateRecord{
		Kind:     domain.KindMedia,
		SourceID: "forecast-media",
		IssuedAt: issuedAt,
		Fields: map[string]string{
			"summary": "Fine weather apart from few showers.",
			"images":  "images/map1.png\nimages/map2.png\n",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "forecast-media", rec.SourceID)
	assert.Equal(t, issuedAt, rec.IssuedAt)
	assert.Equal(t, "Fine weather apart from few showers.", rec.Summary)
	assert.Equal(t, domain.ImageList{"images/map1.png", "images/map2.png"}, rec.Images)
}

func TestValidateMediaMissingSummary(t *testing.T) {
	v := domain.NewValidator(nil)

	_, err := v.ValidateMedia(domain.CandidateRecord{
		Kind:     domain.KindMedia,
		SourceID: "forecast-media",
		IssuedAt: issuedAt,
		Fields:   map[string]string{"images": "images/map.png"},
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "summary", verr.Field)
	assert.Equal(t, domain.ReasonMissingField, verr.Reason)
}

func TestValidateWarning(t *testing.T) {
	v := domain.NewValidator(nil)

	rec, err := v.ValidateWarning(domain.CandidateRecord{
		Kind:     domain.KindWarning,
		SourceID: "warning-marine",
		IssuedAt: issuedAt,
		Fields: map[string]string{
			"date": "Friday 24th March, 2023",
			"body": "Strong wind warning for coastal waters.",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "warning-marine", rec.SourceID)
	assert.Equal(t, time.Date(2023, time.March, 23, 13, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "Strong wind warning for coastal waters.", rec.Body)
}

func TestValidateWarningMissingBody(t *testing.T) {
	v := domain.NewValidator(nil)

	_, err := v.ValidateWarning(domain.CandidateRecord{
		Kind:     domain.KindWarning,
		SourceID: "warning-marine",
		IssuedAt: issuedAt,
		Fields:   map[string]string{"date": "Friday 24th March, 2023"},
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "body", verr.Field)
	assert.Equal(t, domain.ReasonMissingField, verr.Reason)
}
