package domain

import (
	"strings"
	"time"
)

// Validator turns candidate records into typed domain records. A non-empty
// location list enables the enumeration check so typos introduced by upstream
// markup drift are rejected instead of stored as new locations.
type Validator struct {
	forecast Schema
	warning  Schema
	media    Schema
}

// NewValidator builds a validator, optionally restricting forecast locations
// to a known set.
func NewValidator(knownLocations []string) *Validator {
	fs := forecastSchema
	if len(knownLocations) > 0 {
		fields := make([]FieldSpec, len(fs.Fields))
		copy(fields, fs.Fields)
		for i := range fields {
			if fields[i].Name == "location" {
				fields[i].Enum = knownLocations
			}
		}
		fs.Fields = fields
	}
	return &Validator{forecast: fs, warning: warningSchema, media: mediaSchema}
}

// ValidateForecast checks one forecast candidate against the declarative
// schema and returns the typed record. The returned error, if any, is a
// *ValidationError scoped to this record only.
func (v *Validator) ValidateForecast(c CandidateRecord) (ForecastDay, error) {
	typed, verr := v.forecast.validate(c)
	if verr != nil {
		return ForecastDay{}, verr
	}

	rec := ForecastDay{
		SourceID: c.SourceID,
		Location: typed["location"].(string),
		Date:     typed["date"].(time.Time),
		MinTemp:  typed["minTemp"].(int),
		MaxTemp:  typed["maxTemp"].(int),
		IssuedAt: c.IssuedAt.UTC(),
	}
	if s, ok := typed["summary"].(string); ok {
		rec.Summary = s
	}
	if h, ok := typed["minHumidity"].(int); ok {
		rec.MinHumidity = h
	}
	if h, ok := typed["maxHumidity"].(int); ok {
		rec.MaxHumidity = h
	}
	if lat, ok := typed["latitude"].(float64); ok {
		rec.Latitude = lat
	}
	if lon, ok := typed["longitude"].(float64); ok {
		rec.Longitude = lon
	}

	if rec.MinTemp > rec.MaxTemp {
		return ForecastDay{}, &ValidationError{
			Field:  "minTemp",
			Reason: ReasonOutOfRange,
			Detail: "min temperature exceeds max",
		}
	}
	return rec, nil
}

// ValidateMedia checks one forecast-media candidate and returns the typed
// record. Image URLs arrive newline-joined from extraction.
func (v *Validator) ValidateMedia(c CandidateRecord) (ForecastMedia, error) {
	typed, verr := v.media.validate(c)
	if verr != nil {
		return ForecastMedia{}, verr
	}

	rec := ForecastMedia{
		SourceID: c.SourceID,
		IssuedAt: c.IssuedAt.UTC(),
		Summary:  typed["summary"].(string),
	}
	if raw, ok := typed["images"].(string); ok {
		for _, img := range strings.Split(raw, "\n") {
			if img = strings.TrimSpace(img); img != "" {
				rec.Images = append(rec.Images, img)
			}
		}
	}
	return rec, nil
}

// ValidateWarning checks one warning candidate and returns the typed record.
func (v *Validator) ValidateWarning(c CandidateRecord) (WeatherWarning, error) {
	typed, verr := v.warning.validate(c)
	if verr != nil {
		return WeatherWarning{}, verr
	}
	return WeatherWarning{
		SourceID: c.SourceID,
		Date:     typed["date"].(time.Time),
		Body:     typed["body"].(string),
		IssuedAt: c.IssuedAt.UTC(),
	}, nil
}
