package domain

import (
	"strconv"
	"strings"
)

// FieldKind selects the coercion applied to a raw extracted value.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldInt
	FieldFloat
	FieldDate // full date, e.g. "Friday 24th March, 2023"
	FieldDay  // bare day label resolved against the page issue date, e.g. "Sat 24"
)

// FieldSpec declares one field of a record schema: requiredness, coercion,
// and optional range or enumeration constraints.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
	Min, Max float64
	Bounded  bool
	Enum     []string
}

// Schema is a declarative description of one record kind. Validation is the
// single typing boundary between raw extracted strings and domain records.
type Schema struct {
	Name   string
	Fields []FieldSpec
}

// Temperature and humidity bounds follow the upstream validation rules:
// Vanuatu never sees temperatures outside 0-50 C, humidity is a percentage.
var forecastSchema = Schema{
	Name: "forecast",
	Fields: []FieldSpec{
		{Name: "location", Kind: FieldString, Required: true},
		{Name: "date", Kind: FieldDay, Required: true},
		{Name: "summary", Kind: FieldString},
		{Name: "minTemp", Kind: FieldInt, Required: true, Min: 0, Max: 50, Bounded: true},
		{Name: "maxTemp", Kind: FieldInt, Required: true, Min: 0, Max: 50, Bounded: true},
		{Name: "minHumidity", Kind: FieldInt, Min: 0, Max: 100, Bounded: true},
		{Name: "maxHumidity", Kind: FieldInt, Min: 0, Max: 100, Bounded: true},
		{Name: "latitude", Kind: FieldFloat, Min: -90, Max: 90, Bounded: true},
		{Name: "longitude", Kind: FieldFloat, Min: -180, Max: 180, Bounded: true},
	},
}

var warningSchema = Schema{
	Name: "warning",
	Fields: []FieldSpec{
		{Name: "date", Kind: FieldDate, Required: true},
		{Name: "body", Kind: FieldString, Required: true},
	},
}

var mediaSchema = Schema{
	Name: "media",
	Fields: []FieldSpec{
		{Name: "summary", Kind: FieldString, Required: true},
		{Name: "images", Kind: FieldString},
	},
}

// validate coerces a candidate's raw fields per the schema. It stops at the
// first offending field; the caller counts the record as rejected and moves
// on to its siblings.
func (s Schema) validate(c CandidateRecord) (map[string]any, *ValidationError) {
	typed := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		raw := strings.TrimSpace(c.Fields[f.Name])
		if raw == "" {
			if f.Required {
				return nil, &ValidationError{Field: f.Name, Reason: ReasonMissingField}
			}
			continue
		}

		switch f.Kind {
		case FieldString:
			if len(f.Enum) > 0 && !containsFold(f.Enum, raw) {
				return nil, &ValidationError{Field: f.Name, Reason: ReasonUnknownEnum, Detail: raw}
			}
			typed[f.Name] = raw

		case FieldInt:
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, &ValidationError{Field: f.Name, Reason: ReasonTypeMismatch, Detail: raw}
			}
			if f.Bounded && (float64(v) < f.Min || float64(v) > f.Max) {
				return nil, &ValidationError{Field: f.Name, Reason: ReasonOutOfRange, Detail: raw}
			}
			typed[f.Name] = v

		case FieldFloat:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &ValidationError{Field: f.Name, Reason: ReasonTypeMismatch, Detail: raw}
			}
			if f.Bounded && (v < f.Min || v > f.Max) {
				return nil, &ValidationError{Field: f.Name, Reason: ReasonOutOfRange, Detail: raw}
			}
			typed[f.Name] = v

		case FieldDate:
			t, err := ParseWarningDate(raw)
			if err != nil {
				return nil, &ValidationError{Field: f.Name, Reason: ReasonTypeMismatch, Detail: raw}
			}
			typed[f.Name] = t

		case FieldDay:
			t, err := ResolveDay(raw, c.IssuedAt)
			if err != nil {
				return nil, &ValidationError{Field: f.Name, Reason: ReasonTypeMismatch, Detail: raw}
			}
			typed[f.Name] = t
		}
	}
	return typed, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
