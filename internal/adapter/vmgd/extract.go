package vmgd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/couchcryptid/vmgd-scraper-service/internal/config"
	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
)

type extractFunc func(doc *goquery.Document, sourceID string) (domain.Extraction, error)

// Extractor locates data by structural anchors (a known script variable, a
// table class, an article element) rather than absolute positions, so
// cosmetic upstream layout changes degrade to fewer records instead of
// crashing. All site-specific parsing rules live here; the rest of the
// pipeline never sees HTML.
type Extractor struct {
	rules  map[string]extractFunc
	logger *slog.Logger
}

// NewExtractor builds the extractor with the rule set for the known page
// kinds: forecast-map, forecast-week, forecast-media, warnings.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		rules: map[string]extractFunc{
			"forecast-map":   extractForecastMap,
			"forecast-week":  extractForecastWeek,
			"forecast-media": extractForecastMedia,
			"warnings":       extractWarnings,
		},
		logger: logger,
	}
}

// Extract parses one fetched document with the rule for the source's kind.
// A page whose structural anchors are missing yields zero candidates and an
// error wrapping domain.ErrStructureChanged; malformed markup never panics.
func (e *Extractor) Extract(src config.Source, doc domain.SourceDocument) (domain.Extraction, error) {
	rule, ok := e.rules[src.Kind]
	if !ok {
		return domain.Extraction{}, fmt.Errorf("unknown source kind %q", src.Kind)
	}

	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("parse html: %w: %w", domain.ErrStructureChanged, err)
	}

	ex, err := rule(gq, src.ID)
	if err == nil {
		e.logger.Debug("page extracted",
			"source", src.ID, "kind", src.Kind, "candidates", len(ex.Candidates))
	}
	return ex, err
}

// extractForecastMap reads the forecast map page. All data sits in a script
// tag assigning a JSON array to `var weathers`; each element is a positional
// array per location:
//
//	[name, lat, lon, dates[8], minTemp[7], maxTemp[7], minHumi[7], maxHumi[7],
//	 condition[16], windDir[16], windSpeed[16], dtFlag, currentDate, dateHour[16]]
func extractForecastMap(doc *goquery.Document, sourceID string) (domain.Extraction, error) {
	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.HasPrefix(text, "var weathers") {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return domain.Extraction{}, fmt.Errorf("forecast script: %w", domain.ErrStructureChanged)
	}

	line, _, _ := strings.Cut(script, "\n")
	_, assigned, found := strings.Cut(line, " = ")
	if !found {
		return domain.Extraction{}, fmt.Errorf("forecast script assignment: %w", domain.ErrStructureChanged)
	}
	arrayText := strings.TrimSuffix(strings.TrimSpace(assigned), ";")

	var weathers [][]any
	if err := json.Unmarshal([]byte(arrayText), &weathers); err != nil {
		return domain.Extraction{}, fmt.Errorf("forecast script json: %w: %w", domain.ErrStructureChanged, err)
	}

	issuedAt, err := domain.ParseIssuedAt(doc.Find("div#issueDate").Text(), "Forecast Issue Date:")
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("forecast issue date: %w: %w", domain.ErrStructureChanged, err)
	}

	ex := domain.Extraction{IssuedAt: issuedAt}
	for _, w := range weathers {
		// name, lat, lon, then the parallel day arrays
		if len(w) < 8 {
			continue
		}
		location := fmt.Sprint(w[0])
		lat, lon := fmt.Sprint(w[1]), fmt.Sprint(w[2])
		dates := anySlice(w[3])
		minTemps := anySlice(w[4])
		maxTemps := anySlice(w[5])
		minHumis := anySlice(w[6])
		maxHumis := anySlice(w[7])

		for i := 0; i < len(minTemps); i++ {
			ex.Candidates = append(ex.Candidates, domain.CandidateRecord{
				Kind:     domain.KindForecast,
				SourceID: sourceID,
				IssuedAt: issuedAt,
				Fields: map[string]string{
					"location":    location,
					"latitude":    lat,
					"longitude":   lon,
					"date":        indexOrEmpty(dates, i),
					"minTemp":     indexOrEmpty(minTemps, i),
					"maxTemp":     indexOrEmpty(maxTemps, i),
					"minHumidity": indexOrEmpty(minHumis, i),
					"maxHumidity": indexOrEmpty(maxHumis, i),
				},
			})
		}
	}
	return ex, nil
}

// extractForecastWeek reads the 7-day public forecast page: one table per
// location, first row the location name, then one row per day shaped
// "Saturday 24 : Cloudy with showers. Min: 22 & Max: 29".
func extractForecastWeek(doc *goquery.Document, sourceID string) (domain.Extraction, error) {
	article := doc.Find("article")
	tables := article.Find("table")
	if tables.Length() == 0 {
		return domain.Extraction{}, fmt.Errorf("forecast tables: %w", domain.ErrStructureChanged)
	}

	issuedText := cleanText(tables.First().PrevAllFiltered("strong").First().Text())
	issuedAt, err := domain.ParseIssuedAt(issuedText, "Port Vila at")
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("forecast issue date: %w: %w", domain.ErrStructureChanged, err)
	}

	ex := domain.Extraction{IssuedAt: issuedAt}
	tables.Each(func(_ int, table *goquery.Selection) {
		var location string
		table.Find("tr").Each(func(row int, tr *goquery.Selection) {
			text := cleanText(tr.Text())
			if row == 0 {
				location = text
				return
			}

			date, forecast, found := strings.Cut(text, " : ")
			if !found {
				return
			}
			summary, _, _ := strings.Cut(forecast, ".")
			minTemp := between(forecast, "Min:", "&")
			maxTemp := between(forecast, "Max:", "&")

			ex.Candidates = append(ex.Candidates, domain.CandidateRecord{
				Kind:     domain.KindForecast,
				SourceID: sourceID,
				IssuedAt: issuedAt,
				Fields: map[string]string{
					"location": location,
					"date":     date,
					"summary":  summary,
					"minTemp":  minTemp,
					"maxTemp":  maxTemp,
				},
			})
		})
	})
	return ex, nil
}

// extractForecastMedia reads the public forecast media page: a
// table.forecastPublic holding the narrative summary as loose text inside its
// first div, chart images, and the issue timestamp in a nested div shaped
// "... at 18:00 PM,Thursday March 30 2023".
func extractForecastMedia(doc *goquery.Document, sourceID string) (domain.Extraction, error) {
	table := doc.Find("table.forecastPublic")
	if table.Length() == 0 {
		return domain.Extraction{}, fmt.Errorf("media table: %w", domain.ErrStructureChanged)
	}

	var images []string
	table.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			images = append(images, src)
		}
	})
	if len(images) == 0 {
		return domain.Extraction{}, fmt.Errorf("media images: %w", domain.ErrStructureChanged)
	}

	container := table.Find("div").First()
	issuedText := cleanText(container.Find("div").Eq(1).Text())
	_, after, found := strings.Cut(issuedText, " at ")
	if !found {
		return domain.Extraction{}, fmt.Errorf("media issue date: %w", domain.ErrStructureChanged)
	}
	issuedAt, err := domain.ParseMediaIssuedAt(after)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("media issue date: %w: %w", domain.ErrStructureChanged, err)
	}

	// The summary is the container's own text, not its nested divs'.
	summary := container.Clone()
	summary.Find("div").Remove()

	return domain.Extraction{
		IssuedAt: issuedAt,
		Candidates: []domain.CandidateRecord{{
			Kind:     domain.KindMedia,
			SourceID: sourceID,
			IssuedAt: issuedAt,
			Fields: map[string]string{
				"summary": cleanText(summary.Text()),
				"images":  strings.Join(images, "\n"),
			},
		}},
	}, nil
}

// extractWarnings reads a warnings page. Warnings live in a
// table.marineFrontTabOne whose first row carries the issue timestamp and
// whose remaining rows alternate date/body. A page with no table but the
// "no current warning" text is a legitimate empty result, not a failure.
func extractWarnings(doc *goquery.Document, sourceID string) (domain.Extraction, error) {
	table := doc.Find("table.marineFrontTabOne")
	if table.Length() == 0 {
		article := doc.Find("article.item-page")
		if article.Length() > 0 && strings.Contains(strings.ToLower(cleanText(article.Text())), "no current warning") {
			return domain.Extraction{}, nil
		}
		return domain.Extraction{}, fmt.Errorf("warnings table: %w", domain.ErrStructureChanged)
	}

	rows := table.First().Find("tr")
	issuedAt, err := domain.ParseIssuedAt(cleanText(rows.First().Text()), "report issued at")
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("warnings issue date: %w: %w", domain.ErrStructureChanged, err)
	}

	// Rows 0-1 belong to the issue header; warnings follow in date/body pairs.
	ex := domain.Extraction{IssuedAt: issuedAt}
	for idx := 2; idx+1 < rows.Length(); idx += 2 {
		ex.Candidates = append(ex.Candidates, domain.CandidateRecord{
			Kind:     domain.KindWarning,
			SourceID: sourceID,
			IssuedAt: issuedAt,
			Fields: map[string]string{
				"date": cleanText(rows.Eq(idx).Text()),
				"body": cleanText(rows.Eq(idx + 1).Text()),
			},
		})
	}
	return ex, nil
}

// cleanText collapses runs of HTML whitespace into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// between returns the trimmed text after the first start marker and before
// the next end marker, or "" when either marker is absent.
func between(s, start, end string) string {
	_, after, found := strings.Cut(s, start)
	if !found {
		return ""
	}
	value, _, _ := strings.Cut(after, end)
	return strings.TrimSpace(value)
}

func anySlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func indexOrEmpty(s []any, i int) string {
	if i >= len(s) {
		return ""
	}
	return fmt.Sprint(s[i])
}
