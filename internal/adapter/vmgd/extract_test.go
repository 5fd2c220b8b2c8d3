package vmgd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/vmgd-scraper-service/internal/config"
	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
)

const forecastMapPage = `<html><body>
<div id="issueDate">Forecast Issue Date: Monday 27th March, 2023 at 15:02 (UTC Time:04:02)</div>
<script type="text/javascript">
var weathers = [["Port Vila",-17.73,168.32,["Monday 27","Tuesday 28"],[22,23],[29,30],[60,62],[80,85]]];
var other = 1;
</script>
</body></html>`

const forecastWeekPage = `<html><body><article>
<strong>Forecast issued from the Central Forecasting Office in Port Vila at Monday 27th March, 2023 at 15:02 (UTC Time:04:02)</strong>
<table>
<tr><td>Port Vila</td></tr>
<tr><td>Monday 27 : Cloudy periods. Min: 22 &amp; Max: 29</td></tr>
<tr><td>Tuesday 28 : Showers. Min: 23 &amp; Max: 30</td></tr>
</table>
<table>
<tr><td>Sola</td></tr>
<tr><td>Monday 27 : Fine. Min: 24 &amp; Max: 31</td></tr>
</table>
</article></body></html>`

const forecastMediaPage = `<html><body>
<table class="forecastPublic">
<tr><td>
<div>
Fine weather apart from few showers over northern islands.
Moderate southeast trades.
<div><img src="images/pressure-map.png"/></div>
<div>Issued by the Central Forecasting Office at 18:00 PM,Thursday March 30 2023</div>
</div>
<img src="images/satellite.png"/>
</td></tr>
</table>
</body></html>`

const warningsPage = `<html><body>
<table class="marineFrontTabOne">
<tr><td>Current warning report issued at Mon 27th March, 2023 at 15:02 (UTC Time:04:02)</td></tr>
<tr><td></td></tr>
<tr><td>Friday 24th March, 2023</td></tr>
<tr><td>Strong wind warning for all coastal waters.</td></tr>
</table>
</body></html>`

const noWarningPage = `<html><body>
<article class="item-page"><p>There is no current warning for Vanuatu waters.</p></article>
</body></html>`

var wantIssuedAt = time.Date(2023, time.March, 27, 4, 2, 0, 0, time.UTC)

func testExtractor() *Extractor {
	return NewExtractor(slog.New(slog.DiscardHandler))
}

func extract(t *testing.T, kind, page string) (domain.Extraction, error) {
	t.Helper()
	src := config.NewSource("src-"+kind, kind, "http://example.com", "/")
	return testExtractor().Extract(src, domain.SourceDocument{
		URL:    src.URL(),
		Body:   []byte(page),
		Status: 200,
	})
}

func TestExtractForecastMap(t *testing.T) {
	ex, err := extract(t, "forecast-map", forecastMapPage)
	require.NoError(t, err)

	assert.Equal(t, wantIssuedAt, ex.IssuedAt)
	require.Len(t, ex.Candidates, 2)

	want := domain.CandidateRecord{
		Kind:     domain.KindForecast,
		SourceID: "src-forecast-map",
		IssuedAt: wantIssuedAt,
		Fields: map[string]string{
			"location":    "Port Vila",
			"latitude":    "-17.73",
			"longitude":   "168.32",
			"date":        "Monday 27",
			"minTemp":     "22",
			"maxTemp":     "29",
			"minHumidity": "60",
			"maxHumidity": "80",
		},
	}
	if diff := cmp.Diff(want, ex.Candidates[0]); diff != "" {
		t.Errorf("first candidate mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Tuesday 28", ex.Candidates[1].Fields["date"])
	assert.Equal(t, "23", ex.Candidates[1].Fields["minTemp"])
}

func TestExtractForecastMapMissingScript(t *testing.T) {
	_, err := extract(t, "forecast-map", `<html><body><p>maintenance</p></body></html>`)
	assert.ErrorIs(t, err, domain.ErrStructureChanged)
}

func TestExtractForecastMapMalformedJSON(t *testing.T) {
	page := `<html><body>
<div id="issueDate">Forecast Issue Date: Monday 27th March, 2023 at 15:02</div>
<script>var weathers = [[broken;</script>
</body></html>`
	_, err := extract(t, "forecast-map", page)
	assert.ErrorIs(t, err, domain.ErrStructureChanged)
}

func TestExtractForecastWeek(t *testing.T) {
	ex, err := extract(t, "forecast-week", forecastWeekPage)
	require.NoError(t, err)

	assert.Equal(t, wantIssuedAt, ex.IssuedAt)
	require.Len(t, ex.Candidates, 3)

	first := ex.Candidates[0]
	assert.Equal(t, "Port Vila", first.Fields["location"])
	assert.Equal(t, "Monday 27", first.Fields["date"])
	assert.Equal(t, "Cloudy periods", first.Fields["summary"])
	assert.Equal(t, "22", first.Fields["minTemp"])
	assert.Equal(t, "29", first.Fields["maxTemp"])

	// Second table, second location.
	assert.Equal(t, "Sola", ex.Candidates[2].Fields["location"])
	assert.Equal(t, "24", ex.Candidates[2].Fields["minTemp"])
}

func TestExtractForecastWeekNoTables(t *testing.T) {
	_, err := extract(t, "forecast-week", `<html><body><article><p>gone</p></article></body></html>`)
	assert.ErrorIs(t, err, domain.ErrStructureChanged)
}

func TestExtractForecastMedia(t *testing.T) {
	ex, err := extract(t, "forecast-media", forecastMediaPage)
	require.NoError(t, err)

	// 18:00 in Vanuatu (UTC+11) is 07:00 UTC.
	wantMediaIssuedAt := time.Date(2023, time.March, 30, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, wantMediaIssuedAt, ex.IssuedAt)
	require.Len(t, ex.Candidates, 1)

	c := ex.Candidates[0]
	assert.Equal(t, domain.KindMedia, c.Kind)
	assert.Equal(t, wantMediaIssuedAt, c.IssuedAt)
	assert.Equal(t,
		"Fine weather apart from few showers over northern islands. Moderate southeast trades.",
		c.Fields["summary"])
	assert.Equal(t, "images/pressure-map.png\nimages/satellite.png", c.Fields["images"])
}

func TestExtractForecastMediaNoTable(t *testing.T) {
	_, err := extract(t, "forecast-media", `<html><body><p>maintenance</p></body></html>`)
	assert.ErrorIs(t, err, domain.ErrStructureChanged)
}

func TestExtractForecastMediaNoImages(t *testing.T) {
	page := `<html><body>
<table class="forecastPublic">
<tr><td><div>Summary only.<div></div><div>Issued at 18:00 PM,Thursday March 30 2023</div></div></td></tr>
</table>
</body></html>`
	_, err := extract(t, "forecast-media", page)
	assert.ErrorIs(t, err, domain.ErrStructureChanged)
}

func TestExtractWarnings(t *testing.T) {
	ex, err := extract(t, "warnings", warningsPage)
	require.NoError(t, err)

	assert.Equal(t, wantIssuedAt, ex.IssuedAt)
	require.Len(t, ex.Candidates, 1)

	c := ex.Candidates[0]
	assert.Equal(t, domain.KindWarning, c.Kind)
	assert.Equal(t, "Friday 24th March, 2023", c.Fields["date"])
	assert.Equal(t, "Strong wind warning for all coastal waters.", c.Fields["body"])
}

func TestExtractWarningsNoCurrentWarning(t *testing.T) {
	ex, err := extract(t, "warnings", noWarningPage)
	require.NoError(t, err)
	assert.Empty(t, ex.Candidates)
}

func TestExtractWarningsStructureGone(t *testing.T) {
	_, err := extract(t, "warnings", `<html><body><div>redesigned</div></body></html>`)
	assert.ErrorIs(t, err, domain.ErrStructureChanged)
}

func TestExtractUnknownKind(t *testing.T) {
	_, err := extract(t, "tide-tables", warningsPage)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStructureChanged)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", cleanText("  a\n\t b   c "))
	assert.Equal(t, "", cleanText(" \n\t "))
}

func TestBetween(t *testing.T) {
	assert.Equal(t, "22", between("Min: 22 & Max: 29", "Min:", "&"))
	assert.Equal(t, "29", between("Min: 22 & Max: 29", "Max:", "&"))
	assert.Equal(t, "", between("no markers here", "Min:", "&"))
}
