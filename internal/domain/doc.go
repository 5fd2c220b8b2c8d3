// Package domain models forecast and warning data published by the Vanuatu
// Meteorology & Geo-Hazards Department (VMGD).
//
// # Data Source
//
// Records are scraped from the public pages under
// https://www.vmgd.gov.vu/vmgd/index.php/forecast-division. The site has no
// API; data is embedded in the HTML in three shapes:
//
//   - The forecast map page carries a `var weathers = [...]` JSON array inside
//     a script tag. Each element describes one location: name, coordinates,
//     seven day labels, and parallel arrays of min/max temperature and
//     min/max humidity.
//   - The 7-day public forecast page renders one table per location with rows
//     shaped "Saturday 24 : Cloudy with showers. Min: 22 & Max: 29".
//   - Warning pages (severe weather, marine, high seas) render a
//     `table.marineFrontTabOne` whose rows alternate between a warning date
//     and a warning body. A page stating "no current warning" carries no
//     table and no records.
//
// # Date Conventions
//
// Issue timestamps appear as text such as
//
//	"Mon 27th March, 2023 at 15:02 (UTC Time:04:02)"
//
// in Vanuatu local time (UTC+11). Ordinal suffixes are stripped before
// parsing and every timestamp is normalized to UTC before storage.
//
// Forecast rows label days as "Saturday 24" or "Sat 24" with no month or
// year. The day number is resolved against the page's issue date; a day
// number lower than the issue day means the forecast has wrapped into the
// next month.
//
// # Natural Keys
//
// Forecast rows are identified by (source, location, date) and warnings by
// (source, date). Re-scraping an unchanged page therefore updates rows in
// place rather than inserting duplicates.
package domain
