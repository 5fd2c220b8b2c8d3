// Command scrapecheck runs the extraction and validation stages against a
// saved HTML page, without touching storage. It is the tool to reach for when
// the upstream site changes layout: point it at a downloaded page and see
// which records survive.
//
// Usage:
//
//	go run ./cmd/scrapecheck -kind forecast-map -file page.html
//	go run ./cmd/scrapecheck -kind warnings -file warnings.html -locations "Port Vila,Sola"
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/vmgd-scraper-service/internal/adapter/vmgd"
	"github.com/couchcryptid/vmgd-scraper-service/internal/config"
	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
)

func main() {
	kind := flag.String("kind", "", "page kind: forecast-map, forecast-week, forecast-media, warnings")
	file := flag.String("file", "", "path to a saved HTML page")
	locations := flag.String("locations", "", "comma-separated known locations (default: all)")
	flag.Parse()

	if *kind == "" || *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*kind, *file, *locations); code != 0 {
		os.Exit(code)
	}
}

func run(kind, file, locations string) int {
	body, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read page:", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	extractor := vmgd.NewExtractor(logger)

	var known []string
	for _, loc := range strings.Split(locations, ",") {
		if loc = strings.TrimSpace(loc); loc != "" {
			known = append(known, loc)
		}
	}
	validator := domain.NewValidator(known)

	src := config.NewSource("scrapecheck", kind, "", "")
	doc := domain.SourceDocument{URL: file, Body: body, Status: 200, FetchedAt: time.Now().UTC()}

	ex, err := extractor.Extract(src, doc)
	if err != nil {
		if errors.Is(err, domain.ErrStructureChanged) {
			fmt.Fprintln(os.Stderr, "STRUCTURE CHANGED:", err)
			return 2
		}
		fmt.Fprintln(os.Stderr, "extract:", err)
		return 1
	}

	fmt.Printf("issued_at: %s\n", ex.IssuedAt.Format(time.RFC3339))
	fmt.Printf("candidates: %d\n", len(ex.Candidates))

	valid, rejected := 0, 0
	for i, c := range ex.Candidates {
		var rec any
		var verr error
		switch c.Kind {
		case domain.KindForecast:
			rec, verr = validator.ValidateForecast(c)
		case domain.KindMedia:
			rec, verr = validator.ValidateMedia(c)
		case domain.KindWarning:
			rec, verr = validator.ValidateWarning(c)
		}
		if verr != nil {
			rejected++
			fmt.Printf("  [%d] REJECTED: %v  fields=%v\n", i, verr, c.Fields)
			continue
		}
		valid++
		out, _ := json.Marshal(rec)
		fmt.Printf("  [%d] %s\n", i, out)
	}

	fmt.Printf("valid: %d, rejected: %d\n", valid, rejected)
	if valid == 0 && len(ex.Candidates) > 0 {
		return 2
	}
	return 0
}
