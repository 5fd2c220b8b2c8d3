package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/vmgd-scraper-service/internal/config"
	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
	"github.com/couchcryptid/vmgd-scraper-service/internal/observability"
)

// Fetcher retrieves one source page.
type Fetcher interface {
	Fetch(ctx context.Context, src config.Source) (domain.SourceDocument, error)
}

// Extractor turns a fetched page into candidate records.
type Extractor interface {
	Extract(src config.Source, doc domain.SourceDocument) (domain.Extraction, error)
}

// RecordStore persists validated records and scrape sessions.
type RecordStore interface {
	UpsertForecast(ctx context.Context, rec *domain.ForecastDay) error
	UpsertMedia(ctx context.Context, rec *domain.ForecastMedia) error
	UpsertWarning(ctx context.Context, rec *domain.WeatherWarning) error
	SaveSession(ctx context.Context, sess *domain.ScrapeSession) error
}

// Feed publishes stored records to downstream consumers. Optional.
type Feed interface {
	PublishForecasts(ctx context.Context, recs []domain.ForecastDay) error
	PublishMedia(ctx context.Context, recs []domain.ForecastMedia) error
	PublishWarnings(ctx context.Context, recs []domain.WeatherWarning) error
}

// Pipeline runs one scrape session across all configured sources:
// fetch, extract, validate, upsert, each source isolated from the others.
type Pipeline struct {
	fetcher   Fetcher
	extractor Extractor
	validator *domain.Validator
	store     RecordStore
	feed      Feed

	sources       []config.Source
	sourceTimeout time.Duration
	rollup        domain.RollupPolicy

	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New wires a pipeline. feed may be nil when no record feed is configured.
func New(
	fetcher Fetcher,
	extractor Extractor,
	validator *domain.Validator,
	store RecordStore,
	feed Feed,
	cfg *config.Config,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		fetcher:       fetcher,
		extractor:     extractor,
		validator:     validator,
		store:         store,
		feed:          feed,
		sources:       cfg.Sources,
		sourceTimeout: cfg.SourceTimeout,
		rollup:        domain.RollupPolicy{EmptyIsFailure: cfg.EmptyIsFailure},
		logger:        logger,
		metrics:       metrics,
	}
}

// RunOnce executes a full scrape session. Sources run concurrently; their
// outcomes flow through a channel into this goroutine, which is the only
// writer of the session. The returned session is always finished, whatever
// the individual sources did.
func (p *Pipeline) RunOnce(ctx context.Context) (*domain.ScrapeSession, error) {
	sess := domain.NewScrapeSession()
	p.metrics.RunActive.Set(1)
	defer p.metrics.RunActive.Set(0)

	p.logger.Info("scrape run starting", "session", sess.ID, "sources", len(p.sources))

	if err := p.store.SaveSession(ctx, sess); err != nil {
		p.logger.Warn("pending session not saved", "session", sess.ID, "error", err)
	}

	// Buffered so source goroutines never block on send if this collector
	// returns early.
	outcomes := make(chan domain.SourceOutcome, len(p.sources))
	for _, src := range p.sources {
		go p.runSource(ctx, src, outcomes)
	}

	for range p.sources {
		o := <-outcomes
		if err := sess.RecordOutcome(o); err != nil {
			return nil, err
		}
		p.logger.Info("source finished",
			"session", sess.ID,
			"source", o.SourceID,
			"outcome", o.Kind,
			"fetched", o.Fetched,
			"valid", o.Valid,
			"rejected", o.Rejected,
			"stored", o.Stored,
		)
	}

	if err := sess.Finish(p.rollup); err != nil {
		return nil, err
	}
	p.metrics.Sessions.WithLabelValues(string(sess.Status)).Inc()
	p.metrics.SessionDuration.Observe(sess.FinishedAt.Sub(sess.StartedAt).Seconds())

	// The run context may already be past its deadline; the finished session
	// must still reach storage.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.store.SaveSession(saveCtx, sess); err != nil {
		p.logger.Error("session not saved", "session", sess.ID, "error", err)
	}
	p.ready.Store(true)

	p.logger.Info("scrape run finished",
		"session", sess.ID,
		"status", sess.Status,
		"duration", sess.FinishedAt.Sub(sess.StartedAt),
	)
	return sess, nil
}

// CheckReadiness reports ready once the first session has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no scrape session completed yet")
	}
	return nil
}

// runSource processes one source end to end under its own deadline and sends
// exactly one outcome. A panic or failure here never touches other sources.
func (p *Pipeline) runSource(ctx context.Context, src config.Source, outcomes chan<- domain.SourceOutcome) {
	timeout := p.sourceTimeout
	if src.Timeout > 0 {
		timeout = src.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	o := domain.SourceOutcome{SourceID: src.ID}
	defer func() { outcomes <- o }()

	doc, err := p.fetcher.Fetch(ctx, src)
	if err != nil {
		o.Kind = domain.OutcomeFailure
		o.Error = err.Error()
		p.metrics.PagesFetched.WithLabelValues(src.ID, "error").Inc()
		p.logger.Error("fetch failed", "source", src.ID, "error", err)
		return
	}
	p.metrics.PagesFetched.WithLabelValues(src.ID, "success").Inc()

	ex, err := p.extractor.Extract(src, doc)
	if err != nil {
		if errors.Is(err, domain.ErrStructureChanged) {
			// The page came back but its anchors are gone. Zero records with
			// the error preserved, so operators can tell this apart from a
			// legitimately empty page.
			o.Kind = domain.OutcomeEmpty
			o.Error = err.Error()
			p.logger.Warn("page structure changed", "source", src.ID, "error", err)
			return
		}
		o.Kind = domain.OutcomeFailure
		o.Error = err.Error()
		p.logger.Error("extraction failed", "source", src.ID, "error", err)
		return
	}

	o.Fetched = len(ex.Candidates)
	p.metrics.RecordsFetched.WithLabelValues(src.ID).Add(float64(o.Fetched))

	var forecasts []domain.ForecastDay
	var media []domain.ForecastMedia
	var warnings []domain.WeatherWarning
	for _, c := range ex.Candidates {
		switch c.Kind {
		case domain.KindForecast:
			rec, err := p.validator.ValidateForecast(c)
			if err != nil {
				p.reject(&o, src.ID, c, err)
				continue
			}
			forecasts = append(forecasts, rec)
		case domain.KindMedia:
			rec, err := p.validator.ValidateMedia(c)
			if err != nil {
				p.reject(&o, src.ID, c, err)
				continue
			}
			media = append(media, rec)
		case domain.KindWarning:
			rec, err := p.validator.ValidateWarning(c)
			if err != nil {
				p.reject(&o, src.ID, c, err)
				continue
			}
			warnings = append(warnings, rec)
		}
		o.Valid++
	}

	storedForecasts := forecasts[:0]
	for i := range forecasts {
		if err := p.store.UpsertForecast(ctx, &forecasts[i]); err != nil {
			if p.storageDown(&o, src.ID, err) {
				return
			}
			continue
		}
		storedForecasts = append(storedForecasts, forecasts[i])
		o.Stored++
	}
	storedMedia := media[:0]
	for i := range media {
		if err := p.store.UpsertMedia(ctx, &media[i]); err != nil {
			if p.storageDown(&o, src.ID, err) {
				return
			}
			continue
		}
		storedMedia = append(storedMedia, media[i])
		o.Stored++
	}
	storedWarnings := warnings[:0]
	for i := range warnings {
		if err := p.store.UpsertWarning(ctx, &warnings[i]); err != nil {
			if p.storageDown(&o, src.ID, err) {
				return
			}
			continue
		}
		storedWarnings = append(storedWarnings, warnings[i])
		o.Stored++
	}
	p.metrics.RecordsStored.WithLabelValues(src.ID).Add(float64(o.Stored))

	if o.Valid == 0 {
		o.Kind = domain.OutcomeEmpty
	} else {
		o.Kind = domain.OutcomeSuccess
	}

	p.publish(ctx, src.ID, storedForecasts, storedMedia, storedWarnings)
}

// reject counts one validation rejection and logs it with its taxonomy reason.
func (p *Pipeline) reject(o *domain.SourceOutcome, sourceID string, c domain.CandidateRecord, err error) {
	o.Rejected++
	reason := "invalid"
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		reason = string(verr.Reason)
	}
	p.metrics.RecordsRejected.WithLabelValues(sourceID, reason).Inc()
	p.logger.Warn("record rejected", "source", sourceID, "reason", reason, "error", err, "fields", c.Fields)
}

// storageDown marks the outcome failed and reports true when storage is
// unreachable, so the caller stops issuing writes. Constraint violations are
// logged and skipped; the rest of the batch still gets its chance.
func (p *Pipeline) storageDown(o *domain.SourceOutcome, sourceID string, err error) bool {
	var uerr *domain.UpsertError
	if errors.As(err, &uerr) && uerr.Cause == domain.UpsertConstraint {
		p.logger.Warn("upsert skipped", "source", sourceID, "key", uerr.Key, "error", err)
		return false
	}
	o.Kind = domain.OutcomeFailure
	o.Error = err.Error()
	p.logger.Error("storage unavailable", "source", sourceID, "error", err)
	return true
}

// publish forwards stored records to the feed, best effort.
func (p *Pipeline) publish(ctx context.Context, sourceID string, forecasts []domain.ForecastDay, media []domain.ForecastMedia, warnings []domain.WeatherWarning) {
	if p.feed == nil {
		return
	}
	if err := p.feed.PublishForecasts(ctx, forecasts); err != nil {
		p.logger.Error("forecast publish failed", "source", sourceID, "error", err)
	}
	if err := p.feed.PublishMedia(ctx, media); err != nil {
		p.logger.Error("media publish failed", "source", sourceID, "error", err)
	}
	if err := p.feed.PublishWarnings(ctx, warnings); err != nil {
		p.logger.Error("warning publish failed", "source", sourceID, "error", err)
	}
}
