package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/comps"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/database"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/ebay"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/inventory"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/metrics"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/valuation"
)

// LookupInterval is the pause between the end of one network lookup and
// the start of the next.
const LookupInterval = 350 * time.Millisecond

// Comps is the comparable-price lookup used by the pipeline.
type Comps interface {
	Cached(ctx context.Context, query string) (comps.MarketStats, bool)
	GetStats(ctx context.Context, query string) (comps.MarketStats, bool, error)
}

// Pacer spaces network lookups. Wait blocks until the next lookup may
// start; Done marks the end of a lookup.
type Pacer interface {
	Wait(ctx context.Context) error
	Done()
}

// IntervalPacer holds each lookup back until interval has passed since the
// previous lookup finished, however long that lookup took.
type IntervalPacer struct {
	mu       sync.Mutex
	interval time.Duration
	lim      *rate.Limiter
}

// NewPacer returns an IntervalPacer. The first lookup is not delayed.
func NewPacer(interval time.Duration) *IntervalPacer {
	return &IntervalPacer{interval: interval}
}

// Wait blocks until interval has elapsed since the last Done.
func (p *IntervalPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	lim := p.lim
	p.mu.Unlock()
	if lim == nil {
		return ctx.Err()
	}
	return lim.Wait(ctx)
}

// Done restarts the interval from now.
func (p *IntervalPacer) Done() {
	lim := rate.NewLimiter(rate.Every(p.interval), 1)
	lim.Allow()
	p.mu.Lock()
	p.lim = lim
	p.mu.Unlock()
}

// ParamsStore resolves the current valuation parameters.
type ParamsStore interface {
	GetParams(defaults valuation.Params) (valuation.Params, error)
}

// History records pipeline runs.
type History interface {
	CreateRun(run *database.ValuationRun) error
	CompleteRun(run *database.ValuationRun) error
}

// Meta describes how a report was produced.
type Meta struct {
	QueryCount            int `json:"queryCount"`
	UniqueBrandCategories int `json:"uniqueBrandCategories"`
	CacheHits             int `json:"cacheHits"`
}

// Report is the pipeline output.
type Report struct {
	Success         bool                        `json:"success"`
	AuthError       bool                        `json:"authError,omitempty"`
	RunID           string                      `json:"runId,omitempty"`
	Skus            []valuation.SkuResult       `json:"skus"`
	Categories      []valuation.CategorySummary `json:"categories"`
	Totals          valuation.PortfolioTotals   `json:"totals"`
	RoutingAnalysis valuation.RoutingAnalysis   `json:"routingAnalysis"`
	Meta            Meta                        `json:"meta"`
}

// Options configures a Service. Only Comps is required.
type Options struct {
	Comps      Comps
	Pacer      Pacer
	Params     ParamsStore
	Defaults   valuation.Params
	History    History
	Categories inventory.CategoryMap
	Metrics    *metrics.Registry
}

// Service runs line items through normalize, lookup, evaluate and aggregate.
type Service struct {
	comps      Comps
	pacer      Pacer
	params     ParamsStore
	defaults   valuation.Params
	history    History
	categories inventory.CategoryMap
	metrics    *metrics.Registry
}

// NewService creates a new pricing service
func NewService(opts Options) *Service {
	if opts.Pacer == nil {
		opts.Pacer = NewPacer(LookupInterval)
	}
	if opts.Defaults == (valuation.Params{}) {
		opts.Defaults = valuation.DefaultParams()
	}
	return &Service{
		comps:      opts.Comps,
		pacer:      opts.Pacer,
		params:     opts.Params,
		defaults:   opts.Defaults,
		history:    opts.History,
		categories: opts.Categories,
		metrics:    opts.Metrics,
	}
}

// Params returns the parameters a run would use now.
func (s *Service) Params() valuation.Params {
	if s.params == nil {
		return s.defaults
	}
	p, err := s.params.GetParams(s.defaults)
	if err != nil {
		log.Printf("Error loading valuation params, using defaults: %v", err)
		return s.defaults
	}
	return p
}

// Run prices rows. Individual lookup failures degrade to zero market data;
// missing marketplace credentials degrade every SKU and set AuthError.
// The only errors returned are context cancellation and history failures.
func (s *Service) Run(ctx context.Context, rows []inventory.LineItemRow) (*Report, error) {
	started := time.Now()
	run := &database.ValuationRun{
		Status:    database.RunRunning,
		StartedAt: started.UTC(),
	}
	if s.history != nil {
		if err := s.history.CreateRun(run); err != nil {
			return nil, fmt.Errorf("failed to create run history: %w", err)
		}
	}

	report, err := s.run(ctx, rows)

	now := time.Now().UTC()
	run.CompletedAt = &now
	switch {
	case err != nil:
		run.Status = database.RunFailed
		run.ErrorMessage = err.Error()
	case report.AuthError:
		run.Status = database.RunDegraded
		run.ErrorMessage = ebay.ErrAuthConfiguration.Error()
	default:
		run.Status = database.RunSuccess
	}
	skus := 0
	if report != nil {
		report.RunID = run.ID
		skus = len(report.Skus)
		run.SkuCount = skus
		run.QueryCount = report.Meta.QueryCount
		run.CacheHits = report.Meta.CacheHits
		run.AuthError = report.AuthError
	}
	s.metrics.Run(run.Status, time.Since(started).Seconds(), skus)

	if s.history != nil {
		if herr := s.history.CompleteRun(run); herr != nil && err == nil {
			return nil, fmt.Errorf("failed to update run history: %w", herr)
		}
	}
	if err != nil {
		return nil, err
	}

	log.Printf("Valuation complete: %d SKUs, %d queries, %d cache hits",
		skus, report.Meta.QueryCount, report.Meta.CacheHits)
	return report, nil
}

func (s *Service) run(ctx context.Context, rows []inventory.LineItemRow) (*Report, error) {
	params := s.Params()
	alloc := inventory.Normalize(rows, s.categories)
	skus := alloc.SKUs()

	report := &Report{Success: true}
	report.Meta.UniqueBrandCategories = len(skus)

	results := make([]valuation.SkuResult, 0, len(skus))
	for _, sku := range skus {
		var stats comps.MarketStats
		if !report.AuthError {
			st, hit, err := s.lookup(ctx, sku.SearchQuery)
			switch {
			case errors.Is(err, ebay.ErrAuthConfiguration):
				log.Printf("Marketplace credentials not configured, skipping remaining lookups: %v", err)
				report.AuthError = true
			case err != nil:
				return nil, err
			default:
				stats = st
				if hit {
					report.Meta.CacheHits++
				} else {
					report.Meta.QueryCount++
				}
			}
		}
		results = append(results, valuation.Evaluate(sku, stats, params))
	}

	if report.AuthError {
		// no partial market data when credentials are missing
		for i := range results {
			results[i] = valuation.Evaluate(results[i].AllocatedSku, comps.MarketStats{}, params)
		}
	}

	summary := valuation.Aggregate(results, params).Rounded()
	report.Categories = summary.Categories
	report.Totals = summary.Totals
	report.RoutingAnalysis = summary.RoutingAnalysis
	report.Skus = make([]valuation.SkuResult, len(results))
	for i, r := range results {
		report.Skus[i] = r.Rounded()
	}
	return report, nil
}

// lookup paces only the lookups that will leave the process.
func (s *Service) lookup(ctx context.Context, query string) (comps.MarketStats, bool, error) {
	if _, ok := s.comps.Cached(ctx, query); ok {
		return s.comps.GetStats(ctx, query)
	}
	if err := s.pacer.Wait(ctx); err != nil {
		return comps.MarketStats{}, false, err
	}
	defer s.pacer.Done()
	return s.comps.GetStats(ctx, query)
}
