// Package dashboard is the business boundary of pcsboard. It owns the cached
// PCS snapshot, derives categories, KPIs and reports from it, and optionally
// refreshes it in the background.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pcsboard/internal/pcs"
	"github.com/linnemanlabs/pcsboard/internal/webhook"
)

// DefaultStaleAfter is how long a fetched snapshot is served before refetching.
const DefaultStaleAfter = 30 * time.Second

// ErrVesselNotFound is returned when a vessel id is not in the current snapshot.
var ErrVesselNotFound = errors.New("vessel not found")

// Fetcher loads snapshots from the PCS webhook.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, f webhook.Filters) (*pcs.Snapshot, error)
}

// Notifier receives the executive report when critical alerts rise.
type Notifier interface {
	NotifyReport(ctx context.Context, r *pcs.Report, k pcs.DashboardKPIs) error
}

// View is one fetched snapshot with everything derived from it.
type View struct {
	Snapshot   *pcs.Snapshot
	Categories *pcs.Categories
	KPIs       pcs.DashboardKPIs
	Alerts     pcs.AlertSummary
	FetchedAt  time.Time
}

// Overview is the dashboard landing payload.
type Overview struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	FetchedAt   time.Time           `json:"fetchedAt"`
	KPIs        pcs.DashboardKPIs   `json:"kpis"`
	Categories  *pcs.Categories     `json:"categories"`
	Ranking     []pcs.NamedCategory `json:"ranking"`
	Alerts      pcs.AlertSummary    `json:"alertSummary"`
	Counts      map[string]int      `json:"counts"`
}

// VesselSummary is a vessel row as listed by the dashboard.
type VesselSummary struct {
	pcs.Vessel
	Display    pcs.Display `json:"statusDisplay"`
	Source     string      `json:"source"`
	AlertCount int         `json:"alertCount"`
	Categories []string    `json:"categories"`
}

// VesselDetail is a vessel with its alerts.
type VesselDetail struct {
	VesselSummary
	Alerts []pcs.Alert `json:"alerts"`
}

// Options tune the service. Zero values pick defaults.
type Options struct {
	StaleAfter time.Duration
	Notifier   Notifier
	Now        func() time.Time
}

// Service caches the PCS snapshot and answers dashboard queries from it.
type Service struct {
	fetcher    Fetcher
	logger     log.Logger
	metrics    *Metrics
	notifier   Notifier
	staleAfter time.Duration
	now        func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	current *View
}

// NewService creates a dashboard service. metrics may be nil.
func NewService(fetcher Fetcher, logger log.Logger, metrics *Metrics, opts Options) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		fetcher:    fetcher,
		logger:     logger,
		metrics:    metrics,
		notifier:   opts.Notifier,
		staleAfter: opts.StaleAfter,
		now:        opts.Now,
	}
}

// View returns the cached view, fetching a new snapshot when the cache is
// empty or stale. A failed refresh falls back to the stale view when one
// exists.
func (s *Service) View(ctx context.Context) (*View, error) {
	cached := s.cached()
	if cached != nil && s.now().Sub(cached.FetchedAt) < s.staleAfter {
		s.metrics.cacheResult(true)
		return cached, nil
	}
	s.metrics.cacheResult(false)

	v, err := s.load(ctx)
	if err != nil {
		if cached != nil && ctx.Err() == nil {
			s.logger.Warn(ctx, "snapshot refresh failed, serving stale data",
				"error", err, "age_seconds", s.now().Sub(cached.FetchedAt).Seconds())
			return cached, nil
		}
		return nil, err
	}
	return v, nil
}

// Snapshot returns the current normalized snapshot.
func (s *Service) Snapshot(ctx context.Context) (*pcs.Snapshot, error) {
	v, err := s.View(ctx)
	if err != nil {
		return nil, err
	}
	return v.Snapshot, nil
}

// Refresh fetches a new snapshot regardless of cache age.
func (s *Service) Refresh(ctx context.Context) (*View, error) {
	return s.load(ctx)
}

func (s *Service) cached() *View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// load collapses concurrent fetches into one upstream call. The shared fetch
// outlives any single caller's cancellation; each caller still stops waiting
// when its own context ends.
func (s *Service) load(ctx context.Context) (*View, error) {
	ch := s.group.DoChan("snapshot", func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*View), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) fetch(ctx context.Context) (*View, error) {
	snap, err := s.fetcher.FetchSnapshot(ctx, webhook.Filters{})
	if err != nil {
		s.logger.Error(ctx, err, "pcs snapshot fetch failed")
		return nil, err
	}
	cats := pcs.Categorize(snap.Vessels, snap.Alerts)
	v := &View{
		Snapshot:   snap,
		Categories: cats,
		KPIs:       pcs.ComputeKPIs(snap, cats),
		Alerts:     pcs.SummarizeAlerts(snap.Alerts),
		FetchedAt:  s.now(),
	}

	s.mu.Lock()
	s.current = v
	s.mu.Unlock()

	s.metrics.observeSnapshot(v)
	s.logger.Info(ctx, "pcs snapshot categorized",
		"vessels", v.KPIs.TotalVessels,
		"alerts", v.KPIs.TotalAlerts,
		"critical", v.KPIs.CriticalAlerts,
		"normal", v.KPIs.NormalVessels,
		"categories", cats.Len(),
	)
	return v, nil
}

// Overview returns KPIs, categories and the alert-type summary.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	v, err := s.View(ctx)
	if err != nil {
		return nil, err
	}
	return &Overview{
		GeneratedAt: v.Snapshot.GeneratedAt,
		FetchedAt:   v.FetchedAt,
		KPIs:        v.KPIs,
		Categories:  v.Categories,
		Ranking:     v.Categories.ByCount(),
		Alerts:      v.Alerts,
		Counts:      v.Snapshot.Counts,
	}, nil
}

// Vessels lists the vessels that pass f, in snapshot order.
func (s *Service) Vessels(ctx context.Context, f pcs.VesselFilter) ([]VesselSummary, error) {
	v, err := s.View(ctx)
	if err != nil {
		return nil, err
	}
	matched := pcs.FilterVessels(v.Snapshot, f)
	out := make([]VesselSummary, 0, len(matched))
	for i := range matched {
		out = append(out, summarize(v, &matched[i]))
	}
	return out, nil
}

// Sources lists the distinct agency and terminal names.
func (s *Service) Sources(ctx context.Context) ([]string, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return pcs.Sources(snap), nil
}

// Vessel returns one vessel with its alerts.
func (s *Service) Vessel(ctx context.Context, id string) (*VesselDetail, error) {
	v, err := s.View(ctx)
	if err != nil {
		return nil, err
	}
	vessel, ok := v.Snapshot.Vessel(id)
	if !ok {
		return nil, ErrVesselNotFound
	}
	return &VesselDetail{
		VesselSummary: summarize(v, vessel),
		Alerts:        v.Snapshot.AlertsFor(id),
	}, nil
}

// VesselAlerts returns the alerts of one vessel.
func (s *Service) VesselAlerts(ctx context.Context, id string) ([]pcs.Alert, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Vessel(id); !ok {
		return nil, ErrVesselNotFound
	}
	return snap.AlertsFor(id), nil
}

// Category returns the members of one category. Unknown or empty categories
// report false.
func (s *Service) Category(ctx context.Context, name string) (pcs.Category, bool, error) {
	v, err := s.View(ctx)
	if err != nil {
		return pcs.Category{}, false, err
	}
	c, ok := v.Categories.Get(name)
	return c, ok, nil
}

// Report builds the executive report for the current alerts.
func (s *Service) Report(ctx context.Context) (*pcs.Report, error) {
	v, err := s.View(ctx)
	if err != nil {
		return nil, err
	}
	return s.reportFor(v), nil
}

func (s *Service) reportFor(v *View) *pcs.Report {
	r := pcs.BuildReport(v.Snapshot.Alerts, s.now())
	return &r
}

func summarize(v *View, vessel *pcs.Vessel) VesselSummary {
	cats := []string{}
	for _, name := range v.Categories.Names() {
		if v.Categories.Has(name, vessel.VesselID) {
			cats = append(cats, name)
		}
	}
	return VesselSummary{
		Vessel:     *vessel,
		Display:    pcs.StatusDisplay(vessel.StatusResumo),
		Source:     vessel.Source(),
		AlertCount: len(v.Snapshot.AlertsFor(vessel.VesselID)),
		Categories: cats,
	}
}
