package watcher

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"stockwatch-telegram-bot/internal/chart"
	"stockwatch-telegram-bot/internal/detector"
	"stockwatch-telegram-bot/internal/metrics"
	"stockwatch-telegram-bot/internal/scraper"
	"stockwatch-telegram-bot/internal/types"
)

// Scraper supplies the current snapshot set for a category.
type Scraper interface {
	FetchCategory(ctx context.Context, cat types.Category) ([]types.ProductSnapshot, error)
}

// Store is the persistence surface a watcher needs.
type Store interface {
	LoadCategoryState(category string) (types.CategoryState, error)
	SaveCategoryState(category string, state types.CategoryState) error
	LogAlerts(category string, events []types.ChangeEvent) error
	RecordCheck(category string, products, alertsSent int) error
	GetStats(category string) (types.CategoryStats, error)
	GetCheckHistory(category string, limit int) ([]types.CheckRecord, error)
}

// Notifier consumes detection events and operator messages.
type Notifier interface {
	NotifyChanges(category string, events []types.ChangeEvent, index types.CategoryState) int
	SendSummary(category string, stats types.CategoryStats, chartPNG []byte)
	SendErrorAlert(category string, cause error)
}

// Outcome of one detection cycle.
type Outcome string

const (
	CycleSuccess Outcome = "success"
	CycleAborted Outcome = "aborted"
)

// CycleResult is the explicit per-cycle result the loop decides on;
// persistence only ever happens inside a successful cycle.
type CycleResult struct {
	Outcome    Outcome
	Products   int
	Events     int
	AlertsSent int
	Err        error
}

var errMalformedScrape = errors.New("scrape returned malformed snapshots")

const (
	errorAlertThreshold = 3
	maxFailures         = 5
	failureBackoff      = 5 * time.Minute
	historyChartPoints  = 48
)

// Service polls one category. Cycles run strictly one at a time per
// category; independent categories each get their own Service.
type Service struct {
	category types.Category
	scraper  Scraper
	store    Store
	notifier Notifier

	interval     time.Duration
	summaryEvery time.Duration
	rnd          *rand.Rand

	consecutiveFailures int
	lastSummary         time.Time
}

func NewService(cat types.Category, sc Scraper, store Store, notifier Notifier, interval, summaryEvery time.Duration) *Service {
	return &Service{
		category:     cat,
		scraper:      sc,
		store:        store,
		notifier:     notifier,
		interval:     interval,
		summaryEvery: summaryEvery,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		lastSummary:  time.Now(),
	}
}

// Run executes scrape-detect-notify-persist cycles until the context
// is cancelled. All cycle errors are absorbed here; the loop never
// crashes the process.
func (s *Service) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic recovered in %s watcher: %v, restarting in 10 seconds", s.category.Name, r)
			select {
			case <-ctx.Done():
			case <-time.After(10 * time.Second):
				go s.Run(ctx)
			}
		}
	}()

	log.Infof("watcher started for category %s (interval %s)", s.category.Name, s.interval)

	for {
		res := s.Cycle(ctx)

		if backoff := s.handleResult(res); backoff > 0 {
			log.Warnf("%s: repeated failures, backing off %s", s.category.Name, backoff)
			if !s.wait(ctx, backoff) {
				return
			}
			continue
		}

		s.maybeSendSummary()

		if !s.wait(ctx, s.jitteredInterval()) {
			log.Infof("watcher stopped for category %s", s.category.Name)
			return
		}
	}
}

// handleResult tracks consecutive failures, alerts the operator after
// a few in a row and returns a backoff duration once too many pile up.
func (s *Service) handleResult(res CycleResult) time.Duration {
	if res.Outcome == CycleSuccess {
		s.consecutiveFailures = 0
		return 0
	}

	if res.Err != nil {
		s.consecutiveFailures++
		if s.consecutiveFailures == errorAlertThreshold {
			s.notifier.SendErrorAlert(s.category.Name, res.Err)
		}
	}

	if s.consecutiveFailures >= maxFailures {
		s.consecutiveFailures = 0
		return failureBackoff
	}
	return 0
}

// Cycle runs one scrape-detect-notify-persist iteration. An aborted
// cycle leaves the persisted state untouched.
func (s *Service) Cycle(ctx context.Context) CycleResult {
	cycleLog := log.WithFields(log.Fields{
		"category": s.category.Name,
		"cycle":    uuid.NewString()[:8],
	})

	current, err := s.scraper.FetchCategory(ctx, s.category)
	if err != nil {
		metrics.ScrapeFailuresTotal.WithLabelValues(s.category.Name).Inc()
		s.logScrapeError(cycleLog, err)
		s.countCycle(CycleAborted)
		return CycleResult{Outcome: CycleAborted, Err: err}
	}

	if !detector.ValidateSnapshots(current) {
		cycleLog.Error("scrape returned malformed snapshots, skipping cycle")
		s.countCycle(CycleAborted)
		return CycleResult{Outcome: CycleAborted, Err: errMalformedScrape}
	}

	previous, err := s.store.LoadCategoryState(s.category.Name)
	if err != nil {
		cycleLog.Errorf("failed to load state: %v", err)
		s.countCycle(CycleAborted)
		return CycleResult{Outcome: CycleAborted, Err: err}
	}

	events, next, updated := detector.Detect(previous, current)
	if !updated {
		cycleLog.Warn("empty scrape, keeping previous state")
		s.countCycle(CycleAborted)
		return CycleResult{Outcome: CycleAborted}
	}

	// Notification is best-effort; the authoritative state change below
	// happens regardless of delivery.
	sent := 0
	if len(events) > 0 {
		sent = s.notifier.NotifyChanges(s.category.Name, events, next)
		for _, ev := range events {
			metrics.AlertsSentTotal.WithLabelValues(string(ev.Kind)).Inc()
		}
	}

	if err := s.store.SaveCategoryState(s.category.Name, next); err != nil {
		cycleLog.Errorf("failed to persist state: %v", err)
		s.countCycle(CycleAborted)
		return CycleResult{Outcome: CycleAborted, Err: err}
	}

	if err := s.store.LogAlerts(s.category.Name, events); err != nil {
		cycleLog.Warnf("failed to log alerts: %v", err)
	}
	if err := s.store.RecordCheck(s.category.Name, len(current), sent); err != nil {
		cycleLog.Warnf("failed to record check: %v", err)
	}

	metrics.ProductsTracked.WithLabelValues(s.category.Name).Set(float64(len(next)))
	s.countCycle(CycleSuccess)

	cycleLog.Infof("cycle complete: %d products, %d events, %d alerts sent", len(current), len(events), sent)
	return CycleResult{
		Outcome:    CycleSuccess,
		Products:   len(current),
		Events:     len(events),
		AlertsSent: sent,
	}
}

func (s *Service) logScrapeError(cycleLog *log.Entry, err error) {
	var parseErr *scraper.ParseError
	if errors.As(err, &parseErr) {
		cycleLog.Errorf("page layout changed, selectors need attention: %v", err)
		return
	}
	cycleLog.Warnf("scrape failed, retrying next interval: %v", err)
}

func (s *Service) maybeSendSummary() {
	if s.summaryEvery <= 0 || time.Since(s.lastSummary) < s.summaryEvery {
		return
	}
	s.lastSummary = time.Now()

	stats, err := s.store.GetStats(s.category.Name)
	if err != nil {
		log.Errorf("failed to load stats for %s summary: %v", s.category.Name, err)
		return
	}

	var chartPNG []byte
	if history, err := s.store.GetCheckHistory(s.category.Name, historyChartPoints); err == nil {
		if png, err := chart.RenderCheckHistory(s.category.Name, history); err == nil {
			chartPNG = png
		}
	}

	s.notifier.SendSummary(s.category.Name, stats, chartPNG)
}

func (s *Service) countCycle(outcome Outcome) {
	metrics.CyclesTotal.WithLabelValues(s.category.Name, string(outcome)).Inc()
}

// jitteredInterval spreads requests so checks do not hit the site on a
// fixed beat. Never below one minute.
func (s *Service) jitteredInterval() time.Duration {
	jitter := time.Duration(s.rnd.Intn(61)-30) * time.Second
	interval := s.interval + jitter
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}

func (s *Service) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
