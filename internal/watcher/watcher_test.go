package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockwatch-telegram-bot/internal/scraper"
	"stockwatch-telegram-bot/internal/types"
)

type fakeScraper struct {
	products []types.ProductSnapshot
	err      error
}

func (f *fakeScraper) FetchCategory(ctx context.Context, cat types.Category) ([]types.ProductSnapshot, error) {
	return f.products, f.err
}

type fakeStore struct {
	state   types.CategoryState
	loadErr error
	saveErr error
	saved   []types.CategoryState
	alerts  [][]types.ChangeEvent
	checks  []types.CheckRecord
	stats   types.CategoryStats
	history []types.CheckRecord
}

func (f *fakeStore) LoadCategoryState(category string) (types.CategoryState, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.state == nil {
		return types.CategoryState{}, nil
	}
	return f.state, nil
}

func (f *fakeStore) SaveCategoryState(category string, state types.CategoryState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, state)
	f.state = state
	return nil
}

func (f *fakeStore) LogAlerts(category string, events []types.ChangeEvent) error {
	f.alerts = append(f.alerts, events)
	return nil
}

func (f *fakeStore) RecordCheck(category string, products, alertsSent int) error {
	f.checks = append(f.checks, types.CheckRecord{Category: category, Products: products, AlertsSent: alertsSent})
	return nil
}

func (f *fakeStore) GetStats(category string) (types.CategoryStats, error) {
	return f.stats, nil
}

func (f *fakeStore) GetCheckHistory(category string, limit int) ([]types.CheckRecord, error) {
	return f.history, nil
}

type fakeNotifier struct {
	notified    [][]types.ChangeEvent
	summaries   int
	errorAlerts []error
}

func (f *fakeNotifier) NotifyChanges(category string, events []types.ChangeEvent, index types.CategoryState) int {
	f.notified = append(f.notified, events)
	return len(events)
}

func (f *fakeNotifier) SendSummary(category string, stats types.CategoryStats, chartPNG []byte) {
	f.summaries++
}

func (f *fakeNotifier) SendErrorAlert(category string, cause error) {
	f.errorAlerts = append(f.errorAlerts, cause)
}

var testCategory = types.Category{Name: "men", URL: "https://www.example.com/verse-men-c-1.html"}

func snapshot(id string, sizes map[string]int) types.ProductSnapshot {
	return types.ProductSnapshot{ID: id, Name: "Product " + id, Category: "men", Sizes: sizes}
}

func newTestService(sc Scraper, store Store, notifier Notifier) *Service {
	return NewService(testCategory, sc, store, notifier, 5*time.Minute, 2*time.Hour)
}

func TestCycle(t *testing.T) {
	t.Run("successful cycle notifies then persists", func(t *testing.T) {
		sc := &fakeScraper{products: []types.ProductSnapshot{snapshot("p1", map[string]int{"M": 3})}}
		store := &fakeStore{}
		notifier := &fakeNotifier{}
		s := newTestService(sc, store, notifier)

		res := s.Cycle(context.Background())

		if res.Outcome != CycleSuccess {
			t.Fatalf("outcome = %s, want success (%v)", res.Outcome, res.Err)
		}
		if res.Products != 1 || res.Events != 1 || res.AlertsSent != 1 {
			t.Errorf("unexpected result: %+v", res)
		}
		if len(store.saved) != 1 {
			t.Fatal("state was not persisted")
		}
		if len(notifier.notified) != 1 || notifier.notified[0][0].Kind != types.EventNewProduct {
			t.Errorf("expected a new product notification, got %+v", notifier.notified)
		}
		if len(store.checks) != 1 || store.checks[0].Products != 1 {
			t.Errorf("check not recorded: %+v", store.checks)
		}
	})

	t.Run("scrape failure aborts without touching state", func(t *testing.T) {
		sc := &fakeScraper{err: &scraper.NetworkError{URL: testCategory.URL, Err: errors.New("timeout")}}
		store := &fakeStore{state: types.CategoryState{"p1": snapshot("p1", map[string]int{"M": 3})}}
		notifier := &fakeNotifier{}
		s := newTestService(sc, store, notifier)

		res := s.Cycle(context.Background())

		if res.Outcome != CycleAborted {
			t.Fatalf("outcome = %s, want aborted", res.Outcome)
		}
		if len(store.saved) != 0 {
			t.Error("aborted cycle must not persist")
		}
		if len(notifier.notified) != 0 {
			t.Error("aborted cycle must not notify")
		}
	})

	t.Run("empty scrape keeps previous state and emits nothing", func(t *testing.T) {
		sc := &fakeScraper{products: nil}
		store := &fakeStore{state: types.CategoryState{"p1": snapshot("p1", map[string]int{"M": 3})}}
		notifier := &fakeNotifier{}
		s := newTestService(sc, store, notifier)

		res := s.Cycle(context.Background())

		if res.Outcome != CycleAborted {
			t.Fatalf("outcome = %s, want aborted", res.Outcome)
		}
		if len(store.saved) != 0 || len(notifier.notified) != 0 {
			t.Error("empty scrape must not persist or notify")
		}
	})

	t.Run("malformed snapshots are rejected before detection", func(t *testing.T) {
		sc := &fakeScraper{products: []types.ProductSnapshot{snapshot("p1", map[string]int{"M": -2})}}
		store := &fakeStore{}
		notifier := &fakeNotifier{}
		s := newTestService(sc, store, notifier)

		res := s.Cycle(context.Background())

		if res.Outcome != CycleAborted || !errors.Is(res.Err, errMalformedScrape) {
			t.Fatalf("expected malformed-scrape abort, got %+v", res)
		}
		if len(store.saved) != 0 {
			t.Error("malformed scrape must not persist")
		}
	})

	t.Run("storage save failure aborts the cycle", func(t *testing.T) {
		sc := &fakeScraper{products: []types.ProductSnapshot{snapshot("p1", map[string]int{"M": 3})}}
		store := &fakeStore{saveErr: errors.New("disk full")}
		notifier := &fakeNotifier{}
		s := newTestService(sc, store, notifier)

		res := s.Cycle(context.Background())

		if res.Outcome != CycleAborted {
			t.Fatalf("outcome = %s, want aborted", res.Outcome)
		}
		if len(store.checks) != 0 {
			t.Error("failed save must not record a check")
		}
	})

	t.Run("storage load failure aborts the cycle", func(t *testing.T) {
		sc := &fakeScraper{products: []types.ProductSnapshot{snapshot("p1", map[string]int{"M": 3})}}
		store := &fakeStore{loadErr: errors.New("disk broken")}
		notifier := &fakeNotifier{}
		s := newTestService(sc, store, notifier)

		res := s.Cycle(context.Background())

		if res.Outcome != CycleAborted {
			t.Fatalf("outcome = %s, want aborted", res.Outcome)
		}
	})

	t.Run("no events on unchanged state", func(t *testing.T) {
		existing := snapshot("p1", map[string]int{"M": 3})
		sc := &fakeScraper{products: []types.ProductSnapshot{existing}}
		store := &fakeStore{state: types.CategoryState{"p1": existing}}
		notifier := &fakeNotifier{}
		s := newTestService(sc, store, notifier)

		res := s.Cycle(context.Background())

		if res.Outcome != CycleSuccess {
			t.Fatalf("outcome = %s, want success", res.Outcome)
		}
		if res.Events != 0 || len(notifier.notified) != 0 {
			t.Errorf("idle cycle should not notify: %+v", res)
		}
		if len(store.saved) != 1 {
			t.Error("successful cycle should still refresh persisted state")
		}
	})
}

func TestHandleResult(t *testing.T) {
	t.Run("alerts the operator after repeated failures", func(t *testing.T) {
		notifier := &fakeNotifier{}
		s := NewService(testCategory, &fakeScraper{}, &fakeStore{}, notifier, time.Minute, 0)

		failed := CycleResult{Outcome: CycleAborted, Err: errors.New("timeout")}
		for i := 0; i < errorAlertThreshold; i++ {
			s.handleResult(failed)
		}

		if len(notifier.errorAlerts) != 1 {
			t.Fatalf("expected exactly one operator alert, got %d", len(notifier.errorAlerts))
		}
	})

	t.Run("backs off after too many failures and resets", func(t *testing.T) {
		notifier := &fakeNotifier{}
		s := NewService(testCategory, &fakeScraper{}, &fakeStore{}, notifier, time.Minute, 0)

		failed := CycleResult{Outcome: CycleAborted, Err: errors.New("timeout")}
		var backoff time.Duration
		for i := 0; i < maxFailures; i++ {
			backoff = s.handleResult(failed)
		}

		if backoff != failureBackoff {
			t.Fatalf("backoff = %s, want %s", backoff, failureBackoff)
		}
		if s.consecutiveFailures != 0 {
			t.Error("failure counter should reset after backoff")
		}
	})

	t.Run("success resets the failure counter", func(t *testing.T) {
		notifier := &fakeNotifier{}
		s := NewService(testCategory, &fakeScraper{}, &fakeStore{}, notifier, time.Minute, 0)

		s.handleResult(CycleResult{Outcome: CycleAborted, Err: errors.New("timeout")})
		s.handleResult(CycleResult{Outcome: CycleSuccess})

		if s.consecutiveFailures != 0 {
			t.Errorf("consecutiveFailures = %d, want 0", s.consecutiveFailures)
		}
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sc := &fakeScraper{products: []types.ProductSnapshot{snapshot("p1", map[string]int{"M": 3})}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	s := NewService(testCategory, sc, store, notifier, time.Minute, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Let the first cycle complete, then cancel during the wait.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}
