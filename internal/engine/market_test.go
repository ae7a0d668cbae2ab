package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nft_market/internal/classify"
	"nft_market/internal/domain"
	"nft_market/internal/event"
	"nft_market/internal/execution"
	"nft_market/internal/infra"
	"nft_market/internal/rotation"
)

type fakeReader struct {
	mu    sync.Mutex
	items []domain.RawListing
	ready bool
	err   error
	calls int
}

func (f *fakeReader) GetAllListedNFTs(ctx context.Context) ([]domain.RawListing, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.items, f.ready, f.err
}

func (f *fakeReader) set(items []domain.RawListing, ready bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.ready, f.err = items, ready, err
}

func liveRows() []domain.RawListing {
	return []domain.RawListing{
		{NFTContract: "0xAAAA000000000000000000000000000000000001", TokenID: "1", Owner: "0x01", Price: "1000", IsListed: true, Name: "Low"},
		{NFTContract: "0xAAAA000000000000000000000000000000000001", TokenID: "2", Owner: "0x01", Price: "5000", IsListed: true, Name: "High"},
	}
}

func newTestMarket(mode domain.Mode, reader domain.LedgerReader) *Market {
	m := NewMarket(Config{Mode: mode, Policy: classify.RankPolicy{K: 3}}, reader, nil)
	m.WithMetrics(&infra.Metrics{})
	m.runCtx = context.Background()
	return m
}

// drain processes the next event arriving on the inbox (e.g. a ledger result).
func drain(t *testing.T, m *Market) {
	t.Helper()
	select {
	case ev := <-m.inbox:
		m.processEvent(ev)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMarket_InitialSimulation(t *testing.T) {
	m := newTestMarket(domain.ModeSimulation, nil)
	st := m.Snapshot()

	if len(st.Listings) != 11 {
		t.Fatalf("Expected 11 seed listings, got %d", len(st.Listings))
	}
	if len(st.Tiers.Top) != 3 || len(st.Tiers.Standard) != 8 {
		t.Errorf("Unexpected tiers: top=%d standard=%d", len(st.Tiers.Top), len(st.Tiers.Standard))
	}
	if !st.HasFeatured || st.Featured != 0 {
		t.Errorf("Expected featured index 0, got %d (ok=%v)", st.Featured, st.HasFeatured)
	}
	if st.Stats.Sold != 1 || st.Stats.Active != 10 {
		t.Errorf("Unexpected stats: %+v", st.Stats)
	}
	if st.Loading {
		t.Error("Simulation should never be loading")
	}
}

func TestMarket_EnterLive(t *testing.T) {
	reader := &fakeReader{items: liveRows(), ready: true}
	m := newTestMarket(domain.ModeSimulation, reader)

	m.processEvent(&event.ModeChangedEvent{Mode: domain.ModeLive})

	st := m.Snapshot()
	if len(st.Listings) != 0 || !st.Loading {
		t.Fatalf("Live set must be empty while pending, got %d loading=%v", len(st.Listings), st.Loading)
	}
	if st.HasFeatured {
		t.Error("Featured should be inert with an empty top tier")
	}

	drain(t, m)

	st = m.Snapshot()
	if len(st.Listings) != 2 {
		t.Fatalf("Expected 2 live listings, got %d", len(st.Listings))
	}
	if st.Listings[0].Title() != "High" {
		t.Errorf("Expected price ranking, first is %s", st.Listings[0].Title())
	}
	if st.Loading {
		t.Error("Loading should clear once data arrives")
	}
}

func TestMarket_StaleResultDropped(t *testing.T) {
	reader := &fakeReader{items: liveRows(), ready: true}
	m := newTestMarket(domain.ModeSimulation, reader)
	metrics := &infra.Metrics{}
	m.WithMetrics(metrics)

	m.processEvent(&event.ModeChangedEvent{Mode: domain.ModeLive})
	// Switch back before the live read lands
	m.processEvent(&event.ModeChangedEvent{Mode: domain.ModeSimulation})
	drain(t, m)

	st := m.Snapshot()
	if st.Mode != domain.ModeSimulation {
		t.Fatalf("Expected simulation, got %s", st.Mode)
	}
	if len(st.Listings) != 11 {
		t.Errorf("Live rows leaked into simulation: %d listings", len(st.Listings))
	}
	if metrics.Snapshot().StaleDropped != 1 {
		t.Errorf("Expected 1 stale drop, got %d", metrics.Snapshot().StaleDropped)
	}
}

func TestMarket_Refetch(t *testing.T) {
	t.Run("simulation is a no-op", func(t *testing.T) {
		m := newTestMarket(domain.ModeSimulation, nil)
		gen := m.Snapshot().Generation
		m.processEvent(&event.RefetchEvent{})
		if m.Snapshot().Generation != gen {
			t.Error("Refetch must not touch simulation state")
		}
	})

	t.Run("failure keeps previous set", func(t *testing.T) {
		reader := &fakeReader{items: liveRows(), ready: true}
		m := newTestMarket(domain.ModeSimulation, reader)
		m.processEvent(&event.ModeChangedEvent{Mode: domain.ModeLive})
		drain(t, m)

		reader.set(nil, false, errors.New("connection reset"))
		m.processEvent(&event.RefetchEvent{})
		drain(t, m)

		st := m.Snapshot()
		if len(st.Listings) != 2 {
			t.Errorf("Expected previous 2 listings kept, got %d", len(st.Listings))
		}
		if st.LastError == "" {
			t.Error("Expected LastError to be set")
		}
		if st.Loading {
			t.Error("Loading should clear on failure")
		}
	})

	t.Run("pending stays loading", func(t *testing.T) {
		reader := &fakeReader{ready: false}
		m := newTestMarket(domain.ModeSimulation, reader)
		m.retry = time.Hour
		m.processEvent(&event.ModeChangedEvent{Mode: domain.ModeLive})
		drain(t, m)

		st := m.Snapshot()
		if !st.Loading || len(st.Listings) != 0 {
			t.Errorf("Expected pending state, got loading=%v listings=%d", st.Loading, len(st.Listings))
		}
	})

	t.Run("confirmed empty is not pending", func(t *testing.T) {
		reader := &fakeReader{items: []domain.RawListing{}, ready: true}
		m := newTestMarket(domain.ModeSimulation, reader)
		m.processEvent(&event.ModeChangedEvent{Mode: domain.ModeLive})
		drain(t, m)

		if m.Snapshot().Loading {
			t.Error("Empty data must not be shown as loading")
		}
	})
}

func TestMarket_Mutate(t *testing.T) {
	key := domain.NewListingKey("0x1234567890123456789012345678901234567890", 1)

	t.Run("commits on success", func(t *testing.T) {
		m := newTestMarket(domain.ModeSimulation, nil)
		ev := &event.MutateEvent{
			Mode: domain.ModeSimulation,
			Fn: func(set *domain.ListingSet) error {
				(*set)[set.Index(key)].MarkSold()
				return nil
			},
			Reply: make(chan error, 1),
		}
		m.processEvent(ev)

		if err := <-ev.Reply; err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		l, _ := m.Snapshot().Listings.Find(key)
		if !l.IsSold {
			t.Error("Expected listing to be sold")
		}
		if m.Snapshot().Stats.Sold != 2 {
			t.Errorf("Expected 2 sold, got %d", m.Snapshot().Stats.Sold)
		}
	})

	t.Run("discards on error", func(t *testing.T) {
		m := newTestMarket(domain.ModeSimulation, nil)
		boom := errors.New("boom")
		ev := &event.MutateEvent{
			Mode: domain.ModeSimulation,
			Fn: func(set *domain.ListingSet) error {
				(*set)[set.Index(key)].MarkSold()
				return boom
			},
			Reply: make(chan error, 1),
		}
		m.processEvent(ev)

		if err := <-ev.Reply; !errors.Is(err, boom) {
			t.Fatalf("Expected boom, got %v", err)
		}
		l, _ := m.Snapshot().Listings.Find(key)
		if l.IsSold {
			t.Error("Failed mutation must not be committed")
		}
	})

	t.Run("mode mismatch", func(t *testing.T) {
		m := newTestMarket(domain.ModeSimulation, nil)
		ev := &event.MutateEvent{
			Mode:  domain.ModeLive,
			Fn:    func(set *domain.ListingSet) error { return nil },
			Reply: make(chan error, 1),
		}
		m.processEvent(ev)

		if err := <-ev.Reply; !errors.Is(err, ErrModeMismatch) {
			t.Errorf("Expected ErrModeMismatch, got %v", err)
		}
	})
}

func TestMarket_Rotation(t *testing.T) {
	m := newTestMarket(domain.ModeSimulation, nil)

	rotate := func(in rotation.Input) {
		ev := event.AcquireRotationEvent()
		ev.Input = in
		m.processEvent(ev)
	}

	rotate(rotation.Tick())
	if st := m.Snapshot(); st.Featured != 1 {
		t.Errorf("Expected featured 1 after tick, got %d", st.Featured)
	}

	rotate(rotation.WheelDown())
	if st := m.Snapshot(); st.Featured != 1 {
		t.Errorf("Wheel without hover must be ignored, got %d", st.Featured)
	}

	rotate(rotation.Hover(true))
	rotate(rotation.WheelDown())
	st := m.Snapshot()
	if st.Featured != 2 || !st.Hovered {
		t.Errorf("Expected featured 2 while hovered, got %d", st.Featured)
	}

	rotate(rotation.Tick())
	if st := m.Snapshot(); st.Featured != 0 {
		t.Errorf("Expected wrap to 0, got %d", st.Featured)
	}

	l, ok := st.FeaturedListing()
	if !ok || l.Title() != "Space Monkey #3" {
		t.Errorf("Unexpected featured listing %q", l.Title())
	}
}

func TestMarket_RunLoop(t *testing.T) {
	var updates int
	var mu sync.Mutex
	m := NewMarket(Config{Mode: domain.ModeSimulation, RotationInterval: time.Hour}, nil, func(State) {
		mu.Lock()
		updates++
		mu.Unlock()
	})
	m.WithMetrics(&infra.Metrics{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	if err := m.Rotate(ctx, rotation.Select(2)); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	// Mutate is a barrier: the rotation event is processed before it.
	err := m.Mutate(ctx, domain.ModeSimulation, func(set *domain.ListingSet) error { return nil })
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if st := m.Snapshot(); st.Featured != 2 {
		t.Errorf("Expected featured 2, got %d", st.Featured)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if updates < 3 {
		t.Errorf("Expected at least 3 state updates, got %d", updates)
	}
}

func TestMarket_StoppedLoop(t *testing.T) {
	m := NewMarket(Config{Mode: domain.ModeSimulation, RotationInterval: time.Hour}, nil, nil)
	m.WithMetrics(&infra.Metrics{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	t.Run("api fails fast", func(t *testing.T) {
		err := m.Mutate(context.Background(), domain.ModeSimulation, func(set *domain.ListingSet) error { return nil })
		if !errors.Is(err, ErrMarketStopped) {
			t.Errorf("Expected ErrMarketStopped from Mutate, got %v", err)
		}
		if err := m.Refetch(context.Background()); !errors.Is(err, ErrMarketStopped) {
			t.Errorf("Expected ErrMarketStopped from Refetch, got %v", err)
		}
	})

	t.Run("dispatcher releases gate", func(t *testing.T) {
		d := execution.NewDispatcher(m, nil, infra.NewStaticAccount("0x00000000000000000000000000000000000000aa"),
			execution.Options{Metrics: &infra.Metrics{}})
		key := domain.NewListingKey("0x1234567890123456789012345678901234567890", 1)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		result := make(chan error, 1)
		go func() { result <- d.Buy(ctx, key, nil) }()

		select {
		case err := <-result:
			if !errors.Is(err, ErrMarketStopped) {
				t.Errorf("Expected ErrMarketStopped, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Buy blocked on a stopped market")
		}

		if d.Busy(domain.ActionBuy) {
			t.Error("Gate must be released after the failed write")
		}
		if err := d.Buy(context.Background(), key, nil); errors.Is(err, domain.ErrActionInFlight) {
			t.Error("Retry must not be locked out")
		}
	})
}
