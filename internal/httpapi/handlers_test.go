package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nft_market/internal/domain"
	"nft_market/internal/engine"
	"nft_market/internal/execution"
	"nft_market/internal/infra"
	"nft_market/internal/view"
)

const (
	seedContract = "0x1234567890123456789012345678901234567890"
	buyer        = "0x00000000000000000000000000000000000000aa"
)

type memModes struct {
	mu    sync.Mutex
	saved []domain.Mode
}

func (m *memModes) SaveMode(mode domain.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, mode)
	return nil
}

type memHistory struct {
	recs []domain.TxRecord
}

func (h *memHistory) ListRecords(limit int) ([]domain.TxRecord, error) {
	if limit > 0 && limit < len(h.recs) {
		return h.recs[:limit], nil
	}
	return h.recs, nil
}

type fixture struct {
	market  *engine.Market
	modes   *memModes
	history *memHistory
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics := &infra.Metrics{}
	market := engine.NewMarket(engine.Config{
		Mode:             domain.ModeSimulation,
		RotationInterval: time.Hour,
	}, nil, nil).WithMetrics(metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		market.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	account := infra.NewStaticAccount(buyer)
	f := &fixture{
		market:  market,
		modes:   &memModes{},
		history: &memHistory{recs: []domain.TxRecord{{ID: "a"}, {ID: "b"}}},
	}
	server := NewServer(Deps{
		Market:  market,
		Actions: execution.NewDispatcher(market, nil, account, execution.Options{Metrics: metrics}),
		Account: account,
		Metrics: metrics,
		History: f.history,
		Modes:   f.modes,
	})
	f.handler = server.NewRouter()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodePage(t *testing.T, rr *httptest.ResponseRecorder) view.Page {
	t.Helper()
	var page view.Page
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	return page
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"status":"ok"}` {
		t.Errorf("Unexpected body %s", rr.Body.String())
	}
}

func TestGetMarket(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, "GET", "/api/market", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	page := decodePage(t, rr)
	if page.Mode != "simulation" || page.Viewer != buyer {
		t.Errorf("Unexpected page header mode=%s viewer=%s", page.Mode, page.Viewer)
	}
	if len(page.Top) != 3 || page.Stats.Total != 11 {
		t.Errorf("Unexpected page top=%d total=%d", len(page.Top), page.Stats.Total)
	}

	req := httptest.NewRequest("GET", "/api/market", nil)
	req.Header.Set(AccountHeader, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	page = decodePage(t, rr)
	if !page.Top[0].IsOwner {
		t.Error("Header viewer should own the seed listings")
	}
}

func TestPutMode(t *testing.T) {
	f := newFixture(t)

	if rr := f.do(t, "PUT", "/api/mode", `{"mode":"bogus"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown mode, got %d", rr.Code)
	}
	if rr := f.do(t, "PUT", "/api/mode", `not json`); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rr.Code)
	}

	rr := f.do(t, "PUT", "/api/mode", `{"mode":"live"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rr.Code)
	}
	if len(f.modes.saved) != 1 || f.modes.saved[0] != domain.ModeLive {
		t.Errorf("Expected live to be persisted, got %v", f.modes.saved)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.market.Mode() != domain.ModeLive {
		if time.Now().After(deadline) {
			t.Fatal("Market never entered live mode")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestActions(t *testing.T) {
	t.Run("Buy", func(t *testing.T) {
		f := newFixture(t)
		rr := f.do(t, "POST", "/api/buy", `{"contract":"`+seedContract+`","item_id":1}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		got, ok := f.market.Listings().Find(domain.NewListingKey(seedContract, 1))
		if !ok || !got.IsSold {
			t.Error("Listing should be sold after buy")
		}
	})

	t.Run("Rejections", func(t *testing.T) {
		f := newFixture(t)
		tests := []struct {
			name string
			path string
			body string
			code int
		}{
			{"sold target", "/api/buy", `{"contract":"` + seedContract + `","item_id":4}`, http.StatusConflict},
			{"unknown target", "/api/buy", `{"contract":"` + seedContract + `","item_id":99}`, http.StatusConflict},
			{"price mismatch", "/api/buy", `{"contract":"` + seedContract + `","item_id":2,"price":"1"}`, http.StatusConflict},
			{"bad price", "/api/buy", `{"contract":"` + seedContract + `","item_id":2,"price":"abc"}`, http.StatusBadRequest},
			{"missing contract", "/api/buy", `{"item_id":2}`, http.StatusBadRequest},
			{"deposit missing field", "/api/deposit", `{"contract":"` + seedContract + `"}`, http.StatusBadRequest},
			{"random without recipient", "/api/random", `{"recipient":" "}`, http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rr := f.do(t, "POST", tt.path, tt.body)
				if rr.Code != tt.code {
					t.Errorf("Expected %d, got %d: %s", tt.code, rr.Code, rr.Body.String())
				}
			})
		}
	})

	t.Run("Deposit", func(t *testing.T) {
		f := newFixture(t)
		body := `{"contract":"0x9999999999999999999999999999999999999999","item_id":"42","price":"1.2","media":"ipfs://x","name":"New"}`
		rr := f.do(t, "POST", "/api/deposit", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		if got := len(f.market.Listings()); got != 12 {
			t.Errorf("Expected 12 listings, got %d", got)
		}
	})

	t.Run("Random", func(t *testing.T) {
		f := newFixture(t)
		rr := f.do(t, "POST", "/api/random", `{"recipient":"`+buyer+`"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp map[string]any
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp["recipient"] != buyer || resp["key"] == "" {
			t.Errorf("Unexpected response %v", resp)
		}
		if stats := f.market.Snapshot().Stats; stats.Sold != 2 {
			t.Errorf("Expected 2 sold, got %d", stats.Sold)
		}
	})
}

func TestRotationRoutes(t *testing.T) {
	f := newFixture(t)

	if rr := f.do(t, "POST", "/api/rotation/select", `{"index":2}`); rr.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rr.Code)
	}
	deadline := time.Now().Add(2 * time.Second)
	for f.market.Snapshot().Featured != 2 {
		if time.Now().After(deadline) {
			t.Fatal("Select never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if rr := f.do(t, "POST", "/api/rotation/next", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("Expected 202 for bodiless next, got %d", rr.Code)
	}
	for f.market.Snapshot().Featured != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Next never wrapped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if rr := f.do(t, "POST", "/api/rotation/spin", ""); rr.Code != http.StatusNotFound {
		t.Errorf("Unknown action should not route, got %d", rr.Code)
	}
}

func TestPendingAndHistory(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, "GET", "/api/pending", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("Expected empty pending list, got %d %s", rr.Code, rr.Body.String())
	}

	if rr := f.do(t, "DELETE", "/api/pending/not-a-uuid", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
	if rr := f.do(t, "DELETE", "/api/pending/6ba7b810-9dad-11d1-80b4-00c04fd430c8", ""); rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rr.Code)
	}

	rr = f.do(t, "GET", "/api/transactions?limit=1", "")
	var recs []domain.TxRecord
	if err := json.NewDecoder(rr.Body).Decode(&recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "a" {
		t.Errorf("Unexpected records %+v", recs)
	}
	if rr := f.do(t, "GET", "/api/transactions?limit=x", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/buy", `{"contract":"`+seedContract+`","item_id":1}`)

	rr := f.do(t, "GET", "/api/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var snap map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap) == 0 {
		t.Error("Expected metric fields")
	}
}

type fakeLedgerStatus struct {
	connected bool
	state     infra.BreakerState
}

func (f fakeLedgerStatus) Connected() bool            { return f.connected }
func (f fakeLedgerStatus) State() infra.BreakerState { return f.state }

func TestAccountRoute(t *testing.T) {
	f := newFixture(t)
	next := "0x00000000000000000000000000000000000000CC"

	rr := f.do(t, "PUT", "/api/account", `{"address":"`+next+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if page := decodePage(t, f.do(t, "GET", "/api/market", "")); page.Viewer != strings.ToLower(next) {
		t.Errorf("Expected viewer %s, got %s", strings.ToLower(next), page.Viewer)
	}

	if rr := f.do(t, "PUT", "/api/account", `{"address":"0x12"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad address, got %d", rr.Code)
	}

	f.do(t, "PUT", "/api/account", `{"address":""}`)
	if page := decodePage(t, f.do(t, "GET", "/api/market", "")); page.Viewer != "" {
		t.Errorf("Expected disconnected viewer, got %s", page.Viewer)
	}
	body := `{"contract":"0x9999999999999999999999999999999999999999","item_id":"42","price":"1.2","media":"ipfs://x","name":"New"}`
	if rr := f.do(t, "POST", "/api/deposit", body); rr.Code != http.StatusBadRequest {
		t.Errorf("Deposit without a wallet should fail validation, got %d", rr.Code)
	}
}

func TestLedgerRoute(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t)
		var st ledgerStatus
		if err := json.NewDecoder(f.do(t, "GET", "/api/ledger", "").Body).Decode(&st); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if st.Configured || st.Connected {
			t.Errorf("Unexpected status %+v", st)
		}
	})

	t.Run("breaker open", func(t *testing.T) {
		server := NewServer(Deps{Ledger: fakeLedgerStatus{connected: true, state: infra.StateOpen}})
		rr := httptest.NewRecorder()
		server.NewRouter().ServeHTTP(rr, httptest.NewRequest("GET", "/api/ledger", nil))

		var st ledgerStatus
		if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !st.Configured || !st.Connected || st.Breaker != "OPEN" {
			t.Errorf("Unexpected status %+v", st)
		}
	})
}
