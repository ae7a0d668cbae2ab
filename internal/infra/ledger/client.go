package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"

	"nft_market/internal/domain"
	"nft_market/internal/infra"
)

const (
	MethodGetAllListed = "getAllListedNFTs"
	MethodListNFT      = "listNFT"
	MethodBuyNFT       = "buyNFT"
	MethodSendRandom   = "sendRandomNFT"

	// NotifyListingsChanged is pushed by the gateway after any confirmed write.
	NotifyListingsChanged = "listingsChanged"
)

var (
	ErrNotConnected   = errors.New("ledger not connected")
	ErrConnectionLost = errors.New("ledger connection lost")
	ErrTimeout        = errors.New("ledger request timed out")
)

// RPCError is an error object returned by the gateway (e.g. a reverted call).
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// message covers responses (ID set) and notifications (Method set).
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type ListParams struct {
	NFTContract string `json:"nftContract"`
	TokenID     string `json:"tokenId"`
	Price       string `json:"price"` // wei, decimal
	ImageURI    string `json:"imageUri"`
	Name        string `json:"name"`
}

type BuyParams struct {
	ListingID string `json:"listingId"`
	Value     string `json:"value"` // wei, decimal
}

type SendRandomParams struct {
	TokenID   string `json:"tokenId"`
	Recipient string `json:"recipient"`
}

type reply struct {
	msg message
	err error
}

// Config holds connection settings.
type Config struct {
	URL            string
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	Backoff        infra.Backoff
	Breaker        infra.CircuitBreakerConfig
}

// Client is a JSON-RPC 2.0 client for the marketplace gateway over a websocket.
// It implements domain.Ledger.
type Client struct {
	cfg     Config
	breaker *infra.CircuitBreaker
	metrics *infra.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	nextID  atomic.Uint64
	pendMu  sync.Mutex
	pending map[uint64]chan reply

	notifyMu sync.RWMutex
	onNotify func()

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a disconnected client. Call Start to open the connection loop.
func NewClient(cfg Config, metrics *infra.Metrics) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff = infra.DefaultBackoff()
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = infra.DefaultCircuitBreakerConfig("ledger")
	}
	userHook := cfg.Breaker.OnChange
	cfg.Breaker.OnChange = func(s infra.BreakerState) {
		metrics.SetCircuitState(s == infra.StateOpen)
		if userHook != nil {
			userHook(s)
		}
	}

	return &Client{
		cfg:     cfg,
		breaker: infra.NewCircuitBreaker(cfg.Breaker),
		metrics: metrics,
		logger:  slog.Default().With("module", "ledger"),
		pending: make(map[uint64]chan reply),
	}
}

// OnListingsChanged registers the callback for gateway change notifications.
func (c *Client) OnListingsChanged(fn func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.onNotify = fn
}

// Start initiates the connection loop.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.runLoop(ctx)
}

// Stop terminates the connection loop and fails outstanding calls.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.close()
	c.wg.Wait()
}

// Connected reports whether a socket is currently open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// State returns the breaker state (for monitoring).
func (c *Client) State() infra.BreakerState {
	return c.breaker.GetState()
}

func (c *Client) runLoop(ctx context.Context) {
	defer c.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			delay := c.cfg.Backoff.Delay(retry)
			c.logger.Warn("WS Connection failed", slog.Any("error", err), slog.Int("retry", retry), slog.Duration("delay", delay))
			retry++
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		// A socket that drops before delivering anything counts as a failed attempt
		if c.process(ctx) {
			retry = 0
			continue
		}
		delay := c.cfg.Backoff.Delay(retry)
		c.logger.Warn("WS Dropped before first message", slog.Int("retry", retry), slog.Duration("delay", delay))
		retry++
		if !sleep(ctx, delay) {
			return
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, http.Header{})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.metrics.IncrementConnections()

	if c.cfg.PingInterval > 0 {
		go c.pingLoop(ctx, conn)
	}

	c.logger.Info("WS Connected", slog.String("url", c.cfg.URL))

	// Anything may have changed while we were away
	c.notify()
	return nil
}

// process reads until the socket fails. It reports whether at least one message arrived.
func (c *Client) process(ctx context.Context) (received bool) {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return received
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("WS Read error", slog.Any("error", err))
			}
			c.close()
			return received
		}

		received = true
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Dropping malformed message", slog.Any("error", err))
		return
	}

	if msg.ID == nil {
		if msg.Method == NotifyListingsChanged {
			c.notify()
		} else {
			c.logger.Debug("Ignoring notification", slog.String("method", msg.Method))
		}
		return
	}

	c.pendMu.Lock()
	ch, ok := c.pending[*msg.ID]
	delete(c.pending, *msg.ID)
	c.pendMu.Unlock()

	if ok {
		ch <- reply{msg: msg}
	}
}

func (c *Client) notify() {
	c.notifyMu.RLock()
	fn := c.onNotify
	c.notifyMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			current := c.conn
			c.mu.RUnlock()
			if current != conn {
				return
			}

			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Warn("WS Ping error", slog.Any("error", err))
				c.close()
				return
			}
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Close()
	c.metrics.DecrementConnections()

	// Outstanding calls can never be answered on a new socket
	c.pendMu.Lock()
	for id, ch := range c.pending {
		ch <- reply{err: ErrConnectionLost}
		delete(c.pending, id)
	}
	c.pendMu.Unlock()
}

// call performs one request through the circuit breaker.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.breaker.Execute(func() error {
		var err error
		result, err = c.roundTrip(ctx, method, params)
		return err
	})
	if errors.Is(err, infra.ErrCircuitOpen) {
		return nil, domain.NewExternalCallError(method, err)
	}
	return result, err
}

func (c *Client) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, domain.NewExternalCallError(method, ErrNotConnected)
	}

	id := c.nextID.Add(1)
	ch := make(chan reply, 1)
	c.pendMu.Lock()
	c.pending[id] = ch
	c.pendMu.Unlock()

	forget := func() {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
	}

	data, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		forget()
		return nil, domain.NewFatalExternalCallError(method, err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		forget()
		return nil, domain.NewExternalCallError(method, err)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, domain.NewExternalCallError(method, r.err)
		}
		if r.msg.Error != nil {
			return nil, domain.NewFatalExternalCallError(method, r.msg.Error)
		}
		return r.msg.Result, nil
	case <-timer.C:
		forget()
		return nil, domain.NewExternalCallError(method, ErrTimeout)
	case <-ctx.Done():
		forget()
		return nil, domain.NewFatalExternalCallError(method, ctx.Err())
	}
}

// GetAllListedNFTs reads every listing. A null result means the gateway has no data yet.
func (c *Client) GetAllListedNFTs(ctx context.Context) ([]domain.RawListing, bool, error) {
	raw, err := c.call(ctx, MethodGetAllListed, nil)
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false, nil
	}

	var items []domain.RawListing
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, domain.NewFatalExternalCallError(MethodGetAllListed, err)
	}
	if items == nil {
		items = []domain.RawListing{}
	}
	return items, true, nil
}

func (c *Client) ListNFT(ctx context.Context, contractRef string, itemID uint64, price *uint256.Int, mediaRef, displayName string) error {
	_, err := c.call(ctx, MethodListNFT, ListParams{
		NFTContract: contractRef,
		TokenID:     strconv.FormatUint(itemID, 10),
		Price:       weiString(price),
		ImageURI:    mediaRef,
		Name:        displayName,
	})
	return err
}

func (c *Client) BuyNFT(ctx context.Context, listingID uint64, value *uint256.Int) error {
	_, err := c.call(ctx, MethodBuyNFT, BuyParams{
		ListingID: strconv.FormatUint(listingID, 10),
		Value:     weiString(value),
	})
	return err
}

func (c *Client) SendRandomNFT(ctx context.Context, itemID uint64, recipient string) error {
	_, err := c.call(ctx, MethodSendRandom, SendRandomParams{
		TokenID:   strconv.FormatUint(itemID, 10),
		Recipient: recipient,
	})
	return err
}

func weiString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
