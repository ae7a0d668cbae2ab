package execution

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"nft_market/internal/domain"
	"nft_market/internal/infra"
)

// Options configures optional collaborators of the Dispatcher.
type Options struct {
	Journal domain.Journal
	Metrics *infra.Metrics
	Rand    *rand.Rand

	// OnDone is attached to every pending transaction. Dismissed transactions never reach it.
	OnDone func(tx domain.PendingTx, err error)
}

// Dispatcher validates actions and routes each one to the strategy of the book's current mode.
// The mode is read once per call, so a single action never mixes strategies.
type Dispatcher struct {
	book       Book
	account    domain.AccountProvider
	strategies map[domain.Mode]Strategy
	gate       *Gate
	pending    *Tracker
	journal    domain.Journal
	metrics    *infra.Metrics
	onDone     func(tx domain.PendingTx, err error)

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewDispatcher wires both strategies. ledger may be nil when live mode is unavailable.
func NewDispatcher(book Book, ledger domain.LedgerWriter, account domain.AccountProvider, opts Options) *Dispatcher {
	if opts.Metrics == nil {
		opts.Metrics = infra.GlobalMetrics
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}

	slog.Info("Initializing Execution System", slog.Bool("ledger", ledger != nil))

	return &Dispatcher{
		book:    book,
		account: account,
		strategies: map[domain.Mode]Strategy{
			domain.ModeSimulation: NewSimulationStrategy(book),
			domain.ModeLive:       NewLiveStrategy(ledger, book),
		},
		gate:    NewGate(),
		pending: NewTracker(),
		journal: opts.Journal,
		metrics: opts.Metrics,
		onDone:  opts.OnDone,
		rng:     opts.Rand,
	}
}

// Deposit validates the form before anything else and lists the item.
func (d *Dispatcher) Deposit(ctx context.Context, req DepositRequest) error {
	l, err := req.Validate(d.viewer())
	if err != nil {
		return err
	}

	tx := domain.NewPendingTx(domain.ActionDeposit, l.Key(), l.Price)
	return d.execute(ctx, tx, func(ctx context.Context, s Strategy) error {
		return s.Deposit(ctx, l)
	})
}

// Buy rejects sold or unknown targets before submission.
func (d *Dispatcher) Buy(ctx context.Context, key domain.ListingKey, price *uint256.Int) error {
	key = domain.NewListingKey(key.ContractRef, key.ItemID)
	target, ok := d.book.Listings().Find(key)
	if !ok {
		return &domain.PurchaseError{Key: key, Reason: "not found"}
	}
	if target.IsSold {
		return &domain.PurchaseError{Key: key, Reason: "already sold"}
	}
	if !target.IsListed {
		return &domain.PurchaseError{Key: key, Reason: "not listed"}
	}

	value := target.PriceOrZero()
	if price != nil {
		if !price.Eq(value) {
			return &domain.PurchaseError{Key: key, Reason: "price mismatch"}
		}
		value = price
	}

	tx := domain.NewPendingTx(domain.ActionBuy, key, value)
	return d.execute(ctx, tx, func(ctx context.Context, s Strategy) error {
		return s.Buy(ctx, target, value)
	})
}

// RandomAssign picks uniformly among unsold listings.
func (d *Dispatcher) RandomAssign(ctx context.Context, recipient string) (domain.Listing, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return domain.Listing{}, domain.NewValidationError("recipient", "required")
	}

	unsold := d.book.Listings().Unsold()
	if len(unsold) == 0 {
		return domain.Listing{}, &domain.NoInventoryError{}
	}
	target := unsold[d.pick(len(unsold))]

	tx := domain.NewPendingTx(domain.ActionRandom, target.Key(), target.PriceOrZero())
	tx.Recipient = recipient
	err := d.execute(ctx, tx, func(ctx context.Context, s Strategy) error {
		return s.Assign(ctx, target, recipient)
	})
	if err != nil {
		return domain.Listing{}, err
	}
	return target, nil
}

// Pending lists in-flight transactions.
func (d *Dispatcher) Pending() []domain.PendingTx {
	return d.pending.List()
}

// Dismiss discards the local state of a pending transaction. The write is not cancelled.
func (d *Dispatcher) Dismiss(id uuid.UUID) bool {
	ok := d.pending.Dismiss(id)
	if ok {
		slog.Info("Pending transaction dismissed", slog.String("id", id.String()))
	}
	return ok
}

// Busy reports whether an action of the given kind is in flight.
func (d *Dispatcher) Busy(a domain.Action) bool {
	return d.gate.Busy(a)
}

func (d *Dispatcher) execute(ctx context.Context, tx *domain.PendingTx, run func(ctx context.Context, s Strategy) error) error {
	if !d.gate.TryAcquire(tx.Action) {
		return domain.ErrActionInFlight
	}
	defer d.gate.Release(tx.Action)

	mode := d.book.Mode()
	strategy := d.strategies[mode]

	if d.onDone != nil {
		snapshot := *tx
		tx.OnDone = func(err error) { d.onDone(snapshot, err) }
	}
	d.pending.Add(tx)

	err := run(ctx, strategy)

	dismissed := !d.pending.Complete(tx.ID, err)
	d.metrics.RecordTx(err)
	d.record(tx, mode, err, dismissed)

	if err != nil {
		slog.Warn("Action failed",
			slog.String("id", tx.ID.String()),
			slog.String("action", string(tx.Action)),
			slog.String("mode", mode.String()),
			slog.Any("error", err))
	}
	return err
}

func (d *Dispatcher) record(tx *domain.PendingTx, mode domain.Mode, err error, dismissed bool) {
	if d.journal == nil {
		return
	}

	rec := &domain.TxRecord{
		ID:          tx.ID.String(),
		Action:      string(tx.Action),
		Mode:        mode.String(),
		ContractRef: tx.Target.ContractRef,
		ItemID:      tx.Target.ItemID,
		Recipient:   tx.Recipient,
		Status:      domain.TxStatusOK,
		Dismissed:   dismissed,
		CreatedAt:   tx.StartedAt,
	}
	if tx.Amount != nil {
		rec.Amount = tx.Amount.Dec()
	}
	if err != nil {
		rec.Status = domain.TxStatusFailed
		rec.Error = err.Error()
	}

	if jerr := d.journal.Record(rec); jerr != nil {
		slog.Warn("Failed to journal transaction", slog.String("id", rec.ID), slog.Any("error", jerr))
	}
}

func (d *Dispatcher) pick(n int) int {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return d.rng.IntN(n)
}

func (d *Dispatcher) viewer() string {
	if d.account == nil {
		return ""
	}
	return d.account.Address()
}
