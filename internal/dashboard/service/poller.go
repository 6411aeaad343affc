package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/models"
)

// PaymentPoller refreshes the recent payments table on a fixed interval while the
// session is unlocked. Every tick is independent and best-effort: a failed tick
// is logged and skipped, the table keeps its previous contents and the next tick
// proceeds regardless.
type PaymentPoller struct {
	panel    *PanelService
	interval time.Duration

	mu         sync.Mutex
	cancel     context.CancelFunc
	seen       map[int64]struct{}
	onApproved func(models.Payment)
}

// NewPaymentPoller creates a poller over the panel with the given tick interval.
func NewPaymentPoller(panel *PanelService, interval time.Duration) *PaymentPoller {
	return &PaymentPoller{
		panel:    panel,
		interval: interval,
		seen:     make(map[int64]struct{}),
	}
}

// SetApprovedCallback registers a callback invoked once per newly observed
// approved payment. Used by the Telegram notifier.
func (pp *PaymentPoller) SetApprovedCallback(fn func(models.Payment)) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.onApproved = fn
}

// Start launches the polling goroutine. A second Start replaces the previous run.
func (pp *PaymentPoller) Start() {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.cancel != nil {
		pp.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	pp.cancel = cancel
	// Уже загруженные платежи не считаются новыми
	pp.seen = make(map[int64]struct{})
	for _, pago := range pp.panel.Payments() {
		pp.seen[pago.ID] = struct{}{}
	}
	go pp.run(ctx)
	logrus.Infof("payment poller started, interval %s", pp.interval)
}

// Running reports whether the polling goroutine is active.
func (pp *PaymentPoller) Running() bool {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.cancel != nil
}

// Stop clears the polling timer. Safe to call when not running.
func (pp *PaymentPoller) Stop() {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.cancel != nil {
		pp.cancel()
		pp.cancel = nil
		logrus.Info("payment poller stopped")
	}
}

func (pp *PaymentPoller) run(ctx context.Context) {
	ticker := time.NewTicker(pp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pp.tick(ctx)
		}
	}
}

// tick performs one best-effort refresh.
func (pp *PaymentPoller) tick(ctx context.Context) {
	if !pp.panel.Session().Unlocked() {
		return
	}
	pagos, err := pp.panel.RefreshPayments(ctx)
	if err != nil {
		logrus.Debugf("payments refresh tick skipped: %v", err)
		return
	}
	pp.notifyNew(pagos)
}

func (pp *PaymentPoller) notifyNew(pagos []models.Payment) {
	pp.mu.Lock()
	fn := pp.onApproved
	var fresh []models.Payment
	for _, pago := range pagos {
		if _, ok := pp.seen[pago.ID]; ok {
			continue
		}
		pp.seen[pago.ID] = struct{}{}
		if pago.Estado == models.PaymentApproved {
			fresh = append(fresh, pago)
		}
	}
	pp.mu.Unlock()

	if fn == nil {
		return
	}
	for _, pago := range fresh {
		fn(pago)
	}
}
