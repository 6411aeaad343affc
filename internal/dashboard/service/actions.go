package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/models"
)

var (
	// ErrEmptyName rejects a save with a name that trims to nothing.
	ErrEmptyName = errors.New("el nombre no puede estar vacío")
	// ErrInvalidPrice rejects a save with a non-positive price.
	ErrInvalidPrice = errors.New("el precio debe ser mayor a 0")
	// ErrNotPersisted rejects toggle/QR on a slot that was never saved.
	ErrNotPersisted = errors.New("guardá el producto primero")
	// ErrNotResendable rejects resending a payment that is not approved or already dispensed.
	ErrNotResendable = errors.New("el pago no se puede reenviar")
	// ErrConfirmRequired rejects an unlink without explicit confirmation.
	ErrConfirmRequired = errors.New("la desvinculación requiere confirmación")
)

// CreateDispenser registers a new dispenser and reloads the dispenser list.
func (p *PanelService) CreateDispenser(ctx context.Context, nombre string) (models.Dispenser, error) {
	if !p.session.Unlocked() {
		return models.Dispenser{}, ErrLocked
	}
	d, err := p.backend.CreateDispenser(ctx, strings.TrimSpace(nombre))
	if err != nil {
		return models.Dispenser{}, err
	}
	logrus.Infof("dispenser %d created", d.ID)
	if _, err = p.LoadDispensers(ctx); err != nil {
		return d, err
	}
	if err = p.RefreshProducts(ctx, d.ID); err != nil {
		return d, err
	}
	return d, nil
}

// SaveDispenser persists name, device id and active flag of a dispenser.
func (p *PanelService) SaveDispenser(ctx context.Context, d models.Dispenser) error {
	if !p.session.Unlocked() {
		return ErrLocked
	}
	if strings.TrimSpace(d.Nombre) == "" {
		return ErrEmptyName
	}
	if err := p.backend.UpdateDispenser(ctx, d); err != nil {
		return err
	}
	_, err := p.LoadDispensers(ctx)
	return err
}

// SaveProductSlot validates and persists the local row of (dispenser, slot).
// A row without a backend id is created, a persisted one is updated. On success
// the backend's canonical product replaces the local row and the editing flag is
// cleared; on failure the flag stays set so the user's input survives.
func (p *PanelService) SaveProductSlot(ctx context.Context, dispenserID int64, slot int) (models.ProductSlot, error) {
	if !p.session.Unlocked() {
		return models.ProductSlot{}, ErrLocked
	}
	row, err := p.slotRow(dispenserID, slot)
	if err != nil {
		return models.ProductSlot{}, err
	}
	row.Nombre = strings.TrimSpace(row.Nombre)
	if row.Nombre == "" {
		return models.ProductSlot{}, ErrEmptyName
	}
	if row.Precio <= 0 {
		return models.ProductSlot{}, ErrInvalidPrice
	}

	var saved models.ProductSlot
	if row.Persisted() {
		saved, err = p.backend.UpdateProduct(ctx, row.ID, map[string]any{
			"nombre":     row.Nombre,
			"precio":     row.Precio,
			"habilitado": row.Habilitado,
		})
	} else {
		saved, err = p.backend.CreateProduct(ctx, row)
	}
	if err != nil {
		return models.ProductSlot{}, err
	}
	// Некоторые варианты бэкенда не возвращают эти поля в ответе
	if saved.DispenserID == 0 {
		saved.DispenserID = dispenserID
	}
	if saved.Slot == 0 {
		saved.Slot = slot
	}
	p.storeSlotRow(saved)
	logrus.Infof("product %d saved (dispenser %d slot %d)", saved.ID, dispenserID, slot)
	return saved, nil
}

// ToggleEnabled flips the enabled flag of a persisted slot. The local state is
// updated optimistically; when the persist fails the dispenser's products are
// re-fetched so the panel converges back to the backend's value.
func (p *PanelService) ToggleEnabled(ctx context.Context, dispenserID int64, slot int, checked bool) error {
	if !p.session.Unlocked() {
		return ErrLocked
	}
	row, err := p.slotRow(dispenserID, slot)
	if err != nil {
		return err
	}
	if !row.Persisted() {
		return ErrNotPersisted
	}

	p.setHabilitado(dispenserID, slot, checked)

	if _, err = p.backend.UpdateProduct(ctx, row.ID, map[string]any{"habilitado": checked}); err != nil {
		logrus.Errorf("toggle persist failed, reloading dispenser %d: %v", dispenserID, err)
		if refreshErr := p.RefreshProducts(ctx, dispenserID); refreshErr != nil {
			logrus.Error(refreshErr)
		}
		return err
	}
	return nil
}

// RequestPaymentLink asks the backend for a payment link for a persisted product.
// The page renders the returned link as a QR code in a dismissible modal.
func (p *PanelService) RequestPaymentLink(ctx context.Context, dispenserID int64, slot int) (string, error) {
	if !p.session.Unlocked() {
		return "", ErrLocked
	}
	row, err := p.slotRow(dispenserID, slot)
	if err != nil {
		return "", err
	}
	if !row.Persisted() {
		return "", ErrNotPersisted
	}
	link, err := p.backend.CreatePreference(ctx, row.ID)
	if err != nil {
		return "", err
	}
	logrus.Infof("payment link generated for product %d", row.ID)
	return link, nil
}

// ResendPayment re-triggers the dispense notification of an approved, not yet
// dispensed payment. Anything else is rejected without a network call.
func (p *PanelService) ResendPayment(ctx context.Context, paymentID int64) (string, error) {
	if !p.session.Unlocked() {
		return "", ErrLocked
	}
	var target *models.Payment
	for _, pago := range p.Payments() {
		if pago.ID == paymentID {
			pg := pago
			target = &pg
			break
		}
	}
	if target == nil {
		return "", fmt.Errorf("payment %d is not in the panel", paymentID)
	}
	if !target.Resendable() {
		return "", ErrNotResendable
	}
	return p.backend.ResendPayment(ctx, paymentID)
}

// AccountStatus fetches the current MercadoPago linking state and stores it.
func (p *PanelService) AccountStatus(ctx context.Context) (models.OAuthStatus, error) {
	if !p.session.Unlocked() {
		return models.OAuthStatus{}, ErrLocked
	}
	st, err := p.backend.GetOAuthStatus(ctx)
	if err != nil {
		return models.OAuthStatus{}, err
	}
	p.mu.Lock()
	p.oauth = st
	p.mu.Unlock()
	return st, nil
}

// LinkAccount returns the provider URL the admin must open to link the account.
func (p *PanelService) LinkAccount(ctx context.Context) (string, error) {
	if !p.session.Unlocked() {
		return "", ErrLocked
	}
	return p.backend.InitOAuth(ctx)
}

// UnlinkAccount detaches the linked account. The confirm flag must be set
// explicitly; the page owns the confirmation dialog.
func (p *PanelService) UnlinkAccount(ctx context.Context, confirm bool) error {
	if !p.session.Unlocked() {
		return ErrLocked
	}
	if !confirm {
		return ErrConfirmRequired
	}
	if err := p.backend.UnlinkOAuth(ctx); err != nil {
		return err
	}
	logrus.Info("MercadoPago account unlinked")
	_, err := p.AccountStatus(ctx)
	return err
}

// SetMode switches payment link generation between test and live mode.
func (p *PanelService) SetMode(ctx context.Context, live bool) error {
	if !p.session.Unlocked() {
		return ErrLocked
	}
	if err := p.backend.SetMode(ctx, live); err != nil {
		return err
	}
	cfg, err := p.backend.GetConfig(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.config = cfg
	p.mu.Unlock()
	return nil
}

// RefreshPayments reloads the recent payments table. Used by the poller and the
// page's refresh button.
func (p *PanelService) RefreshPayments(ctx context.Context) ([]models.Payment, error) {
	if !p.session.Unlocked() {
		return nil, ErrLocked
	}
	pagos, err := p.backend.GetPayments(ctx, p.pagosLimit)
	if err != nil {
		return nil, err
	}
	p.setPayments(pagos)
	return pagos, nil
}
