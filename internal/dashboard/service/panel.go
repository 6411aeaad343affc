package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/models"
)

//go:generate mockgen -source=panel.go -destination=mocks/panel_mock.go -package=mocks

// Backend defines the backend REST operations the panel depends on.
type Backend interface {
	GetConfig(ctx context.Context) (models.BackendConfig, error)
	GetDispensers(ctx context.Context) ([]models.Dispenser, error)
	CreateDispenser(ctx context.Context, nombre string) (models.Dispenser, error)
	UpdateDispenser(ctx context.Context, d models.Dispenser) error
	GetProducts(ctx context.Context, dispenserID int64) ([]models.ProductSlot, error)
	CreateProduct(ctx context.Context, p models.ProductSlot) (models.ProductSlot, error)
	UpdateProduct(ctx context.Context, id int64, fields map[string]any) (models.ProductSlot, error)
	GetPayments(ctx context.Context, limit int) ([]models.Payment, error)
	ResendPayment(ctx context.Context, paymentID int64) (string, error)
	CreatePreference(ctx context.Context, productID int64) (string, error)
	GetOAuthStatus(ctx context.Context) (models.OAuthStatus, error)
	InitOAuth(ctx context.Context) (string, error)
	UnlinkOAuth(ctx context.Context) error
	SetMode(ctx context.Context, live bool) error
}

// PanelService is the in-memory view model of the admin panel: dispensers with
// their normalized two-slot product rows, the recent payments table and the
// per-slot editing flags. HTTP handlers and the payments poller share it, so all
// state access goes through the mutex.
type PanelService struct {
	backend Backend
	session *Session

	pagosLimit int

	mu         sync.Mutex
	config     models.BackendConfig
	oauth      models.OAuthStatus
	dispensers []models.Dispenser
	products   map[int64][]models.ProductSlot
	editing    map[models.SlotKey]bool
	payments   []models.Payment
}

// PanelState is a consistent copy of the panel handed to the rendering layer.
type PanelState struct {
	Config     models.BackendConfig           `json:"config"`
	OAuth      models.OAuthStatus             `json:"oauth"`
	Dispensers []models.Dispenser             `json:"dispensers"`
	Products   map[int64][]models.ProductSlot `json:"products"`
	Payments   []models.Payment               `json:"pagos"`
}

// NewPanelService creates the panel view model on top of a backend client and a session.
func NewPanelService(backend Backend, session *Session, pagosLimit int) *PanelService {
	return &PanelService{
		backend:    backend,
		session:    session,
		pagosLimit: pagosLimit,
		products:   make(map[int64][]models.ProductSlot),
		editing:    make(map[models.SlotKey]bool),
	}
}

// Session exposes the session guard owned by the panel.
func (p *PanelService) Session() *Session {
	return p.session
}

// Login validates the secret by reading the backend config. Any failure,
// invalid or unreachable, clears the stored secret and keeps the session Locked.
func (p *PanelService) Login(ctx context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrInvalidCredentials
	}
	p.session.hold(secret)
	if _, err := p.backend.GetConfig(ctx); err != nil {
		p.session.Invalidate()
		logrus.Infof("login rejected: %v", err)
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	p.session.unlock()
	logrus.Info("session unlocked")
	if err := p.RefreshAll(ctx); err != nil {
		// Валидация уже прошла, панель можно обновить позже
		logrus.Error(err)
	}
	return nil
}

// Logout clears the secret, relocks the session and drops panel state.
func (p *PanelService) Logout() {
	p.session.Invalidate()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = models.BackendConfig{}
	p.oauth = models.OAuthStatus{}
	p.dispensers = nil
	p.products = make(map[int64][]models.ProductSlot)
	p.editing = make(map[models.SlotKey]bool)
	p.payments = nil
	logrus.Info("session locked")
}

// RefreshAll reloads config, oauth status, dispensers, their products and the
// payments table. Per-dispenser product refreshes honor the editing flags.
func (p *PanelService) RefreshAll(ctx context.Context) error {
	if !p.session.Unlocked() {
		return ErrLocked
	}
	cfg, err := p.backend.GetConfig(ctx)
	if err != nil {
		return err
	}
	oauth, oauthErr := p.backend.GetOAuthStatus(ctx)
	if oauthErr != nil {
		// Бэкенды без OAuth отдают 404, панель это переживает
		logrus.Debugf("oauth status unavailable: %v", oauthErr)
	}
	dispensers, err := p.LoadDispensers(ctx)
	if err != nil {
		return err
	}
	for _, d := range dispensers {
		if err = p.RefreshProducts(ctx, d.ID); err != nil {
			return err
		}
	}
	pagos, err := p.backend.GetPayments(ctx, p.pagosLimit)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = cfg
	if oauthErr == nil {
		p.oauth = oauth
	}
	p.payments = pagos
	return nil
}

// LoadDispensers fetches the dispenser list and stores it in the panel.
func (p *PanelService) LoadDispensers(ctx context.Context) ([]models.Dispenser, error) {
	dispensers, err := p.backend.GetDispensers(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.dispensers = dispensers
	p.mu.Unlock()
	return dispensers, nil
}

// Normalize maps the backend's product list of one dispenser onto the fixed slot
// domain: for every slot number the matching product if present, otherwise a
// placeholder row.
func Normalize(dispenserID int64, products []models.ProductSlot) []models.ProductSlot {
	rows := make([]models.ProductSlot, 0, models.SlotCount)
	for slot := 1; slot <= models.SlotCount; slot++ {
		row := models.NewPlaceholder(dispenserID, slot)
		for _, prod := range products {
			if prod.Slot == slot {
				row = prod
				row.DispenserID = dispenserID
				break
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// RefreshProducts reloads one dispenser's products from the backend and merges
// them into the panel. The refresh is discarded when any slot of that dispenser
// is being edited, so a background reload never overwrites unsaved keystrokes.
func (p *PanelService) RefreshProducts(ctx context.Context, dispenserID int64) error {
	products, err := p.backend.GetProducts(ctx, dispenserID)
	if err != nil {
		return err
	}
	rows := Normalize(dispenserID, products)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dispenserEditingLocked(dispenserID) {
		logrus.Debugf("dispenser %d has unsaved edits, refresh discarded", dispenserID)
		return nil
	}
	p.products[dispenserID] = rows
	return nil
}

// dispenserEditingLocked reports whether any slot of the dispenser has its editing
// flag set. Caller holds p.mu.
func (p *PanelService) dispenserEditingLocked(dispenserID int64) bool {
	for slot := 1; slot <= models.SlotCount; slot++ {
		if p.editing[models.SlotKey{DispenserID: dispenserID, Slot: slot}] {
			return true
		}
	}
	return false
}

// UpdateField mutates a single field of the local slot row and marks the slot as
// being edited. Nothing is persisted until SaveProductSlot.
func (p *PanelService) UpdateField(dispenserID int64, slot int, field string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows, ok := p.products[dispenserID]
	if !ok {
		return fmt.Errorf("dispenser %d is not loaded", dispenserID)
	}
	for i := range rows {
		if rows[i].Slot != slot {
			continue
		}
		switch field {
		case "nombre":
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("nombre must be a string")
			}
			rows[i].Nombre = s
		case "precio":
			f, ok := toFloat(value)
			if !ok {
				return fmt.Errorf("precio must be a number")
			}
			rows[i].Precio = f
		case "habilitado":
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("habilitado must be a boolean")
			}
			rows[i].Habilitado = b
		default:
			return fmt.Errorf("unknown field %q", field)
		}
		p.editing[models.SlotKey{DispenserID: dispenserID, Slot: slot}] = true
		return nil
	}
	return fmt.Errorf("slot %d out of range", slot)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Editing reports whether the slot currently has unsaved local edits.
func (p *PanelService) Editing(dispenserID int64, slot int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.editing[models.SlotKey{DispenserID: dispenserID, Slot: slot}]
}

// slotRow returns a copy of the local row for (dispenser, slot).
func (p *PanelService) slotRow(dispenserID int64, slot int) (models.ProductSlot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, row := range p.products[dispenserID] {
		if row.Slot == slot {
			return row, nil
		}
	}
	return models.ProductSlot{}, fmt.Errorf("slot %d of dispenser %d is not loaded", slot, dispenserID)
}

// setHabilitado flips the enabled flag of the local row in place. The editing flag
// is left untouched: a toggle persists on its own and must not release an
// in-flight name/price edit on the same slot.
func (p *PanelService) setHabilitado(dispenserID int64, slot int, checked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := p.products[dispenserID]
	for i := range rows {
		if rows[i].Slot == slot {
			rows[i].Habilitado = checked
			return
		}
	}
}

// storeSlotRow replaces the local row for the product's slot and clears its editing flag.
func (p *PanelService) storeSlotRow(product models.ProductSlot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := p.products[product.DispenserID]
	for i := range rows {
		if rows[i].Slot == product.Slot {
			rows[i] = product
			break
		}
	}
	delete(p.editing, models.SlotKey{DispenserID: product.DispenserID, Slot: product.Slot})
}

// Products returns a copy of the normalized rows of one dispenser.
func (p *PanelService) Products(dispenserID int64) []models.ProductSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := p.products[dispenserID]
	out := make([]models.ProductSlot, len(rows))
	copy(out, rows)
	return out
}

// Payments returns a copy of the recent payments table.
func (p *PanelService) Payments() []models.Payment {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Payment, len(p.payments))
	copy(out, p.payments)
	return out
}

// setPayments replaces the payments table. Used by the poller.
func (p *PanelService) setPayments(pagos []models.Payment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments = pagos
}

// HasDispensers reports whether at least one dispenser is loaded.
func (p *PanelService) HasDispensers() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dispensers) > 0
}

// State snapshots the whole panel for rendering.
func (p *PanelService) State() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PanelState{
		Config:     p.config,
		OAuth:      p.oauth,
		Dispensers: make([]models.Dispenser, len(p.dispensers)),
		Products:   make(map[int64][]models.ProductSlot, len(p.products)),
		Payments:   make([]models.Payment, len(p.payments)),
	}
	copy(st.Dispensers, p.dispensers)
	copy(st.Payments, p.payments)
	for id, rows := range p.products {
		cp := make([]models.ProductSlot, len(rows))
		copy(cp, rows)
		st.Products[id] = cp
	}
	return st
}
