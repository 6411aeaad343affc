// Package models defines the domain types mirrored from the vending backend REST API.
// JSON tags follow the backend's field names.
package models

// SlotCount is the fixed number of sellable positions on every dispenser.
const SlotCount = 2

// Payment states as reported by the backend.
const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
)

// Dispenser is a physical dispensing device managed through the dashboard.
// Owned by the backend, read-mostly in the panel, mutated via explicit save.
type Dispenser struct {
	ID       int64  `json:"id"`
	Nombre   string `json:"nombre"`
	DeviceID string `json:"device_id"`
	Activo   bool   `json:"activo"`
}

// ProductSlot is one sellable position on a dispenser. ID == 0 means the row is a
// synthesized placeholder that has not been persisted to the backend yet.
type ProductSlot struct {
	ID          int64   `json:"id"`
	DispenserID int64   `json:"dispenser_id"`
	Slot        int     `json:"slot"`
	Nombre      string  `json:"nombre"`
	Precio      float64 `json:"precio"`
	Habilitado  bool    `json:"habilitado"`
}

// Persisted reports whether the slot has a backend record behind it.
func (p ProductSlot) Persisted() bool {
	return p.ID != 0
}

// SlotKey addresses one product slot of one dispenser. Used as the composite map key
// for the per-slot editing flags.
type SlotKey struct {
	DispenserID int64
	Slot        int
}

// Payment is a recent payment row. Read-only from the panel except for the resend trigger.
type Payment struct {
	ID          int64   `json:"id"`
	MPPaymentID string  `json:"mp_payment_id"`
	Estado      string  `json:"estado"`
	Producto    string  `json:"producto"`
	SlotID      int     `json:"slot_id"`
	DeviceID    string  `json:"device_id"`
	Monto       float64 `json:"monto"`
	Dispensado  bool    `json:"dispensado"`
	CreatedAt   string  `json:"created_at"`
}

// Resendable reports whether the dispense notification may be re-sent for this payment.
func (p Payment) Resendable() bool {
	return p.Estado == PaymentApproved && !p.Dispensado
}

// BackendConfig is the backend's global payment configuration.
type BackendConfig struct {
	MPMode      string `json:"mp_mode"`
	OAuthLinked bool   `json:"oauth_linked"`
}

// OAuthStatus describes the MercadoPago account linking state.
type OAuthStatus struct {
	Vinculado bool   `json:"vinculado"`
	UserID    string `json:"user_id"`
}

// PlaceholderName returns the default product name for a slot number.
func PlaceholderName(slot int) string {
	switch slot {
	case 1:
		return "Agua fría"
	case 2:
		return "Agua caliente"
	default:
		return "Producto"
	}
}

// NewPlaceholder builds the synthetic row shown when the backend has no record for a slot.
func NewPlaceholder(dispenserID int64, slot int) ProductSlot {
	return ProductSlot{
		DispenserID: dispenserID,
		Slot:        slot,
		Nombre:      PlaceholderName(slot),
		Habilitado:  true,
	}
}
