// Package http exposes the panel to the browser page as JSON endpoints.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/api"
	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/models"
	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/service"
	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/web"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks

// Panel defines the panel operations the HTTP layer drives.
type Panel interface {
	Session() *service.Session
	Login(ctx context.Context, secret string) error
	Logout()
	RefreshAll(ctx context.Context) error
	State() service.PanelState
	HasDispensers() bool
	UpdateField(dispenserID int64, slot int, field string, value any) error
	CreateDispenser(ctx context.Context, nombre string) (models.Dispenser, error)
	SaveDispenser(ctx context.Context, d models.Dispenser) error
	SaveProductSlot(ctx context.Context, dispenserID int64, slot int) (models.ProductSlot, error)
	ToggleEnabled(ctx context.Context, dispenserID int64, slot int, checked bool) error
	RequestPaymentLink(ctx context.Context, dispenserID int64, slot int) (string, error)
	ResendPayment(ctx context.Context, paymentID int64) (string, error)
	AccountStatus(ctx context.Context) (models.OAuthStatus, error)
	LinkAccount(ctx context.Context) (string, error)
	UnlinkAccount(ctx context.Context, confirm bool) error
	SetMode(ctx context.Context, live bool) error
	RefreshPayments(ctx context.Context) ([]models.Payment, error)
}

// Poller controls the recent payments background refresh.
type Poller interface {
	Start()
	Stop()
	Running() bool
}

// Handler routes the browser page's requests to the panel.
type Handler struct {
	panel  Panel
	poller Poller
}

// NewHandler creates the HTTP handler over the panel and the poller.
func NewHandler(panel Panel, poller Poller) *Handler {
	return &Handler{panel: panel, poller: poller}
}

// RegisterRoutes attaches page and panel routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Page)
	router.POST("/panel/login", h.Login)

	panel := router.Group("/panel")
	panel.Use(h.requireUnlocked())
	panel.POST("/logout", h.Logout)
	panel.GET("/state", h.State)
	panel.POST("/refresh", h.Refresh)
	panel.POST("/dispensers", h.CreateDispenser)
	panel.PUT("/dispensers/:id", h.SaveDispenser)
	panel.POST("/edit", h.Edit)
	panel.POST("/save", h.Save)
	panel.POST("/toggle", h.Toggle)
	panel.POST("/qr", h.PaymentLink)
	panel.POST("/pagos/:id/reenviar", h.Resend)
	panel.GET("/oauth/status", h.OAuthStatus)
	panel.POST("/oauth/link", h.OAuthLink)
	panel.POST("/oauth/unlink", h.OAuthUnlink)
	panel.POST("/mode", h.Mode)
}

// startPollerIfReady launches the payments poller once at least one dispenser is
// loaded, without replacing an already running one.
func (h *Handler) startPollerIfReady() {
	if h.panel.HasDispensers() && !h.poller.Running() {
		h.poller.Start()
	}
}

// requireUnlocked rejects panel requests while the session is Locked.
func (h *Handler) requireUnlocked() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.panel.Session().Unlocked() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": service.ErrLocked.Error()})
			return
		}
		c.Next()
	}
}

// Page serves the embedded admin page.
func (h *Handler) Page(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(web.PanelHTML))
}

// Login validates the admin secret and unlocks the panel.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.panel.Login(c.Request.Context(), req.Secret); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrInvalidCredentials.Error()})
		return
	}
	h.startPollerIfReady()
	c.JSON(http.StatusOK, h.panel.State())
}

// Logout relocks the session and stops the poller.
func (h *Handler) Logout(c *gin.Context) {
	h.poller.Stop()
	h.panel.Logout()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// State returns the current panel snapshot.
func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.panel.State())
}

// Refresh reloads everything from the backend. A session whose login-time load
// failed gets its poller here, once dispensers finally show up.
func (h *Handler) Refresh(c *gin.Context) {
	if err := h.panel.RefreshAll(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.startPollerIfReady()
	c.JSON(http.StatusOK, h.panel.State())
}

// CreateDispenser registers a new dispenser.
func (h *Handler) CreateDispenser(c *gin.Context) {
	var req struct {
		Nombre string `json:"nombre"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.panel.CreateDispenser(c.Request.Context(), req.Nombre)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.startPollerIfReady()
	c.JSON(http.StatusOK, d)
}

// SaveDispenser persists an edited dispenser.
func (h *Handler) SaveDispenser(c *gin.Context) {
	var req models.Dispenser
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var ok bool
	if req.ID, ok = paramID(c, "id"); !ok {
		return
	}
	if err := h.panel.SaveDispenser(c.Request.Context(), req); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type slotRequest struct {
	DispenserID int64 `json:"dispenser_id"`
	Slot        int   `json:"slot"`
}

// Edit applies one local field change and marks the slot as being edited.
func (h *Handler) Edit(c *gin.Context) {
	var req struct {
		slotRequest
		Field string `json:"field"`
		Value any    `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.panel.UpdateField(req.DispenserID, req.Slot, req.Field, req.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Save persists the edited slot.
func (h *Handler) Save(c *gin.Context) {
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := h.panel.SaveProductSlot(c.Request.Context(), req.DispenserID, req.Slot)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// Toggle flips the enabled flag of a persisted slot.
func (h *Handler) Toggle(c *gin.Context) {
	var req struct {
		slotRequest
		Habilitado bool `json:"habilitado"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.panel.ToggleEnabled(c.Request.Context(), req.DispenserID, req.Slot, req.Habilitado); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PaymentLink generates a payment link for a persisted slot.
func (h *Handler) PaymentLink(c *gin.Context) {
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	link, err := h.panel.RequestPaymentLink(c.Request.Context(), req.DispenserID, req.Slot)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "link": link})
}

// Resend re-triggers the dispense notification of a payment.
func (h *Handler) Resend(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	msg, err := h.panel.ResendPayment(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": msg})
}

// OAuthStatus returns the MercadoPago linking state.
func (h *Handler) OAuthStatus(c *gin.Context) {
	st, err := h.panel.AccountStatus(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// OAuthLink returns the provider URL to open for linking.
func (h *Handler) OAuthLink(c *gin.Context) {
	url, err := h.panel.LinkAccount(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// OAuthUnlink detaches the linked account. Requires an explicit confirm flag.
func (h *Handler) OAuthUnlink(c *gin.Context) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.panel.UnlinkAccount(c.Request.Context(), req.Confirm); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Mode switches payment link generation between test and live.
func (h *Handler) Mode(c *gin.Context) {
	var req struct {
		Live bool `json:"live"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.panel.SetMode(c.Request.Context(), req.Live); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// fail maps panel errors onto HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	var httpErr *api.HTTPError
	switch {
	case errors.Is(err, service.ErrLocked), errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrNotPersisted),
		errors.Is(err, service.ErrNotResendable),
		errors.Is(err, service.ErrConfirmRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &httpErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "backend_status": httpErr.Status})
	default:
		logrus.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
