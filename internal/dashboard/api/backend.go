// Package api implements the HTTP client for the vending backend REST API.
// Every request carries the admin secret in the x-admin-secret header; non-2xx
// responses are returned as *HTTPError with the status code and body text.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/models"
)

const requestTimeout = 15 * time.Second

// SecretSource yields the admin secret attached to every backend request.
// The session guard is the single implementation.
type SecretSource interface {
	Secret() string
}

// HTTPError is a non-2xx backend reply.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Body)
}

// BackendClient talks to the vending backend REST API.
type BackendClient struct {
	endpoint string
	secrets  SecretSource
	client   *http.Client
}

// NewBackendClient creates a client for the backend at the given base endpoint.
func NewBackendClient(endpoint string, secrets SecretSource) *BackendClient {
	return &BackendClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		secrets:  secrets,
		client:   http.DefaultClient,
	}
}

// Get issues an authenticated GET and returns the raw response body.
func (c *BackendClient) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Mutate issues an authenticated POST/PUT with a JSON body and returns the raw response body.
func (c *BackendClient) Mutate(ctx context.Context, method, path string, body any) ([]byte, error) {
	return c.do(ctx, method, path, body)
}

func (c *BackendClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			logrus.Error(err)
			return nil, err
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		err = fmt.Errorf("failed to create request with ctx: %w", err)
		logrus.Error(err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-admin-secret", c.secrets.Secret())
	req.Header.Set("X-Request-Id", uuid.NewString())

	res, err := c.client.Do(req)
	if err != nil {
		logrus.Error(err)
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		logrus.Error(err)
		return nil, err
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		httpErr := &HTTPError{Status: res.StatusCode, Body: string(data)}
		logrus.Errorf("%s %s: %v", method, path, httpErr)
		return nil, httpErr
	}
	logrus.Debugf("%s %s: %s", method, path, res.Status)

	return data, nil
}

// GetConfig fetches the backend's global payment configuration.
func (c *BackendClient) GetConfig(ctx context.Context) (models.BackendConfig, error) {
	data, err := c.Get(ctx, "/api/config")
	if err != nil {
		return models.BackendConfig{}, err
	}
	var cfg models.BackendConfig
	if err = json.Unmarshal(data, &cfg); err != nil {
		return models.BackendConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// GetDispensers fetches all dispensers.
func (c *BackendClient) GetDispensers(ctx context.Context) ([]models.Dispenser, error) {
	data, err := c.Get(ctx, "/api/dispensers")
	if err != nil {
		return nil, err
	}
	var dispensers []models.Dispenser
	if err = json.Unmarshal(data, &dispensers); err != nil {
		return nil, fmt.Errorf("decode dispensers: %w", err)
	}
	return dispensers, nil
}

// CreateDispenser registers a new dispenser, optionally named.
func (c *BackendClient) CreateDispenser(ctx context.Context, nombre string) (models.Dispenser, error) {
	body := map[string]any{}
	if nombre != "" {
		body["nombre"] = nombre
	}
	data, err := c.Mutate(ctx, http.MethodPost, "/api/dispensers", body)
	if err != nil {
		return models.Dispenser{}, err
	}
	var d models.Dispenser
	if err = json.Unmarshal(data, &d); err != nil {
		return models.Dispenser{}, fmt.Errorf("decode dispenser: %w", err)
	}
	return d, nil
}

// UpdateDispenser saves name, device id and active flag of an existing dispenser.
func (c *BackendClient) UpdateDispenser(ctx context.Context, d models.Dispenser) error {
	body := map[string]any{"nombre": d.Nombre, "device_id": d.DeviceID, "activo": d.Activo}
	_, err := c.Mutate(ctx, http.MethodPut, "/api/dispensers/"+strconv.FormatInt(d.ID, 10), body)
	return err
}

// GetProducts fetches the products of one dispenser.
func (c *BackendClient) GetProducts(ctx context.Context, dispenserID int64) ([]models.ProductSlot, error) {
	data, err := c.Get(ctx, "/api/productos?dispenser_id="+strconv.FormatInt(dispenserID, 10))
	if err != nil {
		return nil, err
	}
	var products []models.ProductSlot
	if err = json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode productos: %w", err)
	}
	return products, nil
}

// CreateProduct persists a product slot for the first time.
func (c *BackendClient) CreateProduct(ctx context.Context, p models.ProductSlot) (models.ProductSlot, error) {
	body := map[string]any{
		"nombre":       p.Nombre,
		"precio":       p.Precio,
		"habilitado":   p.Habilitado,
		"slot":         p.Slot,
		"dispenser_id": p.DispenserID,
	}
	data, err := c.Mutate(ctx, http.MethodPost, "/api/productos", body)
	if err != nil {
		return models.ProductSlot{}, err
	}
	return decodeProduct(data)
}

// UpdateProduct saves an already persisted product slot.
func (c *BackendClient) UpdateProduct(ctx context.Context, id int64, fields map[string]any) (models.ProductSlot, error) {
	data, err := c.Mutate(ctx, http.MethodPut, "/api/productos/"+strconv.FormatInt(id, 10), fields)
	if err != nil {
		return models.ProductSlot{}, err
	}
	return decodeProduct(data)
}

func decodeProduct(data []byte) (models.ProductSlot, error) {
	var p models.ProductSlot
	if err := json.Unmarshal(data, &p); err != nil {
		return models.ProductSlot{}, fmt.Errorf("decode producto: %w", err)
	}
	return p, nil
}

// GetPayments fetches the most recent payments, newest first.
func (c *BackendClient) GetPayments(ctx context.Context, limit int) ([]models.Payment, error) {
	data, err := c.Get(ctx, "/api/pagos?limit="+strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	var pagos []models.Payment
	if err = json.Unmarshal(data, &pagos); err != nil {
		return nil, fmt.Errorf("decode pagos: %w", err)
	}
	return pagos, nil
}

// ResendPayment re-triggers the dispense notification of a payment.
// Returns the backend's status message.
func (c *BackendClient) ResendPayment(ctx context.Context, paymentID int64) (string, error) {
	data, err := c.Mutate(ctx, http.MethodPost, "/api/pagos/"+strconv.FormatInt(paymentID, 10)+"/reenviar", nil)
	if err != nil {
		return "", err
	}
	var res struct {
		Ok      bool   `json:"ok"`
		Message string `json:"message"`
	}
	if err = json.Unmarshal(data, &res); err != nil {
		// Некоторые варианты бэкенда отвечают свободным текстом
		return string(data), nil
	}
	return res.Message, nil
}

// CreatePreference asks the backend for a payment link for a product.
func (c *BackendClient) CreatePreference(ctx context.Context, productID int64) (string, error) {
	data, err := c.Mutate(ctx, http.MethodPost, "/api/pagos/preferencia", map[string]any{"product_id": productID})
	if err != nil {
		return "", err
	}
	var res struct {
		Ok   bool   `json:"ok"`
		Link string `json:"link"`
	}
	if err = json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("decode preferencia: %w", err)
	}
	if !res.Ok {
		return "", fmt.Errorf("backend rejected preference for product %d", productID)
	}
	return res.Link, nil
}

// GetOAuthStatus fetches the MercadoPago account linking state.
func (c *BackendClient) GetOAuthStatus(ctx context.Context) (models.OAuthStatus, error) {
	data, err := c.Get(ctx, "/api/mp/oauth/status")
	if err != nil {
		return models.OAuthStatus{}, err
	}
	var st models.OAuthStatus
	if err = json.Unmarshal(data, &st); err != nil {
		return models.OAuthStatus{}, fmt.Errorf("decode oauth status: %w", err)
	}
	return st, nil
}

// InitOAuth returns the provider URL the admin must open to link the account.
func (c *BackendClient) InitOAuth(ctx context.Context) (string, error) {
	data, err := c.Get(ctx, "/api/mp/oauth/init")
	if err != nil {
		return "", err
	}
	var res struct {
		URL string `json:"url"`
	}
	if err = json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("decode oauth init: %w", err)
	}
	if _, err = url.Parse(res.URL); err != nil {
		return "", fmt.Errorf("oauth init returned bad URL: %w", err)
	}
	return res.URL, nil
}

// UnlinkOAuth detaches the linked MercadoPago account.
func (c *BackendClient) UnlinkOAuth(ctx context.Context) error {
	_, err := c.Mutate(ctx, http.MethodPost, "/api/mp/oauth/unlink", nil)
	return err
}

// SetMode switches payment link generation between test and live credentials.
func (c *BackendClient) SetMode(ctx context.Context, live bool) error {
	mode := "test"
	if live {
		mode = "live"
	}
	_, err := c.Mutate(ctx, http.MethodPost, "/api/mp/mode", map[string]string{"mode": mode})
	return err
}
