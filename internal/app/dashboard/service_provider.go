// Package dashboard provides dependency injection and lifecycle management for the
// admin dashboard server.
package dashboard

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/api"
	dashhttp "github.com/DenisKhanov/DispenserAdmin/internal/dashboard/api/http"
	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/notify"
	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/service"
)

// serviceProvider manages dependency injection for the dashboard components.
// It lazily initializes services and handlers as needed.
type serviceProvider struct {
	backendEndpoint string
	pollInterval    time.Duration
	pagosLimit      int
	botToken        string
	ownerID         int64

	session *service.Session
	panel   *service.PanelService
	poller  *service.PaymentPoller
	handler *dashhttp.Handler

	panelOnce   sync.Once
	pollerOnce  sync.Once
	handlerOnce sync.Once
}

// newServiceProvider creates a provider for the given backend endpoint and polling settings.
func newServiceProvider(backendEndpoint string, pollInterval time.Duration, pagosLimit int, botToken string, ownerID int64) *serviceProvider {
	if backendEndpoint == "" {
		logrus.Fatal("serviceProvider creation failed: backend endpoint must be non-empty")
	}
	return &serviceProvider{
		backendEndpoint: backendEndpoint,
		pollInterval:    pollInterval,
		pagosLimit:      pagosLimit,
		botToken:        botToken,
		ownerID:         ownerID,
	}
}

// Panel returns the panel view model, creating the session and backend client on first use.
func (s *serviceProvider) Panel() *service.PanelService {
	s.panelOnce.Do(func() {
		s.session = service.NewSession()
		backend := api.NewBackendClient(s.backendEndpoint, s.session)
		s.panel = service.NewPanelService(backend, s.session, s.pagosLimit)
		logrus.Info("Panel service initialized lazily")
	})
	return s.panel
}

// Poller returns the payments poller, wiring the Telegram notifier when configured.
func (s *serviceProvider) Poller() *service.PaymentPoller {
	s.pollerOnce.Do(func() {
		s.poller = service.NewPaymentPoller(s.Panel(), s.pollInterval)
		if s.botToken != "" && s.ownerID != 0 {
			notifier, err := notify.NewTelegramNotifier(s.botToken, s.ownerID)
			if err != nil {
				logrus.Errorf("telegram notifier disabled: %v", err)
			} else {
				s.poller.SetApprovedCallback(notifier.NotifyPayment)
			}
		}
		logrus.Info("Payment poller initialized lazily")
	})
	return s.poller
}

// Handler returns the HTTP handler for the dashboard routes.
func (s *serviceProvider) Handler() *dashhttp.Handler {
	s.handlerOnce.Do(func() {
		s.handler = dashhttp.NewHandler(s.Panel(), s.Poller())
		logrus.Info("HTTP handler initialized lazily")
	})
	return s.handler
}
