package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/models"
)

func loadSlots(t *testing.T, panel *PanelService, dispenserID int64, products ...models.ProductSlot) {
	t.Helper()
	backend := panel.backend.(*mockBackend)
	prev := backend.OnGetProducts
	backend.OnGetProducts = func(ctx context.Context, id int64) ([]models.ProductSlot, error) {
		return products, nil
	}
	if err := panel.RefreshProducts(context.Background(), dispenserID); err != nil {
		t.Fatal(err)
	}
	backend.OnGetProducts = prev
}

func TestSaveProductSlotValidation(t *testing.T) {
	networkCalls := 0
	backend := &mockBackend{
		OnCreateProduct: func(ctx context.Context, p models.ProductSlot) (models.ProductSlot, error) {
			networkCalls++
			return p, nil
		},
		OnUpdateProduct: func(ctx context.Context, id int64, fields map[string]any) (models.ProductSlot, error) {
			networkCalls++
			return models.ProductSlot{}, nil
		},
	}
	panel := newUnlockedPanel(backend)
	loadSlots(t, panel, 5)

	t.Run("empty trimmed name", func(t *testing.T) {
		if err := panel.UpdateField(5, 1, "nombre", "   "); err != nil {
			t.Fatal(err)
		}
		if err := panel.UpdateField(5, 1, "precio", 500.0); err != nil {
			t.Fatal(err)
		}
		if _, err := panel.SaveProductSlot(context.Background(), 5, 1); !errors.Is(err, ErrEmptyName) {
			t.Fatalf("expected ErrEmptyName, got %v", err)
		}
	})

	t.Run("non-positive price", func(t *testing.T) {
		if err := panel.UpdateField(5, 1, "nombre", "Agua fría"); err != nil {
			t.Fatal(err)
		}
		if err := panel.UpdateField(5, 1, "precio", 0.0); err != nil {
			t.Fatal(err)
		}
		if _, err := panel.SaveProductSlot(context.Background(), 5, 1); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("expected ErrInvalidPrice, got %v", err)
		}
	})

	if networkCalls != 0 {
		t.Errorf("validation failures must not reach the backend, got %d calls", networkCalls)
	}

	t.Run("editing flag survives a rejected save", func(t *testing.T) {
		if !panel.Editing(5, 1) {
			t.Error("editing flag must stay set after a rejected save")
		}
	})
}

func TestSaveProductSlotCreate(t *testing.T) {
	var created models.ProductSlot
	backend := &mockBackend{
		OnCreateProduct: func(ctx context.Context, p models.ProductSlot) (models.ProductSlot, error) {
			created = p
			p.ID = 31
			return p, nil
		},
	}
	panel := newUnlockedPanel(backend)
	loadSlots(t, panel, 5)

	if err := panel.UpdateField(5, 1, "nombre", "Agua fría"); err != nil {
		t.Fatal(err)
	}
	if err := panel.UpdateField(5, 1, "precio", 500.0); err != nil {
		t.Fatal(err)
	}

	saved, err := panel.SaveProductSlot(context.Background(), 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != 0 || created.DispenserID != 5 || created.Slot != 1 {
		t.Errorf("expected a create for the placeholder row, sent %+v", created)
	}
	if saved.ID != 31 {
		t.Errorf("id from the response not adopted: %+v", saved)
	}
	if panel.Editing(5, 1) {
		t.Error("editing flag must clear after a successful save")
	}
	if rows := panel.Products(5); rows[0].ID != 31 {
		t.Errorf("canonical product not merged into local state: %+v", rows[0])
	}
}

func TestSaveProductSlotUpdate(t *testing.T) {
	var updatedID int64
	var sentFields map[string]any
	backend := &mockBackend{
		OnUpdateProduct: func(ctx context.Context, id int64, fields map[string]any) (models.ProductSlot, error) {
			updatedID = id
			sentFields = fields
			return models.ProductSlot{ID: id, DispenserID: 5, Slot: 2, Nombre: "Agua caliente", Precio: 800, Habilitado: true}, nil
		},
	}
	panel := newUnlockedPanel(backend)
	loadSlots(t, panel, 5, models.ProductSlot{ID: 12, DispenserID: 5, Slot: 2, Nombre: "Agua caliente", Precio: 700, Habilitado: true})

	if err := panel.UpdateField(5, 2, "precio", 800.0); err != nil {
		t.Fatal(err)
	}
	if _, err := panel.SaveProductSlot(context.Background(), 5, 2); err != nil {
		t.Fatal(err)
	}
	if updatedID != 12 {
		t.Errorf("expected update of product 12, got %d", updatedID)
	}
	if sentFields["precio"] != 800.0 {
		t.Errorf("unexpected update payload: %v", sentFields)
	}
}

func TestSaveProductSlotBackendFailure(t *testing.T) {
	backend := &mockBackend{
		OnCreateProduct: func(ctx context.Context, p models.ProductSlot) (models.ProductSlot, error) {
			return models.ProductSlot{}, errors.New("500 internal")
		},
	}
	panel := newUnlockedPanel(backend)
	loadSlots(t, panel, 5)

	if err := panel.UpdateField(5, 1, "precio", 500.0); err != nil {
		t.Fatal(err)
	}
	if _, err := panel.SaveProductSlot(context.Background(), 5, 1); err == nil {
		t.Fatal("backend failure must surface")
	}
	if !panel.Editing(5, 1) {
		t.Error("editing flag must stay set after a failed save")
	}
}

func TestToggleEnabled(t *testing.T) {
	t.Run("rejects a never saved slot", func(t *testing.T) {
		calls := 0
		backend := &mockBackend{
			OnUpdateProduct: func(ctx context.Context, id int64, fields map[string]any) (models.ProductSlot, error) {
				calls++
				return models.ProductSlot{}, nil
			},
		}
		panel := newUnlockedPanel(backend)
		loadSlots(t, panel, 5)

		if err := panel.ToggleEnabled(context.Background(), 5, 1, false); !errors.Is(err, ErrNotPersisted) {
			t.Fatalf("expected ErrNotPersisted, got %v", err)
		}
		if calls != 0 {
			t.Error("no request expected for an unsaved slot")
		}
	})

	t.Run("persists the optimistic flip", func(t *testing.T) {
		var sent map[string]any
		backend := &mockBackend{
			OnUpdateProduct: func(ctx context.Context, id int64, fields map[string]any) (models.ProductSlot, error) {
				sent = fields
				return models.ProductSlot{}, nil
			},
		}
		panel := newUnlockedPanel(backend)
		loadSlots(t, panel, 5, models.ProductSlot{ID: 12, DispenserID: 5, Slot: 1, Nombre: "Agua fría", Precio: 500, Habilitado: true})

		if err := panel.ToggleEnabled(context.Background(), 5, 1, false); err != nil {
			t.Fatal(err)
		}
		if sent["habilitado"] != false {
			t.Errorf("unexpected payload: %v", sent)
		}
		if rows := panel.Products(5); rows[0].Habilitado {
			t.Error("local state should carry the flip")
		}
	})

	t.Run("preserves an in-flight edit on the same slot", func(t *testing.T) {
		backend := &mockBackend{}
		panel := newUnlockedPanel(backend)
		loadSlots(t, panel, 5, models.ProductSlot{ID: 12, DispenserID: 5, Slot: 1, Nombre: "Agua fría", Precio: 500, Habilitado: true})

		if err := panel.UpdateField(5, 1, "precio", 900.0); err != nil {
			t.Fatal(err)
		}
		if err := panel.ToggleEnabled(context.Background(), 5, 1, false); err != nil {
			t.Fatal(err)
		}
		if !panel.Editing(5, 1) {
			t.Fatal("toggle must not release the editing flag of an unsaved edit")
		}
		rows := panel.Products(5)
		if rows[0].Precio != 900 || rows[0].Habilitado {
			t.Errorf("local row lost the unsaved edit or the flip: %+v", rows[0])
		}

		// A background refresh still may not overwrite the unsaved precio.
		backend.OnGetProducts = func(ctx context.Context, id int64) ([]models.ProductSlot, error) {
			return []models.ProductSlot{{ID: 12, DispenserID: 5, Slot: 1, Nombre: "Agua fría", Precio: 500, Habilitado: false}}, nil
		}
		if err := panel.RefreshProducts(context.Background(), 5); err != nil {
			t.Fatal(err)
		}
		if rows := panel.Products(5); rows[0].Precio != 900 {
			t.Errorf("refresh overwrote the unsaved precio, got %v", rows[0].Precio)
		}
	})

	t.Run("failure re-fetches the authoritative value", func(t *testing.T) {
		refetched := false
		backend := &mockBackend{
			OnUpdateProduct: func(ctx context.Context, id int64, fields map[string]any) (models.ProductSlot, error) {
				return models.ProductSlot{}, errors.New("network down")
			},
		}
		panel := newUnlockedPanel(backend)
		loadSlots(t, panel, 5, models.ProductSlot{ID: 12, DispenserID: 5, Slot: 1, Nombre: "Agua fría", Precio: 500, Habilitado: true})

		backend.OnGetProducts = func(ctx context.Context, id int64) ([]models.ProductSlot, error) {
			refetched = true
			return []models.ProductSlot{{ID: 12, DispenserID: 5, Slot: 1, Nombre: "Agua fría", Precio: 500, Habilitado: true}}, nil
		}
		if err := panel.ToggleEnabled(context.Background(), 5, 1, false); err == nil {
			t.Fatal("persist failure must surface")
		}
		if !refetched {
			t.Error("failed toggle should reload the dispenser's products")
		}
		if rows := panel.Products(5); !rows[0].Habilitado {
			t.Error("authoritative value should be restored after the failed flip")
		}
	})
}

func TestRequestPaymentLink(t *testing.T) {
	backend := &mockBackend{
		OnCreatePreference: func(ctx context.Context, productID int64) (string, error) {
			return "https://mpago.la/abc", nil
		},
	}
	panel := newUnlockedPanel(backend)
	loadSlots(t, panel, 5, models.ProductSlot{ID: 12, DispenserID: 5, Slot: 1, Nombre: "Agua fría", Precio: 500, Habilitado: true})

	if _, err := panel.RequestPaymentLink(context.Background(), 5, 2); !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("expected ErrNotPersisted for the placeholder, got %v", err)
	}
	link, err := panel.RequestPaymentLink(context.Background(), 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if link != "https://mpago.la/abc" {
		t.Errorf("unexpected link %q", link)
	}
}

func TestResendPayment(t *testing.T) {
	calls := 0
	backend := &mockBackend{
		OnResendPayment: func(ctx context.Context, paymentID int64) (string, error) {
			calls++
			return "reenviado", nil
		},
	}
	panel := newUnlockedPanel(backend)
	panel.setPayments([]models.Payment{
		{ID: 1, Estado: models.PaymentApproved, Dispensado: false},
		{ID: 2, Estado: models.PaymentApproved, Dispensado: true},
		{ID: 3, Estado: models.PaymentPending, Dispensado: false},
	})

	t.Run("approved and not dispensed", func(t *testing.T) {
		msg, err := panel.ResendPayment(context.Background(), 1)
		if err != nil {
			t.Fatal(err)
		}
		if msg != "reenviado" {
			t.Errorf("unexpected message %q", msg)
		}
	})

	t.Run("already dispensed", func(t *testing.T) {
		if _, err := panel.ResendPayment(context.Background(), 2); !errors.Is(err, ErrNotResendable) {
			t.Fatalf("expected ErrNotResendable, got %v", err)
		}
	})

	t.Run("not approved", func(t *testing.T) {
		if _, err := panel.ResendPayment(context.Background(), 3); !errors.Is(err, ErrNotResendable) {
			t.Fatalf("expected ErrNotResendable, got %v", err)
		}
	})

	if calls != 1 {
		t.Errorf("only the resendable payment may reach the backend, got %d calls", calls)
	}
}

func TestUnlinkAccountNeedsConfirm(t *testing.T) {
	calls := 0
	backend := &mockBackend{
		OnUnlinkOAuth: func(ctx context.Context) error {
			calls++
			return nil
		},
	}
	panel := newUnlockedPanel(backend)

	if err := panel.UnlinkAccount(context.Background(), false); !errors.Is(err, ErrConfirmRequired) {
		t.Fatalf("expected ErrConfirmRequired, got %v", err)
	}
	if calls != 0 {
		t.Error("unconfirmed unlink must not reach the backend")
	}
	if err := panel.UnlinkAccount(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected one unlink call, got %d", calls)
	}
}

func TestActionsRequireUnlockedSession(t *testing.T) {
	backend := &mockBackend{}
	panel := NewPanelService(backend, NewSession(), 20)
	ctx := context.Background()

	if _, err := panel.CreateDispenser(ctx, "x"); !errors.Is(err, ErrLocked) {
		t.Errorf("CreateDispenser: expected ErrLocked, got %v", err)
	}
	if _, err := panel.SaveProductSlot(ctx, 1, 1); !errors.Is(err, ErrLocked) {
		t.Errorf("SaveProductSlot: expected ErrLocked, got %v", err)
	}
	if err := panel.ToggleEnabled(ctx, 1, 1, true); !errors.Is(err, ErrLocked) {
		t.Errorf("ToggleEnabled: expected ErrLocked, got %v", err)
	}
	if err := panel.SetMode(ctx, true); !errors.Is(err, ErrLocked) {
		t.Errorf("SetMode: expected ErrLocked, got %v", err)
	}
	if err := panel.RefreshAll(ctx); !errors.Is(err, ErrLocked) {
		t.Errorf("RefreshAll: expected ErrLocked, got %v", err)
	}
}

func TestSetModeReloadsConfig(t *testing.T) {
	var sentLive bool
	backend := &mockBackend{
		OnSetMode: func(ctx context.Context, live bool) error {
			sentLive = live
			return nil
		},
		OnGetConfig: func(ctx context.Context) (models.BackendConfig, error) {
			return models.BackendConfig{MPMode: "live", OAuthLinked: true}, nil
		},
	}
	panel := newUnlockedPanel(backend)

	if err := panel.SetMode(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if !sentLive {
		t.Error("live mode not forwarded")
	}
	if panel.State().Config.MPMode != "live" {
		t.Error("config not reloaded after mode switch")
	}
}
