package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
)

func TestOrderInsertGetUpdate(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	order := models.NewOrder("alice@example.com-03152024-101500", "alice@example.com", models.ProductOptions{})
	if err := mgr.Orders().InsertOrder(ctx, order); err != nil {
		t.Fatalf("Failed to insert order: %v", err)
	}

	if err := mgr.Orders().InsertOrder(ctx, order); err == nil {
		t.Fatal("Expected duplicate insert to fail")
	}

	got, err := mgr.Orders().GetOrder(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("Failed to get order: %v", err)
	}
	if got.Status != models.OrderStatusOrdered {
		t.Errorf("Expected ordered status, got %s", got.Status)
	}

	got.Status = models.OrderStatusComplete
	now := time.Now()
	got.CompletionDate = &now
	if err := mgr.Orders().UpdateOrder(ctx, got); err != nil {
		t.Fatalf("Failed to update order: %v", err)
	}

	got, err = mgr.Orders().GetOrder(ctx, order.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsComplete() || got.CompletionDate == nil {
		t.Errorf("Expected complete order with completion date, got %+v", got)
	}
}

func TestOrderGetMissingReturnsSentinel(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.Orders().GetOrder(context.Background(), "nothing")
	if !errors.Is(err, interfaces.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderValidationRejected(t *testing.T) {
	mgr := newTestManager(t)

	bad := models.NewOrder("", "alice@example.com", models.ProductOptions{})
	if err := mgr.Orders().InsertOrder(context.Background(), bad); err == nil {
		t.Fatal("Expected insert of order without id to fail")
	}

	external := models.NewOrder("bob@example.com-xyz", "bob@example.com", models.ProductOptions{})
	external.OrderSource = models.OrderSourceExternal
	if err := mgr.Orders().InsertOrder(context.Background(), external); err == nil {
		t.Fatal("Expected external order without ref to fail validation")
	}
}

func TestListOrdersFilters(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	open := models.NewOrder("alice@example.com-03152024-101500", "alice@example.com", models.ProductOptions{})
	done := models.NewOrder("bob@example.com-03142024-090000", "bob@example.com", models.ProductOptions{})
	done.Status = models.OrderStatusComplete
	oldDate := time.Now().Add(-30 * 24 * time.Hour)
	done.CompletionDate = &oldDate
	imported := models.NewExternalOrder("carol@example.com-ext-42", "ext-42", "carol@example.com", "contact-9", models.ProductOptions{})

	for _, o := range []*models.Order{open, done, imported} {
		if err := mgr.Orders().InsertOrder(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	ordered, err := mgr.Orders().ListOrders(ctx, &interfaces.OrderFilter{
		Statuses: []models.OrderStatus{models.OrderStatusOrdered},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ordered) != 2 {
		t.Errorf("Expected 2 ordered orders, got %d", len(ordered))
	}

	external, err := mgr.Orders().ListOrders(ctx, &interfaces.OrderFilter{Source: models.OrderSourceExternal})
	if err != nil {
		t.Fatal(err)
	}
	if len(external) != 1 || external[0].OrderID != imported.OrderID {
		t.Errorf("Expected only the imported order, got %d", len(external))
	}

	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	stale, err := mgr.Orders().ListOrders(ctx, &interfaces.OrderFilter{
		Statuses:        []models.OrderStatus{models.OrderStatusComplete},
		CompletedBefore: &cutoff,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].OrderID != done.OrderID {
		t.Errorf("Expected only the stale complete order, got %d", len(stale))
	}
}

func TestListOrdersInitialEmailPending(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	pending := models.NewOrder("alice@example.com-03152024-101500", "alice@example.com", models.ProductOptions{})
	sent := models.NewOrder("bob@example.com-03142024-090000", "bob@example.com", models.ProductOptions{})
	stamp := time.Now()
	sent.InitialEmailSent = &stamp

	for _, o := range []*models.Order{pending, sent} {
		if err := mgr.Orders().InsertOrder(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	got, err := mgr.Orders().ListOrders(ctx, &interfaces.OrderFilter{InitialEmailPending: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].OrderID != pending.OrderID {
		t.Errorf("Expected only the unsent order, got %d", len(got))
	}
}

func TestRequesterGetOrCreate(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	created, err := mgr.Requesters().GetOrCreate(ctx, "alice@example.com", "contact-1")
	if err != nil {
		t.Fatalf("Failed to create requester: %v", err)
	}
	if created.ID == "" {
		t.Error("Expected generated requester id")
	}

	again, err := mgr.Requesters().GetOrCreate(ctx, "alice@example.com", "")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != created.ID {
		t.Errorf("Expected lookup to reuse requester %s, got %s", created.ID, again.ID)
	}
	if again.ContactID != "contact-1" {
		t.Errorf("Expected contact id preserved, got %q", again.ContactID)
	}

	// Archive-side contact ids can change; the registry follows
	moved, err := mgr.Requesters().GetOrCreate(ctx, "alice@example.com", "contact-2")
	if err != nil {
		t.Fatal(err)
	}
	if moved.ContactID != "contact-2" {
		t.Errorf("Expected contact id updated, got %q", moved.ContactID)
	}

	if _, err := mgr.Requesters().GetOrCreate(ctx, "", "contact-3"); err == nil {
		t.Fatal("Expected empty email to be rejected")
	}
}
