package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestOrder_SetItemsComputesTotals(t *testing.T) {
	var o Order
	o.SetItems([]OrderItem{
		{ProductID: 1, Name: "Laptop", UnitPrice: 999.99, Quantity: 2},
		{ProductID: 2, Name: "Mouse", UnitPrice: 0.10, Quantity: 3},
	})

	if o.Items[0].Subtotal != 1999.98 {
		t.Errorf("Expected subtotal 1999.98, got %v", o.Items[0].Subtotal)
	}
	if o.TotalAmount != 2000.28 {
		t.Errorf("Expected total 2000.28, got %v", o.TotalAmount)
	}
	if o.TotalItems != 5 {
		t.Errorf("Expected 5 items, got %d", o.TotalItems)
	}
}

func TestOrder_TransitionAppendsTimeline(t *testing.T) {
	now := time.Now()
	o := Order{}
	o.Transition(OrderStatusPending, "Order created", now)
	o.Transition(OrderStatusProcessing, "Payment processing", now.Add(time.Second))

	if o.Status != OrderStatusProcessing {
		t.Errorf("Expected status %s, got %s", OrderStatusProcessing, o.Status)
	}
	if len(o.Timeline) != 2 {
		t.Fatalf("Expected 2 timeline entries, got %d", len(o.Timeline))
	}
	if !o.UpdatedAt.Equal(now.Add(time.Second)) {
		t.Errorf("Expected UpdatedAt to follow last transition")
	}
}

func TestOrder_CloneIsDeep(t *testing.T) {
	o := Order{PaymentDetails: &PaymentDetails{TransactionID: "TXN-1"}}
	o.SetItems([]OrderItem{{ProductID: 1, UnitPrice: 1, Quantity: 1}})
	o.Transition(OrderStatusPending, "Order created", time.Now())

	c := o.Clone()
	c.Items[0].Quantity = 99
	c.Timeline[0].Message = "changed"
	c.PaymentDetails.TransactionID = "TXN-2"

	if o.Items[0].Quantity != 1 {
		t.Errorf("Expected items to be copied")
	}
	if o.Timeline[0].Message != "Order created" {
		t.Errorf("Expected timeline to be copied")
	}
	if o.PaymentDetails.TransactionID != "TXN-1" {
		t.Errorf("Expected payment details to be copied")
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	if !OrderStatusShipped.Valid() {
		t.Errorf("Expected SHIPPED to be valid")
	}
	if OrderStatus("LOST").Valid() {
		t.Errorf("Expected LOST to be invalid")
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("placing order: %w", NewError(KindDependencyShortCircuited, "cart service unavailable", nil))

	if got := KindOf(err); got != KindDependencyShortCircuited {
		t.Errorf("Expected %s, got %s", KindDependencyShortCircuited, got)
	}
	if got := KindOf(err).HTTPStatus(); got != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("Expected %s, got %s", KindInternal, got)
	}
}
