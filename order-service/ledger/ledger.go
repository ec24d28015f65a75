package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mini-shop/order-service/models"
)

var ErrOrderNotFound = errors.New("order not found")

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Ledger is the in-memory order store. Orders are never removed and every
// read hands out a deep copy, so callers cannot mutate stored state.
type Ledger struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*models.Order
	now    func() time.Time
}

func New() *Ledger {
	return &Ledger{
		orders: make(map[int64]*models.Order),
		now:    time.Now,
	}
}

// Append assigns the next id to order, stores it and returns the stored copy.
func (l *Ledger) Append(order models.Order) models.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	order.ID = l.nextID
	now := l.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	stored := order.Clone()
	l.orders[stored.ID] = &stored
	return stored.Clone()
}

func (l *Ledger) Get(id int64) (models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return models.Order{}, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	return o.Clone(), nil
}

// Update applies fn to the stored order under the ledger lock.
func (l *Ledger) Update(id int64, fn func(o *models.Order) error) (models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return models.Order{}, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}

	working := o.Clone()
	if err := fn(&working); err != nil {
		return o.Clone(), err
	}
	l.orders[id] = &working
	return working.Clone(), nil
}

// UpdateStatus is the operational status override. It bypasses the saga
// state machine but refuses to leave a terminal status or to touch an order a
// saga is still driving.
func (l *Ledger) UpdateStatus(id int64, status models.OrderStatus, message string) (models.Order, error) {
	if !status.Valid() {
		return models.Order{}, models.NewError(models.KindClientInput, fmt.Sprintf("unknown order status %q", status), nil)
	}

	return l.Update(id, func(o *models.Order) error {
		switch o.Status {
		case models.OrderStatusCancelled, models.OrderStatusDelivered:
			return models.NewError(models.KindConflict,
				fmt.Sprintf("order %d is %s and cannot change status", o.ID, o.Status), nil)
		case models.OrderStatusPending, models.OrderStatusProcessing:
			return models.NewError(models.KindConflict,
				fmt.Sprintf("order %d is still being placed", o.ID), nil)
		}
		if message == "" {
			message = fmt.Sprintf("Status updated to %s", status)
		}
		o.Transition(status, message, l.now())
		return nil
	})
}

// ListByUser returns the user's orders, newest first.
func (l *Ledger) ListByUser(userID string, filter models.OrderFilter, page models.Page) models.OrderList {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = defaultPageLimit
	}
	if page.Limit > maxPageLimit {
		page.Limit = maxPageLimit
	}

	l.mu.Lock()
	matched := make([]models.Order, 0)
	for _, o := range l.orders {
		if o.UserID != userID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, o.Clone())
	}
	l.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	start := (page.Page - 1) * page.Limit
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}

	return models.OrderList{
		Orders: matched[start:end],
		Pagination: models.Pagination{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      total,
			TotalPages: (total + page.Limit - 1) / page.Limit,
		},
	}
}

// Stats aggregates over all orders. Revenue counts orders whose payment completed.
func (l *Ledger) Stats() models.OrderStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := models.OrderStats{
		TotalOrders: len(l.orders),
		ByStatus:    make(map[models.OrderStatus]int, len(models.OrderStatuses)),
	}
	for _, s := range models.OrderStatuses {
		stats.ByStatus[s] = 0
	}

	paid := 0
	for _, o := range l.orders {
		stats.ByStatus[o.Status]++
		if o.PaymentStatus == models.PaymentStatusCompleted {
			stats.TotalRevenue += o.TotalAmount
			paid++
		}
	}
	if paid > 0 {
		stats.AverageOrderValue = stats.TotalRevenue / float64(paid)
	}
	return stats
}
