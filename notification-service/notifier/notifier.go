package notifier

import (
	"context"
	"sort"
	"sync"
	"time"

	"mini-shop/middleware"
	"mini-shop/notification-service/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var notificationsSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of notifications sent",
	},
	[]string{"type", "source"},
)

func init() {
	prometheus.MustRegister(notificationsSentTotal)
}

// Notifier records notifications in memory and simulates sending each one
// as an e-mail.
type Notifier struct {
	mu     sync.RWMutex
	byUser map[string][]models.Notification
	logger *zap.Logger
	now    func() time.Time
}

func New(logger *zap.Logger) *Notifier {
	return &Notifier{
		byUser: make(map[string][]models.Notification),
		logger: logger,
		now:    time.Now,
	}
}

func (n *Notifier) Deliver(ctx context.Context, userID, kind, message, source string) models.Notification {
	notification := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Type:      kind,
		Source:    source,
		CreatedAt: n.now(),
	}

	n.mu.Lock()
	n.byUser[userID] = append(n.byUser[userID], notification)
	n.mu.Unlock()

	notificationsSentTotal.WithLabelValues(kind, source).Inc()

	// Simulate email sending
	n.logger.Info("Notification sent",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("notification_id", notification.ID),
		zap.String("to", "user_"+userID+"@example.com"),
		zap.String("type", kind),
		zap.String("source", source),
		zap.String("message", message),
	)
	return notification
}

// ListByUser returns the user's notifications, newest first.
func (n *Notifier) ListByUser(userID string) []models.Notification {
	n.mu.RLock()
	out := append([]models.Notification{}, n.byUser[userID]...)
	n.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
