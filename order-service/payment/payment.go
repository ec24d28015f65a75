package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Charge struct {
	OrderID int64
	UserID  string
	Amount  float64
	Method  string
}

type Result struct {
	Success       bool
	TransactionID string
	Message       string
	ProcessedAt   time.Time
}

// Processor charges an order. A declined charge is reported through
// Result.Success; the error return is reserved for processor failures.
type Processor interface {
	Charge(ctx context.Context, charge Charge) (Result, error)
}

type SimulatorConfig struct {
	SuccessRate float64
	MinLatency  time.Duration
	MaxLatency  time.Duration
}

// Simulator approves a configurable share of charges after a random delay.
type Simulator struct {
	cfg    SimulatorConfig
	logger *zap.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

func NewSimulator(cfg SimulatorConfig, logger *zap.Logger) *Simulator {
	return NewSimulatorWithRand(cfg, rand.New(rand.NewSource(time.Now().UnixNano())), logger)
}

func NewSimulatorWithRand(cfg SimulatorConfig, r *rand.Rand, logger *zap.Logger) *Simulator {
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	return &Simulator{cfg: cfg, logger: logger, rand: r}
}

func (s *Simulator) Charge(ctx context.Context, charge Charge) (Result, error) {
	ctx, span := otel.Tracer("order-service").Start(ctx, "ChargePayment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order.id", charge.OrderID),
		attribute.Float64("amount", charge.Amount),
		attribute.String("payment.method", charge.Method),
	)

	s.mu.Lock()
	latency := s.cfg.MinLatency
	if spread := s.cfg.MaxLatency - s.cfg.MinLatency; spread > 0 {
		latency += time.Duration(s.rand.Int63n(int64(spread)))
	}
	approved := s.rand.Float64() < s.cfg.SuccessRate
	s.mu.Unlock()

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return Result{}, fmt.Errorf("payment processing interrupted: %w", ctx.Err())
	}

	result := Result{
		Success:     approved,
		ProcessedAt: time.Now(),
	}
	if approved {
		result.TransactionID = "TXN-" + uuid.NewString()
		result.Message = "Payment processed successfully"
	} else {
		result.Message = "Payment declined by processor"
	}

	span.SetAttributes(attribute.Bool("payment.success", approved))
	s.logger.Info("Payment processed",
		zap.Int64("order_id", charge.OrderID),
		zap.Float64("amount", charge.Amount),
		zap.Bool("success", approved),
		zap.String("transaction_id", result.TransactionID),
	)
	return result, nil
}

// Fixed always returns the same outcome. Used in tests and for local runs
// that need a deterministic payment step.
type Fixed struct {
	Approve bool
	Err     error

	mu      sync.Mutex
	charges []Charge
}

func (f *Fixed) Charge(_ context.Context, charge Charge) (Result, error) {
	f.mu.Lock()
	f.charges = append(f.charges, charge)
	f.mu.Unlock()

	if f.Err != nil {
		return Result{}, f.Err
	}
	if !f.Approve {
		return Result{Success: false, Message: "Payment declined by processor", ProcessedAt: time.Now()}, nil
	}
	return Result{
		Success:       true,
		TransactionID: "TXN-" + uuid.NewString(),
		Message:       "Payment processed successfully",
		ProcessedAt:   time.Now(),
	}, nil
}

func (f *Fixed) Charges() []Charge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Charge(nil), f.charges...)
}
