package payment

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestSimulator_AlwaysApproves(t *testing.T) {
	sim := NewSimulatorWithRand(SimulatorConfig{SuccessRate: 1}, rand.New(rand.NewSource(1)), zaptest.NewLogger(t))

	for i := 0; i < 20; i++ {
		res, err := sim.Charge(context.Background(), Charge{OrderID: int64(i), Amount: 10})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !res.Success {
			t.Fatalf("Expected approval at success rate 1")
		}
		if !strings.HasPrefix(res.TransactionID, "TXN-") {
			t.Errorf("Expected TXN- transaction id, got %q", res.TransactionID)
		}
	}
}

func TestSimulator_AlwaysDeclines(t *testing.T) {
	sim := NewSimulatorWithRand(SimulatorConfig{SuccessRate: 0}, rand.New(rand.NewSource(1)), zaptest.NewLogger(t))

	res, err := sim.Charge(context.Background(), Charge{OrderID: 1, Amount: 10})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Success {
		t.Errorf("Expected decline at success rate 0")
	}
	if res.TransactionID != "" {
		t.Errorf("Expected no transaction id on decline, got %q", res.TransactionID)
	}
}

func TestSimulator_HonoursCancellation(t *testing.T) {
	sim := NewSimulatorWithRand(SimulatorConfig{
		SuccessRate: 1,
		MinLatency:  time.Minute,
		MaxLatency:  time.Minute,
	}, rand.New(rand.NewSource(1)), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sim.Charge(ctx, Charge{OrderID: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFixed_RecordsCharges(t *testing.T) {
	f := &Fixed{Approve: true}
	_, _ = f.Charge(context.Background(), Charge{OrderID: 7, Amount: 1999.98})

	charges := f.Charges()
	if len(charges) != 1 || charges[0].Amount != 1999.98 {
		t.Errorf("Expected one charge of 1999.98, got %+v", charges)
	}
}
