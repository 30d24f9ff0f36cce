package payments

import (
	"context"
	"io"
	"math/rand"
	"testing"

	"seatgrid/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Output: io.Discard})
}

func newTestProcessor(successRate float64) *stubProcessor {
	return &stubProcessor{
		successRate: successRate,
		rng:         rand.New(rand.NewSource(1)),
		log:         testLogger(),
	}
}

func TestProcessPaymentSuccessCarriesTransactionID(t *testing.T) {
	p := newTestProcessor(1.0)

	res, err := p.ProcessPayment(context.Background(), 200, "alice@example.com")
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}
	if !res.Success {
		t.Fatal("expected payment to succeed at rate 1.0")
	}
	if res.TransactionID == "" {
		t.Error("successful payment must carry a transaction id")
	}
}

func TestProcessPaymentDeclineIsNotAnError(t *testing.T) {
	p := newTestProcessor(0.0)

	res, err := p.ProcessPayment(context.Background(), 200, "bob@example.com")
	if err != nil {
		t.Fatalf("decline must not surface as an error, got %v", err)
	}
	if res.Success {
		t.Fatal("expected payment to be declined at rate 0.0")
	}
	if res.TransactionID != "" {
		t.Error("declined payment must not carry a transaction id")
	}
}

func TestProcessPaymentHonorsCancelledContext(t *testing.T) {
	p := newTestProcessor(1.0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.ProcessPayment(ctx, 200, "carol@example.com"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
