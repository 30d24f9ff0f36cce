// Package payments charges customers for confirmed reservations.
package payments

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"seatgrid/pkg/logger"
)

type Result struct {
	Success       bool
	TransactionID string
	Message       string
}

// Processor settles a charge for a reservation group. Implementations
// must be safe for concurrent use.
type Processor interface {
	ProcessPayment(ctx context.Context, amount float64, email string) (*Result, error)
}

// stubProcessor simulates a payment gateway. Roughly four out of five
// charges succeed; the rest are declined without an infrastructure
// error, which lets callers exercise the decline path.
type stubProcessor struct {
	successRate float64
	mu          sync.Mutex
	rng         *rand.Rand
	log         *logger.Logger
}

func NewStubProcessor(log *logger.Logger) Processor {
	return &stubProcessor{
		successRate: 0.8,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		log:         log,
	}
}

func (p *stubProcessor) ProcessPayment(ctx context.Context, amount float64, email string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	roll := p.rng.Float64()
	p.mu.Unlock()

	if roll >= p.successRate {
		p.log.Warn("payment declined",
			"email", email,
			"amount", amount)
		return &Result{
			Success: false,
			Message: "card declined by issuer",
		}, nil
	}

	txn := uuid.NewString()
	p.log.Info("payment captured",
		"email", email,
		"amount", amount,
		"transaction_id", txn)
	return &Result{
		Success:       true,
		TransactionID: txn,
		Message:       "payment captured",
	}, nil
}
