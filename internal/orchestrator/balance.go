package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/r1k0/nuxhash/internal/interfaces"
)

// BalanceSource answers a single wallet balance inquiry
type BalanceSource interface {
	UnpaidBalance(ctx context.Context, addr string) (float64, error)
}

// BalanceSink receives the result of a completed balance inquiry. Inquiries
// carry no ordering guarantee; the sink must treat every delivery as "latest
// observed"
type BalanceSink interface {
	OnBalance(balance float64)
}

var _ interfaces.Runnable = (*BalanceTracker)(nil)

// BalanceTracker periodically launches fire-and-forget balance inquiries,
// each on its own goroutine. In-flight requests are independent of the
// orchestration loop and of each other
type BalanceTracker struct {
	addr     string
	interval time.Duration

	source BalanceSource
	sink   BalanceSink
	log    interfaces.ILogger
}

func NewBalanceTracker(addr string, interval time.Duration, source BalanceSource, sink BalanceSink, log interfaces.ILogger) *BalanceTracker {
	return &BalanceTracker{
		addr:     addr,
		interval: interval,
		source:   source,
		sink:     sink,
		log:      log,
	}
}

func (t *BalanceTracker) Run(ctx context.Context) error {
	t.request(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.request(ctx)
		}
	}
}

func (t *BalanceTracker) request(ctx context.Context) {
	id := uuid.NewString()
	go func() {
		balance, err := t.source.UnpaidBalance(ctx, t.addr)
		if err != nil {
			t.log.Warnf("balance inquiry %s failed: %s", id, err)
			return
		}
		t.log.Debugf("balance inquiry %s: %.8f", id, balance)
		t.sink.OnBalance(balance)
	}()
}
