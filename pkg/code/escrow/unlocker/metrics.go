package unlocker

import (
	"context"
	"fmt"
	"time"

	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/metrics"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
)

const (
	metricsStructName = "unlocker"

	escrowCountMetricName = "Escrow/%s_count"

	unlockedEventName     = "EscrowUnlocked"
	unlockFailedEventName = "EscrowUnlockFailed"
)

func (p *service) metricsGaugeWorker(ctx context.Context) error {
	delay := time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			start := time.Now()

			for _, state := range []escrow.State{
				escrow.StateLocked,
				escrow.StateReleased,
			} {
				count, err := p.data.GetCountByState(ctx, state)
				if err != nil {
					continue
				}
				recordEscrowCountMetric(ctx, state, count)
			}

			delay = time.Second - time.Since(start)
		}
	}
}

func recordEscrowCountMetric(ctx context.Context, state escrow.State, count uint64) {
	metricName := fmt.Sprintf(escrowCountMetricName, state.String())
	metrics.RecordCount(ctx, metricName, count)
}

func recordUnlockedEvent(ctx context.Context, record *escrow.Record) {
	metrics.RecordEvent(ctx, unlockedEventName, map[string]interface{}{
		"escrow":   record.Address,
		"receiver": record.Receiver,
		"mint":     record.Mint,
		"amount":   record.Amount,
	})
}

func recordUnlockFailedEvent(ctx context.Context, record *escrow.Record, err error) {
	metrics.RecordEvent(ctx, unlockFailedEventName, map[string]interface{}{
		"escrow":     record.Address,
		"error":      err.Error(),
		"error_kind": token_escrow.GetErrorKind(err).String(),
	})
}
