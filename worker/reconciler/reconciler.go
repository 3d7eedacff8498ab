package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/metrics"
	"golang.org/x/sync/errgroup"
)

func New(
	conversions core.ConversionStore,
	conversionz core.ConversionService,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		conversions: conversions,
		conversionz: conversionz,
		logger:      logger.With("worker", "reconciler"),
		metrics:     metrics.Bridge(),
	}
}

// Reconciler re-attempts the ledger half of ReconciliationPending conversions.
type Reconciler struct {
	conversions core.ConversionStore
	conversionz core.ConversionService
	logger      *slog.Logger
	metrics     *metrics.BridgeMetrics
}

func (w *Reconciler) Run(ctx context.Context) error {
	w.logger.Info("reconciler start")

	for {
		dur := 5 * time.Second
		if w.run(ctx) == nil {
			dur = time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dur):
		}
	}
}

func (w *Reconciler) run(ctx context.Context) error {
	const limit = 64
	conversions, err := w.conversions.ListPhase(ctx, core.ConversionPhaseReconciliationPending, limit)
	if err != nil {
		w.logger.Error("conversions.ListPhase", "err", err)
		return err
	}

	w.metrics.SetPending(len(conversions))

	if len(conversions) == 0 {
		return fmt.Errorf("pending conversions dry")
	}

	var g errgroup.Group
	g.SetLimit(10)

	for idx := range conversions {
		c := conversions[idx]
		g.Go(func() error {
			return w.handleConversion(ctx, c)
		})
	}

	return g.Wait()
}

func (w *Reconciler) handleConversion(ctx context.Context, c *core.Conversion) error {
	logger := w.logger.With("conversion", c.Key, "account", c.AccountID, "tx", c.TxHash)
	logger.Info("reconcile conversion", "direction", c.Direction.String(), "amount", c.Amount, "since", c.UpdatedAt)

	if _, err := w.conversionz.Reconcile(ctx, c.Key); err != nil {
		logger.Error("conversionz.Reconcile", "err", err)
		return err
	}

	logger.Debug("conversion reconciled")
	return nil
}
