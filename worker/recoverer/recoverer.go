package recoverer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/pandodao/token-bridge/core"
	"github.com/zyedidia/generic/mapset"
)

const (
	propertyRecoverOffset = "recover_offset"
)

type Config struct {
	// Window is how long a failed conversion with a transaction is watched
	// for a late confirmation.
	Window time.Duration `valid:"required"`
}

func New(
	conversions core.ConversionStore,
	conversionz core.ConversionService,
	properties core.PropertyStore,
	logger *slog.Logger,
	cfg Config,
) *Recoverer {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	return &Recoverer{
		conversions: conversions,
		conversionz: conversionz,
		properties:  properties,
		logger:      logger.With("worker", "recoverer"),
		cfg:         cfg,
	}
}

// Recoverer walks conversions in id order and resolves the ones a crashed or
// timed out process left behind. The cursor only moves past conversions that
// need no more attention.
type Recoverer struct {
	conversions core.ConversionStore
	conversionz core.ConversionService
	properties  core.PropertyStore
	logger      *slog.Logger
	cfg         Config
}

func (w *Recoverer) Run(ctx context.Context) error {
	w.logger.Info("recoverer start")

	for {
		dur := 10 * time.Second
		if w.run(ctx) == nil {
			dur = 2 * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dur):
		}
	}
}

func (w *Recoverer) run(ctx context.Context) error {
	var offset uint64
	if err := w.properties.Get(ctx, propertyRecoverOffset, &offset); err != nil {
		w.logger.Error("properties.Get", "err", err)
		return err
	}

	const limit = 500
	conversions, err := w.conversions.ListFrom(ctx, offset, limit)
	if err != nil {
		w.logger.Error("conversions.ListFrom", "err", err)
		return err
	}

	if len(conversions) == 0 {
		return fmt.Errorf("no conversions after %d", offset)
	}

	var (
		// accounts with a failed recovery in this pass; later conversions of
		// the same account wait for the next pass
		skipped = mapset.New[string]()
		next    = offset
		blocked bool
	)

	for _, c := range conversions {
		if skipped.Has(c.AccountID) {
			blocked = true
			continue
		}

		if w.needsRecover(c) {
			if err := w.conversionz.Recover(ctx, c); err != nil {
				w.logger.Error("conversionz.Recover", "conversion", c.Key, "err", err)
				skipped.Put(c.AccountID)
				blocked = true
				continue
			}
		}

		if !w.settled(c) {
			blocked = true
		}

		if !blocked {
			next = c.ID
		}
	}

	if next <= offset {
		return fmt.Errorf("cursor blocked at %d", offset)
	}

	if err := w.properties.Set(ctx, propertyRecoverOffset, next); err != nil {
		w.logger.Error("properties.Set", "err", err)
		return err
	}

	return nil
}

func (w *Recoverer) needsRecover(c *core.Conversion) bool {
	switch c.Phase {
	case core.ConversionPhaseInitiated, core.ConversionPhaseChainConfirmed:
		return true
	case core.ConversionPhaseFailed:
		return c.TxHash != ""
	default:
		return false
	}
}

// settled reports whether c, as listed, needs no further recovery passes.
func (w *Recoverer) settled(c *core.Conversion) bool {
	switch c.Phase {
	case core.ConversionPhaseLedgerApplied, core.ConversionPhaseReconciliationPending:
		return true
	case core.ConversionPhaseFailed:
		return c.TxHash == "" || time.Since(c.UpdatedAt) > w.cfg.Window
	default:
		return false
	}
}
