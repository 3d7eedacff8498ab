package cleaner

import (
	"context"
	"log/slog"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/pandodao/token-bridge/core"
)

type Config struct {
	Interval time.Duration `valid:"required"`
}

type Cleaner struct {
	sessions core.SessionStore
	logger   *slog.Logger
	cfg      Config
}

func New(
	sessions core.SessionStore,
	logger *slog.Logger,
	cfg Config,
) *Cleaner {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	return &Cleaner{
		sessions: sessions,
		logger:   logger.With("worker", "cleaner"),
		cfg:      cfg,
	}
}

func (w *Cleaner) Run(ctx context.Context) error {
	w.logger.Info("cleaner start")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.Interval):
			_ = w.run(ctx)
		}
	}
}

// run deletes expired sessions in batches.
func (w *Cleaner) run(ctx context.Context) error {
	const limit = 500
	now := time.Now().UTC()

	var total int64
	for {
		n, err := w.sessions.DeleteExpired(ctx, now, limit)
		if err != nil {
			w.logger.Error("sessions.DeleteExpired", "err", err)
			return err
		}

		total += n
		if n < limit {
			break
		}
	}

	if total > 0 {
		w.logger.Debug("expired sessions deleted", "count", total)
	}

	return nil
}
