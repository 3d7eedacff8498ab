package hc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is satisfied by *sql.DB and *nap.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func Handler(version string, db Pinger) http.Handler {
	t := time.Now()
	fn := func(w http.ResponseWriter, r *http.Request) {
		status, state := http.StatusOK, "ok"

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.PingContext(ctx); err != nil {
				status, state = http.StatusServiceUnavailable, "db unavailable"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version": version,
			"uptime":  time.Since(t).String(),
			"status":  state,
		})
	}

	return http.HandlerFunc(fn)
}
