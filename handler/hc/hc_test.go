package hc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pinger func(ctx context.Context) error

func (p pinger) PingContext(ctx context.Context) error {
	return p(ctx)
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		want int
	}{
		{"no db", nil, http.StatusOK},
		{"db up", pinger(func(context.Context) error { return nil }), http.StatusOK},
		{"db down", pinger(func(context.Context) error { return errors.New("down") }), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Handler("test", tt.db).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/hc", nil))

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
