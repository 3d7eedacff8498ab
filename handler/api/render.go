package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oxtoacart/bpool"
	"github.com/pandodao/token-bridge/core"
)

var bufpool = bpool.NewBufferPool(64)

func renderJSON(w http.ResponseWriter, status int, v any) {
	buf := bufpool.Get()
	defer bufpool.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorView struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Phase     string `json:"phase,omitempty"`
	Key       string `json:"key,omitempty"`
	Retryable bool   `json:"retryable"`
}

func renderError(w http.ResponseWriter, err error) {
	status, view := viewError(err)
	renderJSON(w, status, map[string]any{"error": view})
}

// viewError tells the caller whether anything happened: kind, phase and key
// come from core.Error when present.
func viewError(err error) (int, errorView) {
	view := errorView{Message: err.Error()}

	var e *core.Error
	if errors.As(err, &e) {
		view.Kind = e.Kind.String()
		view.Retryable = e.Retryable()
		view.Key = e.Key
		if e.Phase > 0 {
			view.Phase = e.Phase.String()
		}
	}

	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		view.Kind = "Unauthorized"
		return http.StatusUnauthorized, view
	case errors.Is(err, core.ErrAccountNotFound), errors.Is(err, core.ErrConversionNotFound):
		if view.Kind == "" {
			view.Kind = core.KindValidation.String()
		}

		return http.StatusNotFound, view
	case errors.Is(err, core.ErrInvalidWallet), errors.Is(err, core.ErrInvalidAmount):
		if view.Kind == "" {
			view.Kind = core.KindValidation.String()
		}

		return http.StatusBadRequest, view
	}

	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest, view
	case core.KindBindingConflict:
		return http.StatusConflict, view
	case core.KindChainFailed:
		return http.StatusBadGateway, view
	case core.KindReconciliationPending:
		return http.StatusInternalServerError, view
	case core.KindStoreUnavailable:
		return http.StatusServiceUnavailable, view
	}

	view.Kind = "Internal"
	return http.StatusInternalServerError, view
}

func badRequest(msg string) error {
	return core.NewError(core.KindValidation, errors.New(msg))
}
