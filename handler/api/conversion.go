package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pandodao/token-bridge/core"
	"github.com/shopspring/decimal"
)

type convertRequest struct {
	Direction core.Direction  `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	// Nonce makes a repeated request a retry of the first one. A request
	// without nonce is always new.
	Nonce string `json:"nonce,omitempty"`
}

type convertResponse struct {
	Key   string              `json:"key"`
	Fiat  decimal.Decimal     `json:"fiat"`
	Token decimal.NullDecimal `json:"token"`
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	var body convertRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderError(w, badRequest("invalid body: "+err.Error()))
		return
	}

	if body.Nonce == "" {
		body.Nonce = uuid.NewString()
	}

	identity := authFrom(r.Context()).identity
	req := &core.ConversionRequest{
		Direction: body.Direction,
		AccountID: identity.Account.ID,
		Wallet:    identity.Wallet,
		Amount:    body.Amount,
		Nonce:     body.Nonce,
	}

	key := req.IdempotencyKey()
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.conversionz.Convert(r.Context(), req)
	})

	if err != nil {
		renderError(w, err)
		return
	}

	balances := v.(*core.Balances)
	renderJSON(w, http.StatusOK, convertResponse{
		Key:   key,
		Fiat:  balances.Fiat,
		Token: balances.Token,
	})
}

func (s *Server) findConversion(w http.ResponseWriter, r *http.Request) {
	c, err := s.conversionz.Find(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		renderError(w, err)
		return
	}

	if c.AccountID != authFrom(r.Context()).identity.Account.ID {
		renderError(w, core.NewError(core.KindValidation, core.ErrConversionNotFound))
		return
	}

	renderJSON(w, http.StatusOK, c)
}
