package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pandodao/token-bridge/core"
	"github.com/shopspring/decimal"
)

type loginRequest struct {
	AccountID string `json:"account_id"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		renderError(w, badRequest("account_id is required"))
		return
	}

	session, err := s.identityz.Login(r.Context(), req.AccountID)
	if err != nil {
		renderError(w, err)
		return
	}

	renderJSON(w, http.StatusCreated, session)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.identityz.Logout(r.Context(), authFrom(r.Context()).token); err != nil {
		s.logger.Error("identityz.Logout", "err", err)
		renderError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type connectRequest struct {
	Wallet string `json:"wallet"`
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, badRequest("invalid body"))
		return
	}

	identity, err := s.identityz.Connect(r.Context(), authFrom(r.Context()).token, req.Wallet)
	if err != nil {
		renderError(w, err)
		return
	}

	renderJSON(w, http.StatusOK, s.viewProfile(r, identity))
}

type profileView struct {
	Account *core.Account      `json:"account"`
	Wallet  string             `json:"wallet,omitempty"`
	Binding core.BindingStatus `json:"binding"`
	Token   *decimal.Decimal   `json:"token,omitempty"`
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, s.viewProfile(r, authFrom(r.Context()).identity))
}

// viewProfile reports the fiat balance from the ledger and, for a bound
// account, the live token balance of its wallet.
func (s *Server) viewProfile(r *http.Request, identity *core.Identity) *profileView {
	view := &profileView{
		Account: identity.Account,
		Wallet:  identity.Wallet,
		Binding: identity.Binding(),
	}

	if identity.Account.Bound() {
		balance, err := s.tokenz.BalanceOf(r.Context(), identity.Account.Wallet)
		if err != nil {
			s.logger.Warn("tokenz.BalanceOf", "wallet", identity.Account.Wallet, "err", err)
		} else {
			view.Token = &balance
		}
	}

	return view
}

type bindRequest struct {
	Proof string `json:"proof,omitempty"`
}

// bind verifies the connected wallet and binds it to the session's account.
func (s *Server) bind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			renderError(w, badRequest("invalid body"))
			return
		}
	}

	var proof []byte
	if req.Proof != "" {
		b, err := hexutil.Decode(req.Proof)
		if err != nil {
			renderError(w, badRequest("proof must be 0x prefixed hex"))
			return
		}

		proof = b
	}

	identity := authFrom(r.Context()).identity
	if identity.Wallet == "" {
		renderError(w, badRequest("no wallet connected"))
		return
	}

	binding, err := s.bindingz.VerifyAndBind(r.Context(), identity.Account, identity.Wallet, proof)
	if err != nil {
		renderError(w, err)
		return
	}

	renderJSON(w, http.StatusOK, binding)
}
