package core

import (
	"context"
	"time"
)

// Session is issued by the login flow and carries the connected wallet.
type Session struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiredAt time.Time `json:"expired_at"`
	AccountID string    `json:"account_id"`
	Wallet    string    `json:"wallet,omitempty"`
}

type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Find(ctx context.Context, token string) (*Session, error)
	Connect(ctx context.Context, token, wallet string) error
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

// Identity is who is acting: the account and the wallet currently connected,
// which may be empty.
type Identity struct {
	Account *Account `json:"account"`
	Wallet  string   `json:"wallet,omitempty"`
}

func (id *Identity) Binding() BindingStatus {
	return CheckBinding(id.Account, id.Wallet)
}

type IdentityService interface {
	Login(ctx context.Context, accountID string) (*Session, error)
	Resolve(ctx context.Context, token string) (*Identity, error)
	Connect(ctx context.Context, token, wallet string) (*Identity, error)
	Logout(ctx context.Context, token string) error
}
