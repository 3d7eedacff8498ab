package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/store"
)

type Config struct {
	TTL time.Duration `valid:"required"`
}

func New(
	accounts core.AccountStore,
	sessions core.SessionStore,
	cfg Config,
) core.IdentityService {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	return &service{
		accounts: accounts,
		sessions: sessions,
		cfg:      cfg,
	}
}

type service struct {
	accounts core.AccountStore
	sessions core.SessionStore
	cfg      Config
}

// Login opens a session for an existing account. The connected wallet starts
// empty; it is set by Connect.
func (s *service) Login(ctx context.Context, accountID string) (*core.Session, error) {
	account, err := s.accounts.Find(ctx, accountID)
	if err != nil {
		if store.IsErrNotFound(err) {
			return nil, core.ErrAccountNotFound
		}

		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	session := &core.Session{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiredAt: now.Add(s.cfg.TTL),
		AccountID: account.ID,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *service) Resolve(ctx context.Context, token string) (*core.Identity, error) {
	session, err := s.sessions.Find(ctx, token)
	if err != nil {
		if store.IsErrNotFound(err) {
			return nil, core.ErrSessionNotFound
		}

		return nil, err
	}

	if time.Now().After(session.ExpiredAt) {
		return nil, fmt.Errorf("session expired at %s: %w", session.ExpiredAt.Format(time.RFC3339), core.ErrSessionNotFound)
	}

	account, err := s.accounts.Find(ctx, session.AccountID)
	if err != nil {
		if store.IsErrNotFound(err) {
			return nil, core.ErrAccountNotFound
		}

		return nil, err
	}

	return &core.Identity{Account: account, Wallet: session.Wallet}, nil
}

// Connect records the wallet the session is currently connected with. It never
// binds: a wallet differing from the bound one shows up as a mismatch.
func (s *service) Connect(ctx context.Context, token, wallet string) (*core.Identity, error) {
	wallet = core.NormalizeWallet(wallet)
	if wallet != "" && !common.IsHexAddress(wallet) {
		return nil, core.ErrInvalidWallet
	}

	if _, err := s.Resolve(ctx, token); err != nil {
		return nil, err
	}

	if err := s.sessions.Connect(ctx, token, wallet); err != nil {
		return nil, err
	}

	return s.Resolve(ctx, token)
}

func (s *service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}
