package session

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pandodao/token-bridge/core"
	"github.com/tsenart/nap"
)

func New(db *nap.DB) core.SessionStore {
	return &store{db: db}
}

type store struct {
	db *nap.DB
}

var columns = []string{"token", "created_at", "expired_at", "account_id", "wallet"}

func (s *store) Create(ctx context.Context, session *core.Session) error {
	b := sq.Insert("sessions").
		Columns(columns...).
		Values(session.Token, session.CreatedAt, session.ExpiredAt, session.AccountID, session.Wallet)

	_, err := b.RunWith(s.db).ExecContext(ctx)
	return err
}

func (s *store) Find(ctx context.Context, token string) (*core.Session, error) {
	b := sq.Select(columns...).From("sessions").Where(sq.Eq{"token": token})
	row := b.RunWith(s.db).QueryRowContext(ctx)

	var session core.Session
	if err := row.Scan(&session.Token, &session.CreatedAt, &session.ExpiredAt, &session.AccountID, &session.Wallet); err != nil {
		return nil, err
	}

	return &session, nil
}

func (s *store) Connect(ctx context.Context, token, wallet string) error {
	b := sq.Update("sessions").
		Set("wallet", core.NormalizeWallet(wallet)).
		Where(sq.Eq{"token": token})

	r, err := b.RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return err
	}

	if n, err := r.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return core.ErrSessionNotFound
	}

	return nil
}

func (s *store) Delete(ctx context.Context, token string) error {
	_, err := sq.Delete("sessions").
		Where(sq.Eq{"token": token}).
		RunWith(s.db).
		ExecContext(ctx)
	return err
}

func (s *store) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	// DELETE ... LIMIT is not portable, pick the tokens first
	b := sq.Select("token").
		From("sessions").
		Where(sq.Lt{"expired_at": before}).
		OrderBy("expired_at").
		Limit(uint64(limit))

	rows, err := b.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return 0, err
	}

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			rows.Close()
			return 0, err
		}

		tokens = append(tokens, token)
	}

	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(tokens) == 0 {
		return 0, nil
	}

	r, err := sq.Delete("sessions").
		Where(sq.Eq{"token": tokens}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return 0, err
	}

	return r.RowsAffected()
}
