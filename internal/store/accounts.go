package store

import (
	"context"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
)

func (q *Queries) CreateAccount(ctx context.Context, a *model.Account) error {
	if a.Tier == "" {
		a.Tier = model.TierStandard
	}
	err := q.q.QueryRow(ctx, `
		INSERT INTO accounts (id, handle, contact, tier)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, a.ID, a.Handle, a.Contact, string(a.Tier)).Scan(&a.CreatedAt)
	return mapErr(err, "account")
}

func (q *Queries) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := q.q.QueryRow(ctx, `
		SELECT id, handle, contact, tier, created_at
		FROM accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Handle, &a.Contact, &a.Tier, &a.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "account")
	}
	return &a, nil
}

func (q *Queries) SetAccountTier(ctx context.Context, id string, tier model.Tier) error {
	tag, err := q.q.Exec(ctx, `UPDATE accounts SET tier = $2 WHERE id = $1`, id, string(tier))
	if err != nil {
		return mapErr(err, "account")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("account not found")
	}
	return nil
}
