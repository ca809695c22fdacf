package repo

import (
	"context"
	"database/sql"

	"leadline/internal/domain"
)

func scanSale(row scanner) (domain.Sale, error) {
	var s domain.Sale
	var amount sql.NullFloat64
	err := row.Scan(&s.ID, &s.ContactID, &s.AssociateID, &amount, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if amount.Valid {
		v := amount.Float64
		s.Amount = &v
	}
	return s, nil
}

// UpsertSale keeps a single sale per contact; an existing row keeps its id and createdAt.
func (r Repo) UpsertSale(ctx context.Context, tx *sql.Tx, s domain.Sale) (domain.Sale, error) {
	_, err := r.exec(ctx, tx, `INSERT INTO sales(id,contact_id,user_id,amount,created_at,updated_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(contact_id) DO UPDATE SET user_id=excluded.user_id, amount=excluded.amount, updated_at=excluded.updated_at`,
		s.ID, s.ContactID, s.AssociateID, nullableFloatPtr(s.Amount), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return domain.Sale{}, err
	}
	return r.GetSaleByContact(ctx, tx, s.ContactID)
}

func (r Repo) GetSaleByContact(ctx context.Context, tx *sql.Tx, contactID string) (domain.Sale, error) {
	return scanSale(r.on(tx).QueryRowContext(ctx, r.q(`SELECT id,contact_id,user_id,amount,created_at,updated_at FROM sales WHERE contact_id=?`), contactID))
}

// ListSales returns sales newest first, optionally for one associate.
func (r Repo) ListSales(ctx context.Context, associateID string) ([]domain.Sale, error) {
	query := `SELECT id,contact_id,user_id,amount,created_at,updated_at FROM sales`
	var args []any
	if associateID != "" {
		query += ` WHERE user_id=?`
		args = append(args, associateID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
