package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LeventeLantos/order-notifier/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id         UUID PRIMARY KEY,
	order_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL,
	reason     TEXT,
	phone      TEXT,
	message    TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_created_at_idx ON notifications (created_at DESC);
`

type PostgresOutcomeRepo struct {
	db *sql.DB
}

func NewPostgresOutcomeRepo(db *sql.DB) *PostgresOutcomeRepo {
	return &PostgresOutcomeRepo{db: db}
}

func (r *PostgresOutcomeRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create notifications table: %w", err)
	}
	return nil
}

func (r *PostgresOutcomeRepo) Record(ctx context.Context, o model.Outcome) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, order_id, kind, status, reason, phone, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.OrderID, string(o.Kind), string(o.Status),
		nullString(o.Reason), nullString(o.Phone), nullString(o.Message), o.CreatedAt)
	return err
}

func (r *PostgresOutcomeRepo) ListRecent(ctx context.Context, limit, offset int) ([]model.Outcome, error) {
	limit, offset = clampPage(limit, offset)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, kind, status, reason, phone, message, created_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Outcome
	for rows.Next() {
		var o model.Outcome
		var kind, status string
		var reason, phone, message sql.NullString

		if err := rows.Scan(
			&o.ID,
			&o.OrderID,
			&kind,
			&status,
			&reason,
			&phone,
			&message,
			&o.CreatedAt,
		); err != nil {
			return nil, err
		}

		o.Kind = model.NotificationKind(kind)
		o.Status = model.OutcomeStatus(status)
		o.Reason = reason.String
		o.Phone = phone.String
		o.Message = message.String

		out = append(out, o)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
