package orders

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists orders in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed order store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// orderColumns is the SELECT column list for orders.
const orderColumns = `id, item_id, item_name, buyer_id, amount, status,
	payment_ref, needs_reconciliation, recipient_name, phone, address,
	created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, order *Order) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, item_id, item_name, buyer_id, amount, status,
			payment_ref, needs_reconciliation, recipient_name, phone, address,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5::NUMERIC(12,2), $6,
			$7, $8, $9, $10, $11,
			$12, $13
		)`,
		order.ID, order.ItemID, nullStr(order.ItemName), order.BuyerID, order.Amount, string(order.Status),
		nullStr(order.PaymentRef), order.NeedsReconciliation, nullStr(order.RecipientName), nullStr(order.Phone), nullStr(order.Address),
		order.CreatedAt, order.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (p *PostgresStore) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Order, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE buyer_id = $1 ORDER BY created_at DESC LIMIT $2`,
		buyerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, rows.Err()
}

func (p *PostgresStore) UpdateShipping(ctx context.Context, id string, info ShippingInfo, at time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET recipient_name = $1, phone = $2, address = $3,
			status = 'confirmed', updated_at = $4
		WHERE id = $5`,
		info.RecipientName, info.Phone, info.Address, at, id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// --- scanners ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(sc scanner) (*Order, error) {
	order := &Order{}
	var (
		itemName      sql.NullString
		paymentRef    sql.NullString
		recipientName sql.NullString
		phone         sql.NullString
		address       sql.NullString
		status        string
	)

	err := sc.Scan(
		&order.ID, &order.ItemID, &itemName, &order.BuyerID, &order.Amount, &status,
		&paymentRef, &order.NeedsReconciliation, &recipientName, &phone, &address,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = Status(status)
	order.ItemName = itemName.String
	order.PaymentRef = paymentRef.String
	order.RecipientName = recipientName.String
	order.Phone = phone.String
	order.Address = address.String

	return order, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
