package catalog

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists catalog items in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed catalog store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// itemColumns is the SELECT column list for items.
const itemColumns = `id, name, description, listed_price, floor_price,
	status, buyer_id, sold_at, created_at, updated_at`

func (p *PostgresStore) Get(ctx context.Context, id string) (*Item, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	return item, err
}

func (p *PostgresStore) Create(ctx context.Context, item *Item) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO items (
			id, name, description, listed_price, floor_price,
			status, buyer_id, sold_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4::NUMERIC(12,2), $5::NUMERIC(12,2),
			$6, $7, $8, $9, $10
		)`,
		item.ID, item.Name, nullStr(item.Description), item.ListedPrice, nullFloat(item.FloorPrice),
		string(item.Status), nullStr(item.BuyerID), nullTime(item.SoldAt), item.CreatedAt, item.UpdatedAt,
	)
	return err
}

// MarkSold is a conditional write: the WHERE clause only matches items still
// available, so the first finalizer wins and every later one sees ErrAlreadySold.
func (p *PostgresStore) MarkSold(ctx context.Context, id, buyerID string, at time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE items SET status = 'sold', buyer_id = $1, sold_at = $2, updated_at = $2
		WHERE id = $3 AND status = 'available'`,
		buyerID, at, id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish "gone" from "already sold".
		var status string
		err := p.db.QueryRowContext(ctx, `SELECT status FROM items WHERE id = $1`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		return ErrAlreadySold
	}
	return nil
}

func (p *PostgresStore) ListAvailable(ctx context.Context, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		WHERE status = 'available' ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// --- scanners ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(sc scanner) (*Item, error) {
	item := &Item{}
	var (
		description sql.NullString
		floorPrice  sql.NullFloat64
		buyerID     sql.NullString
		soldAt      sql.NullTime
		status      string
	)

	err := sc.Scan(
		&item.ID, &item.Name, &description, &item.ListedPrice, &floorPrice,
		&status, &buyerID, &soldAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Status = ItemStatus(status)
	item.Description = description.String
	item.FloorPrice = floorPrice.Float64
	item.BuyerID = buyerID.String
	if soldAt.Valid {
		item.SoldAt = &soldAt.Time
	}

	return item, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
