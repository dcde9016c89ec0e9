package fifo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrLedgerUnavailable indicates the ledger table is missing from the database.
var ErrLedgerUnavailable = errors.New("fifo: inventory ledger unavailable")

// Repository reads inventory ledger rows from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ledgerColumns = `id::text, product_id::text, quantity::text, total_amount::text, movement_type, occurred_at,
COALESCE(purchase_order_number, ''), COALESCE(purchase_order_id::text, ''),
COALESCE(sale_number, ''), COALESCE(sale_id::text, ''),
COALESCE(shipping_order_number, ''), COALESCE(shipping_order_id::text, ''),
cost_price::text, unit_price::text, gross_profit::text`

// ListProductLedger returns every ledger row of a product.
func (r *Repository) ListProductLedger(ctx context.Context, productID string) ([]LedgerRow, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("fifo repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+ledgerColumns+`
FROM inventory_ledger
WHERE product_id::text = $1
ORDER BY occurred_at ASC, id ASC`, productID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	ledger := []LedgerRow{}
	for rows.Next() {
		row, err := scanLedgerRow(rows)
		if err != nil {
			return nil, err
		}
		ledger = append(ledger, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return ledger, nil
}

// ListProductIDs returns every product that has at least one ledger row.
func (r *Repository) ListProductIDs(ctx context.Context) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("fifo repository not initialised")
	}
	return r.queryIDs(ctx, `SELECT DISTINCT product_id::text FROM inventory_ledger ORDER BY 1`)
}

// ListOrderProducts returns the products moved by a sale or shipping order.
func (r *Repository) ListOrderProducts(ctx context.Context, orderType OrderType, orderID string) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("fifo repository not initialised")
	}
	switch orderType {
	case OrderTypeSale:
		return r.queryIDs(ctx, `SELECT DISTINCT product_id::text FROM inventory_ledger
WHERE sale_id::text = $1 AND movement_type IN ('sale', 'sale-no-stock') ORDER BY 1`, orderID)
	case OrderTypeShipping:
		return r.queryIDs(ctx, `SELECT DISTINCT product_id::text FROM inventory_ledger
WHERE shipping_order_id::text = $1 AND movement_type IN ('ship', 'ship-no-stock') ORDER BY 1`, orderID)
	default:
		return nil, fmt.Errorf("fifo: unsupported order type %q", orderType)
	}
}

func (r *Repository) queryIDs(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapPgError(err)
	}
	return ids, nil
}

func scanLedgerRow(rows pgx.Rows) (LedgerRow, error) {
	var (
		row                         LedgerRow
		qty, total                  string
		movement                    string
		occurredAt                  time.Time
		costPrice, unitPrice, gross *string
	)
	if err := rows.Scan(&row.ID, &row.ProductID, &qty, &total, &movement, &occurredAt,
		&row.PurchaseOrderNumber, &row.PurchaseOrderID,
		&row.SaleNumber, &row.SaleID,
		&row.ShippingOrderNumber, &row.ShippingOrderID,
		&costPrice, &unitPrice, &gross); err != nil {
		return LedgerRow{}, err
	}
	var err error
	if row.Quantity, err = decimal.NewFromString(qty); err != nil {
		return LedgerRow{}, fmt.Errorf("fifo: row %s quantity: %w", row.ID, err)
	}
	if row.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return LedgerRow{}, fmt.Errorf("fifo: row %s total amount: %w", row.ID, err)
	}
	row.Type = MovementType(movement)
	row.Timestamp = occurredAt.UTC()
	if row.CostPrice, err = optionalDecimal(costPrice); err != nil {
		return LedgerRow{}, fmt.Errorf("fifo: row %s cost price: %w", row.ID, err)
	}
	if row.UnitPrice, err = optionalDecimal(unitPrice); err != nil {
		return LedgerRow{}, fmt.Errorf("fifo: row %s unit price: %w", row.ID, err)
	}
	if row.GrossProfit, err = optionalDecimal(gross); err != nil {
		return LedgerRow{}, fmt.Errorf("fifo: row %s gross profit: %w", row.ID, err)
	}
	return row, nil
}

func optionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("%w: %s", ErrLedgerUnavailable, pgErr.Message)
	}
	return err
}
