package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/apotek-pos/apotek/internal/app"
	"github.com/apotek-pos/apotek/internal/fifo"
	"github.com/apotek-pos/apotek/internal/platform/cache"
	"github.com/apotek-pos/apotek/internal/platform/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS inventory_ledger (
	id                    UUID PRIMARY KEY,
	product_id            TEXT NOT NULL,
	quantity              NUMERIC(18,4) NOT NULL,
	total_amount          NUMERIC(18,2) NOT NULL,
	movement_type         TEXT NOT NULL CHECK (movement_type IN
		('purchase','sale','ship','return','adjustment','sale-no-stock','ship-no-stock')),
	occurred_at           TIMESTAMPTZ NOT NULL,
	purchase_order_number TEXT,
	purchase_order_id     TEXT,
	sale_number           TEXT,
	sale_id               TEXT,
	shipping_order_number TEXT,
	shipping_order_id     TEXT,
	cost_price            NUMERIC(18,2),
	unit_price            NUMERIC(18,2),
	gross_profit          NUMERIC(18,2)
);
CREATE INDEX IF NOT EXISTS inventory_ledger_product_idx ON inventory_ledger (product_id, occurred_at);
CREATE INDEX IF NOT EXISTS inventory_ledger_sale_idx ON inventory_ledger (sale_id) WHERE sale_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS inventory_ledger_shipping_idx ON inventory_ledger (shipping_order_id) WHERE shipping_order_id IS NOT NULL;
`

var seedNamespace = uuid.MustParse("6f1c7d2e-3f0b-4c56-9a8e-2d4b9b1f0a11")

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	rows := demoLedger(time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -7))
	if _, err := fifo.Normalize(rows); err != nil {
		log.Fatalf("demo ledger invalid: %v", err)
	}

	fmt.Println("→ Seeding inventory ledger...")
	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return insertRows(ctx, tx, rows)
	})
	if err != nil {
		log.Fatalf("seed ledger: %v", err)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		log.Printf("skip cache bump: %v", err)
	} else {
		defer redisClient.Close()
		if err := fifo.NewCache(redisClient, cfg.FIFOCacheTTL).Bump(ctx); err != nil {
			log.Printf("bump fifo cache: %v", err)
		}
	}

	fmt.Printf("✓ Seeded %d ledger rows at %s\n", len(rows), time.Now().Format(time.RFC3339))
}

func insertRows(ctx context.Context, tx pgx.Tx, rows []fifo.LedgerRow) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO inventory_ledger (id, product_id, quantity, total_amount, movement_type, occurred_at,
				purchase_order_number, purchase_order_id, sale_number, sale_id,
				shipping_order_number, shipping_order_id, cost_price, unit_price, gross_profit)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''),
				NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13::numeric, $14::numeric, $15::numeric)
			ON CONFLICT (id) DO NOTHING`,
			row.ID, row.ProductID, row.Quantity.String(), row.TotalAmount.String(), string(row.Type), row.Timestamp,
			row.PurchaseOrderNumber, row.PurchaseOrderID, row.SaleNumber, row.SaleID,
			row.ShippingOrderNumber, row.ShippingOrderID,
			optional(row.CostPrice), optional(row.UnitPrice), optional(row.GrossProfit))
	}
	return tx.SendBatch(ctx, batch).Close()
}

func optional(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func rowID(key string) string {
	return uuid.NewSHA1(seedNamespace, []byte(key)).String()
}

func purchase(product, number string, at time.Time, qty, total int64) fifo.LedgerRow {
	return fifo.LedgerRow{
		ID:                  rowID(product + "/" + number),
		ProductID:           product,
		Quantity:            decimal.NewFromInt(qty),
		TotalAmount:         decimal.NewFromInt(total),
		Type:                fifo.MovementPurchase,
		Timestamp:           at,
		PurchaseOrderNumber: number,
		PurchaseOrderID:     rowID("po/" + number),
	}
}

func sale(product, number string, at time.Time, qty, total int64) fifo.LedgerRow {
	return fifo.LedgerRow{
		ID:          rowID(product + "/" + number),
		ProductID:   product,
		Quantity:    decimal.NewFromInt(-qty),
		TotalAmount: decimal.NewFromInt(total),
		Type:        fifo.MovementSale,
		Timestamp:   at,
		SaleNumber:  number,
		SaleID:      rowID("sale/" + number),
	}
}

func ship(product, number string, at time.Time, qty, total int64) fifo.LedgerRow {
	return fifo.LedgerRow{
		ID:                  rowID(product + "/" + number),
		ProductID:           product,
		Quantity:            decimal.NewFromInt(-qty),
		TotalAmount:         decimal.NewFromInt(total),
		Type:                fifo.MovementShip,
		Timestamp:           at,
		ShippingOrderNumber: number,
		ShippingOrderID:     rowID("so/" + number),
	}
}

// demoLedger covers a settled product, a product sold before its first
// purchase and a consignment item outside stock tracking.
func demoLedger(start time.Time) []fifo.LedgerRow {
	day := func(n int, hour int) time.Time {
		return start.AddDate(0, 0, n).Add(time.Duration(hour) * time.Hour)
	}
	unitPrice := decimal.NewFromInt(12000)
	costPrice := decimal.NewFromInt(9000)
	consignment := fifo.LedgerRow{
		ID:          rowID("madu-herbal/INV-0007"),
		ProductID:   "madu-herbal",
		Quantity:    decimal.NewFromInt(-3),
		TotalAmount: decimal.NewFromInt(36000),
		Type:        fifo.MovementSaleNoStock,
		Timestamp:   day(3, 11),
		SaleNumber:  "INV-0007",
		SaleID:      rowID("sale/INV-0007"),
		UnitPrice:   &unitPrice,
		CostPrice:   &costPrice,
	}
	return []fifo.LedgerRow{
		purchase("amoxicillin-500", "PO-0001", day(0, 9), 100, 150000),
		purchase("amoxicillin-500", "PO-0002", day(2, 9), 50, 80000),
		sale("amoxicillin-500", "INV-0001", day(1, 10), 30, 66000),
		sale("amoxicillin-500", "INV-0004", day(2, 14), 80, 176000),
		ship("amoxicillin-500", "SO-0001", day(3, 8), 20, 40000),

		sale("paracetamol-500", "INV-0002", day(1, 16), 10, 5000),
		purchase("paracetamol-500", "PO-0003", day(2, 8), 200, 60000),
		sale("paracetamol-500", "INV-0005", day(3, 9), 40, 20000),

		consignment,
	}
}
