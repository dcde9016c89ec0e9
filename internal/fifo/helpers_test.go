package fifo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func requireDecimal(t *testing.T, want float64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %v, got %s %v", want, got.String(), msgAndArgs)
}

func purchaseRow(id, number string, at time.Time, qty, total float64) LedgerRow {
	return LedgerRow{
		ID:                  id,
		ProductID:           "amoxicillin-500",
		Quantity:            dec(qty),
		TotalAmount:         dec(total),
		Type:                MovementPurchase,
		Timestamp:           at,
		PurchaseOrderNumber: number,
		PurchaseOrderID:     "po-" + id,
	}
}

func saleRow(id, number string, at time.Time, qty, total float64) LedgerRow {
	return LedgerRow{
		ID:          id,
		ProductID:   "amoxicillin-500",
		Quantity:    dec(-qty),
		TotalAmount: dec(total),
		Type:        MovementSale,
		Timestamp:   at,
		SaleNumber:  number,
		SaleID:      "sale-" + id,
	}
}

func shipRow(id, number string, at time.Time, qty, total float64) LedgerRow {
	return LedgerRow{
		ID:                  id,
		ProductID:           "amoxicillin-500",
		Quantity:            dec(-qty),
		TotalAmount:         dec(total),
		Type:                MovementShip,
		Timestamp:           at,
		ShippingOrderNumber: number,
		ShippingOrderID:     "so-" + id,
	}
}

func batch(id, number string, at time.Time, qty, cost float64) StockInRecord {
	return StockInRecord{
		Timestamp:   at,
		Quantity:    dec(qty),
		UnitCost:    dec(cost),
		ProductID:   "amoxicillin-500",
		SourceID:    id,
		OrderNumber: number,
		OrderType:   OrderTypePurchase,
	}
}

func demand(id, number string, at time.Time, qty, price float64) StockOutRecord {
	return StockOutRecord{
		Timestamp:   at,
		Quantity:    dec(qty),
		UnitPrice:   dec(price),
		ProductID:   "amoxicillin-500",
		SourceID:    id,
		Type:        MovementSale,
		OrderNumber: number,
		OrderType:   OrderTypeSale,
	}
}
