package fifo

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// Normalize splits raw ledger rows into sorted stock-in batches, stock-out
// demands and no-stock records. Outflow amounts are taken as magnitudes
// whatever sign the ledger stored them with. Returns and adjustments are left to the
// ledger layer and do not appear in the output.
func Normalize(rows []LedgerRow) (Ledger, error) {
	ledger := Ledger{
		StockIn:  []StockInRecord{},
		StockOut: []StockOutRecord{},
		NoStock:  []NoStockRecord{},
	}
	for i, row := range rows {
		if err := validate.Struct(row); err != nil {
			return Ledger{}, fmt.Errorf("%w: row %d (%s): %v", ErrInvalidRow, i, row.ID, err)
		}
		switch row.Type {
		case MovementPurchase:
			ledger.StockIn = append(ledger.StockIn, StockInRecord{
				Timestamp:   row.Timestamp,
				Quantity:    row.Quantity,
				UnitCost:    perUnit(row.TotalAmount, row.Quantity),
				ProductID:   row.ProductID,
				SourceID:    row.ID,
				OrderNumber: orderNumber(row.PurchaseOrderNumber),
				OrderID:     row.PurchaseOrderID,
				OrderType:   OrderTypePurchase,
			})
		case MovementSale, MovementShip:
			number, id, orderType := outgoingOrder(row)
			ledger.StockOut = append(ledger.StockOut, StockOutRecord{
				Timestamp:   row.Timestamp,
				Quantity:    row.Quantity.Abs(),
				UnitPrice:   perUnit(row.TotalAmount.Abs(), row.Quantity.Abs()),
				TotalAmount: row.TotalAmount.Abs(),
				ProductID:   row.ProductID,
				SourceID:    row.ID,
				Type:        row.Type,
				OrderNumber: number,
				OrderID:     id,
				OrderType:   orderType,
			})
		case MovementSaleNoStock, MovementShipNoStock:
			number, id, orderType := outgoingOrder(row)
			qty := row.Quantity.Abs()
			unitPrice := perUnit(row.TotalAmount.Abs(), qty)
			if row.UnitPrice != nil {
				unitPrice = *row.UnitPrice
			}
			costPrice := decimal.Zero
			if row.CostPrice != nil {
				costPrice = *row.CostPrice
			}
			ledger.NoStock = append(ledger.NoStock, NoStockRecord{
				Timestamp:   row.Timestamp,
				Quantity:    qty,
				UnitPrice:   unitPrice,
				CostPrice:   costPrice,
				ProductID:   row.ProductID,
				SourceID:    row.ID,
				Type:        row.Type,
				OrderNumber: number,
				OrderID:     id,
				OrderType:   orderType,
			})
		}
	}

	slices.SortStableFunc(ledger.StockIn, func(a, b StockInRecord) int {
		return compareDocuments(a.OrderNumber, b.OrderNumber, a.Timestamp, b.Timestamp)
	})
	slices.SortStableFunc(ledger.StockOut, func(a, b StockOutRecord) int {
		return compareDocuments(a.OrderNumber, b.OrderNumber, a.Timestamp, b.Timestamp)
	})
	slices.SortStableFunc(ledger.NoStock, func(a, b NoStockRecord) int {
		return compareDocuments(a.OrderNumber, b.OrderNumber, a.Timestamp, b.Timestamp)
	})
	return ledger, nil
}

func outgoingOrder(row LedgerRow) (string, string, OrderType) {
	if row.Type == MovementShip || row.Type == MovementShipNoStock {
		return orderNumber(row.ShippingOrderNumber), row.ShippingOrderID, OrderTypeShipping
	}
	return orderNumber(row.SaleNumber), row.SaleID, OrderTypeSale
}

func orderNumber(number string) string {
	if strings.TrimSpace(number) == "" {
		return UnknownOrderNumber
	}
	return number
}

func perUnit(total, qty decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return decimal.Zero
	}
	return total.Div(qty)
}

// compareDocuments orders by the digits of the document number, then the
// number itself, then the timestamp. Backdated documents keep their place in
// the document sequence.
func compareDocuments(numA, numB string, tsA, tsB time.Time) int {
	if c := compareDigits(digitsOf(numA), digitsOf(numB)); c != 0 {
		return c
	}
	if c := strings.Compare(numA, numB); c != 0 {
		return c
	}
	return tsA.Compare(tsB)
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}

// compareDigits compares two digit strings without leading zeros as integers
// of arbitrary length. The empty string is zero.
func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
