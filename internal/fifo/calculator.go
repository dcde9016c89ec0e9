package fifo

import (
	"fmt"
)

// CalculateProductFIFO runs normalization, batch matching and profit
// calculation over one product's ledger. It never returns an error: failures
// are reported through Success and Error.
func CalculateProductFIFO(rows []LedgerRow) (result CalculationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failure(fmt.Errorf("fifo: calculation aborted: %v", r))
		}
	}()
	if rows == nil {
		return failure(ErrNilLedger)
	}
	ledger, err := Normalize(rows)
	if err != nil {
		return failure(err)
	}

	noStock := NoStockMargins(ledger.NoStock)
	if len(ledger.StockOut) == 0 {
		summary := ZeroSummary()
		return CalculationResult{
			Success:        true,
			FIFOMatches:    []OutgoingUsage{},
			ProfitMargins:  []ProfitMarginResult{},
			NoStockMargins: noStock,
			Summary:        &summary,
		}
	}

	usages := MatchBatches(ledger.StockIn, ledger.StockOut)
	margins := CalculateProfitMargins(usages, salesFromStockOut(ledger.StockOut))
	summary := Summarize(margins)

	pending := false
	for _, m := range margins {
		if m.PendingProfitCalculation {
			pending = true
			break
		}
	}
	return CalculationResult{
		Success:                  true,
		FIFOMatches:              usages,
		ProfitMargins:            margins,
		NoStockMargins:           noStock,
		Summary:                  &summary,
		HasNegativeInventory:     soldBeforePurchased(ledger),
		PendingProfitCalculation: pending,
	}
}

func salesFromStockOut(stockOut []StockOutRecord) []SaleRecord {
	sales := make([]SaleRecord, 0, len(stockOut))
	for _, out := range stockOut {
		sales = append(sales, SaleRecord{
			ProductID:   out.ProductID,
			SourceID:    out.SourceID,
			Timestamp:   out.Timestamp,
			UnitPrice:   out.UnitPrice,
			Quantity:    out.Quantity,
			TotalAmount: out.TotalAmount,
		})
	}
	return sales
}

// soldBeforePurchased reports whether any stock out is dated before the
// earliest purchase of the product.
func soldBeforePurchased(ledger Ledger) bool {
	if len(ledger.StockIn) == 0 {
		return false
	}
	earliest := ledger.StockIn[0].Timestamp
	for _, in := range ledger.StockIn[1:] {
		if in.Timestamp.Before(earliest) {
			earliest = in.Timestamp
		}
	}
	for _, out := range ledger.StockOut {
		if out.Timestamp.Before(earliest) {
			return true
		}
	}
	return false
}

func failure(err error) CalculationResult {
	return CalculationResult{Success: false, Error: err.Error()}
}
